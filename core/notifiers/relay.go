package notifiers

import (
	"chupload/pkg/brokers"
	"chupload/pkg/queuer"
	"encoding/json"
)

const EventArchived = "archived"

// ArchivedMessage turns a queued ArchivedEvent into a progress message for
// the listeners of that basename.
func ArchivedMessage(payload *queuer.Payload) (brokers.Message, error) {
	event, err := Decode[ArchivedEvent](payload.Message)
	if err != nil {
		return brokers.Message{}, err
	}

	content, err := json.Marshal(map[string]string{
		"path":  event.Basename,
		"url":   event.URL,
		"error": event.Err,
	})
	if err != nil {
		return brokers.Message{}, err
	}

	return brokers.Message{
		Topic:   event.Basename,
		Event:   EventArchived,
		Content: content,
	}, nil
}
