package notifiers

import (
	"bytes"
	"encoding/gob"
	"time"
)

// UploadEvent announces a merged destination file.
type UploadEvent struct {
	Basename    string
	DestPath    string
	Size        int64
	CompletedAt time.Time
}

// ArchivedEvent reports the outcome of archiving one upload. Err is empty
// on success.
type ArchivedEvent struct {
	Basename string
	URL      string
	Err      string
}

func Encode(event any) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(event); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode[T any](data []byte) (*T, error) {
	event := new(T)

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(event); err != nil {
		return nil, err
	}

	return event, nil
}
