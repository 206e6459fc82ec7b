package notifiers

import (
	"chupload/core/chunks"
	"chupload/core/database"
	"chupload/pkg/queuer"
	"chupload/pkg/rho"
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type UploadNotifier struct {
	queue queuer.Queuer
}

func NewUploadNotifier(queue queuer.Queuer) *UploadNotifier {
	return &UploadNotifier{queue: queue}
}

// Notify enqueues events for the archive workers. Events that fail to
// encode are dropped and logged; enqueue failures come back as a
// queuer.PartialError.
func (un *UploadNotifier) Notify(ctx context.Context, events []*UploadEvent) error {
	payloads := rho.Map(events, func(event *UploadEvent, _ int) *queuer.Payload {
		msg, err := Encode(event)
		if err != nil {
			log.Error().Err(err).Str("basename", event.Basename).Msg("failed to encode event")
			return nil
		}

		return &queuer.Payload{Message: msg, Key: event.Basename}
	})

	payloads = rho.Compact(payloads)

	if len(payloads) == 0 {
		return nil
	}

	return un.queue.EnqueueMsgs(ctx, "", payloads)
}

// AnnounceHook returns a post-processing hook that queues the finished
// file for archiving. The merge is already done at that point, so a queue
// failure is logged and does not fail the upload.
func (un *UploadNotifier) AnnounceHook() chunks.HookFunc {
	return func(ctx context.Context, cc chunks.ChunkContext) error {
		event := &UploadEvent{
			Basename:    cc.Basename,
			DestPath:    cc.Destname,
			Size:        cc.Size,
			CompletedAt: database.Now(),
		}

		if err := un.Notify(ctx, []*UploadEvent{event}); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("basename", cc.Basename).Msg("failed to announce upload")
		}

		return nil
	}
}

type ArchiveNotifier struct {
	queue queuer.Queuer
}

func NewArchiveNotifier(queue queuer.Queuer) *ArchiveNotifier {
	return &ArchiveNotifier{queue: queue}
}

func (an *ArchiveNotifier) Notify(ctx context.Context, event *ArchivedEvent) error {
	msg, err := Encode(event)
	if err != nil {
		return err
	}

	return an.queue.EnqueueMsg(ctx, "", &queuer.Payload{Message: msg, Key: event.Basename})
}
