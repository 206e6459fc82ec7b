package supervisors

import (
	"chupload/core/ledger"
	"chupload/core/notifiers"
	"chupload/pkg/blobstore"
	"chupload/pkg/queuer"
	"chupload/pkg/workerpool"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

type UploadLedger interface {
	GetLatest(ctx context.Context, basename string) (*ledger.Upload, error)
	UpdateStatus(ctx context.Context, id, status string, archiveURL *string) error
}

type ArchiveAnnouncer interface {
	Notify(ctx context.Context, event *notifiers.ArchivedEvent) error
}

type ArchiveExecutor struct {
	archiver  blobstore.Archiver
	repo      UploadLedger
	announcer ArchiveAnnouncer
	keepLocal bool
}

func NewArchiveExecutor(
	archiver blobstore.Archiver,
	repo UploadLedger,
	announcer ArchiveAnnouncer,
	keepLocal bool,
) *ArchiveExecutor {
	return &ArchiveExecutor{
		archiver:  archiver,
		repo:      repo,
		announcer: announcer,
		keepLocal: keepLocal,
	}
}

// Execute archives every upload in payloads. It keeps going after a
// failed upload and returns the errors joined.
func (slf *ArchiveExecutor) Execute(ctx context.Context, payloads []*queuer.Payload) error {
	var errs []error

	for _, payload := range payloads {
		if payload == nil {
			continue
		}

		event, err := notifiers.Decode[notifiers.UploadEvent](payload.Message)
		if err != nil {
			log.Error().Err(err).Msg("failed to decode")
			errs = append(errs, err)
			continue
		}

		if err := slf.archive(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (slf *ArchiveExecutor) archive(ctx context.Context, event *notifiers.UploadEvent) error {
	logger := log.With().Str("basename", event.Basename).Logger()

	upload, err := slf.repo.GetLatest(ctx, event.Basename)
	if err != nil {
		logger.Error().Err(err).Msg("no ledger row for upload")
		return err
	}

	if upload.Status == ledger.StatusArchived {
		logger.Info().Msg("already archived, skipping")
		return nil
	}

	result := &notifiers.ArchivedEvent{Basename: event.Basename}

	url, archiveErr := slf.archiver.Archive(ctx, event.DestPath, event.Basename)

	status := ledger.StatusArchived
	var archiveURL *string

	if archiveErr != nil {
		logger.Error().Err(archiveErr).Msg("failed to archive upload")

		status = ledger.StatusFailed
		result.Err = archiveErr.Error()
	} else {
		archiveURL = &url
		result.URL = url
	}

	if err := slf.repo.UpdateStatus(ctx, upload.ID, status, archiveURL); err != nil {
		logger.Error().Err(err).Str("status", status).Msg("failed to update upload status")
		return errors.Join(archiveErr, err)
	}

	if archiveErr == nil && !slf.keepLocal {
		if err := blobstore.Remove(event.DestPath); err != nil {
			logger.Warn().Err(err).Msg("failed to delete archived file")
		}
	}

	if slf.announcer != nil {
		if err := slf.announcer.Notify(ctx, result); err != nil {
			logger.Warn().Err(err).Msg("failed to announce archive result")
		}
	}

	return archiveErr
}

// ArchiveSupervisor feeds the executor from producer until ctx is done.
// Every tick asks the producer for one more batch.
func ArchiveSupervisor(
	ctx context.Context,
	executor *ArchiveExecutor,
	producer *ArchiveChangelog,
	poolSize int64,
	tick time.Duration,
) {
	log.Info().Msg("starting archive supervisor")

	pool := workerpool.NewWorkerPool(poolSize, executor.Execute)

	recvChan := producer.Produce(ctx)
	go workerpool.Dispatch(ctx, pool, recvChan)

	pool.Start(ctx)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping pool")
			pool.Stop(context.Background())
			return

		case err := <-pool.Results:
			if err != nil {
				log.Warn().Err(err).Msg("archive batch finished with errors")
			}

		case <-ticker.C:
			producer.Demand(int(poolSize))
		}
	}
}
