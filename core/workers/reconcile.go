package workers

import (
	"chupload/core/ledger"
	"chupload/core/notifiers"
	"chupload/pkg/config"
	"chupload/pkg/rho"
	"context"

	"github.com/rs/zerolog/log"
)

type UploadLister interface {
	ListByStatus(ctx context.Context, status string, limit int) ([]*ledger.Upload, error)
}

type UploadAnnouncer interface {
	Notify(ctx context.Context, events []*notifiers.UploadEvent) error
}

// RequeueCompleted announces up to limit uploads that were merged but
// never archived, e.g. because the worker was down when they finished.
func RequeueCompleted(ctx context.Context, repo UploadLister, announcer UploadAnnouncer, limit int) (int, error) {
	uploads, err := repo.ListByStatus(ctx, ledger.StatusCompleted, limit)
	if err != nil {
		return 0, err
	}

	if len(uploads) == 0 {
		return 0, nil
	}

	events := rho.Map(uploads, func(upload *ledger.Upload, _ int) *notifiers.UploadEvent {
		return &notifiers.UploadEvent{
			Basename:    upload.Basename,
			DestPath:    upload.DestPath,
			Size:        upload.FileSize,
			CompletedAt: upload.CreatedAt,
		}
	})

	if err := announcer.Notify(ctx, events); err != nil {
		return 0, err
	}

	log.Info().Int("count", len(events)).Msg("requeued completed uploads")

	return len(events), nil
}

func Reconcile(ctx context.Context, cfg config.AppConfig, limit int) error {
	db, err := OpenDB(ctx, cfg.DbName)
	if err != nil {
		return err
	}
	defer db.Close()

	repo, err := ledger.Open(ctx, db)
	if err != nil {
		return err
	}

	conn, queues, err := OpenQueues(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = RequeueCompleted(ctx, repo, notifiers.NewUploadNotifier(queues.Completed), limit)
	return err
}
