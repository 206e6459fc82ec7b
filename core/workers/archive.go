package workers

import (
	"chupload/core/ledger"
	"chupload/core/notifiers"
	"chupload/core/supervisors"
	"chupload/pkg/blobstore"
	"chupload/pkg/config"
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrArchiveDisabled = errors.New("archive bucket not configured")

// ArchiveSupervisor moves completed uploads to the archive bucket until ctx
// is done.
func ArchiveSupervisor(ctx context.Context, cfg config.AppConfig) error {
	if !cfg.Archive.Enabled() {
		return ErrArchiveDisabled
	}

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

	archiver, err := blobstore.NewS3Archiver(ctx, blobstore.S3Params{
		Bucket:          cfg.Archive.Bucket,
		Region:          cfg.Archive.Region,
		Prefix:          cfg.Archive.Prefix,
		Endpoint:        cfg.Archive.Endpoint,
		AccessKeyID:     cfg.Archive.AccessKeyID,
		SecretAccessKey: cfg.Archive.SecretAccessKey,
	})
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	producer := supervisors.NewArchiveChangelog(queues.Completed, "archiver-"+hostname)

	executor := supervisors.NewArchiveExecutor(
		archiver,
		repo,
		notifiers.NewArchiveNotifier(queues.Archived),
		cfg.Archive.KeepLocal,
	)

	log.Info().
		Str("bucket", cfg.Archive.Bucket).
		Str("queue", cfg.Worker.QueueKind).
		Int("pool", cfg.Worker.PoolSize).
		Msg("archive worker running")

	supervisors.ArchiveSupervisor(ctx, executor, producer, int64(cfg.Worker.PoolSize), time.Second)

	return nil
}
