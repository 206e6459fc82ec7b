package workers

import (
	"chupload/core/database"
	"chupload/pkg/config"
	"chupload/pkg/queuer"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const queueTimeout = 2 * time.Second

// NewQueue opens name as the queue kind the worker config asks for.
func NewQueue(conn *redis.Client, cfg config.WorkerConfig, name string) queuer.Queuer {
	if cfg.QueueKind == "stream" {
		return queuer.NewRedisStream(conn, name, queueTimeout)
	}

	return queuer.NewRedisQ(conn, name, queueTimeout)
}

// Queues are the two hand-off points between the server and the archive
// worker.
type Queues struct {
	Completed queuer.Queuer
	Archived  queuer.Queuer
}

func OpenQueues(cfg config.AppConfig) (*redis.Client, Queues, error) {
	conn, err := database.NewRedisConnection(cfg.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to redis")
		return nil, Queues{}, err
	}

	return conn, Queues{
		Completed: NewQueue(conn, cfg.Worker, database.UploadCompletedQueue),
		Archived:  NewQueue(conn, cfg.Worker, database.UploadArchivedQueue),
	}, nil
}

func OpenDB(ctx context.Context, dbName string) (*database.Sqlite, error) {
	db := database.ConnectSqlite(dbName)

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Connect(connCtx); err != nil {
		return nil, err
	}

	return db, nil
}
