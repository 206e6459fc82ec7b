package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Completed uploads waiting to be archived.
	UploadCompletedQueue = "q::chupload::completed"

	// Archive results, relayed to progress listeners by basename.
	UploadArchivedQueue = "q::chupload::archived"
)

func NewRedisConnection(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(
		context.Background(),
		2*time.Second,
	)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
