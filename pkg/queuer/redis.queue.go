package queuer

import (
	"chupload/pkg/templating"
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisQ is a list backed queue. Messages are pushed with RPUSH and popped
// one at a time with BLPOP, so every message reaches exactly one reader.
type RedisQ struct {
	conn      *redis.Client
	topicName templating.RendeFunc
	timeout   time.Duration
}

func NewRedisQ(
	conn *redis.Client,
	queueName string,
	timeout time.Duration,
) *RedisQ {
	return &RedisQ{
		conn:      conn,
		topicName: templating.NewTemplateString(queueName),
		timeout:   timeout,
	}
}

func (slf *RedisQ) EnqueueMsgs(ctx context.Context, partition string, datas []*Payload) error {
	queue := slf.topicName(partition)
	log.Debug().Str("q", queue).Int("count", len(datas)).Msg("pushing messages to queue")

	failed := []*Payload{}

	for _, data := range datas {
		if err := slf.push(ctx, queue, data); err != nil {
			log.Error().Err(err).Str("q", queue).Msg("failed to push message to queue")
			failed = append(failed, data)
		}
	}

	if len(failed) == 0 {
		return nil
	}

	return PartialError{Err: ErrPartialFailure, Failed: failed}
}

func (slf *RedisQ) EnqueueMsg(ctx context.Context, partition string, data *Payload) error {
	queue := slf.topicName(partition)
	log.Debug().Str("q", queue).Msg("pushing message to queue")

	err := slf.push(ctx, queue, data)
	if err != nil {
		log.Error().Err(err).Str("q", queue).Msg("failed to push message to queue")
	}

	return err
}

// push appends data and, when the payload has a TTL, lets the whole queue
// expire after it.
func (slf *RedisQ) push(ctx context.Context, queue string, data *Payload) error {
	if data.TTL <= 0 {
		return slf.conn.RPush(ctx, queue, data.Message).Err()
	}

	_, err := slf.conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, queue, data.Message)
		pipe.Expire(ctx, queue, data.TTL)
		return nil
	})

	return err
}

func (slf *RedisQ) ReadMsg(ctx context.Context, partition string, _ string) (*Payload, error) {
	queue := slf.topicName(partition)

	results, err := slf.conn.BLPop(ctx, slf.timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		log.Error().Err(err).Str("q", queue).Msg("failed to fetch results from q")
		return nil, err
	}

	if len(results) < 2 {
		return nil, ErrEmptyRecords
	}

	return &Payload{Message: []byte(results[1]), Key: results[0]}, nil
}

func (slf *RedisQ) Len(ctx context.Context, partition string) (int64, error) {
	return slf.conn.LLen(ctx, slf.topicName(partition)).Result()
}

func (slf *RedisQ) Flush(ctx context.Context) error {
	return slf.conn.FlushDB(ctx).Err()
}
