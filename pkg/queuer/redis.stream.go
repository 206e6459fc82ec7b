package queuer

import (
	"chupload/pkg/templating"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStream is a stream backed queue. Every partition gets one consumer
// group, so messages are spread over the consumers of that group and
// acknowledged as soon as they are read.
type RedisStream struct {
	conn      *redis.Client
	topicName templating.RendeFunc
	timeout   time.Duration
}

func NewRedisStream(
	conn *redis.Client,
	topicName string,
	timeout time.Duration,
) *RedisStream {
	return &RedisStream{
		conn:      conn,
		topicName: templating.NewTemplateString(topicName),
		timeout:   timeout,
	}
}

func IsBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func groupName(stream string) string {
	return stream + "-group"
}

func (rs *RedisStream) ensureGroup(ctx context.Context, stream string) error {
	group := groupName(stream)

	err := rs.conn.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && !IsBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}

	return nil
}

func (rs *RedisStream) add(ctx context.Context, stream string, data *Payload) error {
	return rs.conn.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"message": string(data.Message)},
	}).Err()
}

func (rs *RedisStream) EnqueueMsg(ctx context.Context, partition string, data *Payload) error {
	stream := rs.topicName(partition)

	if err := rs.ensureGroup(ctx, stream); err != nil {
		return err
	}

	log.Debug().Str("q", stream).Msg("pushing to stream")

	if err := rs.add(ctx, stream, data); err != nil {
		return fmt.Errorf("failed to push message to stream %s: %w", stream, err)
	}

	return nil
}

func (rs *RedisStream) EnqueueMsgs(ctx context.Context, partition string, datas []*Payload) error {
	stream := rs.topicName(partition)

	if err := rs.ensureGroup(ctx, stream); err != nil {
		return err
	}

	failed := []*Payload{}

	for _, data := range datas {
		if err := rs.add(ctx, stream, data); err != nil {
			log.Error().Err(err).Str("q", stream).Msg("failed to push message to stream")
			failed = append(failed, data)
		}
	}

	if len(failed) == 0 {
		return nil
	}

	return PartialError{Err: ErrPartialFailure, Failed: failed}
}

func (rs *RedisStream) ReadMsg(ctx context.Context, partition string, consumer string) (*Payload, error) {
	stream := rs.topicName(partition)
	group := groupName(stream)

	if err := rs.ensureGroup(ctx, stream); err != nil {
		return nil, err
	}

	res, err := rs.conn.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    rs.timeout,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, nil
	}

	msg := res[0].Messages[0]

	message, ok := msg.Values["message"].(string)
	if !ok {
		return nil, ErrEmptyRecords
	}

	if err := rs.conn.XAck(ctx, stream, group, msg.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to acknowledge message %s: %w", msg.ID, err)
	}

	return &Payload{Message: []byte(message), Key: msg.ID}, nil
}
