package queuer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStream_EnqueueMsgs(t *testing.T) {
	client, _ := setupTestRedisClient(t)

	rs := NewRedisStream(client, "testtopic", 100*time.Millisecond)

	messages := []*Payload{
		{Message: []byte("message 1")},
		{Message: []byte("message 2")},
	}

	err := rs.EnqueueMsgs(context.Background(), "partition1", messages)
	require.NoError(t, err)

	n, err := client.XLen(context.Background(), "testtopic").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRedisStream_ReadMsg(t *testing.T) {
	client, _ := setupTestRedisClient(t)
	ctx := context.Background()

	rs := NewRedisStream(client, "testtopic::%s", 100*time.Millisecond)

	err := rs.EnqueueMsg(ctx, "partition1", &Payload{Message: []byte("test message")})
	require.NoError(t, err)

	data, err := rs.ReadMsg(ctx, "partition1", "consumer1")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, []byte("test message"), data.Message)

	t.Run("acknowledged messages are not read again", func(t *testing.T) {
		data, err := rs.ReadMsg(ctx, "partition1", "consumer2")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("partitions are separate streams", func(t *testing.T) {
		err := rs.EnqueueMsg(ctx, "partition2", &Payload{Message: []byte("other")})
		require.NoError(t, err)

		data, err := rs.ReadMsg(ctx, "partition1", "consumer1")
		require.NoError(t, err)
		assert.Nil(t, data)

		data, err = rs.ReadMsg(ctx, "partition2", "consumer1")
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Equal(t, "other", string(data.Message))
	})
}
