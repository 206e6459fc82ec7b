package workers

import (
	"chupload/core/database"
	"chupload/core/ledger"
	"chupload/core/notifiers"
	"chupload/pkg/config"
	"chupload/pkg/queuer"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLedger(t *testing.T) *ledger.Repository {
	ctx := context.Background()

	db, err := OpenDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := ledger.Open(ctx, db)
	require.NoError(t, err)

	return repo
}

func Test_NewQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	_, isList := NewQueue(client, config.WorkerConfig{QueueKind: "list"}, "q").(*queuer.RedisQ)
	assert.True(t, isList)

	_, isStream := NewQueue(client, config.WorkerConfig{QueueKind: "stream"}, "q").(*queuer.RedisStream)
	assert.True(t, isStream)
}

func Test_RequeueCompleted(t *testing.T) {
	ctx := context.Background()
	repo := setupTestLedger(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queuer.NewRedisQ(client, database.UploadCompletedQueue, queueTimeout)
	announcer := notifiers.NewUploadNotifier(q)

	t.Run("nothing to do", func(t *testing.T) {
		n, err := RequeueCompleted(ctx, repo, announcer, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	done, err := ledger.NewUpload("done.bin", "/dest/done.bin", 100, 10)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, done))

	archived, err := ledger.NewUpload("old.bin", "/dest/old.bin", 100, 10)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, archived))

	url := "s3://bucket/old.bin"
	require.NoError(t, repo.UpdateStatus(ctx, archived.ID, ledger.StatusArchived, &url))

	t.Run("only completed uploads are requeued", func(t *testing.T) {
		n, err := RequeueCompleted(ctx, repo, announcer, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		length, err := q.Len(ctx, "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, length)

		payload, err := q.ReadMsg(ctx, "", "")
		require.NoError(t, err)
		require.NotNil(t, payload)

		event, err := notifiers.Decode[notifiers.UploadEvent](payload.Message)
		require.NoError(t, err)
		assert.Equal(t, "done.bin", event.Basename)
		assert.Equal(t, "/dest/done.bin", event.DestPath)
		assert.EqualValues(t, 100, event.Size)
	})
}
