package workerpool

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WorkerPool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var processed atomic.Int64

	pool := NewWorkerPool(3, func(ctx context.Context, n int) int {
		processed.Add(1)
		return n * n
	})
	pool.Start(ctx)

	jobs := make(chan int)
	go Dispatch(ctx, pool, jobs)

	results := []int{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			results = append(results, <-pool.Results)
		}
	}()

	for i := 1; i <= 5; i++ {
		jobs <- i
	}

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for results")
	}

	pool.Stop(ctx)

	sort.Ints(results)
	require.Equal(t, []int{1, 4, 9, 16, 25}, results)
	assert.Equal(t, int64(5), processed.Load())

	_, open := <-pool.Results
	assert.False(t, open)
}

func Test_WorkerPoolStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	pool := NewWorkerPool(2, func(ctx context.Context, n int) int { return n })
	pool.Start(ctx)

	cancel()

	stopped := make(chan struct{})
	go func() {
		pool.Stop(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}
