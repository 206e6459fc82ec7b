package workerpool

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type ProcessorFunc[E, V any] func(context.Context, E) V

// WorkerPool hands jobs to idle workers. Each idle worker parks its bench
// channel on Pool; Dispatch takes one off and gives it the next job.
type WorkerPool[E any, V any] struct {
	Pool    chan chan E
	Workers []*Worker[E, V]
	Results chan V

	wg sync.WaitGroup
}

func NewWorkerPool[E, V any](poolSize int64, processorFunc ProcessorFunc[E, V]) *WorkerPool[E, V] {
	if poolSize < 1 {
		poolSize = 1
	}

	pool := &WorkerPool[E, V]{
		Pool:    make(chan chan E, poolSize),
		Results: make(chan V, poolSize),
	}

	for i := 0; i < int(poolSize); i++ {
		pool.Workers = append(pool.Workers, &Worker[E, V]{
			ID:         i + 1,
			WorkerPool: pool,
			Bench:      make(chan E, 1),
			Processor:  processorFunc,
			Quit:       make(chan struct{}),
		})
	}

	return pool
}

// Dispatch feeds jobs from receiveCh to the pool until ctx is done or
// receiveCh is closed.
func Dispatch[E, V any](ctx context.Context, pool *WorkerPool[E, V], receiveCh <-chan E) {
	for {
		select {
		case job, ok := <-receiveCh:
			if !ok {
				return
			}

			select {
			case jobChan := <-pool.Pool:
				jobChan <- job
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool[E, V]) Start(ctx context.Context) {
	for _, worker := range wp.Workers {
		wp.wg.Add(1)
		worker.Start(ctx)
	}
}

// Stop asks every worker to quit and waits for running jobs to finish.
// Results is closed afterwards. Callers must keep draining Results while
// jobs are in flight.
func (wp *WorkerPool[E, V]) Stop(ctx context.Context) {
	for _, worker := range wp.Workers {
		worker.Stop()
	}

	wp.wg.Wait()
	close(wp.Results)
}

type Worker[E, V any] struct {
	ID         int
	WorkerPool *WorkerPool[E, V]
	Bench      chan E
	Processor  ProcessorFunc[E, V]
	Quit       chan struct{}

	once sync.Once
}

func (w *Worker[E, V]) Start(ctx context.Context) {
	go func() {
		defer w.WorkerPool.wg.Done()

		for {
			select {
			case w.WorkerPool.Pool <- w.Bench:
			case <-w.Quit:
				return
			case <-ctx.Done():
				return
			}

			select {
			case job := <-w.Bench:
				log.Debug().Int("worker", w.ID).Msg("picked up job")
				result := w.Processor(ctx, job)

				select {
				case w.WorkerPool.Results <- result:
				case <-w.Quit:
					return
				case <-ctx.Done():
					return
				}
			case <-w.Quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Worker[E, V]) Stop() {
	w.once.Do(func() { close(w.Quit) })
}
