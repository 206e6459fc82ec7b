package supervisors

import (
	"chupload/pkg/queuer"
	"context"

	"github.com/rs/zerolog/log"
)

// ArchiveChangelog pulls completed upload events off the queue, as many as
// were last demanded.
type ArchiveChangelog struct {
	queue    queuer.Queuer
	consumer string
	demand   chan int
}

func NewArchiveChangelog(queue queuer.Queuer, consumer string) *ArchiveChangelog {
	return &ArchiveChangelog{
		queue:    queue,
		consumer: consumer,
		demand:   make(chan int, 1),
	}
}

// Demand asks for up to val more events. It does not block while an older
// demand is still pending; the new one is dropped instead.
func (slf *ArchiveChangelog) Demand(val int) {
	select {
	case slf.demand <- val:
	default:
	}
}

func (slf *ArchiveChangelog) Produce(ctx context.Context) chan []*queuer.Payload {
	resultsCh := make(chan []*queuer.Payload, 1)

	go func() {
		defer close(resultsCh)

		for {
			select {
			case d := <-slf.demand:
				var results []*queuer.Payload

				for i := 0; i < d; i++ {
					payload, err := slf.queue.ReadMsg(ctx, "", slf.consumer)
					if err != nil {
						if ctx.Err() != nil {
							return
						}

						log.Error().Err(err).Msg("failed to fetch from queue. ignoring")
						break
					}

					if payload == nil {
						break
					}

					results = append(results, payload)
				}

				if len(results) == 0 {
					continue
				}

				select {
				case resultsCh <- results:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return resultsCh
}
