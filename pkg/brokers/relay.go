package brokers

import (
	"chupload/pkg/queuer"
	"chupload/pkg/workerpool"
	"context"

	"github.com/rs/zerolog/log"
)

// DecodeFunc turns a queue payload into a broker message.
type DecodeFunc func(payload *queuer.Payload) (Message, error)

// QueueRelay forwards messages from a queue partition into a Broker, so
// events raised in another process reach local subscribers.
type QueueRelay struct {
	name      string
	queue     queuer.Queuer
	partition string
	decode    DecodeFunc
	dst       *Broker
	poolSize  int64
}

func NewQueueRelay(name string, queue queuer.Queuer, partition string, decode DecodeFunc, dst *Broker) *QueueRelay {
	return &QueueRelay{
		name:      name,
		queue:     queue,
		partition: partition,
		decode:    decode,
		dst:       dst,
		poolSize:  2,
	}
}

func (qr *QueueRelay) produce(ctx context.Context) <-chan *queuer.Payload {
	out := make(chan *queuer.Payload)

	go func() {
		defer close(out)

		for ctx.Err() == nil {
			payload, err := qr.queue.ReadMsg(ctx, qr.partition, qr.name)
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				log.Error().Err(err).Str("relay", qr.name).Msg("failed to read from queue")
				continue
			}

			if payload == nil {
				continue
			}

			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (qr *QueueRelay) forward(ctx context.Context, payload *queuer.Payload) error {
	msg, err := qr.decode(payload)
	if err != nil {
		log.Error().Err(err).Str("relay", qr.name).Msg("failed to decode payload")
		return err
	}

	qr.dst.SendMessage(ctx, msg)
	return nil
}

// Start runs the relay until ctx is done.
func (qr *QueueRelay) Start(ctx context.Context) {
	pool := workerpool.NewWorkerPool(qr.poolSize, qr.forward)
	pool.Start(ctx)

	go workerpool.Dispatch(ctx, pool, qr.produce(ctx))

	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info().Str("relay", qr.name).Msg("stopping relay")
				pool.Stop(context.Background())
				return
			case <-pool.Results:
			}
		}
	}()
}
