package brokers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is one event for the listeners of Topic.
type Message struct {
	Topic   string
	Event   string
	Content []byte
}

type subscription struct {
	topic string
	ch    chan Message
	done  chan struct{}
}

// Broker fans messages out to every subscriber of their topic. All state
// lives in the Start goroutine; the exported methods talk to it over
// channels.
type Broker struct {
	name          string
	messagesCh    chan Message
	subscribeCh   chan *subscription
	unsubscribeCh chan *subscription
	sendTimeout   time.Duration
}

func NewSSEBroker(name string) *Broker {
	return &Broker{
		name:          name,
		messagesCh:    make(chan Message, 16),
		subscribeCh:   make(chan *subscription),
		unsubscribeCh: make(chan *subscription),
		sendTimeout:   time.Second,
	}
}

// Subscribe registers a listener on topic. The returned cancel func must be
// called once the listener is gone; it closes the channel.
func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan Message, func()) {
	sub := &subscription{
		topic: topic,
		ch:    make(chan Message, 8),
		done:  make(chan struct{}),
	}

	select {
	case b.subscribeCh <- sub:
	case <-ctx.Done():
		close(sub.ch)
		return sub.ch, func() {}
	}

	cancel := func() {
		select {
		case b.unsubscribeCh <- sub:
			<-sub.done
		case <-sub.done:
		}
	}

	return sub.ch, cancel
}

// SendMessage queues msg for delivery. It gives up when the broker is
// backed up for longer than its send timeout.
func (b *Broker) SendMessage(ctx context.Context, msg Message) {
	select {
	case b.messagesCh <- msg:
	case <-ctx.Done():
	case <-time.After(b.sendTimeout):
		log.Warn().Str("broker", b.name).Str("topic", msg.Topic).Msg("failed to send message")
	}
}

func (b *Broker) Start(ctx context.Context) {
	topics := map[string]map[*subscription]struct{}{}

	drop := func(sub *subscription) {
		subs := topics[sub.topic]
		if _, ok := subs[sub]; !ok {
			return
		}

		delete(subs, sub)
		if len(subs) == 0 {
			delete(topics, sub.topic)
		}

		close(sub.ch)
		close(sub.done)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info().Str("broker", b.name).Msg("broker exiting on ctx")

				for _, subs := range topics {
					for sub := range subs {
						drop(sub)
					}
				}
				return

			case sub := <-b.subscribeCh:
				if topics[sub.topic] == nil {
					topics[sub.topic] = map[*subscription]struct{}{}
				}
				topics[sub.topic][sub] = struct{}{}

			case sub := <-b.unsubscribeCh:
				drop(sub)

			case msg := <-b.messagesCh:
				for sub := range topics[msg.Topic] {
					select {
					case sub.ch <- msg:
					default:
						log.Warn().Str("topic", msg.Topic).Msg("slow subscriber, message dropped")
					}
				}
			}
		}
	}()
}
