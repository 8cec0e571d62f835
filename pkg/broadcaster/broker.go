package broadcaster

import (
	"sync"

	"github.com/sovereignengine/gateway/internal/telemetry"
)

// subscriberBuffer bounds how many undelivered events a slow subscriber can
// accumulate before its oldest is dropped in favor of the newest.
const subscriberBuffer = 8

// Subscriber is the channel a caller reads events from.
type Subscriber chan Event

// Broker fans out one producer's events to many independent subscriber
// streams. A subscriber that cannot keep up has its oldest undelivered
// event dropped and is marked lagged rather than being allowed to grow
// unbounded or block the producer.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[Subscriber]bool)}
}

// Subscribe returns a new buffered event channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, subscriberBuffer)
	b.subscribers[sub] = true
	telemetry.BroadcastSubscribers.Set(float64(len(b.subscribers)))
	return sub
}

// Unsubscribe removes and closes sub.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
		telemetry.BroadcastSubscribers.Set(float64(len(b.subscribers)))
	}
}

// Publish delivers event to every subscriber. A subscriber whose buffer is
// full has its oldest queued event evicted to make room, and the delivered
// event is marked lagged so the subscriber knows to resynchronize.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			select {
			case <-sub:
			default:
			}
			lagged := event
			lagged.Lagged = true
			telemetry.BroadcastLaggedTotal.WithLabelValues(string(event.Kind)).Inc()
			select {
			case sub <- lagged:
			default:
			}
		}
	}
}

// SubscriberCount reports how many subscribers are currently attached.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
