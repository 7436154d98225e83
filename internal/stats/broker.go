// Package stats fans out generator statistics snapshots to live subscribers.
package stats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/narvanalabs/mocktraffic/internal/models"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 16

// Subscriber represents a stats stream subscriber.
type Subscriber struct {
	ID        string
	Ch        chan models.Stats
	CreatedAt time.Time
}

// Broker manages stats subscriptions and publishing.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	latest      models.Stats
	hasLatest   bool
	logger      *slog.Logger
}

// NewBroker creates a new stats broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a subscriber. If a snapshot has been published it is
// delivered immediately so new subscribers do not wait for the next tick.
func (b *Broker) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:        uuid.NewString(),
		Ch:        make(chan models.Stats, DefaultBufferSize),
		CreatedAt: time.Now(),
	}
	if b.hasLatest {
		sub.Ch <- b.latest.Clone()
	}

	b.subscribers[sub.ID] = sub
	b.logger.Debug("stats subscriber added", "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sub.ID]; exists {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("stats subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish records snapshot as the latest and sends it to every subscriber.
// A subscriber whose buffer is full misses this snapshot.
func (b *Broker) Publish(snapshot models.Stats) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = snapshot.Clone()
	b.hasLatest = true

	for _, sub := range b.subscribers {
		select {
		case sub.Ch <- snapshot.Clone():
		default:
			b.logger.Warn("subscriber channel full, dropping stats snapshot",
				"subscriber_id", sub.ID,
			)
		}
	}
}

// Latest returns the last published snapshot.
func (b *Broker) Latest() (models.Stats, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest.Clone(), b.hasLatest
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
