// Package events delivers domain events to downstream subscribers
// (search indexers, UI caches, automations). Emission is
// fire-and-forget for the caller: the reconciliation engine only
// flushes events after its transaction has committed, so subscribers
// never hear about rolled-back writes.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ferrovia/mailsync/pkg/models"
)

// Notifier accepts batches of entity mutations
type Notifier interface {
	EmitBatch(ctx context.Context, event models.DomainEvent)
}

// Subscriber receives every emitted event
type Subscriber func(ctx context.Context, event models.DomainEvent)

// Bus is an in-process Notifier fanning out to registered
// subscribers. Dispatch is synchronous and in emission order, which
// preserves causal order per record id (CREATED before UPDATED) as
// long as emitters flush their queues in order.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      *slog.Logger
}

// NewBus creates an event bus
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger.With("component", "events")}
}

// Subscribe registers a subscriber for all future events
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// EmitBatch delivers one event to every subscriber. A panicking
// subscriber is isolated and logged, never unwinding the emitter.
func (b *Bus) EmitBatch(ctx context.Context, event models.DomainEvent) {
	if len(event.Records) == 0 {
		return
	}

	b.mu.RLock()
	subscribers := make([]Subscriber, len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	b.logger.Debug("emitting event",
		"entity", event.EntityType,
		"action", event.Action,
		"records", len(event.Records),
	)

	for _, fn := range subscribers {
		b.dispatch(ctx, fn, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, fn Subscriber, event models.DomainEvent) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("event subscriber panicked",
				"entity", event.EntityType,
				"action", event.Action,
				"panic", p,
			)
		}
	}()
	fn(ctx, event)
}
