package memory

import (
	"context"
	"sync"

	"pairchat/internal/core/domain"
	"pairchat/internal/core/ports"
)

// EventPublisher keeps the most recent lifecycle events in process. It is the
// fallback when no external sink is configured.
type EventPublisher struct {
	mu       sync.RWMutex
	events   []domain.LifecycleEvent
	capacity int
	closed   bool
}

var _ ports.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher keeps at most capacity events; older ones are dropped.
func NewEventPublisher(capacity int) *EventPublisher {
	if capacity <= 0 {
		capacity = 1000
	}
	return &EventPublisher{
		events:   make([]domain.LifecycleEvent, 0, capacity),
		capacity: capacity,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	if len(p.events) == p.capacity {
		copy(p.events, p.events[1:])
		p.events = p.events[:len(p.events)-1]
	}
	p.events = append(p.events, event)
	return nil
}

func (p *EventPublisher) HealthCheck(ctx context.Context) error {
	return nil
}

func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Events returns a copy of the retained events, oldest first.
func (p *EventPublisher) Events() []domain.LifecycleEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	events := make([]domain.LifecycleEvent, len(p.events))
	copy(events, p.events)
	return events
}

// Len returns how many events are retained.
func (p *EventPublisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.events)
}
