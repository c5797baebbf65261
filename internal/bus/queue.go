package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Wildcard subscribes to every event name.
const Wildcard = "*"

// MessageBus fans router observations out to subscribers.
// Record never blocks: when the buffer is full the event is dropped and counted.
type MessageBus struct {
	events chan Event

	mu          sync.RWMutex
	subscribers map[string][]func(Event)
	dropped     atomic.Int64
}

// NewMessageBus creates a bus with the given buffer size (default 1024).
func NewMessageBus(buffer int) *MessageBus {
	if buffer <= 0 {
		buffer = 1024
	}
	return &MessageBus{
		events:      make(chan Event, buffer),
		subscribers: make(map[string][]func(Event)),
	}
}

// Record publishes a named event for userID.
func (b *MessageBus) Record(name, userID string, payload map[string]any) {
	b.Publish(NewEvent(name, userID, payload))
}

// Publish enqueues an already-built event without blocking.
func (b *MessageBus) Publish(ev Event) {
	select {
	case b.events <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Subscribe registers a callback for one event name, or Wildcard for all.
func (b *MessageBus) Subscribe(name string, callback func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[name] = append(b.subscribers[name], callback)
}

// Dispatch runs the delivery loop. Blocks until ctx is cancelled.
func (b *MessageBus) Dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			b.mu.RLock()
			subs := append([]func(Event){}, b.subscribers[ev.Name]...)
			subs = append(subs, b.subscribers[Wildcard]...)
			b.mu.RUnlock()
			for _, cb := range subs {
				cb(ev)
			}
		}
	}
}

// Pending returns the number of undelivered events.
func (b *MessageBus) Pending() int {
	return len(b.events)
}

// Dropped returns how many events were discarded because the buffer was full.
func (b *MessageBus) Dropped() int64 {
	return b.dropped.Load()
}
