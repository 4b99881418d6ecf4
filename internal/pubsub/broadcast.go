// Package pubsub provides the typed in-process broadcast channel stateful
// services use to signal mutation to interested listeners.
package pubsub

import "sync"

// Broadcast fans a value out to every subscriber. Publishing never blocks:
// each subscriber has a buffer of one and a slow subscriber sees the latest
// value rather than a backlog.
type Broadcast[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

func NewBroadcast[T any]() *Broadcast[T] {
	return &Broadcast[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a listener and returns its channel along with a cancel
// function. Cancel is idempotent.
func (b *Broadcast[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan T, 1)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the value to every subscriber, replacing any undelivered
// previous value.
func (b *Broadcast[T]) Publish(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- value:
		default:
			// Drop the stale pending value, then retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}

// Len reports the current subscriber count.
func (b *Broadcast[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
