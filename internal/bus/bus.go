// Package bus provides a typed in-process publish/subscribe channel.
//
// The mutation path publishes after each successful write and the engine
// subscribes for its lifetime. Delivery is synchronous: Publish returns
// once every handler has run, and handler errors flow back to the
// publisher so user-initiated edits surface recompute failures.
package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Handler receives one published message.
type Handler[T any] func(ctx context.Context, msg T) error

type subscription[T any] struct {
	id      uint64
	handler Handler[T]
}

// Bus is a synchronous, typed publish/subscribe channel.
//
// Thread-safety: Subscribe, Publish and Close may be called from any
// goroutine. Handlers run on the publisher's goroutine in subscription
// order.
type Bus[T any] struct {
	mu     sync.Mutex
	subs   []subscription[T]
	nextID uint64
	closed bool
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers h and returns a function that removes it.
// The returned function is idempotent. Subscribing to a closed bus
// registers nothing.
func (b *Bus[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[T]{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers msg to every current subscriber and returns their
// errors joined. Handlers added or removed during delivery take effect on
// the next Publish.
func (b *Bus[T]) Publish(ctx context.Context, msg T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	// Snapshot so handlers may unsubscribe while running
	subs := make([]subscription[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops every subscriber. Subsequent Publish calls return ErrClosed.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = nil
}
