// Package events provides a typed, synchronous observer bus.
//
// A Bus delivers every published value to its listeners on the publishing
// goroutine, in subscription order. It is meant to be used from the single
// logic goroutine that owns the map and the scene, but it is safe to
// subscribe or unsubscribe from inside a listener.
package events

import "sync"

// Bus fans a value of type T out to registered listeners.
type Bus[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listener[T]
	closed    bool
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function may be called any number of times.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listener[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, l := range b.listeners {
		if l.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers v to a snapshot of the current listeners.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	snapshot := make([]listener[T], len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.Unlock()

	for _, l := range snapshot {
		l.fn(v)
	}
}

// Len returns the number of registered listeners.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Close drops every listener. Later subscriptions are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = nil
	b.closed = true
}
