// Package event carries host-engine signals to the combat components.
package event

import (
	"reflect"
	"sync"
)

// Bus is a synchronous typed dispatch table. Handlers for one event type run in
// subscription order on the dispatching goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]any
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]any)}
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers fn for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeKey[T]()
	b.handlers[t] = append(b.handlers[t], fn)
}

// Dispatch delivers ev to every handler subscribed to T and returns the number
// of handlers called.
func Dispatch[T any](b *Bus, ev T) int {
	b.mu.RLock()
	hs := b.handlers[typeKey[T]()]
	snapshot := make([]any, len(hs))
	copy(snapshot, hs)
	b.mu.RUnlock()

	for _, h := range snapshot {
		h.(func(T))(ev)
	}
	return len(snapshot)
}

// HandlerCount returns how many handlers are subscribed to T.
func HandlerCount[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[typeKey[T]()])
}
