// Package events is a small in-process publish/subscribe hub.
//
// Listeners are invoked synchronously, in registration order, by the
// goroutine that emits.
package events

import (
	"sync"
)

// Listener receives event payloads
type Listener[T any] func(T)

// Unsubscribe removes a listener. It may be called more than once.
type Unsubscribe func()

type subscription[T any] struct {
	id       uint64
	listener Listener[T]
	once     bool
}

// Emitter dispatches named events carrying a payload of type T
type Emitter[T any] struct {
	mx     sync.Mutex
	nextID uint64
	subs   map[string][]subscription[T]
}

// New emitter
func New[T any]() *Emitter[T] {
	return &Emitter[T]{subs: make(map[string][]subscription[T])}
}

func (e *Emitter[T]) add(name string, listener Listener[T], once bool) uint64 {
	e.mx.Lock()
	defer e.mx.Unlock()
	e.nextID++
	e.subs[name] = append(e.subs[name], subscription[T]{id: e.nextID, listener: listener, once: once})
	return e.nextID
}

func (e *Emitter[T]) remove(name string, id uint64) {
	e.mx.Lock()
	defer e.mx.Unlock()
	subs := e.subs[name]
	for i, s := range subs {
		if s.id == id {
			e.subs[name] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// On registers a listener for an event
func (e *Emitter[T]) On(name string, listener Listener[T]) Unsubscribe {
	id := e.add(name, listener, false)
	return func() { e.remove(name, id) }
}

// Once registers a listener called on the next occurrence of an event only
func (e *Emitter[T]) Once(name string, listener Listener[T]) Unsubscribe {
	id := e.add(name, listener, true)
	return func() { e.remove(name, id) }
}

// Next returns a channel receiving the next payload of an event
func (e *Emitter[T]) Next(name string) <-chan T {
	ch := make(chan T, 1)
	e.Once(name, func(payload T) { ch <- payload })
	return ch
}

// Off removes all listeners of an event
func (e *Emitter[T]) Off(name string) {
	e.mx.Lock()
	defer e.mx.Unlock()
	delete(e.subs, name)
}

// ListenerCount for an event
func (e *Emitter[T]) ListenerCount(name string) int {
	e.mx.Lock()
	defer e.mx.Unlock()
	return len(e.subs[name])
}

// Emit calls the listeners of an event with the payload
func (e *Emitter[T]) Emit(name string, payload T) {
	e.mx.Lock()
	subs := append([]subscription[T](nil), e.subs[name]...)
	kept := e.subs[name][:0:0]
	for _, s := range e.subs[name] {
		if !s.once {
			kept = append(kept, s)
		}
	}
	e.subs[name] = kept
	e.mx.Unlock()

	for _, s := range subs {
		s.listener(payload)
	}
}
