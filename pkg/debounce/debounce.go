// Package debounce collapses bursts of calls into a single trailing call.
package debounce

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Debouncer accumulates values and hands them over to a function once no new
// value was added during the settle time.
type Debouncer[T any] struct {
	clock clock.WithDelayedExecution
	wait  time.Duration
	fn    func([]T)

	mx         sync.Mutex
	pending    []T
	timer      clock.Timer
	generation uint64
	closed     bool
}

// New debouncer calling fn with the values accumulated over a burst of calls
func New[T any](wait time.Duration, fn func([]T), c clock.WithDelayedExecution) *Debouncer[T] {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Debouncer[T]{clock: c, wait: wait, fn: fn}
}

// Call adds a value and restarts the settle timer. Calls after Close are ignored.
func (d *Debouncer[T]) Call(v T) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return
	}

	d.pending = append(d.pending, v)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	generation := d.generation
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(generation) })
}

// fire must not use the clock: fake clocks run callbacks under their lock
func (d *Debouncer[T]) fire(generation uint64) {
	d.mx.Lock()
	if generation != d.generation {
		d.mx.Unlock()
		return
	}
	batch := d.take()
	d.mx.Unlock()

	if len(batch) > 0 {
		d.fn(batch)
	}
}

func (d *Debouncer[T]) take() []T {
	batch := d.pending
	d.pending = nil
	d.timer = nil
	d.generation++
	return batch
}

// Pending counts the values waiting for the timer
func (d *Debouncer[T]) Pending() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return len(d.pending)
}

// Flush calls the function right away with the pending values, if any
func (d *Debouncer[T]) Flush() {
	d.mx.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	batch := d.take()
	d.mx.Unlock()

	if len(batch) > 0 {
		d.fn(batch)
	}
}

// Close flushes pending values and stops accepting new ones
func (d *Debouncer[T]) Close() {
	d.Flush()
	d.mx.Lock()
	d.closed = true
	d.mx.Unlock()
}
