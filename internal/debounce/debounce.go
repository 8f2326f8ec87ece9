// Package debounce delays propagation of a changing value until it has been
// stable for a quiet period.
package debounce

import (
	"sync"
	"time"
)

// Debouncer holds a debounced copy of an input value.
//
// Every Set cancels the pending propagation and restarts the quiet period, so
// at most one timer is ever pending and only the most recent input can
// settle. A generation counter makes a timer that fires after being
// superseded inert.
type Debouncer[T comparable] struct {
	quiet    time.Duration
	onSettle func(T)

	mu         sync.Mutex
	value      T
	pending    T
	hasPending bool
	gen        uint64
	timer      *time.Timer
	closed     bool
}

// New creates a Debouncer whose output starts at initial. onSettle, if
// non-nil, is called with each newly settled value that differs from the
// previous output. It runs outside the internal lock, on the timer goroutine
// (or on the caller's goroutine when quiet <= 0).
func New[T comparable](initial T, quiet time.Duration, onSettle func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		quiet:    quiet,
		onSettle: onSettle,
		value:    initial,
	}
}

// Set records a new input value. With a quiet period <= 0 the value settles
// immediately.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.gen++
	d.stopLocked()

	if d.quiet <= 0 {
		changed := d.settleLocked(v)
		d.mu.Unlock()
		d.emit(v, changed)
		return
	}

	gen := d.gen
	d.pending = v
	d.hasPending = true
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
	d.mu.Unlock()
}

// Value returns the current debounced output.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Pending returns the input waiting for its quiet period, if any.
func (d *Debouncer[T]) Pending() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.hasPending
}

// Flush settles the pending input now instead of waiting for the quiet
// period. It is a no-op when nothing is pending.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.closed || !d.hasPending {
		d.mu.Unlock()
		return
	}
	d.gen++
	d.stopLocked()
	v := d.pending
	changed := d.settleLocked(v)
	d.mu.Unlock()
	d.emit(v, changed)
}

// Close stops the timer. No value settles after Close returns and further
// calls to Set are ignored. Close is idempotent.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.gen++
	d.stopLocked()
	var zero T
	d.pending = zero
	d.hasPending = false
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	v := d.pending
	changed := d.settleLocked(v)
	d.mu.Unlock()
	d.emit(v, changed)
}

// settleLocked makes v the output and reports whether it changed.
func (d *Debouncer[T]) settleLocked(v T) bool {
	var zero T
	d.pending = zero
	d.hasPending = false
	changed := v != d.value
	d.value = v
	return changed
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) emit(v T, changed bool) {
	if changed && d.onSettle != nil {
		d.onSettle(v)
	}
}
