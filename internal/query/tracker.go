// Package query tracks the lifecycle of remote read requests: pending,
// settled with data, or settled with an error. A newer request supersedes the
// previous one and the superseded response is discarded.
package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Status is the observable state of a tracked request.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrClosed is returned by handles issued after the tracker was closed.
var ErrClosed = errors.New("query: tracker closed")

// Fetcher performs one request for key.
type Fetcher[T any] func(ctx context.Context, key string) (T, error)

// State is a snapshot of the tracker. While a request is pending, Data
// still holds the result of the previous successful request.
type State[T any] struct {
	Key       string
	Status    Status
	Data      T
	Err       error
	Seq       uint64
	UpdatedAt time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption[T any] func(*Tracker[T])

// WithObserver registers fn to receive every state change, in order.
// fn must not call Issue or Retry synchronously.
func WithObserver[T any](fn func(State[T])) TrackerOption[T] {
	return func(t *Tracker[T]) { t.observers = append(t.observers, fn) }
}

// WithRefresh sets the fetcher used by Retry, typically one that bypasses
// a cache. It defaults to the primary fetcher.
func WithRefresh[T any](fn Fetcher[T]) TrackerOption[T] {
	return func(t *Tracker[T]) { t.refresh = fn }
}

// WithLogger sets the tracker logger.
func WithLogger[T any](l *slog.Logger) TrackerOption[T] {
	return func(t *Tracker[T]) { t.logger = l }
}

// Tracker owns the state of one logical query whose parameters change over
// time, such as the search for the current keyword.
type Tracker[T any] struct {
	fetch     Fetcher[T]
	refresh   Fetcher[T]
	logger    *slog.Logger
	observers []func(State[T])

	// notifyMu is taken before mu is released so that observers see state
	// changes in the order they were applied.
	notifyMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	current *Handle[T]
	state   State[T]
	closed  bool
}

// NewTracker creates an idle tracker.
func NewTracker[T any](fetch Fetcher[T], opts ...TrackerOption[T]) *Tracker[T] {
	t := &Tracker[T]{
		fetch:  fetch,
		logger: slog.Default(),
		state:  State[T]{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.refresh == nil {
		t.refresh = fetch
	}
	return t
}

// Issue starts a request for key and makes it current, cancelling the
// previous one. If the current request is still pending for the same key it
// is returned instead and no second request is made.
func (t *Tracker[T]) Issue(ctx context.Context, key string) *Handle[T] {
	return t.issue(ctx, key, t.fetch, false)
}

// Retry re-issues the current key with the refresh fetcher. It returns nil
// when nothing has been issued yet.
func (t *Tracker[T]) Retry(ctx context.Context) *Handle[T] {
	t.mu.Lock()
	if t.current == nil && t.state.Status == StatusIdle && t.state.Seq == 0 {
		t.mu.Unlock()
		return nil
	}
	key := t.state.Key
	t.mu.Unlock()
	return t.issue(ctx, key, t.refresh, true)
}

func (t *Tracker[T]) issue(ctx context.Context, key string, fetch Fetcher[T], retry bool) *Handle[T] {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return closedHandle[T](key)
	}
	if cur := t.current; cur != nil && cur.key == key && !cur.finished() {
		t.mu.Unlock()
		return cur
	}
	if prev := t.current; prev != nil {
		prev.cancel()
	}

	t.seq++
	hctx, cancel := context.WithCancel(ctx)
	h := &Handle[T]{
		tracker: t,
		seq:     t.seq,
		key:     key,
		ctx:     hctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	t.current = h
	t.state.Key = key
	t.state.Status = StatusPending
	t.state.Err = nil
	t.state.Seq = h.seq
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.unlockAndNotify(snapshot)

	t.logger.Debug("query: issued",
		slog.String("key", key), slog.Uint64("seq", h.seq), slog.Bool("retry", retry))

	go func() {
		data, err := fetch(hctx, key)
		t.complete(h, data, err)
	}()
	return h
}

func (t *Tracker[T]) complete(h *Handle[T], data T, err error) {
	// Release Done waiters only after the state has been applied.
	defer close(h.done)

	t.mu.Lock()
	h.data, h.err = data, err
	if t.current != h || h.ctx.Err() != nil {
		t.mu.Unlock()
		t.logger.Debug("query: discarded stale response",
			slog.String("key", h.key), slog.Uint64("seq", h.seq))
		return
	}
	t.current = nil
	if err != nil {
		t.state.Status = StatusError
		t.state.Err = err
	} else {
		t.state.Status = StatusSuccess
		t.state.Data = data
		t.state.Err = nil
	}
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.unlockAndNotify(snapshot)
}

// cancelHandle cancels h; if h is current the tracker returns to idle and
// keeps the last data.
func (t *Tracker[T]) cancelHandle(h *Handle[T]) {
	t.mu.Lock()
	h.cancel()
	if t.current != h {
		t.mu.Unlock()
		return
	}
	t.current = nil
	t.state.Status = StatusIdle
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.unlockAndNotify(snapshot)
}

func (t *Tracker[T]) unlockAndNotify(s State[T]) {
	t.notifyMu.Lock()
	t.mu.Unlock()
	defer t.notifyMu.Unlock()
	for _, fn := range t.observers {
		fn(s)
	}
}

// State returns the current snapshot.
func (t *Tracker[T]) State() State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close cancels the current request. A pending state settles to idle and
// is reported to observers. Requests issued afterwards fail immediately
// with ErrClosed.
func (t *Tracker[T]) Close() {
	t.mu.Lock()
	t.closed = true
	if t.current == nil {
		t.mu.Unlock()
		return
	}
	t.current.cancel()
	t.current = nil
	t.state.Status = StatusIdle
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.unlockAndNotify(snapshot)
}

// Handle is one issued request.
type Handle[T any] struct {
	tracker *Tracker[T]
	seq     uint64
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// Written once before done is closed.
	data T
	err  error
}

func closedHandle[T any](key string) *Handle[T] {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &Handle[T]{key: key, ctx: ctx, cancel: cancel, done: make(chan struct{}), err: ErrClosed}
	close(h.done)
	return h
}

// Seq returns the handle's sequence number; later handles have larger ones.
func (h *Handle[T]) Seq() uint64 { return h.seq }

// Key returns the request key.
func (h *Handle[T]) Key() string { return h.key }

// Done is closed once the request has completed, successfully or not.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Cancel abandons the request. Its response, if any, will be discarded.
func (h *Handle[T]) Cancel() {
	if h.tracker == nil {
		return
	}
	h.tracker.cancelHandle(h)
}

// Result returns the response. It is only meaningful after Done is closed.
func (h *Handle[T]) Result() (T, error) {
	select {
	case <-h.done:
		return h.data, h.err
	default:
		var zero T
		return zero, errors.New("query: request still pending")
	}
}

// Wait blocks until the request completes or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.data, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Stale reports whether the handle was superseded or cancelled.
func (h *Handle[T]) Stale() bool {
	return h.ctx.Err() != nil
}

func (h *Handle[T]) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return h.ctx.Err() != nil
	}
}
