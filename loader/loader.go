// Package loader implements a request-scoped batch loader.
//
// Callers register interest in keys; pending keys are collected and handed to
// a single fetch call once the collection window closes, the batch is full, or
// the loader is flushed. Every key is fetched at most once per loader, so a
// loader must not outlive the request it was created for.
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/subsquid/archive-gateway/metrics"
)

// BatchFunc fetches the values of a batch of keys. Keys absent from the
// returned map resolve to the zero value.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Thunk waits for the value of a registered key.
type Thunk[V any] func(ctx context.Context) (V, error)

type options struct {
	wait     time.Duration
	maxBatch int
	name     string
	metrics  *metrics.LoaderMetrics
}

// Option configures a Loader.
type Option func(*options)

// WithWait sets the key collection window. With a zero window pending keys
// are dispatched as soon as a caller waits for one of them.
func WithWait(d time.Duration) Option {
	return func(o *options) { o.wait = d }
}

// WithMaxBatch caps the number of keys per fetch. Zero means unbounded.
func WithMaxBatch(n int) Option {
	return func(o *options) { o.maxBatch = n }
}

// WithName sets the loader name used in metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMetrics enables batch instrumentation.
func WithMetrics(m *metrics.LoaderMetrics) Option {
	return func(o *options) { o.metrics = m }
}

type result[V any] struct {
	done  chan struct{}
	value V
	err   error
}

type batch[K comparable, V any] struct {
	keys    []K
	results []*result[V]
	timer   *time.Timer
}

// Loader batches and memoizes key lookups.
type Loader[K comparable, V any] struct {
	ctx   context.Context
	fetch BatchFunc[K, V]
	opts  options

	mu      sync.Mutex
	cache   map[K]*result[V]
	pending *batch[K, V]
}

// New creates a loader. ctx is passed to every fetch and should be the
// context of the request the loader serves.
func New[K comparable, V any](ctx context.Context, fetch BatchFunc[K, V], opts ...Option) *Loader[K, V] {
	o := options{name: "loader"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[K, V]{
		ctx:   ctx,
		fetch: fetch,
		opts:  o,
		cache: make(map[K]*result[V]),
	}
}

// LoadThunk registers the key without blocking and returns a thunk waiting for
// its value.
func (l *Loader[K, V]) LoadThunk(key K) Thunk[V] {
	l.mu.Lock()
	r, ok := l.cache[key]
	if !ok {
		r = &result[V]{done: make(chan struct{})}
		l.cache[key] = r
		l.enqueue(key, r)
	}
	l.mu.Unlock()

	return func(ctx context.Context) (V, error) {
		select {
		case <-r.done:
			return r.value, r.err
		default:
		}
		if l.opts.wait == 0 {
			l.Flush()
		}
		select {
		case <-r.done:
			return r.value, r.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
}

// Load returns the value of a single key.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.LoadThunk(key)(ctx)
}

// LoadMany returns the values of the keys. The result holds every requested
// key. The first error encountered is returned.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) (map[K]V, error) {
	thunks := make([]Thunk[V], len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(key)
	}
	out := make(map[K]V, len(keys))
	for i, thunk := range thunks {
		v, err := thunk(ctx)
		if err != nil {
			return nil, err
		}
		out[keys[i]] = v
	}
	return out, nil
}

// Flush dispatches the pending keys now.
func (l *Loader[K, V]) Flush() {
	l.mu.Lock()
	b := l.pending
	l.pending = nil
	l.mu.Unlock()

	if b != nil {
		l.dispatch(b)
	}
}

// enqueue adds the key to the pending batch. Must be called with l.mu held.
func (l *Loader[K, V]) enqueue(key K, r *result[V]) {
	b := l.pending
	if b == nil {
		b = &batch[K, V]{}
		l.pending = b
		if l.opts.wait > 0 {
			b.timer = time.AfterFunc(l.opts.wait, func() { l.expire(b) })
		}
	}
	b.keys = append(b.keys, key)
	b.results = append(b.results, r)

	if l.opts.maxBatch > 0 && len(b.keys) >= l.opts.maxBatch {
		l.pending = nil
		l.dispatch(b)
	}
}

// expire dispatches b once its collection window closed, unless it was
// dispatched already.
func (l *Loader[K, V]) expire(b *batch[K, V]) {
	l.mu.Lock()
	if l.pending != b {
		l.mu.Unlock()
		return
	}
	l.pending = nil
	l.mu.Unlock()

	l.dispatch(b)
}

func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	if b.timer != nil {
		b.timer.Stop()
	}
	go l.run(b)
}

func (l *Loader[K, V]) run(b *batch[K, V]) {
	values, err := l.fetch(l.ctx, b.keys)

	if m := l.opts.metrics; m != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		m.Batches(l.opts.name, status).Inc()
		m.BatchSizes(l.opts.name).Observe(float64(len(b.keys)))
	}

	for i, key := range b.keys {
		r := b.results[i]
		if err != nil {
			r.err = err
		} else {
			r.value = values[key]
		}
		close(r.done)
	}
}
