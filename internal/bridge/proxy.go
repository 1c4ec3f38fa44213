package bridge

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// ErrDisposed is returned by every read of a closed proxy.
var ErrDisposed = errors.New("bridge: proxy disposed")

// Events emitted by every proxy.
const (
	EventUpdate = "update"
	EventClose  = "close"
)

// Proxy is a live, closable handle on a value.
//
// Thread-safety: safe for concurrent use. Callbacks run on the goroutine
// that triggered them, without any proxy lock held.
type Proxy[T any] struct {
	mu      sync.RWMutex
	value   T
	closed  bool
	subs    map[string]map[int]func(any)
	nextID  int
	changed chan struct{}
	name    string
}

// New creates a live proxy holding v.
func New[T any](name string, v T) *Proxy[T] {
	return &Proxy[T]{
		name:    name,
		value:   v,
		subs:    make(map[string]map[int]func(any)),
		changed: make(chan struct{}),
	}
}

// Name identifies the proxy in logs.
func (p *Proxy[T]) Name() string {
	return p.name
}

// Get returns the current value, or ErrDisposed once closed.
func (p *Proxy[T]) Get() (T, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		var zero T
		return zero, ErrDisposed
	}
	return p.value, nil
}

// Closed reports whether Close has run.
func (p *Proxy[T]) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Set replaces the value without notifying. Call Refresh to publish it.
// Set on a closed proxy is ignored.
func (p *Proxy[T]) Set(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.value = v
}

// Update is Set followed by Refresh.
func (p *Proxy[T]) Update(v T) {
	p.Set(v)
	p.Refresh()
}

// Refresh tells observers the value may have changed: waiters re-check
// their condition and "update" subscribers receive the current value. It is
// a no-op once closed.
func (p *Proxy[T]) Refresh() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	close(p.changed)
	p.changed = make(chan struct{})
	v := p.value
	fns := p.handlers(EventUpdate)
	p.mu.Unlock()

	p.call(EventUpdate, fns, v)
}

// Emit delivers payload to the subscribers of event. It is a no-op once
// closed.
func (p *Proxy[T]) Emit(event string, payload any) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return
	}
	fns := p.handlers(event)
	p.mu.RUnlock()

	p.call(event, fns, payload)
}

// Subscribe registers fn for event. The returned function unsubscribes and
// is safe to call more than once.
func (p *Proxy[T]) Subscribe(event string, fn func(payload any)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return func() {}, ErrDisposed
	}

	p.nextID++
	id := p.nextID
	if p.subs[event] == nil {
		p.subs[event] = make(map[int]func(any))
	}
	p.subs[event][id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs[event], id)
	}, nil
}

// Watch calls fn with the value after every Refresh.
func (p *Proxy[T]) Watch(fn func(T)) (func(), error) {
	return p.Subscribe(EventUpdate, func(v any) {
		fn(v.(T))
	})
}

// WaitFor blocks until cond holds for the current value, re-checking after
// every Refresh. It fails with ErrDisposed if the proxy closes first, or
// with ctx.Err() if ctx is done first.
func (p *Proxy[T]) WaitFor(ctx context.Context, cond func(T) bool) (T, error) {
	var zero T
	for {
		p.mu.RLock()
		closed, v, changed := p.closed, p.value, p.changed
		p.mu.RUnlock()

		if closed {
			return zero, ErrDisposed
		}
		if cond(v) {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-changed:
		}
	}
}

// Close disposes the proxy. "close" subscribers run once, then every
// subscription is dropped. Close is idempotent and safe on a nil proxy.
func (p *Proxy[T]) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.changed)
	fns := p.handlers(EventClose)
	p.subs = nil
	var zero T
	p.value = zero
	p.mu.Unlock()

	p.call(EventClose, fns, nil)
}

// handlers snapshots the callbacks for event. Caller holds mu.
func (p *Proxy[T]) handlers(event string) []func(any) {
	subs := p.subs[event]
	if len(subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(any), len(ids))
	for i, id := range ids {
		fns[i] = subs[id]
	}
	return fns
}

func (p *Proxy[T]) call(event string, fns []func(any), payload any) {
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("proxy subscriber panicked",
						"event", "subscriber_panic",
						"proxy", p.name,
						"name", event,
						"panic", r)
				}
			}()
			fn(payload)
		}()
	}
}
