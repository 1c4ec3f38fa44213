package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/roach88/walletcore/internal/state"
	"github.com/roach88/walletcore/internal/telemetry"
)

// Source is the store a tree attaches to. *state.Store implements it.
type Source interface {
	Snapshot() *state.Snapshot
	Subscribe(fn func(*state.Snapshot)) (unsubscribe func())
}

type config struct {
	ctx       context.Context
	logger    *slog.Logger
	sink      func(error)
	scheduler Scheduler
	maxPasses int
	onOutput  func(any)
}

// Option configures Attach.
type Option func(*config)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithErrorSink sets the single destination for every fault in the tree.
// The default logs and drops.
func WithErrorSink(fn func(error)) Option {
	return func(c *config) {
		c.sink = fn
	}
}

// WithScheduler sets the timer source for tasks created through Input.NewTask.
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithMaxPasses bounds passes per drain (default DefaultMaxPasses).
func WithMaxPasses(n int) Option {
	return func(c *config) {
		c.maxPasses = n
	}
}

// WithOnOutput registers fn to run, inside the pass, each time the output
// mirror is replaced. fn must not block.
func WithOnOutput(fn func(any)) Option {
	return func(c *config) {
		c.onOutput = fn
	}
}

// WithContext sets the parent of every node context.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// Root is an attached tree.
//
// Passes are serialized by passMu. A pass is requested by setting pending;
// whoever holds passMu keeps draining until pending stays clear, so a
// request that loses the TryLock race is never lost. Requests made from the
// goroutine that is running the pass are folded into the current drain.
//
// Thread-safety: all methods are safe for concurrent use.
type Root struct {
	rt     *runtime
	logger *slog.Logger
	clock  *Clock

	passMu     sync.Mutex
	owner      atomic.Int64
	pending    atomic.Bool
	destroyed  atomic.Bool
	destroyReq atomic.Bool
	maxPasses  int
	onOutput   func(any)

	out atomic.Pointer[published]

	pass        func() any
	teardown    func()
	unsubscribe func()
}

// Attach builds w against src and keeps it converged: every dispatch and
// every publish runs an update pass that recomputes the root props from the
// current snapshot and the output mirror.
//
// The first pass runs before Attach returns.
func Attach[P any](src Source, w Worker[P], props func(*state.Snapshot, Output) P, opts ...Option) *Root {
	cfg := &config{
		ctx:       context.Background(),
		scheduler: SystemScheduler{},
		maxPasses: DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.sink == nil {
		logger := cfg.logger
		cfg.sink = func(err error) {
			logger.Warn("unhandled fault", "event", "fault_dropped", "error", err)
		}
	}

	r := &Root{
		logger:    cfg.logger,
		clock:     NewClock(),
		maxPasses: cfg.maxPasses,
		onOutput:  cfg.onOutput,
	}
	r.rt = newRuntime(cfg, r.kick)

	var root element[P]
	r.pass = func() any {
		mirror, _ := r.Output().(Output)
		var p P
		if !r.rt.safely("", OpProps, func() { p = props(src.Snapshot(), mirror) }) {
			return r.Output()
		}
		if root == nil {
			root = w.build(r.rt, "")
		}
		root.update(p)
		return root.output()
	}
	r.teardown = func() {
		if root != nil {
			root.destroy()
		}
	}

	r.unsubscribe = src.Subscribe(func(*state.Snapshot) {
		r.kick()
	})
	r.kick()
	return r
}

// Output returns the current output mirror. The value is immutable.
func (r *Root) Output() any {
	if p := r.out.Load(); p != nil {
		return p.v
	}
	return nil
}

// Passes returns how many update passes have run.
func (r *Root) Passes() int64 {
	return r.clock.Current()
}

// Destroyed reports whether Destroy has run.
func (r *Root) Destroyed() bool {
	return r.destroyed.Load()
}

// Destroy unsubscribes from the store, destroys every node exactly once,
// and waits for the leaf goroutines to finish. Calling it again is a no-op.
//
// When called from inside a pass, teardown runs as soon as that pass
// completes.
func (r *Root) Destroy() {
	if r.owner.Load() == goid.Get() {
		r.destroyReq.Store(true)
		return
	}
	if !r.destroyed.CompareAndSwap(false, true) {
		return
	}
	r.unsubscribe()

	r.passMu.Lock()
	r.teardown()
	r.passMu.Unlock()

	r.rt.cancel()
	r.rt.wait()

	r.logger.Debug("tree destroyed", "event", "root_destroyed", "passes", r.clock.Current())
}

func (r *Root) kick() {
	if r.destroyed.Load() {
		return
	}
	r.pending.Store(true)

	gid := goid.Get()
	if r.owner.Load() == gid {
		return
	}

	for r.pending.Load() && !r.destroyed.Load() {
		if !r.passMu.TryLock() {
			return
		}
		r.owner.Store(gid)
		r.drain()
		r.owner.Store(0)
		r.passMu.Unlock()

		if r.destroyReq.Load() {
			r.Destroy()
			return
		}
	}
}

// drain runs passes until the output mirror settles. Caller holds passMu.
func (r *Root) drain() {
	quota := newPassQuota(r.maxPasses)
	for r.pending.Swap(false) {
		if r.destroyed.Load() {
			return
		}
		if err := quota.check(); err != nil {
			r.pending.Store(false)
			r.rt.fault("", OpPass, err)
			return
		}

		n := r.clock.Next()
		out := r.pass()
		telemetry.PassesTotal.Inc()

		if !Same(r.Output(), out) {
			r.out.Store(&published{v: out})
			r.pending.Store(true)
			if r.onOutput != nil {
				r.rt.safely("", OpPass, func() { r.onOutput(out) })
			}
			r.logger.Debug("output changed", "event", "mirror_published", "pass", n)
		}
	}
}
