package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/roach88/walletcore/internal/telemetry"
)

// runtime is shared by every element of one attached tree.
type runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	sink   func(error)
	sched  Scheduler
	kick   func()

	mu      sync.Mutex
	running map[*leafRun]struct{}
}

// leafRun tracks one leaf goroutine so teardown can wait for it.
type leafRun struct {
	gid  atomic.Int64
	done chan struct{}
}

func newRuntime(cfg *config, kick func()) *runtime {
	ctx, cancel := context.WithCancel(cfg.ctx)
	return &runtime{
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.logger,
		sink:    cfg.sink,
		sched:   cfg.scheduler,
		kick:    kick,
		running: make(map[*leafRun]struct{}),
	}
}

// fault wraps err as a *NodeError (unless it already is one) and reports it.
func (rt *runtime) fault(path string, op Op, err error) {
	ne, ok := err.(*NodeError)
	if !ok {
		ne = &NodeError{Path: path, Op: op, Err: err}
	}
	telemetry.FaultsTotal.WithLabelValues(string(ne.Op)).Inc()
	rt.logger.Error("node fault",
		"event", "node_fault",
		"path", ne.Path,
		"op", string(ne.Op),
		"error", ne.Error())
	rt.report(ne)
}

// report delivers err to the sink. A panicking sink is logged, never
// propagated.
func (rt *runtime) report(err error) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("error sink panicked", "event", "sink_panic", "panic", r)
		}
	}()
	rt.sink(err)
}

// safely runs fn and converts a panic into a fault. It returns false if fn
// panicked.
func (rt *runtime) safely(path string, op Op, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rt.fault(path, op, recovered(path, op, r))
			ok = false
		}
	}()
	fn()
	return true
}

func (rt *runtime) startLeaf() *leafRun {
	run := &leafRun{done: make(chan struct{})}
	rt.mu.Lock()
	rt.running[run] = struct{}{}
	rt.mu.Unlock()
	telemetry.LiveNodes.Inc()
	return run
}

func (rt *runtime) endLeaf(run *leafRun) {
	rt.mu.Lock()
	delete(rt.running, run)
	rt.mu.Unlock()
	telemetry.LiveNodes.Dec()
	close(run.done)
}

// wait blocks until every leaf goroutine has exited, except the caller's own.
func (rt *runtime) wait() {
	gid := goid.Get()
	rt.mu.Lock()
	pending := make([]*leafRun, 0, len(rt.running))
	for run := range rt.running {
		if run.gid.Load() != gid {
			pending = append(pending, run)
		}
	}
	rt.mu.Unlock()

	for _, run := range pending {
		<-run.done
	}
}
