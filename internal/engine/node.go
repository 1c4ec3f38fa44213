package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

// Node is a persistent orchestration unit. Update is called on the node's
// own goroutine whenever its props change by reference, and never
// concurrently with itself. Destroy is called exactly once, on the same
// goroutine, after any in-flight Update has returned. It must release
// every timer, subscription and handle the node owns.
type Node[P any] interface {
	Update(ctx context.Context, props P) error
	Destroy()
}

// ConvergeFunc is the one-shot node shape: called per props change until
// it returns StopUpdates.
type ConvergeFunc[P any] func(ctx context.Context, in *Input[P], props P) error

// Worker describes how to build a subtree. Implementations live in this
// package: Leaf, Func, Combine, Collection and Filter.
type Worker[P any] interface {
	build(rt *runtime, path string) element[P]
}

// element is a built node. update and destroy are only called from a pass.
type element[P any] interface {
	update(props P)
	output() any
	destroy()
}

// Leaf builds a persistent node. factory runs inline in the pass and should
// only capture in; real work belongs in Update.
func Leaf[P any](factory func(in *Input[P]) Node[P]) Worker[P] {
	return leafWorker[P]{factory: factory}
}

// Func builds a node from a converge function.
func Func[P any](fn ConvergeFunc[P]) Worker[P] {
	return Leaf(func(in *Input[P]) Node[P] {
		return &funcNode[P]{in: in, fn: fn}
	})
}

type funcNode[P any] struct {
	in *Input[P]
	fn ConvergeFunc[P]
}

func (n *funcNode[P]) Update(ctx context.Context, props P) error {
	return n.fn(ctx, n.in, props)
}

func (n *funcNode[P]) Destroy() {}

type leafWorker[P any] struct {
	factory func(in *Input[P]) Node[P]
}

type published struct {
	v any
}

type leafElement[P any] struct {
	rt     *runtime
	path   string
	in     *Input[P]
	node   Node[P]
	box    *mailbox[P]
	run    *leafRun
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	props     P
	delivered bool

	out      atomic.Pointer[published]
	detached atomic.Bool
}

func (w leafWorker[P]) build(rt *runtime, path string) element[P] {
	ctx, cancel := context.WithCancel(rt.ctx)
	el := &leafElement[P]{
		rt:     rt,
		path:   path,
		box:    newMailbox[P](),
		ctx:    ctx,
		cancel: cancel,
	}
	el.in = &Input[P]{el: el}

	rt.safely(path, OpBuild, func() {
		el.node = w.factory(el.in)
	})

	el.run = rt.startLeaf()
	go el.loop()
	return el
}

func (el *leafElement[P]) update(props P) {
	el.mu.Lock()
	if el.delivered && Same(el.props, props) {
		el.mu.Unlock()
		return
	}
	el.props = props
	el.delivered = true
	el.mu.Unlock()

	el.box.put(props)
}

func (el *leafElement[P]) output() any {
	if p := el.out.Load(); p != nil {
		return p.v
	}
	return nil
}

// destroy detaches the element. The leaf goroutine finishes any in-flight
// Update, then runs Destroy.
func (el *leafElement[P]) destroy() {
	if el.detached.Swap(true) {
		return
	}
	el.cancel()
	el.box.close()
}

func (el *leafElement[P]) loop() {
	el.run.gid.Store(goid.Get())
	defer el.rt.endLeaf(el.run)
	defer el.runDestroy()

	stopped := false
	for {
		props, ok := el.box.take()
		if !ok {
			return
		}
		if stopped || el.node == nil {
			continue
		}

		err := el.runUpdate(props)
		switch {
		case errors.Is(err, StopUpdates):
			stopped = true
		case err != nil:
			el.rt.fault(el.path, OpUpdate, err)
		}
	}
}

func (el *leafElement[P]) runUpdate(props P) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(el.path, OpUpdate, r)
		}
	}()
	return el.node.Update(el.ctx, props)
}

func (el *leafElement[P]) runDestroy() {
	if el.node == nil {
		return
	}
	el.rt.safely(el.path, OpDestroy, el.node.Destroy)
}

// Input is a node's handle on the runtime.
type Input[P any] struct {
	el *leafElement[P]
}

// Props returns the latest props delivered to the node. After the node is
// destroyed it keeps returning the last props it saw.
func (in *Input[P]) Props() P {
	in.el.mu.Lock()
	defer in.el.mu.Unlock()
	return in.el.props
}

// Publish replaces the node's output and schedules a pass. Publishing after
// the node left the tree is discarded.
func (in *Input[P]) Publish(v any) {
	el := in.el
	if el.detached.Load() {
		el.rt.logger.Debug("discarding publish from detached node",
			"event", "publish_discarded",
			"path", el.path)
		return
	}
	el.out.Store(&published{v: v})
	el.rt.kick()
}

// Output returns the node's current published output.
func (in *Input[P]) Output() any {
	return in.el.output()
}

// Alive reports whether the node is still in the tree.
func (in *Input[P]) Alive() bool {
	return !in.el.detached.Load()
}

// Context is cancelled when the node is destroyed.
func (in *Input[P]) Context() context.Context {
	return in.el.ctx
}

// Path returns the node's position in the tree.
func (in *Input[P]) Path() string {
	return in.el.path
}

// Logger returns the tree logger annotated with the node path.
func (in *Input[P]) Logger() *slog.Logger {
	return in.el.rt.logger.With("path", in.el.path)
}

// Report delivers err to the error sink unchanged.
func (in *Input[P]) Report(err error) {
	if err == nil {
		return
	}
	in.el.rt.report(err)
}

// NewTask creates a task bound to this node: it uses the tree's scheduler,
// reports faults through report (or Report if nil), and becomes a no-op once
// the node leaves the tree. The caller still owns Start and Stop.
func (in *Input[P]) NewTask(name string, delay time.Duration, fn func(ctx context.Context) error, report func(error)) *Task {
	if report == nil {
		report = in.Report
	}
	guarded := func(ctx context.Context) error {
		if !in.Alive() {
			return nil
		}
		return fn(ctx)
	}
	return NewTask(name, delay, guarded,
		WithTaskScheduler(in.el.rt.sched),
		WithTaskReporter(report),
		WithTaskLogger(in.Logger()),
		WithTaskContext(in.el.ctx))
}
