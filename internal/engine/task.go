package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/walletcore/internal/telemetry"
)

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler arms single-shot timers.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler uses time.AfterFunc.
type SystemScheduler struct{}

// AfterFunc implements Scheduler.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Task runs fn repeatedly, waiting delay between the end of one run and the
// start of the next. It is armed as a single-shot timer each cycle and the
// rearm is deferred, so neither an error nor a panic stops the loop. Only
// Stop does.
type Task struct {
	name   string
	delay  time.Duration
	fn     func(ctx context.Context) error
	sched  Scheduler
	report func(error)
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   Timer
	started bool
	stopped bool

	runs atomic.Int64
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithTaskScheduler sets the timer source (default SystemScheduler).
func WithTaskScheduler(s Scheduler) TaskOption {
	return func(t *Task) {
		t.sched = s
	}
}

// WithTaskReporter sets where run errors and panics go. Without one they are
// only logged.
func WithTaskReporter(fn func(error)) TaskOption {
	return func(t *Task) {
		t.report = fn
	}
}

// WithTaskLogger sets the logger (default slog.Default()).
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(t *Task) {
		t.logger = l
	}
}

// WithTaskContext sets the parent context passed to fn.
func WithTaskContext(ctx context.Context) TaskOption {
	return func(t *Task) {
		t.ctx = ctx
	}
}

// NewTask creates a stopped task. Call Start to arm it.
func NewTask(name string, delay time.Duration, fn func(ctx context.Context) error, opts ...TaskOption) *Task {
	t := &Task{
		name:   name,
		delay:  delay,
		fn:     fn,
		sched:  SystemScheduler{},
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ctx, t.cancel = context.WithCancel(t.ctx)
	return t
}

// Start arms the first run after delay. Starting twice, or after Stop, does
// nothing.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	t.timer = t.sched.AfterFunc(t.delay, t.fire)
}

// Stop cancels the pending timer and the context of an in-flight run. It
// does not wait for that run to return. Stop is idempotent.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.cancel()
}

// Stopped reports whether Stop has been called.
func (t *Task) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Runs returns how many runs have completed, successful or not.
func (t *Task) Runs() int64 {
	return t.runs.Load()
}

func (t *Task) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer = t.sched.AfterFunc(t.delay, t.fire)
}

func (t *Task) fire() {
	if t.Stopped() {
		return
	}
	defer t.arm()

	start := time.Now()
	err := t.run()
	t.runs.Add(1)
	telemetry.ObserveTask(t.name, time.Since(start).Seconds(), err)

	if err == nil || t.Stopped() {
		return
	}
	t.logger.Warn("task run failed", "event", "task_failed", "task", t.name, "error", err)
	t.deliver(err)
}

func (t *Task) run() (err error) {
	ctx, span := telemetry.StartSpan(t.ctx, "task."+t.name, attribute.String("task", t.name))
	defer func() {
		if r := recover(); r != nil {
			err = recovered(t.name, OpTask, r)
		}
		telemetry.EndSpan(span, err)
	}()
	return t.fn(ctx)
}

func (t *Task) deliver(err error) {
	if t.report == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("task reporter panicked", "event", "sink_panic", "task", t.name, "panic", r)
		}
	}()
	t.report(err)
}
