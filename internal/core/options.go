package core

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/state"
)

// Callbacks are the host notifications. Every field is optional. A callback
// that panics is reported to OnError and otherwise ignored.
type Callbacks struct {
	OnError          func(err error)
	OnDataChanged    func(accountID string)
	OnKeyListChanged func(accountID string)
	OnLoggedOut      func(accountID string)
	OnExchangeUpdate func()
}

type options struct {
	ctx       context.Context
	logger    *slog.Logger
	scheduler engine.Scheduler
	ids       engine.IDGenerator
	callbacks Callbacks
	plugins   plugin.Set
	registry  *plugin.Registry
	login     LoginServer
	storage   StorageSync
	recorder  state.Recorder
	rand      io.Reader
	now       func() time.Time
	syncEvery time.Duration
	rateEvery time.Duration
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithContext sets the parent of every node context. Cancelling it aborts
// in-flight plugin and collaborator calls; it does not destroy the tree.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithScheduler sets the timer source for the sync and rate pollers.
func WithScheduler(s engine.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithIDGenerator sets how Login names accounts that arrive without an id
// (default UUIDv7).
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithCallbacks sets the host notifications.
func WithCallbacks(cb Callbacks) Option {
	return func(o *options) {
		o.callbacks = cb
	}
}

// WithPlugins sets the resolved plugin set.
func WithPlugins(set plugin.Set) Option {
	return func(o *options) {
		o.plugins = set
	}
}

// WithRegistry resolves the configured plugin names against r. It is
// ignored when WithPlugins is also given.
func WithRegistry(r *plugin.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLoginServer sets the login collaborator.
func WithLoginServer(s LoginServer) Option {
	return func(o *options) {
		o.login = s
	}
}

// WithStorage sets the repository sync collaborator.
func WithStorage(s StorageSync) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithRecorder journals every dispatched action.
func WithRecorder(r state.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithRand sets the randomness source for key generation.
func WithRand(r io.Reader) Option {
	return func(o *options) {
		o.rand = r
	}
}

// WithClock sets the wall clock used to timestamp rates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSyncInterval overrides the configured sync delay.
func WithSyncInterval(d time.Duration) Option {
	return func(o *options) {
		o.syncEvery = d
	}
}

// WithRateInterval overrides the configured rate delay.
func WithRateInterval(d time.Duration) Option {
	return func(o *options) {
		o.rateEvery = d
	}
}

func defaultOptions() *options {
	return &options{
		ctx:       context.Background(),
		scheduler: engine.SystemScheduler{},
		ids:       engine.UUIDv7Generator{},
		login:     nopLogin{},
		storage:   nopStorage{},
		rand:      rand.Reader,
		now:       time.Now,
	}
}
