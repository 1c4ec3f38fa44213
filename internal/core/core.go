package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/walletcore/internal/bridge"
	"github.com/roach88/walletcore/internal/config"
	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/keys"
	"github.com/roach88/walletcore/internal/state"
)

// EventError is emitted on the Context proxy for every sink delivery.
const EventError = "error"

// ErrLoginFailed wraps the stored load error returned by WaitForAccount.
var ErrLoginFailed = errors.New("login failed")

// ContextView is what the Context proxy carries: the latest snapshot and
// the Account API of every account whose login has converged.
type ContextView struct {
	State    *state.Snapshot
	Accounts map[string]*Account
}

// LoginRequest describes an account the login layer has already
// authenticated.
type LoginRequest struct {
	// AccountID is generated when empty.
	AccountID    string
	Username     string
	LoginType    string
	Login        keys.Login
	WalletInfos  []keys.KeyInfo
	WalletStates map[string]state.WalletState
}

// Core owns one store and the engine tree attached to it.
//
// Thread-safety: all methods are safe for concurrent use.
type Core struct {
	d      *deps
	store  *state.Store
	root   *engine.Root
	ids    engine.IDGenerator
	logger *slog.Logger

	ctxProxy *bridge.Proxy[ContextView]
	mirror   atomic.Pointer[engine.Output]
	viewMu   sync.Mutex

	unsubscribe func()
	destroyOnce sync.Once
}

// New validates cfg, records it with INIT and attaches the engine tree. A
// bad configuration returns a *ConfigError and nothing is started.
func New(cfg config.Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	o.syncEvery = cfg.SyncInterval
	o.rateEvery = cfg.RateInterval
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.plugins.Currency == nil && o.plugins.Swap == nil && o.plugins.Rate == nil && o.registry != nil {
		set, err := o.registry.Resolve(cfg.Plugins)
		if err != nil {
			return nil, &ConfigError{Field: "plugins", Message: err.Error(), Err: err}
		}
		o.plugins = set
	}

	storeOpts := []state.StoreOption{state.WithLogger(o.logger)}
	if o.recorder != nil {
		storeOpts = append(storeOpts, state.WithRecorder(o.recorder))
	}

	c := &Core{
		store:  state.NewStore(storeOpts...),
		ids:    o.ids,
		logger: o.logger,
	}
	c.d = &deps{
		cfg:       cfg,
		store:     c.store,
		plugins:   o.plugins,
		login:     o.login,
		storage:   o.storage,
		callbacks: o.callbacks,
		logger:    o.logger,
		rand:      o.rand,
		now:       o.now,
		syncEvery: o.syncEvery,
		rateEvery: o.rateEvery,
		report:    c.sink,
		output:    c.output,
	}

	c.d.dispatch(state.Action{
		Type: state.ActionInit,
		Payload: state.InitPayload{
			APIKey:     cfg.APIKey,
			AppID:      cfg.AppID,
			AuthServer: cfg.AuthServer,
			HideKeys:   cfg.HideKeys,
		},
	})

	c.ctxProxy = bridge.New("context", c.view())
	c.unsubscribe = c.store.Subscribe(func(*state.Snapshot) {
		c.refresh()
	})

	c.root = engine.Attach(c.store, rootWorker(), rootProps(c.d),
		engine.WithContext(o.ctx),
		engine.WithLogger(o.logger),
		engine.WithScheduler(o.scheduler),
		engine.WithErrorSink(c.sink),
		engine.WithOnOutput(func(out any) {
			m, _ := out.(engine.Output)
			c.mirror.Store(&m)
			c.refresh()
		}),
	)

	c.logger.Info("core started",
		"event", "core_started",
		"app_id", cfg.AppID,
		"plugins", len(o.plugins.Currency)+len(o.plugins.Swap)+len(o.plugins.Rate))
	return c, nil
}

// sink is the single error sink. It never panics.
func (c *Core) sink(err error) {
	c.logger.Warn("background fault", "event", "fault", "error", err)
	if cb := c.d.callbacks.OnError; cb != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("OnError panicked", "event", "callback_panic", "panic", r)
				}
			}()
			cb(err)
		}()
	}
	if c.ctxProxy != nil {
		c.ctxProxy.Emit(EventError, err)
	}
}

func (c *Core) output() engine.Output {
	if m := c.mirror.Load(); m != nil {
		return *m
	}
	return nil
}

func (c *Core) view() ContextView {
	snap := c.store.Snapshot()
	out := c.output()
	v := ContextView{State: snap, Accounts: map[string]*Account{}}
	for _, id := range snap.Accounts.IDs() {
		if a, ok := lookupAccount(out, id); ok {
			v.Accounts[id] = a
		}
	}
	return v
}

// refresh recomputes the context view. Compute and store happen under one
// lock so a slower caller cannot overwrite a newer view.
func (c *Core) refresh() {
	c.viewMu.Lock()
	c.ctxProxy.Set(c.view())
	c.viewMu.Unlock()
	c.ctxProxy.Refresh()
}

// Context returns the bridged context: it refreshes on every dispatch and
// every output change, and emits "error" for every sink delivery.
func (c *Core) Context() *bridge.Proxy[ContextView] {
	return c.ctxProxy
}

// Dispatch applies an action to the store.
func (c *Core) Dispatch(a state.Action) *state.Snapshot {
	return c.d.dispatch(a)
}

// Snapshot returns the current state.
func (c *Core) Snapshot() *state.Snapshot {
	return c.store.Snapshot()
}

// Seq returns the sequence number of the last dispatched action.
func (c *Core) Seq() int64 {
	return c.store.Seq()
}

// Output returns the engine output mirror.
func (c *Core) Output() engine.Output {
	return c.output()
}

// Login adds an authenticated account and returns its id. Convergence
// continues in the background; use WaitForAccount to block on it.
func (c *Core) Login(_ context.Context, req LoginRequest) (string, error) {
	if c.root.Destroyed() {
		return "", bridge.ErrDisposed
	}
	id := req.AccountID
	if id == "" {
		id = c.ids.Generate()
	}
	if _, ok := c.d.account(id); ok {
		return "", &StateError{Op: "login", AccountID: id, Err: errors.New("already logged in")}
	}

	c.d.dispatch(state.Action{
		Type: state.ActionLogin,
		Payload: state.LoginPayload{
			AccountID:    id,
			Username:     req.Username,
			AppID:        c.d.cfg.AppID,
			LoginType:    req.LoginType,
			Login:        req.Login,
			WalletInfos:  req.WalletInfos,
			WalletStates: req.WalletStates,
		},
	})
	c.logger.Info("login requested", "event", "login", "account", id)
	return id, nil
}

// Account returns the Account API once login has converged.
func (c *Core) Account(id string) (*Account, bool) {
	return lookupAccount(c.output(), id)
}

// WaitForAccount blocks until the account's login converges or fails.
func (c *Core) WaitForAccount(ctx context.Context, id string) (*Account, error) {
	var failed string
	v, err := c.ctxProxy.WaitFor(ctx, func(v ContextView) bool {
		if v.Accounts[id] != nil {
			return true
		}
		acct, ok := v.State.Accounts.Get(id)
		if ok && acct.Status == state.AccountFailed {
			failed = acct.LoadError
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if a := v.Accounts[id]; a != nil {
		return a, nil
	}
	return nil, &StateError{Op: "login", AccountID: id, Err: fmt.Errorf("%w: %s", ErrLoginFailed, failed)}
}

// Destroy tears the tree down: every account is destroyed (closing its
// proxies and firing OnLoggedOut) and the Context proxy is closed. It is
// idempotent.
func (c *Core) Destroy() {
	c.destroyOnce.Do(func() {
		c.unsubscribe()
		c.root.Destroy()
		c.ctxProxy.Close()
		c.logger.Info("core destroyed", "event", "core_destroyed", "seq", c.store.Seq())
	})
}
