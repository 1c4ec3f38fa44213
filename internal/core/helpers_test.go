package core_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/walletcore/internal/config"
	"github.com/roach88/walletcore/internal/core"
	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/keys"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/testutil"
)

const btcType = "wallet:bitcoin"

// fixture wires a Core to fakes and records every host callback.
type fixture struct {
	sched   *testutil.ManualScheduler
	clock   *testutil.WallClock
	storage *testutil.FakeStorage
	login   *testutil.FakeLogin
	btc     *testutil.FakeCurrency
	swap    *testutil.FakeSwap
	rates   []plugin.RatePlugin
	cfg     config.Config

	// onDataChanged replaces the default counter when set.
	onDataChanged func(string)

	mu              sync.Mutex
	errs            []error
	events          []string
	dataChanged     int
	keyChanges      int
	exchangeUpdates int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.New("test-key")
	require.NoError(t, err)

	f := &fixture{
		sched:   testutil.NewManualScheduler(),
		clock:   testutil.NewWallClock(time.Time{}),
		storage: &testutil.FakeStorage{},
		login:   &testutil.FakeLogin{Password: "hunter2"},
		btc:     testutil.NewFakeCurrency("bitcoin", btcType),
		cfg:     cfg,
	}
	f.swap = &testutil.FakeSwap{PluginName: "changelly", OnClose: func(name string) {
		f.record("tools:" + name)
	}}
	return f
}

func (f *fixture) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fixture) callbacks() core.Callbacks {
	return core.Callbacks{
		OnError: func(err error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.errs = append(f.errs, err)
		},
		OnDataChanged: func(id string) {
			if f.onDataChanged != nil {
				f.onDataChanged(id)
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			f.dataChanged++
		},
		OnKeyListChanged: func(string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.keyChanges++
		},
		OnLoggedOut: func(id string) {
			f.record("loggedOut:" + id)
		},
		OnExchangeUpdate: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.exchangeUpdates++
		},
	}
}

func (f *fixture) start(t *testing.T, opts ...core.Option) *core.Core {
	t.Helper()
	base := []core.Option{
		core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		core.WithScheduler(f.sched),
		core.WithClock(f.clock.Now),
		core.WithRand(testutil.NewCountingReader(1)),
		core.WithIDGenerator(engine.NewFixedGenerator("acct-1", "acct-2", "acct-3")),
		core.WithStorage(f.storage),
		core.WithLoginServer(f.login),
		core.WithCallbacks(f.callbacks()),
		core.WithPlugins(plugin.Set{
			Currency: []plugin.CurrencyPlugin{f.btc},
			Swap:     []plugin.SwapPlugin{f.swap},
			Rate:     f.rates,
		}),
		core.WithSyncInterval(30 * time.Second),
		core.WithRateInterval(time.Hour),
	}
	c, err := core.New(f.cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	return c
}

func (f *fixture) errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

func (f *fixture) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fixture) counts() (dataChanged, keyChanges, exchangeUpdates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dataChanged, f.keyChanges, f.exchangeUpdates
}

// testLogin returns a login with a valid 32-byte login key.
func testLogin() keys.Login {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return keys.Login{LoginID: "login-1", LoginKey: key}
}

func repoInfo(t *testing.T) keys.KeyInfo {
	t.Helper()
	info, err := keys.MakeStorageKeyInfo(testutil.NewCountingReader(10), keys.AccountType(""), nil)
	require.NoError(t, err)
	return info
}

func walletInfo(t *testing.T, seed byte, walletType string) keys.KeyInfo {
	t.Helper()
	info, err := keys.MakeStorageKeyInfo(testutil.NewCountingReader(seed), walletType, map[string]string{"privateKey": "pk"})
	require.NoError(t, err)
	return info
}

// loginAndWait logs in with infos and waits for convergence.
func loginAndWait(t *testing.T, c *core.Core, infos ...keys.KeyInfo) *core.Account {
	t.Helper()
	id, err := c.Login(context.Background(), core.LoginRequest{
		Username:    "alice",
		LoginType:   "passwordLogin",
		Login:       testLogin(),
		WalletInfos: infos,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	acct, err := c.WaitForAccount(ctx, id)
	require.NoError(t, err)
	return acct
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 2*time.Millisecond, msg)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
