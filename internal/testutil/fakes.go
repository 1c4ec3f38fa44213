package testutil

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/walletcore/internal/core"
	"github.com/roach88/walletcore/internal/keys"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/state"
)

// FakeCurrency is a currency plugin whose engines are driven by the test.
type FakeCurrency struct {
	PluginName string
	Type       string
	MakeErr    error

	mu      sync.Mutex
	engines map[string]*FakeEngine
}

// NewFakeCurrency creates a plugin named name handling walletType.
func NewFakeCurrency(name, walletType string) *FakeCurrency {
	return &FakeCurrency{PluginName: name, Type: walletType, engines: map[string]*FakeEngine{}}
}

func (p *FakeCurrency) Name() string       { return p.PluginName }
func (p *FakeCurrency) WalletType() string { return p.Type }

func (p *FakeCurrency) CreatePrivateKey(_ context.Context, walletType string) (map[string]string, error) {
	return map[string]string{"privateKey": "fake:" + walletType}, nil
}

func (p *FakeCurrency) MakeEngine(_ context.Context, info keys.KeyInfo, cb plugin.EngineCallbacks) (plugin.CurrencyEngine, error) {
	if p.MakeErr != nil {
		return nil, p.MakeErr
	}
	e := &FakeEngine{Info: info, cb: cb}
	p.mu.Lock()
	p.engines[info.ID] = e
	p.mu.Unlock()
	return e, nil
}

// Engine returns the engine made for walletID, if any.
func (p *FakeCurrency) Engine(walletID string) (*FakeEngine, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.engines[walletID]
	return e, ok
}

// FakeEngine records its lifecycle and lets the test push transactions.
type FakeEngine struct {
	Info keys.KeyInfo

	cb      plugin.EngineCallbacks
	started atomic.Bool
	stopped atomic.Bool
}

func (e *FakeEngine) Start(context.Context) error {
	e.started.Store(true)
	return nil
}

func (e *FakeEngine) Stop() { e.stopped.Store(true) }

// Started reports whether Start ran.
func (e *FakeEngine) Started() bool { return e.started.Load() }

// Stopped reports whether Stop ran.
func (e *FakeEngine) Stopped() bool { return e.stopped.Load() }

// Emit reports txs as if the network delivered them.
func (e *FakeEngine) Emit(txs ...plugin.Tx) {
	if e.cb.OnTransactions != nil {
		e.cb.OnTransactions(txs)
	}
}

// ErrFakeRate is returned by a FakeRate configured to fail.
var ErrFakeRate = errors.New("rate source unavailable")

// FakeRate is a rate plugin returning fixed quotes, or always failing.
type FakeRate struct {
	PluginName string
	Rates      []plugin.Rate
	Fail       bool

	calls atomic.Int64
}

func (p *FakeRate) Name() string { return p.PluginName }

func (p *FakeRate) FetchRates(_ context.Context, _ []plugin.Pair) ([]plugin.Rate, error) {
	p.calls.Add(1)
	if p.Fail {
		return nil, ErrFakeRate
	}
	return slices.Clone(p.Rates), nil
}

// Calls returns how many times FetchRates ran.
func (p *FakeRate) Calls() int64 { return p.calls.Load() }

// FakeSwap is a swap plugin that hands out closable tools.
type FakeSwap struct {
	PluginName string
	// OnClose, when set, is called with the plugin name when tools close.
	OnClose func(name string)

	mu    sync.Mutex
	tools []*FakeSwapTools
	opts  []plugin.SwapOptions
}

func (p *FakeSwap) Name() string { return p.PluginName }

func (p *FakeSwap) MakeTools(_ context.Context, opts plugin.SwapOptions) (plugin.SwapTools, error) {
	t := &FakeSwapTools{name: p.PluginName, onClose: p.OnClose}
	p.mu.Lock()
	p.tools = append(p.tools, t)
	p.opts = append(p.opts, opts)
	p.mu.Unlock()
	return t, nil
}

// Tools returns every tools handle made so far.
func (p *FakeSwap) Tools() []*FakeSwapTools {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.tools)
}

// Options returns the options of every MakeTools call.
func (p *FakeSwap) Options() []plugin.SwapOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.opts)
}

// FakeSwapTools records Close.
type FakeSwapTools struct {
	name    string
	onClose func(string)
	closed  atomic.Bool
}

func (t *FakeSwapTools) Close() {
	if t.closed.CompareAndSwap(false, true) && t.onClose != nil {
		t.onClose(t.name)
	}
}

// Closed reports whether Close ran.
func (t *FakeSwapTools) Closed() bool { return t.closed.Load() }

// FakeStorage is an in-memory core.StorageSync.
type FakeStorage struct {
	// Sync decides the result of each SyncStorageWallet call. call counts
	// from 1 per wallet. A nil Sync reports no changes.
	Sync    func(call int, walletID string) ([]string, error)
	AddErr  error
	LoadErr error
	SaveErr error

	mu        sync.Mutex
	added     []string
	syncCalls map[string]int
	loads     int
	saves     int
	files     core.AccountFiles
}

// SetFiles sets what LoadWalletStates returns.
func (s *FakeStorage) SetFiles(files map[string]string, states map[string]state.WalletState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = core.AccountFiles{Files: maps.Clone(files), WalletStates: maps.Clone(states)}
}

func (s *FakeStorage) AddStorageWallet(_ context.Context, info keys.KeyInfo) error {
	if s.AddErr != nil {
		return s.AddErr
	}
	s.mu.Lock()
	s.added = append(s.added, info.ID)
	s.mu.Unlock()
	return nil
}

func (s *FakeStorage) SyncStorageWallet(_ context.Context, walletID string) ([]string, error) {
	s.mu.Lock()
	if s.syncCalls == nil {
		s.syncCalls = map[string]int{}
	}
	s.syncCalls[walletID]++
	call := s.syncCalls[walletID]
	s.mu.Unlock()
	if s.Sync == nil {
		return nil, nil
	}
	return s.Sync(call, walletID)
}

func (s *FakeStorage) LoadWalletStates(context.Context, string) (core.AccountFiles, error) {
	if s.LoadErr != nil {
		return core.AccountFiles{}, s.LoadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return core.AccountFiles{
		Files:        maps.Clone(s.files.Files),
		WalletStates: maps.Clone(s.files.WalletStates),
	}, nil
}

func (s *FakeStorage) SaveAccountFiles(_ context.Context, _ string, changes core.AccountFiles) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if len(changes.Files) > 0 && s.files.Files == nil {
		s.files.Files = map[string]string{}
	}
	maps.Copy(s.files.Files, changes.Files)
	if len(changes.WalletStates) > 0 && s.files.WalletStates == nil {
		s.files.WalletStates = map[string]state.WalletState{}
	}
	maps.Copy(s.files.WalletStates, changes.WalletStates)
	return nil
}

// Added returns the repositories attached so far.
func (s *FakeStorage) Added() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.added)
}

// SyncCalls returns how many times SyncStorageWallet ran, over all wallets.
func (s *FakeStorage) SyncCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.syncCalls {
		total += n
	}
	return total
}

// SyncCallsFor returns how many times walletID was synced.
func (s *FakeStorage) SyncCallsFor(walletID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncCalls[walletID]
}

// Loads returns how many times LoadWalletStates succeeded.
func (s *FakeStorage) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// Saves returns how many times SaveAccountFiles succeeded.
func (s *FakeStorage) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FakeLogin is an in-memory core.LoginServer.
type FakeLogin struct {
	Password string
	ApplyErr error

	mu   sync.Mutex
	kits []keys.KeysKit
}

func (l *FakeLogin) ApplyKit(_ context.Context, _ string, kit keys.KeysKit) error {
	if l.ApplyErr != nil {
		return l.ApplyErr
	}
	l.mu.Lock()
	l.kits = append(l.kits, kit)
	l.mu.Unlock()
	return nil
}

func (l *FakeLogin) CheckPassword(_ context.Context, _ string, password string) (bool, error) {
	return password == l.Password, nil
}

// Kits returns every applied kit.
func (l *FakeLogin) Kits() []keys.KeysKit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.kits)
}
