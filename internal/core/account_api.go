package core

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/walletcore/internal/bridge"
	"github.com/roach88/walletcore/internal/keys"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/state"
)

// AccountView is an immutable picture of an account, refreshed whenever
// the account or its wallets change.
type AccountView struct {
	ID                string
	Username          string
	AppID             string
	LoginType         string
	LoggedIn          bool
	ActiveWalletIDs   []string
	ArchivedWalletIDs []string
	CurrencyWallets   map[string]*Wallet
}

// Account is the bridged API of one logged-in account. It is built once
// login converges and closed on logout. Every read after close fails with
// bridge.ErrDisposed; every read after logout fails with ErrLoggedOut.
type Account struct {
	d     *deps
	id    string
	proxy *bridge.Proxy[AccountView]

	data     *DataStore
	rates    *RateCache
	currency map[string]*CurrencyConfig
	swap     map[string]*SwapConfig
}

func newAccount(d *deps, id string, tools map[string]plugin.SwapTools) *Account {
	a := &Account{
		d:        d,
		id:       id,
		data:     &DataStore{d: d, accountID: id, proxy: bridge.New("dataStore:"+id, id)},
		rates:    newRateCache(d, "rateCache:"+id),
		currency: make(map[string]*CurrencyConfig, len(d.plugins.Currency)),
		swap:     make(map[string]*SwapConfig, len(tools)),
	}
	for _, cp := range d.plugins.Currency {
		a.currency[cp.Name()] = &CurrencyConfig{proxy: bridge.New("currencyConfig:"+cp.Name(), cp)}
	}
	for name, t := range tools {
		a.swap[name] = &SwapConfig{name: name, proxy: bridge.New("swapConfig:"+name, t)}
	}
	a.proxy = bridge.New("account:"+id, a.view())
	return a
}

// view builds the current AccountView from the store and the mirror.
func (a *Account) view() AccountView {
	acct, ok := a.d.account(a.id)
	if !ok {
		return AccountView{ID: a.id}
	}
	v := AccountView{
		ID:                a.id,
		Username:          acct.Username,
		AppID:             acct.AppID,
		LoginType:         acct.LoginType,
		LoggedIn:          true,
		ActiveWalletIDs:   acct.ActiveWalletIDs,
		ArchivedWalletIDs: acct.ArchivedWalletIDs,
	}
	v.CurrencyWallets = lookupWallets(a.d.output(), a.id)
	return v
}

func (a *Account) refresh() {
	a.proxy.Update(a.view())
}

// close disposes the account and every sub-proxy: account, data store, rate
// cache, then currency and swap configs by name.
func (a *Account) close() {
	bridge.CloseAll(a.proxy, a.data, a.rates)
	bridge.CloseSorted(a.currency)
	bridge.CloseSorted(a.swap)
}

// live returns the account state, or the error a method on a closed or
// logged-out account should fail with.
func (a *Account) live(op string) (*state.Account, error) {
	if a.proxy.Closed() {
		return nil, bridge.ErrDisposed
	}
	acct, ok := a.d.account(a.id)
	if !ok {
		return nil, loggedOut(op, a.id)
	}
	return acct, nil
}

func (a *Account) lockdown(op string) error {
	if a.d.hideKeys() {
		return &StateError{Op: op, AccountID: a.id, Err: ErrKeysHidden}
	}
	return nil
}

// ID returns the account id. It never fails.
func (a *Account) ID() string {
	return a.id
}

// View returns the latest refreshed view.
func (a *Account) View() (AccountView, error) {
	return a.proxy.Get()
}

// Subscribe registers fn for a named event ("update", "close").
func (a *Account) Subscribe(event string, fn func(any)) (func(), error) {
	return a.proxy.Subscribe(event, fn)
}

// Watch calls fn with every refreshed view.
func (a *Account) Watch(fn func(AccountView)) (func(), error) {
	return a.proxy.Watch(fn)
}

// Closed reports whether the account was closed by logout or teardown.
func (a *Account) Closed() bool {
	return a.proxy.Closed()
}

// LoggedIn reports whether the account is still in the store.
func (a *Account) LoggedIn() bool {
	_, err := a.live("loggedIn")
	return err == nil
}

// Username returns the login name.
func (a *Account) Username() (string, error) {
	acct, err := a.live("username")
	if err != nil {
		return "", err
	}
	return acct.Username, nil
}

// LoginType returns how the account logged in.
func (a *Account) LoginType() (string, error) {
	acct, err := a.live("loginType")
	if err != nil {
		return "", err
	}
	return acct.LoginType, nil
}

// Keys returns the keys of the account repository.
func (a *Account) Keys() (map[string]string, error) {
	acct, err := a.live("keys")
	if err != nil {
		return nil, err
	}
	if err := a.lockdown("keys"); err != nil {
		return nil, err
	}
	info, ok := keys.FindFirstKey(acct.WalletInfos, keys.AccountType(acct.AppID))
	if !ok {
		return nil, nil
	}
	return maps.Clone(info.Keys), nil
}

// AllKeys lists every key the account owns. With hideKeys the key material
// is stripped.
func (a *Account) AllKeys() ([]keys.KeyInfo, error) {
	acct, err := a.live("allKeys")
	if err != nil {
		return nil, err
	}
	out := make([]keys.KeyInfo, len(acct.WalletInfos))
	hide := a.d.hideKeys()
	for i, info := range acct.WalletInfos {
		if hide {
			out[i] = keys.CleanKeyInfo(info)
		} else {
			out[i] = keys.KeyInfo{ID: info.ID, Type: info.Type, Keys: maps.Clone(info.Keys)}
		}
	}
	return out, nil
}

// ActiveWalletIDs lists active currency wallets in sort order.
func (a *Account) ActiveWalletIDs() ([]string, error) {
	acct, err := a.live("activeWalletIds")
	if err != nil {
		return nil, err
	}
	return slices.Clone(acct.ActiveWalletIDs), nil
}

// ArchivedWalletIDs lists archived currency wallets in sort order.
func (a *Account) ArchivedWalletIDs() ([]string, error) {
	acct, err := a.live("archivedWalletIds")
	if err != nil {
		return nil, err
	}
	return slices.Clone(acct.ArchivedWalletIDs), nil
}

// CurrencyWallets returns the running wallet proxies by id.
func (a *Account) CurrencyWallets() (map[string]*Wallet, error) {
	if _, err := a.live("currencyWallets"); err != nil {
		return nil, err
	}
	return lookupWallets(a.d.output(), a.id), nil
}

// WaitForCurrencyWallet blocks until the wallet's proxy is running.
func (a *Account) WaitForCurrencyWallet(ctx context.Context, walletID string) (*Wallet, error) {
	v, err := a.proxy.WaitFor(ctx, func(v AccountView) bool {
		return v.CurrencyWallets[walletID] != nil
	})
	if err != nil {
		return nil, err
	}
	return v.CurrencyWallets[walletID], nil
}

// CreateWallet attaches a new wallet to the account and returns its id.
// With nil keys the matching currency plugin generates them.
func (a *Account) CreateWallet(ctx context.Context, walletType string, walletKeys map[string]string) (string, error) {
	acct, err := a.live("createWallet")
	if err != nil {
		return "", err
	}

	if walletKeys == nil {
		cp, ok := plugin.FindCurrency(a.d.plugins.Currency, walletType)
		if !ok {
			return "", &StateError{Op: "createWallet", AccountID: a.id, Err: fmt.Errorf("%w %q", ErrNoPlugin, walletType)}
		}
		if walletKeys, err = cp.CreatePrivateKey(ctx, walletType); err != nil {
			return "", fmt.Errorf("create private key: %w", err)
		}
	}

	info, err := keys.MakeStorageKeyInfo(a.d.rand, walletType, walletKeys)
	if err != nil {
		return "", fmt.Errorf("make key info: %w", err)
	}
	kit, err := keys.MakeKeysKit(a.d.rand, acct.Login, info)
	if err != nil {
		return "", fmt.Errorf("make keys kit: %w", err)
	}
	if err := a.d.login.ApplyKit(ctx, a.id, kit); err != nil {
		return "", fmt.Errorf("apply kit: %w", err)
	}

	// The reducer appends under the writer lock.
	a.d.dispatch(state.Action{
		Type:    state.ActionAccountKeyAdded,
		Payload: state.AccountKeyAddedPayload{AccountID: a.id, WalletInfo: info},
	})
	return info.ID, nil
}

// ChangeWalletStates merges per-wallet preferences (archived, deleted,
// sort order) into the account. The change is written to the account
// repository first, so a later reload keeps it.
func (a *Account) ChangeWalletStates(ctx context.Context, changes map[string]state.WalletState) error {
	if _, err := a.live("changeWalletStates"); err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	changes = maps.Clone(changes)
	if err := a.d.storage.SaveAccountFiles(ctx, a.id, AccountFiles{WalletStates: changes}); err != nil {
		return fmt.Errorf("save wallet states: %w", err)
	}
	a.d.dispatch(state.Action{
		Type:    state.ActionAccountWalletStatesSet,
		Payload: state.AccountWalletStatesPayload{AccountID: a.id, Changes: changes},
	})
	return nil
}

// CheckPassword verifies the account password with the login server. A
// wrong password is (false, nil).
func (a *Account) CheckPassword(ctx context.Context, password string) (bool, error) {
	acct, err := a.live("checkPassword")
	if err != nil {
		return false, err
	}
	if err := a.lockdown("checkPassword"); err != nil {
		return false, err
	}
	return a.d.login.CheckPassword(ctx, acct.Username, password)
}

// Logout removes the account. Its nodes are then destroyed, which closes
// every proxy the account handed out and fires OnLoggedOut.
func (a *Account) Logout() error {
	if _, err := a.live("logout"); err != nil {
		return err
	}
	a.d.dispatch(state.Action{
		Type:    state.ActionLogout,
		Payload: state.LogoutPayload{AccountID: a.id},
	})
	return nil
}

// RateCache returns the exchange rate view.
func (a *Account) RateCache() *RateCache { return a.rates }

// DataStore returns the account's key/value file store.
func (a *Account) DataStore() *DataStore { return a.data }

// CurrencyConfig returns the currency plugin configs by plugin name.
func (a *Account) CurrencyConfig() map[string]*CurrencyConfig { return maps.Clone(a.currency) }

// SwapConfig returns the swap plugin configs by plugin name.
func (a *Account) SwapConfig() map[string]*SwapConfig { return maps.Clone(a.swap) }

// Close implements bridge.Closer.
func (a *Account) Close() { a.close() }

// DataStore reads and writes the account's files.
type DataStore struct {
	d         *deps
	accountID string
	proxy     *bridge.Proxy[string]
}

func (s *DataStore) files(op string) (map[string]string, error) {
	if s.proxy.Closed() {
		return nil, bridge.ErrDisposed
	}
	acct, ok := s.d.account(s.accountID)
	if !ok {
		return nil, loggedOut(op, s.accountID)
	}
	return acct.Files, nil
}

// Get returns one file.
func (s *DataStore) Get(key string) (string, bool, error) {
	files, err := s.files("dataStore.get")
	if err != nil {
		return "", false, err
	}
	v, ok := files[key]
	return v, ok, nil
}

// Keys lists the stored file names, sorted.
func (s *DataStore) Keys() ([]string, error) {
	files, err := s.files("dataStore.keys")
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(files)), nil
}

// Set writes one file through to the account repository, then into the
// snapshot.
func (s *DataStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.files("dataStore.set"); err != nil {
		return err
	}
	err := s.d.storage.SaveAccountFiles(ctx, s.accountID, AccountFiles{Files: map[string]string{key: value}})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	s.d.dispatch(state.Action{
		Type:    state.ActionAccountFileSet,
		Payload: state.AccountFileSetPayload{AccountID: s.accountID, Key: key, Value: value},
	})
	return nil
}

// Subscribe registers fn for "close".
func (s *DataStore) Subscribe(event string, fn func(any)) (func(), error) {
	return s.proxy.Subscribe(event, fn)
}

// Close implements bridge.Closer.
func (s *DataStore) Close() { s.proxy.Close() }

// CurrencyConfig exposes one currency plugin to the account.
type CurrencyConfig struct {
	proxy *bridge.Proxy[plugin.CurrencyPlugin]
}

// Name returns the plugin name.
func (c *CurrencyConfig) Name() (string, error) {
	p, err := c.proxy.Get()
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

// WalletType returns the wallet type the plugin handles.
func (c *CurrencyConfig) WalletType() (string, error) {
	p, err := c.proxy.Get()
	if err != nil {
		return "", err
	}
	return p.WalletType(), nil
}

// Subscribe registers fn for "close".
func (c *CurrencyConfig) Subscribe(event string, fn func(any)) (func(), error) {
	return c.proxy.Subscribe(event, fn)
}

// Close implements bridge.Closer.
func (c *CurrencyConfig) Close() { c.proxy.Close() }

// SwapConfig exposes one swap plugin's tools to the account.
type SwapConfig struct {
	name  string
	proxy *bridge.Proxy[plugin.SwapTools]
}

// Name returns the plugin name.
func (c *SwapConfig) Name() string { return c.name }

// Tools returns the account's swap tools.
func (c *SwapConfig) Tools() (plugin.SwapTools, error) {
	return c.proxy.Get()
}

// Subscribe registers fn for "close".
func (c *SwapConfig) Subscribe(event string, fn func(any)) (func(), error) {
	return c.proxy.Subscribe(event, fn)
}

// Close implements bridge.Closer.
func (c *SwapConfig) Close() { c.proxy.Close() }
