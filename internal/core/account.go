package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/walletcore/internal/bridge"
	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/state"
)

// accountNode converges one login: it attaches the account repositories,
// loads their files, builds swap tools, publishes the Account and then keeps
// the repositories synced until logout.
type accountNode struct {
	in *engine.Input[AccountProps]

	// Set by the single Update, read by Destroy and the sync task.
	d         *deps
	accountID string
	api       *Account
	sync      *engine.Task
	swapTools map[string]plugin.SwapTools
}

func newAccountNode(in *engine.Input[AccountProps]) engine.Node[AccountProps] {
	return &accountNode{in: in, swapTools: map[string]plugin.SwapTools{}}
}

func (n *accountNode) Update(ctx context.Context, p AccountProps) error {
	if p.Self == nil {
		return nil
	}
	// Wait for the currency plugins; the next dispatch brings new props.
	if p.State.Plugins == nil || !p.State.Plugins.CurrencyLoaded {
		return nil
	}

	n.d = p.d
	n.accountID = p.ID
	logger := n.in.Logger()

	if err := n.login(ctx, p); err != nil {
		if ctx.Err() != nil {
			return engine.StopUpdates
		}
		logger.Warn("login failed", "event", "login_failed", "account", p.ID, "error", err)
		n.d.dispatch(state.Action{
			Type:    state.ActionAccountLoadFailed,
			Payload: state.AccountLoadFailedPayload{AccountID: p.ID, Error: err.Error()},
		})
		return engine.StopUpdates
	}

	logger.Info("login complete", "event", "login_complete", "account", p.ID)
	return engine.StopUpdates
}

func (n *accountNode) login(ctx context.Context, p AccountProps) error {
	d := n.d
	for _, info := range p.Self.StorageInfos() {
		if err := d.storage.AddStorageWallet(ctx, info); err != nil {
			return fmt.Errorf("add storage wallet %s: %w", info.ID, err)
		}
		d.dispatch(state.Action{
			Type: state.ActionStorageWalletAdded,
			Payload: state.StorageWalletAddedPayload{
				AccountID: p.ID,
				WalletID:  info.ID,
				Type:      info.Type,
			},
		})
	}

	if err := n.loadFiles(ctx); err != nil {
		return err
	}

	names := make([]string, 0, len(d.plugins.Swap))
	for _, sp := range d.plugins.Swap {
		tools, err := sp.MakeTools(ctx, plugin.SwapOptions{
			AccountID:   p.ID,
			InitOptions: d.cfg.SwapPlugins[sp.Name()],
		})
		if err != nil {
			return fmt.Errorf("swap plugin %s: %w", sp.Name(), err)
		}
		n.swapTools[sp.Name()] = tools
		names = append(names, sp.Name())
	}
	slices.Sort(names)
	d.dispatch(state.Action{
		Type:    state.ActionAccountSwapPluginsLoaded,
		Payload: state.AccountSwapPluginsLoadedPayload{AccountID: p.ID, Plugins: names},
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	n.api = newAccount(d, p.ID, n.swapTools)
	n.in.Publish(n.api)

	n.sync = n.in.NewTask("sync", d.syncEvery, n.runSync, n.reportSync)
	n.sync.Start()
	return nil
}

// loadFiles reloads the account's cached projections and tells the host.
func (n *accountNode) loadFiles(ctx context.Context) error {
	files, err := n.d.storage.LoadWalletStates(ctx, n.accountID)
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	n.d.dispatch(state.Action{
		Type: state.ActionAccountFilesLoaded,
		Payload: state.AccountFilesLoadedPayload{
			AccountID:    n.accountID,
			Files:        files.Files,
			WalletStates: files.WalletStates,
		},
	})
	n.d.dataChanged(n.accountID)
	return nil
}

// runSync is one sync cycle. It reads the account from the store rather than
// from props: the node may already be detached while the timer fires.
//
// Every repository is synced concurrently. A failing repository does not
// stop the others, and changes seen by any repository are reloaded even
// when another one failed. Each failure comes back as its own
// BackgroundFault inside the joined error.
func (n *accountNode) runSync(ctx context.Context) error {
	acct, ok := n.d.account(n.accountID)
	if !ok {
		return nil
	}

	infos := acct.StorageInfos()
	changes := make([][]string, len(infos))
	errs := make([]error, len(infos))
	var wg sync.WaitGroup
	for i, info := range infos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			changes[i], errs[i] = n.d.storage.SyncStorageWallet(ctx, info.ID)
		}()
	}
	wg.Wait()

	var faults []error
	changed := false
	for i, info := range infos {
		if errs[i] != nil {
			faults = append(faults, &BackgroundFault{
				Source:    "sync",
				AccountID: n.accountID,
				Err:       fmt.Errorf("sync %s: %w", info.ID, errs[i]),
			})
			continue
		}
		n.d.dispatch(state.Action{
			Type:    state.ActionStorageWalletSynced,
			Payload: state.StorageWalletSyncedPayload{WalletID: info.ID, Changes: changes[i]},
		})
		if len(changes[i]) > 0 {
			changed = true
		}
	}

	if changed && n.in.Alive() {
		if err := n.loadFiles(ctx); err != nil {
			faults = append(faults, err)
		}
	}
	return errors.Join(faults...)
}

func (n *accountNode) reportSync(err error) {
	reportEach(err, func(err error) {
		var bf *BackgroundFault
		if !errors.As(err, &bf) {
			err = &BackgroundFault{Source: "sync", AccountID: n.accountID, Err: err}
		}
		n.in.Report(err)
	})
}

// Destroy publishes the terminal state, closes every proxy in a fixed order
// and then releases the timer and swap tools. Everything it touches was
// captured by Update; props are not consulted.
func (n *accountNode) Destroy() {
	api, task, tools, id := n.api, n.sync, n.swapTools, n.accountID

	if api != nil {
		api.refresh()
		api.close()
	}
	if task != nil {
		task.Stop()
	}
	for _, name := range slices.Sorted(maps.Keys(tools)) {
		if tools[name] != nil {
			tools[name].Close()
		}
	}
	if id != "" {
		n.d.loggedOut(id)
	}
}

// walletList publishes the account's active wallet proxies. It republishes
// when the id list changes or a member proxy is replaced.
type walletList struct {
	in      *engine.Input[AccountProps]
	lastIDs []string
	last    map[string]*Wallet
}

func newWalletList(in *engine.Input[AccountProps]) engine.Node[AccountProps] {
	return &walletList{in: in}
}

func (n *walletList) Update(_ context.Context, p AccountProps) error {
	if p.Self == nil {
		return nil
	}
	ids := p.Self.ActiveWalletIDs
	dirty := n.last == nil || !engine.Same(ids, n.lastIDs)
	n.lastIDs = ids

	wallets := engine.Lookup(p.Output, "currency", "wallets")
	out := make(map[string]*Wallet, len(ids))
	for _, id := range ids {
		w, ok := engine.LookupAs[*Wallet](wallets, id)
		if !ok {
			continue
		}
		out[id] = w
		if n.last[id] != w {
			dirty = true
		}
	}
	if len(out) != len(n.last) {
		dirty = true
	}

	if dirty {
		n.last = out
		n.in.Publish(out)
	}
	return nil
}

func (n *walletList) Destroy() {}

// watcher keeps the bridged Account fresh.
type watcher struct {
	in           *engine.Input[AccountProps]
	lastAPI      *Account
	lastSelf     *state.Account
	lastInfos    any
	lastWallets  any
	lastExchange *state.Table[*state.RatePair]
}

func newWatcher(in *engine.Input[AccountProps]) engine.Node[AccountProps] {
	return &watcher{in: in}
}

func (n *watcher) Update(_ context.Context, p AccountProps) error {
	if p.Self == nil {
		return nil
	}
	api, _ := lookupAccount(p.Output, p.ID)

	refresh := false
	if api != n.lastAPI {
		n.lastAPI = api
		refresh = true
	}
	if p.Self != n.lastSelf {
		n.lastSelf = p.Self
		refresh = true
	}

	if !engine.Same(n.lastInfos, p.Self.WalletInfos) {
		n.lastInfos = p.Self.WalletInfos
		p.d.keyListChanged(p.ID)
	}

	wallets := engine.Lookup(p.Output, "accounts", p.ID, "currencyWallets")
	if !engine.Same(n.lastWallets, wallets) {
		n.lastWallets = wallets
		refresh = true
	}

	if api != nil && refresh {
		api.refresh()
	}

	if p.State.Exchange != n.lastExchange {
		n.lastExchange = p.State.Exchange
		if api != nil {
			api.rates.proxy.Emit(bridge.EventUpdate, nil)
		}
	}
	return nil
}

func (n *watcher) Destroy() {}
