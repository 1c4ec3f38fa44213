package core

import (
	"context"
	"fmt"

	"github.com/roach88/walletcore/internal/bridge"
	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/state"
)

// loadCurrencyPlugins records the resolved currency plugin set once. Account
// logins wait for it.
func loadCurrencyPlugins(_ context.Context, in *engine.Input[RootProps], p RootProps) error {
	p.d.dispatch(state.Action{
		Type:    state.ActionCurrencyPluginsLoaded,
		Payload: state.CurrencyPluginsLoadedPayload{Names: p.d.plugins.CurrencyNames()},
	})
	plugins := append([]plugin.CurrencyPlugin{}, p.d.plugins.Currency...)
	in.Publish(plugins)
	return engine.StopUpdates
}

func walletWorker() engine.Worker[WalletProps] {
	return engine.Leaf(newWalletNode)
}

// walletNode runs the currency engine for one active wallet and publishes
// its bridged Wallet.
type walletNode struct {
	in *engine.Input[WalletProps]

	d      *deps
	engine plugin.CurrencyEngine
	wallet *Wallet
	last   *state.CurrencyWallet
}

func newWalletNode(in *engine.Input[WalletProps]) engine.Node[WalletProps] {
	return &walletNode{in: in}
}

func (n *walletNode) Update(ctx context.Context, p WalletProps) error {
	if n.wallet != nil {
		if p.Wallet != n.last {
			n.last = p.Wallet
			n.wallet.refresh()
		}
		return nil
	}
	if p.AccountID == "" {
		return nil
	}
	n.d = p.d

	cp, ok := plugin.FindCurrency(p.d.plugins.Currency, p.Info.Type)
	if !ok {
		n.in.Report(&StateError{
			Op:        "currencyWallet",
			AccountID: p.AccountID,
			Err:       fmt.Errorf("%w %q", ErrNoPlugin, p.Info.Type),
		})
		return engine.StopUpdates
	}

	p.d.dispatch(state.Action{
		Type: state.ActionCurrencyWalletAdded,
		Payload: state.CurrencyWalletAddedPayload{
			WalletID:   p.ID,
			AccountID:  p.AccountID,
			Type:       p.Info.Type,
			PluginName: cp.Name(),
		},
	})

	eng, err := cp.MakeEngine(ctx, p.Info, plugin.EngineCallbacks{
		OnTransactions: func(txs []plugin.Tx) { n.onTransactions(p.ID, txs) },
	})
	if err != nil {
		return fmt.Errorf("make engine %s: %w", cp.Name(), err)
	}
	if err := eng.Start(ctx); err != nil {
		eng.Stop()
		return fmt.Errorf("start engine %s: %w", cp.Name(), err)
	}
	n.engine = eng
	n.last = p.Wallet
	n.wallet = newWallet(p.d, p.ID)
	n.in.Publish(n.wallet)
	n.in.Logger().Debug("wallet engine started", "wallet", p.ID, "plugin", cp.Name())
	return nil
}

func (n *walletNode) onTransactions(walletID string, txs []plugin.Tx) {
	if !n.in.Alive() || len(txs) == 0 {
		return
	}
	out := make([]state.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = state.Transaction{TxID: tx.TxID, Currency: tx.Currency, Amount: tx.Amount, Date: tx.Date}
	}
	n.d.dispatch(state.Action{
		Type:    state.ActionCurrencyWalletTxsAdded,
		Payload: state.CurrencyWalletTxsPayload{WalletID: walletID, Txs: out},
	})
}

func (n *walletNode) Destroy() {
	if n.wallet != nil {
		n.wallet.refresh()
		n.wallet.Close()
	}
	if n.engine != nil {
		n.engine.Stop()
	}
}

// WalletView is an immutable picture of one currency wallet.
type WalletView struct {
	ID         string
	AccountID  string
	Type       string
	PluginName string
	Name       string
	TxCount    int
}

// Wallet is the bridged API of one running currency wallet.
type Wallet struct {
	d     *deps
	id    string
	proxy *bridge.Proxy[WalletView]
}

func newWallet(d *deps, id string) *Wallet {
	w := &Wallet{d: d, id: id}
	w.proxy = bridge.New("wallet:"+id, w.view())
	return w
}

func (w *Wallet) view() WalletView {
	cw, ok := w.d.snapshot().Wallets.Get(w.id)
	if !ok {
		return WalletView{ID: w.id}
	}
	return WalletView{
		ID:         cw.ID,
		AccountID:  cw.AccountID,
		Type:       cw.Type,
		PluginName: cw.PluginName,
		Name:       cw.Name,
		TxCount:    cw.Txs.Len(),
	}
}

func (w *Wallet) refresh() {
	w.proxy.Update(w.view())
}

func (w *Wallet) state(op string) (*state.CurrencyWallet, error) {
	if w.proxy.Closed() {
		return nil, bridge.ErrDisposed
	}
	cw, ok := w.d.snapshot().Wallets.Get(w.id)
	if !ok {
		return nil, &StateError{Op: op, Err: fmt.Errorf("wallet %s: %w", w.id, ErrLoggedOut)}
	}
	return cw, nil
}

// ID returns the wallet id.
func (w *Wallet) ID() string { return w.id }

// View returns the latest refreshed view.
func (w *Wallet) View() (WalletView, error) { return w.proxy.Get() }

// Watch calls fn with every refreshed view.
func (w *Wallet) Watch(fn func(WalletView)) (func(), error) { return w.proxy.Watch(fn) }

// Subscribe registers fn for "update" or "close".
func (w *Wallet) Subscribe(event string, fn func(any)) (func(), error) {
	return w.proxy.Subscribe(event, fn)
}

// Close implements bridge.Closer.
func (w *Wallet) Close() { w.proxy.Close() }

// Closed reports whether the wallet left the tree.
func (w *Wallet) Closed() bool { return w.proxy.Closed() }

// Name returns the user-visible wallet name.
func (w *Wallet) Name() (string, error) {
	cw, err := w.state("name")
	if err != nil {
		return "", err
	}
	return cw.Name, nil
}

// Rename sets the wallet name.
func (w *Wallet) Rename(name string) error {
	if _, err := w.state("rename"); err != nil {
		return err
	}
	w.d.dispatch(state.Action{
		Type:    state.ActionCurrencyWalletNameSet,
		Payload: state.CurrencyWalletNamePayload{WalletID: w.id, Name: name},
	})
	return nil
}

// Transactions lists the wallet's transactions in arrival order.
func (w *Wallet) Transactions() ([]state.Transaction, error) {
	cw, err := w.state("transactions")
	if err != nil {
		return nil, err
	}
	out := make([]state.Transaction, 0, cw.Txs.Len())
	for _, tx := range cw.Txs.All {
		out = append(out, *tx)
	}
	return out, nil
}

// SaveTxMetadata stores user metadata for one transaction.
func (w *Wallet) SaveTxMetadata(txid, json string) error {
	if _, err := w.state("saveTxMetadata"); err != nil {
		return err
	}
	w.d.dispatch(state.Action{
		Type:    state.ActionCurrencyWalletFileSet,
		Payload: state.CurrencyWalletFilePayload{WalletID: w.id, TxID: txid, JSON: json},
	})
	return nil
}

// TxMetadata returns the metadata saved for txid.
func (w *Wallet) TxMetadata(txid string) (string, bool, error) {
	cw, err := w.state("txMetadata")
	if err != nil {
		return "", false, err
	}
	f, ok := cw.Files.Get(txid)
	if !ok {
		return "", false, nil
	}
	return f.JSON, true, nil
}

// lookupWallets returns the account's published wallet map.
func lookupWallets(out engine.Output, accountID string) map[string]*Wallet {
	m, _ := engine.LookupAs[map[string]*Wallet](out, "accounts", accountID, "currencyWallets")
	return m
}
