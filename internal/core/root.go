package core

import (
	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/keys"
	"github.com/roach88/walletcore/internal/state"
)

// RootProps is what every node sees: the current snapshot and the output
// mirror from the previous pass.
type RootProps struct {
	State  *state.Snapshot
	Output engine.Output
	d      *deps
}

// AccountProps narrows RootProps to one account.
type AccountProps struct {
	RootProps
	ID   string
	Self *state.Account
}

// WalletProps narrows RootProps to one currency wallet.
type WalletProps struct {
	ID        string
	AccountID string
	Info      keys.KeyInfo
	Wallet    *state.CurrencyWallet
	d         *deps
}

func rootWorker() engine.Worker[RootProps] {
	return engine.Combine(map[string]engine.Worker[RootProps]{
		"accounts": engine.Collection(accountIDs, accountProps, accountWorker()),
		"currency": engine.Combine(map[string]engine.Worker[RootProps]{
			"plugins": engine.Func(loadCurrencyPlugins),
			"wallets": engine.Collection(activeWalletIDs, walletProps, walletWorker()),
		}),
		"exchange": engine.Combine(map[string]engine.Worker[RootProps]{
			"plugins": engine.Func(loadRatePlugins),
			"update":  engine.Leaf(newRatePoller),
		}),
	})
}

func accountWorker() engine.Worker[AccountProps] {
	return engine.Combine(map[string]engine.Worker[AccountProps]{
		"api":             engine.Leaf(newAccountNode),
		"watcher":         engine.Leaf(newWatcher),
		"currencyWallets": engine.Leaf(newWalletList),
	})
}

func rootProps(d *deps) func(*state.Snapshot, engine.Output) RootProps {
	return func(s *state.Snapshot, out engine.Output) RootProps {
		return RootProps{State: s, Output: out, d: d}
	}
}

func accountIDs(p RootProps) []string {
	return p.State.Accounts.IDs()
}

func accountProps(p RootProps, id string) AccountProps {
	self, _ := p.State.Accounts.Get(id)
	return AccountProps{RootProps: p, ID: id, Self: self}
}

// activeWalletIDs lists every active currency wallet across accounts, in
// account order.
func activeWalletIDs(p RootProps) []string {
	var ids []string
	for _, acct := range p.State.Accounts.All {
		ids = append(ids, acct.ActiveWalletIDs...)
	}
	return ids
}

func walletProps(p RootProps, id string) WalletProps {
	out := WalletProps{ID: id, d: p.d}
	for accountID, acct := range p.State.Accounts.All {
		for _, info := range acct.WalletInfos {
			if info.ID == id {
				out.AccountID = accountID
				out.Info = info
				break
			}
		}
		if out.AccountID != "" {
			break
		}
	}
	out.Wallet, _ = p.State.Wallets.Get(id)
	return out
}

// lookupAccount returns the published Account for id, if login finished.
func lookupAccount(out engine.Output, id string) (*Account, bool) {
	return engine.LookupAs[*Account](out, "accounts", id, "api")
}
