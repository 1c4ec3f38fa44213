package state

import (
	"maps"
	"slices"
	"sort"

	"github.com/roach88/walletcore/internal/keys"
)

// Reducer computes the next snapshot. It must be pure and total: unknown
// actions return the input pointer unchanged.
type Reducer func(*Snapshot, Action) *Snapshot

// Reduce is the root reducer. Each slice reducer returns its input pointer
// when the action does not touch it, and Reduce returns s itself when no
// slice changed.
func Reduce(s *Snapshot, a Action) *Snapshot {
	if !KnownAction(a.Type) {
		return s
	}
	if s == nil {
		s = Empty()
	}

	next := Snapshot{
		Context:  reduceContext(s.Context, a),
		Accounts: reduceAccounts(s.Accounts, a),
		Wallets:  reduceWallets(s.Wallets, a),
		Storage:  reduceStorage(s.Storage, a),
		Exchange: reduceExchange(s.Exchange, a),
		Plugins:  reducePlugins(s.Plugins, a),
	}
	if next == *s {
		return s
	}
	return &next
}

// payloadAs extracts a typed payload, accepting either T or *T.
func payloadAs[T any](a Action) (T, bool) {
	switch p := a.Payload.(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}

func reduceContext(prev *Context, a Action) *Context {
	if a.Type != ActionInit {
		return prev
	}
	p, ok := payloadAs[InitPayload](a)
	if !ok {
		return prev
	}
	next := &Context{APIKey: p.APIKey, AppID: p.AppID, AuthServer: p.AuthServer, HideKeys: p.HideKeys}
	if prev != nil && *prev == *next {
		return prev
	}
	return next
}

func reduceAccounts(prev *Table[*Account], a Action) *Table[*Account] {
	switch a.Type {
	case ActionLogin:
		p, ok := payloadAs[LoginPayload](a)
		if !ok || p.AccountID == "" {
			return prev
		}
		acct := &Account{
			ID:           p.AccountID,
			Username:     p.Username,
			AppID:        p.AppID,
			LoginType:    p.LoginType,
			Login:        p.Login,
			Status:       AccountLoading,
			WalletInfos:  p.WalletInfos,
			WalletStates: p.WalletStates,
		}
		deriveWalletLists(acct)
		return prev.Set(p.AccountID, acct)

	case ActionLogout:
		p, ok := payloadAs[LogoutPayload](a)
		if !ok {
			return prev
		}
		return prev.Delete(p.AccountID)

	case ActionAccountKeysLoaded:
		p, ok := payloadAs[AccountKeysLoadedPayload](a)
		if !ok {
			return prev
		}
		return updateAccount(prev, p.AccountID, func(acct *Account) bool {
			acct.WalletInfos = p.WalletInfos
			if p.WalletStates != nil {
				acct.WalletStates = p.WalletStates
			}
			deriveWalletLists(acct)
			return true
		})

	case ActionAccountFilesLoaded:
		p, ok := payloadAs[AccountFilesLoadedPayload](a)
		if !ok {
			return prev
		}
		return updateAccount(prev, p.AccountID, func(acct *Account) bool {
			changed := false
			if !maps.Equal(acct.Files, p.Files) {
				acct.Files = p.Files
				changed = true
			}
			if p.WalletStates != nil && !maps.Equal(acct.WalletStates, p.WalletStates) {
				acct.WalletStates = p.WalletStates
				deriveWalletLists(acct)
				changed = true
			}
			return changed
		})

	case ActionAccountKeyAdded:
		p, ok := payloadAs[AccountKeyAddedPayload](a)
		if !ok || p.WalletInfo.ID == "" {
			return prev
		}
		return updateAccount(prev, p.AccountID, func(acct *Account) bool {
			infos := slices.Clone(acct.WalletInfos)
			i := slices.IndexFunc(infos, func(info keys.KeyInfo) bool { return info.ID == p.WalletInfo.ID })
			if i >= 0 {
				if infos[i].Type == p.WalletInfo.Type && maps.Equal(infos[i].Keys, p.WalletInfo.Keys) {
					return false
				}
				infos[i] = p.WalletInfo
			} else {
				infos = append(infos, p.WalletInfo)
			}
			acct.WalletInfos = infos
			deriveWalletLists(acct)
			return true
		})

	case ActionAccountFileSet:
		p, ok := payloadAs[AccountFileSetPayload](a)
		if !ok || p.Key == "" {
			return prev
		}
		return updateAccount(prev, p.AccountID, func(acct *Account) bool {
			if v, ok := acct.Files[p.Key]; ok && v == p.Value {
				return false
			}
			files := make(map[string]string, len(acct.Files)+1)
			maps.Copy(files, acct.Files)
			files[p.Key] = p.Value
			acct.Files = files
			return true
		})

	case ActionAccountWalletStatesSet:
		p, ok := payloadAs[AccountWalletStatesPayload](a)
		if !ok {
			return prev
		}
		return updateAccount(prev, p.AccountID, func(acct *Account) bool {
			changed := false
			for id, st := range p.Changes {
				if old, ok := acct.WalletStates[id]; !ok || old != st {
					changed = true
					break
				}
			}
			if !changed {
				return false
			}
			states := make(map[string]WalletState, len(acct.WalletStates)+len(p.Changes))
			maps.Copy(states, acct.WalletStates)
			maps.Copy(states, p.Changes)
			acct.WalletStates = states
			deriveWalletLists(acct)
			return true
		})

	case ActionAccountSwapPluginsLoaded:
		p, ok := payloadAs[AccountSwapPluginsLoadedPayload](a)
		if !ok {
			return prev
		}
		return updateAccount(prev, p.AccountID, func(acct *Account) bool {
			acct.SwapPlugins = p.Plugins
			acct.Status = AccountReady
			acct.LoadError = ""
			return true
		})

	case ActionAccountLoadFailed:
		p, ok := payloadAs[AccountLoadFailedPayload](a)
		if !ok {
			return prev
		}
		return updateAccount(prev, p.AccountID, func(acct *Account) bool {
			acct.Status = AccountFailed
			acct.LoadError = p.Error
			return true
		})
	}
	return prev
}

// updateAccount applies fn to a copy of the account and keeps the copy only
// if fn reports a change. Actions for accounts that are no longer logged in
// are dropped.
func updateAccount(prev *Table[*Account], id string, fn func(*Account) bool) *Table[*Account] {
	old, ok := prev.Get(id)
	if !ok {
		return prev
	}
	acct := *old
	if !fn(&acct) {
		return prev
	}
	return prev.Set(id, &acct)
}

// deriveWalletLists recomputes the active and archived currency wallet ids,
// ordered by sort index and then by key order. Unchanged lists keep their
// previous backing array.
func deriveWalletLists(acct *Account) {
	type entry struct {
		id    string
		state WalletState
	}
	var entries []entry
	for _, info := range acct.WalletInfos {
		if !keys.IsCurrencyType(info.Type) {
			continue
		}
		st := acct.WalletStates[info.ID]
		if st.Deleted {
			continue
		}
		entries = append(entries, entry{id: info.ID, state: st})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].state.SortIndex < entries[j].state.SortIndex
	})

	var active, archived []string
	for _, e := range entries {
		if e.state.Archived {
			archived = append(archived, e.id)
		} else {
			active = append(active, e.id)
		}
	}

	if !slices.Equal(acct.ActiveWalletIDs, active) {
		acct.ActiveWalletIDs = active
	}
	if !slices.Equal(acct.ArchivedWalletIDs, archived) {
		acct.ArchivedWalletIDs = archived
	}
}

func reduceStorage(prev *Table[*StorageWallet], a Action) *Table[*StorageWallet] {
	switch a.Type {
	case ActionStorageWalletAdded:
		p, ok := payloadAs[StorageWalletAddedPayload](a)
		if !ok || prev.Has(p.WalletID) {
			return prev
		}
		return prev.Set(p.WalletID, &StorageWallet{ID: p.WalletID, AccountID: p.AccountID, Type: p.Type})

	case ActionStorageWalletSynced:
		p, ok := payloadAs[StorageWalletSyncedPayload](a)
		if !ok || len(p.Changes) == 0 {
			return prev
		}
		old, ok := prev.Get(p.WalletID)
		if !ok {
			return prev
		}
		sw := *old
		sw.Revision++
		return prev.Set(p.WalletID, &sw)

	case ActionLogout:
		p, ok := payloadAs[LogoutPayload](a)
		if !ok {
			return prev
		}
		return prev.DeleteWhere(func(_ string, sw *StorageWallet) bool {
			return sw.AccountID == p.AccountID
		})
	}
	return prev
}

func reduceExchange(prev *Table[*RatePair], a Action) *Table[*RatePair] {
	if a.Type != ActionExchangePairsFetched {
		return prev
	}
	p, ok := payloadAs[ExchangePairsPayload](a)
	if !ok {
		return prev
	}

	next := prev
	for _, pair := range p.Pairs {
		if old, ok := next.Get(pair.Key()); ok && *old == pair {
			continue
		}
		pair := pair
		next = next.Set(pair.Key(), &pair)
	}
	return next
}

func reducePlugins(prev *Plugins, a Action) *Plugins {
	if a.Type != ActionCurrencyPluginsLoaded {
		return prev
	}
	p, ok := payloadAs[CurrencyPluginsLoadedPayload](a)
	if !ok {
		return prev
	}
	if prev != nil && prev.CurrencyLoaded && slices.Equal(prev.CurrencyNames, p.Names) {
		return prev
	}
	return &Plugins{CurrencyLoaded: true, CurrencyNames: p.Names}
}
