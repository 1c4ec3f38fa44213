package state

import (
	"github.com/roach88/walletcore/internal/keys"
)

// Snapshot is the single immutable state value. Reducers never mutate a
// Snapshot or anything reachable from it; they build a new one, sharing every
// unchanged subtree by reference.
type Snapshot struct {
	Context  *Context                `json:"context,omitempty"`
	Accounts *Table[*Account]        `json:"accounts,omitempty"`
	Wallets  *Table[*CurrencyWallet] `json:"wallets,omitempty"`
	Storage  *Table[*StorageWallet]  `json:"storage,omitempty"`
	Exchange *Table[*RatePair]       `json:"exchange,omitempty"`
	Plugins  *Plugins                `json:"plugins,omitempty"`
}

// Empty returns the initial snapshot: every table present and empty.
func Empty() *Snapshot {
	return &Snapshot{
		Context:  &Context{},
		Accounts: &Table[*Account]{},
		Wallets:  &Table[*CurrencyWallet]{},
		Storage:  &Table[*StorageWallet]{},
		Exchange: &Table[*RatePair]{},
		Plugins:  &Plugins{},
	}
}

// Context holds the startup options recorded by INIT.
type Context struct {
	APIKey     string `json:"apiKey,omitempty"`
	AppID      string `json:"appId,omitempty"`
	AuthServer string `json:"authServer,omitempty"`
	HideKeys   bool   `json:"hideKeys,omitempty"`
}

// AccountStatus tracks login convergence for one account.
type AccountStatus string

const (
	AccountLoading AccountStatus = "loading"
	AccountReady   AccountStatus = "ready"
	AccountFailed  AccountStatus = "failed"
)

// WalletState is the per-wallet user preference record.
type WalletState struct {
	Archived  bool `json:"archived,omitempty"`
	Deleted   bool `json:"deleted,omitempty"`
	SortIndex int  `json:"sortIndex,omitempty"`
}

// Account is one logged-in account.
type Account struct {
	ID        string        `json:"id"`
	Username  string        `json:"username,omitempty"`
	AppID     string        `json:"appId,omitempty"`
	LoginType string        `json:"loginType,omitempty"`
	Login     keys.Login    `json:"login"`
	Status    AccountStatus `json:"status"`
	LoadError string        `json:"loadError,omitempty"`

	// WalletInfos holds every key the account owns, storage repos included.
	WalletInfos  []keys.KeyInfo         `json:"walletInfos,omitempty"`
	WalletStates map[string]WalletState `json:"walletStates,omitempty"`

	// Derived from WalletInfos and WalletStates by the reducer.
	ActiveWalletIDs   []string `json:"activeWalletIds,omitempty"`
	ArchivedWalletIDs []string `json:"archivedWalletIds,omitempty"`

	Files       map[string]string `json:"files,omitempty"`
	SwapPlugins []string          `json:"swapPlugins,omitempty"`
}

// StorageInfos returns the account's own encrypted repositories.
func (a *Account) StorageInfos() []keys.KeyInfo {
	var out []keys.KeyInfo
	for _, info := range a.WalletInfos {
		if !keys.IsCurrencyType(info.Type) {
			out = append(out, info)
		}
	}
	return out
}

// CurrencyWallet is the reduced state of one active currency wallet.
type CurrencyWallet struct {
	ID         string               `json:"id"`
	AccountID  string               `json:"accountId"`
	Type       string               `json:"type"`
	PluginName string               `json:"pluginName,omitempty"`
	Name       string               `json:"name,omitempty"`
	Txs        *Table[*Transaction] `json:"txs,omitempty"`
	Files      *Table[*WalletFile]  `json:"files,omitempty"`
}

// Transaction is one wallet transaction. Amounts are decimal strings.
type Transaction struct {
	TxID     string `json:"txid"`
	Currency string `json:"currency,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Date     int64  `json:"date,omitempty"`
}

// WalletFile is the user metadata saved alongside a transaction.
type WalletFile struct {
	TxID string `json:"txid"`
	JSON string `json:"json,omitempty"`
}

// StorageWallet is one attached encrypted repository.
type StorageWallet struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Type      string `json:"type"`
	Revision  int64  `json:"revision,omitempty"`
}

// RatePair is one exchange rate quote. Rate is a decimal string.
type RatePair struct {
	Base      string `json:"base"`
	Quote     string `json:"quote"`
	Rate      string `json:"rate"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Key identifies a pair within the exchange table.
func (p RatePair) Key() string {
	return p.Source + ":" + p.Base + "/" + p.Quote
}

// Plugins records which plugin sets have resolved.
type Plugins struct {
	CurrencyLoaded bool     `json:"currencyLoaded,omitempty"`
	CurrencyNames  []string `json:"currencyNames,omitempty"`
}
