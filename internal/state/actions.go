package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/walletcore/internal/keys"
)

// ActionType tags an Action. The set is closed: Reduce ignores anything else.
type ActionType string

const (
	ActionInit                     ActionType = "INIT"
	ActionLogin                    ActionType = "LOGIN"
	ActionLogout                   ActionType = "LOGOUT"
	ActionAccountKeysLoaded        ActionType = "ACCOUNT_KEYS_LOADED"
	ActionAccountFilesLoaded       ActionType = "ACCOUNT_FILES_LOADED"
	ActionAccountKeyAdded          ActionType = "ACCOUNT_KEY_ADDED"
	ActionAccountFileSet           ActionType = "ACCOUNT_FILE_SET"
	ActionAccountWalletStatesSet   ActionType = "ACCOUNT_WALLET_STATES_CHANGED"
	ActionAccountSwapPluginsLoaded ActionType = "ACCOUNT_SWAP_PLUGINS_LOADED"
	ActionAccountLoadFailed        ActionType = "ACCOUNT_LOAD_FAILED"
	ActionCurrencyPluginsLoaded    ActionType = "CURRENCY_PLUGINS_LOADED"
	ActionCurrencyWalletAdded      ActionType = "CURRENCY_WALLET_ADDED"
	ActionCurrencyWalletNameSet    ActionType = "CURRENCY_WALLET_NAME_CHANGED"
	ActionCurrencyWalletTxsAdded   ActionType = "CURRENCY_WALLET_TXS_ADDED"
	ActionCurrencyWalletFileSet    ActionType = "CURRENCY_WALLET_FILE_SET"
	ActionCurrencyWalletFilesSet   ActionType = "CURRENCY_WALLET_FILES_SET"
	ActionExchangePairsFetched     ActionType = "EXCHANGE_PAIRS_FETCHED"
	ActionStorageWalletAdded       ActionType = "STORAGE_WALLET_ADDED"
	ActionStorageWalletSynced      ActionType = "STORAGE_WALLET_SYNCED"
)

// Action is one state transition request. Payload is the concrete payload
// struct registered for Type (a value, not a pointer).
type Action struct {
	Type    ActionType
	Payload any
}

// Payloads.

type InitPayload struct {
	APIKey     string `json:"apiKey"`
	AppID      string `json:"appId"`
	AuthServer string `json:"authServer"`
	HideKeys   bool   `json:"hideKeys"`
}

type LoginPayload struct {
	AccountID    string                 `json:"accountId"`
	Username     string                 `json:"username"`
	AppID        string                 `json:"appId"`
	LoginType    string                 `json:"loginType"`
	Login        keys.Login             `json:"login"`
	WalletInfos  []keys.KeyInfo         `json:"walletInfos,omitempty"`
	WalletStates map[string]WalletState `json:"walletStates,omitempty"`
}

type LogoutPayload struct {
	AccountID string `json:"accountId"`
}

type AccountKeysLoadedPayload struct {
	AccountID    string                 `json:"accountId"`
	WalletInfos  []keys.KeyInfo         `json:"walletInfos,omitempty"`
	WalletStates map[string]WalletState `json:"walletStates,omitempty"`
}

type AccountFilesLoadedPayload struct {
	AccountID    string                 `json:"accountId"`
	Files        map[string]string      `json:"files,omitempty"`
	WalletStates map[string]WalletState `json:"walletStates,omitempty"`
}

// AccountKeyAddedPayload appends one key to the account. A key whose id the
// account already holds replaces it in place.
type AccountKeyAddedPayload struct {
	AccountID  string       `json:"accountId"`
	WalletInfo keys.KeyInfo `json:"walletInfo"`
}

// AccountFileSetPayload writes one account file.
type AccountFileSetPayload struct {
	AccountID string `json:"accountId"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// AccountWalletStatesPayload merges per-wallet states into the account.
// Wallets not named keep their state.
type AccountWalletStatesPayload struct {
	AccountID string                 `json:"accountId"`
	Changes   map[string]WalletState `json:"changes,omitempty"`
}

type AccountSwapPluginsLoadedPayload struct {
	AccountID string   `json:"accountId"`
	Plugins   []string `json:"plugins,omitempty"`
}

type AccountLoadFailedPayload struct {
	AccountID string `json:"accountId"`
	Error     string `json:"error"`
}

type CurrencyPluginsLoadedPayload struct {
	Names []string `json:"names,omitempty"`
}

type CurrencyWalletAddedPayload struct {
	WalletID   string `json:"walletId"`
	AccountID  string `json:"accountId"`
	Type       string `json:"type"`
	PluginName string `json:"pluginName"`
	Name       string `json:"name"`
}

type CurrencyWalletNamePayload struct {
	WalletID string `json:"walletId"`
	Name     string `json:"name"`
}

type CurrencyWalletTxsPayload struct {
	WalletID string        `json:"walletId"`
	Txs      []Transaction `json:"txs,omitempty"`
}

type CurrencyWalletFilePayload struct {
	WalletID string `json:"walletId"`
	TxID     string `json:"txid"`
	JSON     string `json:"json"`
}

type CurrencyWalletFilesPayload struct {
	WalletID string       `json:"walletId"`
	Files    []WalletFile `json:"files,omitempty"`
}

type ExchangePairsPayload struct {
	Pairs []RatePair `json:"pairs,omitempty"`
}

type StorageWalletAddedPayload struct {
	AccountID string `json:"accountId"`
	WalletID  string `json:"walletId"`
	Type      string `json:"type"`
}

type StorageWalletSyncedPayload struct {
	WalletID string   `json:"walletId"`
	Changes  []string `json:"changes,omitempty"`
}

// payloadDecoders maps each tag to a decoder for its payload struct. It is
// written only at init.
var payloadDecoders = map[ActionType]func([]byte, bool) (any, error){
	ActionInit:                     decoder[InitPayload](),
	ActionLogin:                    decoder[LoginPayload](),
	ActionLogout:                   decoder[LogoutPayload](),
	ActionAccountKeysLoaded:        decoder[AccountKeysLoadedPayload](),
	ActionAccountFilesLoaded:       decoder[AccountFilesLoadedPayload](),
	ActionAccountKeyAdded:          decoder[AccountKeyAddedPayload](),
	ActionAccountFileSet:           decoder[AccountFileSetPayload](),
	ActionAccountWalletStatesSet:   decoder[AccountWalletStatesPayload](),
	ActionAccountSwapPluginsLoaded: decoder[AccountSwapPluginsLoadedPayload](),
	ActionAccountLoadFailed:        decoder[AccountLoadFailedPayload](),
	ActionCurrencyPluginsLoaded:    decoder[CurrencyPluginsLoadedPayload](),
	ActionCurrencyWalletAdded:      decoder[CurrencyWalletAddedPayload](),
	ActionCurrencyWalletNameSet:    decoder[CurrencyWalletNamePayload](),
	ActionCurrencyWalletTxsAdded:   decoder[CurrencyWalletTxsPayload](),
	ActionCurrencyWalletFileSet:    decoder[CurrencyWalletFilePayload](),
	ActionCurrencyWalletFilesSet:   decoder[CurrencyWalletFilesPayload](),
	ActionExchangePairsFetched:     decoder[ExchangePairsPayload](),
	ActionStorageWalletAdded:       decoder[StorageWalletAddedPayload](),
	ActionStorageWalletSynced:      decoder[StorageWalletSyncedPayload](),
}

func decoder[T any]() func([]byte, bool) (any, error) {
	return func(data []byte, strict bool) (any, error) {
		var p T
		dec := json.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

// ActionTypes returns every known tag in sorted order.
func ActionTypes() []ActionType {
	out := make([]ActionType, 0, len(payloadDecoders))
	for t := range payloadDecoders {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// KnownAction reports whether t belongs to the closed tag set.
func KnownAction(t ActionType) bool {
	_, ok := payloadDecoders[t]
	return ok
}

// EncodePayload serializes a's payload to JSON.
func EncodePayload(a Action) ([]byte, error) {
	if a.Payload == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", a.Type, err)
	}
	return data, nil
}

// DecodeAction rebuilds an Action from its tag and JSON payload.
func DecodeAction(t ActionType, payload []byte) (Action, error) {
	return decodeAction(t, payload, false)
}

// DecodeActionStrict is DecodeAction but rejects payload fields the tag's
// payload struct does not declare.
func DecodeActionStrict(t ActionType, payload []byte) (Action, error) {
	return decodeAction(t, payload, true)
}

func decodeAction(t ActionType, payload []byte, strict bool) (Action, error) {
	dec, ok := payloadDecoders[t]
	if !ok {
		return Action{}, fmt.Errorf("unknown action type %q", t)
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	p, err := dec(payload, strict)
	if err != nil {
		return Action{}, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return Action{Type: t, Payload: p}, nil
}
