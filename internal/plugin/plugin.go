// Package plugin defines the contracts for currency, swap and rate plugins,
// and a registry that resolves configured plugin names once per process.
package plugin

import (
	"context"

	"github.com/roach88/walletcore/internal/keys"
)

// CurrencyPlugin creates keys and engines for one wallet type.
type CurrencyPlugin interface {
	// Name is the plugin name used in configuration, e.g. "bitcoin".
	Name() string

	// WalletType is the key type this plugin handles, e.g. "wallet:bitcoin".
	WalletType() string

	CreatePrivateKey(ctx context.Context, walletType string) (map[string]string, error)
	MakeEngine(ctx context.Context, info keys.KeyInfo, cb EngineCallbacks) (CurrencyEngine, error)
}

// CurrencyEngine is a running wallet engine.
type CurrencyEngine interface {
	Start(ctx context.Context) error
	Stop()
}

// EngineCallbacks is how an engine reports back. Callbacks may be invoked
// from any goroutine.
type EngineCallbacks struct {
	OnTransactions func(txs []Tx)
}

// Tx is a transaction as reported by an engine. Amount is a decimal string.
type Tx struct {
	TxID     string
	Currency string
	Amount   string
	Date     int64
}

// SwapPlugin provides exchange tools for an account.
type SwapPlugin interface {
	Name() string
	MakeTools(ctx context.Context, opts SwapOptions) (SwapTools, error)
}

// SwapOptions is passed to SwapPlugin.MakeTools.
type SwapOptions struct {
	AccountID   string
	InitOptions map[string]string
}

// SwapTools is the per-account handle a swap plugin returns.
type SwapTools interface {
	Close()
}

// RatePlugin fetches exchange rates.
type RatePlugin interface {
	Name() string
	FetchRates(ctx context.Context, pairs []Pair) ([]Rate, error)
}

// Pair is a requested conversion.
type Pair struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Rate is one quote from a rate plugin.
type Rate struct {
	From string
	To   string
	Rate float64
}

// DefaultPairs are fetched when no pairs are configured.
func DefaultPairs() []Pair {
	return []Pair{
		{From: "BTC", To: "iso:EUR"},
		{From: "BTC", To: "iso:USD"},
		{From: "ETH", To: "iso:EUR"},
		{From: "ETH", To: "iso:USD"},
	}
}

// FindCurrency returns the plugin handling walletType.
func FindCurrency(plugins []CurrencyPlugin, walletType string) (CurrencyPlugin, bool) {
	for _, p := range plugins {
		if p.WalletType() == walletType {
			return p, true
		}
	}
	return nil, false
}
