package core

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/walletcore/internal/config"
	"github.com/roach88/walletcore/internal/engine"
	"github.com/roach88/walletcore/internal/plugin"
	"github.com/roach88/walletcore/internal/state"
	"github.com/roach88/walletcore/internal/telemetry"
)

// deps is shared by every node of one Core. It never changes after New, so
// nodes may hold it freely.
type deps struct {
	cfg       config.Config
	store     *state.Store
	plugins   plugin.Set
	login     LoginServer
	storage   StorageSync
	callbacks Callbacks
	logger    *slog.Logger
	rand      io.Reader
	now       func() time.Time
	syncEvery time.Duration
	rateEvery time.Duration

	// report is the error sink. output reads the live mirror.
	report func(error)
	output func() engine.Output
}

func (d *deps) dispatch(a state.Action) *state.Snapshot {
	telemetry.DispatchTotal.WithLabelValues(string(a.Type)).Inc()
	return d.store.Dispatch(a)
}

func (d *deps) snapshot() *state.Snapshot {
	return d.store.Snapshot()
}

func (d *deps) account(id string) (*state.Account, bool) {
	return d.snapshot().Accounts.Get(id)
}

func (d *deps) hideKeys() bool {
	ctx := d.snapshot().Context
	return ctx != nil && ctx.HideKeys
}

// notify runs a host callback, reporting a panic as a BackgroundFault.
func (d *deps) notify(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.report(&BackgroundFault{Source: "callback", Plugin: name, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	fn()
}

func (d *deps) dataChanged(accountID string) {
	if cb := d.callbacks.OnDataChanged; cb != nil {
		d.notify("onDataChanged", func() { cb(accountID) })
	}
}

func (d *deps) keyListChanged(accountID string) {
	if cb := d.callbacks.OnKeyListChanged; cb != nil {
		d.notify("onKeyListChanged", func() { cb(accountID) })
	}
}

func (d *deps) loggedOut(accountID string) {
	if cb := d.callbacks.OnLoggedOut; cb != nil {
		d.notify("onLoggedOut", func() { cb(accountID) })
	}
}

func (d *deps) exchangeUpdate() {
	if cb := d.callbacks.OnExchangeUpdate; cb != nil {
		d.notify("onExchangeUpdate", cb)
	}
}
