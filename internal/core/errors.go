package core

import (
	"errors"
	"fmt"

	"github.com/roach88/walletcore/internal/config"
)

// ConfigError is returned by New for an unusable configuration.
type ConfigError = config.ConfigError

// Sentinels carried by *StateError.
var (
	ErrLoggedOut  = errors.New("account is logged out")
	ErrKeysHidden = errors.New("not available when hideKeys is enabled")
	ErrNoPlugin   = errors.New("no plugin for wallet type")
	ErrNoRate     = errors.New("no exchange rate")
)

// StateError is returned to the caller of an account method when the
// request conflicts with current state.
type StateError struct {
	Op        string
	AccountID string
	Err       error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.AccountID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.AccountID, e.Err)
}

// Unwrap returns the sentinel.
func (e *StateError) Unwrap() error {
	return e.Err
}

// BackgroundFault is a failure in work nobody is waiting on: a sync run, a
// rate fetch or a host callback. It only ever reaches the error sink.
type BackgroundFault struct {
	// Source is "sync", "rates", "wallet" or "callback".
	Source    string
	AccountID string
	Plugin    string
	Err       error
}

// Error implements the error interface.
func (e *BackgroundFault) Error() string {
	switch {
	case e.Plugin != "":
		return fmt.Sprintf("%s %s: %v", e.Source, e.Plugin, e.Err)
	case e.AccountID != "":
		return fmt.Sprintf("%s %s: %v", e.Source, e.AccountID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackgroundFault) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	return config.IsConfigError(err)
}

// IsStateError reports whether err is or wraps a *StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsBackgroundFault reports whether err is or wraps a *BackgroundFault.
func IsBackgroundFault(err error) bool {
	var bf *BackgroundFault
	return errors.As(err, &bf)
}

// reportEach hands every error joined into err to report separately.
func reportEach(err error, report func(error)) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			reportEach(e, report)
		}
		return
	}
	report(err)
}

func loggedOut(op, accountID string) error {
	return &StateError{Op: op, AccountID: accountID, Err: ErrLoggedOut}
}
