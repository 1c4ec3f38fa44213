package core

import (
	"context"
	"errors"

	"github.com/roach88/walletcore/internal/keys"
	"github.com/roach88/walletcore/internal/state"
)

// LoginServer is the remote login service.
type LoginServer interface {
	// ApplyKit uploads new key boxes for an account.
	ApplyKit(ctx context.Context, accountID string, kit keys.KeysKit) error

	// CheckPassword verifies a password. A wrong password is (false, nil).
	CheckPassword(ctx context.Context, username, password string) (bool, error)
}

// StorageSync is the encrypted-repository transport.
type StorageSync interface {
	AddStorageWallet(ctx context.Context, info keys.KeyInfo) error

	// SyncStorageWallet pulls remote changes and returns the changed paths.
	SyncStorageWallet(ctx context.Context, walletID string) ([]string, error)

	// LoadWalletStates reads the account's cached projections.
	LoadWalletStates(ctx context.Context, accountID string) (AccountFiles, error)

	// SaveAccountFiles writes files and wallet states into the account
	// repository. Entries not named in changes are left alone, so a later
	// LoadWalletStates returns the merged result.
	SaveAccountFiles(ctx context.Context, accountID string, changes AccountFiles) error
}

// AccountFiles is what LoadWalletStates reads out of an account repository.
type AccountFiles struct {
	Files        map[string]string
	WalletStates map[string]state.WalletState
}

var errNoLoginServer = errors.New("no login server configured")

type nopLogin struct{}

func (nopLogin) ApplyKit(context.Context, string, keys.KeysKit) error {
	return errNoLoginServer
}

func (nopLogin) CheckPassword(context.Context, string, string) (bool, error) {
	return false, errNoLoginServer
}

type nopStorage struct{}

func (nopStorage) AddStorageWallet(context.Context, keys.KeyInfo) error { return nil }

func (nopStorage) SyncStorageWallet(context.Context, string) ([]string, error) { return nil, nil }

func (nopStorage) LoadWalletStates(context.Context, string) (AccountFiles, error) {
	return AccountFiles{}, nil
}

func (nopStorage) SaveAccountFiles(context.Context, string, AccountFiles) error { return nil }
