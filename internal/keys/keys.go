package keys

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strings"
)

// KeysServerPath is the login-server endpoint that accepts key kits.
const KeysServerPath = "/v2/login/keys"

const (
	dataKeySize = 32
	syncKeySize = 20
)

// KeyInfo describes one wallet's keys.
type KeyInfo struct {
	ID   string            `json:"id"`
	Type string            `json:"type"`
	Keys map[string]string `json:"keys,omitempty"`
}

// Login is the subset of a login-tree node needed to attach new keys.
type Login struct {
	LoginID  string `json:"loginId"`
	LoginKey []byte `json:"loginKey,omitempty"`
}

// ServerKit is the part of a KeysKit sent to the login server.
type ServerKit struct {
	KeyBoxes    []EncryptedBox `json:"keyBoxes"`
	NewSyncKeys []string       `json:"newSyncKeys"`
}

// StashKit is the part of a KeysKit written to the local login stash.
type StashKit struct {
	KeyBoxes []EncryptedBox `json:"keyBoxes"`
}

// LoginKit is the part of a KeysKit merged into the in-memory login tree.
type LoginKit struct {
	KeyInfos []KeyInfo `json:"keyInfos"`
}

// KeysKit holds everything needed to attach new keys to an account.
type KeysKit struct {
	ServerPath string    `json:"serverPath"`
	Server     ServerKit `json:"server"`
	Stash      StashKit  `json:"stash"`
	Login      LoginKit  `json:"login"`
	LoginID    string    `json:"loginId"`
}

// MakeKeyInfo derives the wallet id as base64(HMAC-SHA256(idKey, type)).
// idKey is usually the wallet's dataKey.
func MakeKeyInfo(walletType string, keys map[string]string, idKey []byte) KeyInfo {
	mac := hmac.New(sha256.New, idKey)
	mac.Write([]byte(walletType))

	return KeyInfo{
		ID:   base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Type: walletType,
		Keys: keys,
	}
}

// MakeStorageKeyInfo makes keys for an encrypted repository, filling in a
// random dataKey and syncKey when the caller did not supply them. The
// caller's map is not modified.
func MakeStorageKeyInfo(rand io.Reader, walletType string, keys map[string]string) (KeyInfo, error) {
	out := make(map[string]string, len(keys)+2)
	maps.Copy(out, keys)

	if out["dataKey"] == "" {
		b, err := randomBytes(rand, dataKeySize)
		if err != nil {
			return KeyInfo{}, fmt.Errorf("dataKey: %w", err)
		}
		out["dataKey"] = base64.StdEncoding.EncodeToString(b)
	}
	if out["syncKey"] == "" {
		b, err := randomBytes(rand, syncKeySize)
		if err != nil {
			return KeyInfo{}, fmt.Errorf("syncKey: %w", err)
		}
		out["syncKey"] = base64.StdEncoding.EncodeToString(b)
	}

	dataKey, err := base64.StdEncoding.DecodeString(out["dataKey"])
	if err != nil {
		return KeyInfo{}, fmt.Errorf("dataKey is not base64: %w", err)
	}
	return MakeKeyInfo(walletType, out, dataKey), nil
}

// MakeKeysKit encrypts each KeyInfo with the login key and collects the
// sync keys the server must create repositories for.
func MakeKeysKit(rand io.Reader, login Login, infos ...KeyInfo) (KeysKit, error) {
	boxes := make([]EncryptedBox, 0, len(infos))
	syncKeys := make([]string, 0, len(infos))

	for _, info := range infos {
		data, err := json.Marshal(info)
		if err != nil {
			return KeysKit{}, fmt.Errorf("marshal key info %s: %w", info.ID, err)
		}
		box, err := Encrypt(rand, data, login.LoginKey)
		if err != nil {
			return KeysKit{}, fmt.Errorf("encrypt key info %s: %w", info.ID, err)
		}
		boxes = append(boxes, box)

		if sk, ok := info.Keys["syncKey"]; ok && sk != "" {
			raw, err := base64.StdEncoding.DecodeString(sk)
			if err != nil {
				return KeysKit{}, fmt.Errorf("syncKey for %s is not base64: %w", info.ID, err)
			}
			syncKeys = append(syncKeys, hex.EncodeToString(raw))
		}
	}

	return KeysKit{
		ServerPath: KeysServerPath,
		Server:     ServerKit{KeyBoxes: boxes, NewSyncKeys: syncKeys},
		Stash:      StashKit{KeyBoxes: boxes},
		Login:      LoginKit{KeyInfos: infos},
		LoginID:    login.LoginID,
	}, nil
}

// FindFirstKey returns the first KeyInfo with a matching type.
func FindFirstKey(infos []KeyInfo, walletType string) (KeyInfo, bool) {
	for _, info := range infos {
		if info.Type == walletType {
			return info, true
		}
	}
	return KeyInfo{}, false
}

// AccountType returns the repository type holding an app's account data.
func AccountType(appID string) string {
	if appID == "" {
		return "account-repo:co.airbitz.wallet"
	}
	return "account-repo:" + appID
}

// IsCurrencyType reports whether a wallet type is backed by a currency plugin
// rather than being a bare storage repository.
func IsCurrencyType(walletType string) bool {
	return strings.HasPrefix(walletType, "wallet:")
}

// CleanKeyInfo returns a copy of info with the keys removed.
func CleanKeyInfo(info KeyInfo) KeyInfo {
	return KeyInfo{ID: info.ID, Type: info.Type}
}

func randomBytes(rand io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand, b); err != nil {
		return nil, err
	}
	return b, nil
}
