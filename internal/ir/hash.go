package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints.
// The version suffix leaves room for algorithm migration.
const (
	DomainAction   = "walletcore/action/v1"
	DomainSnapshot = "walletcore/snapshot/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator keeps domain and data boundaries unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionID fingerprints one journaled action. Identical (type, payload, seq)
// triples always yield the same id, which makes journal appends idempotent.
func ActionID(actionType string, payload Object, seq int64) (string, error) {
	obj := Object{
		"type":    String(actionType),
		"payload": payload,
		"seq":     Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// SnapshotHash fingerprints a canonical snapshot.
func SnapshotHash(snapshot Object) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustActionID is like ActionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionID(actionType string, payload Object, seq int64) string {
	id, err := ActionID(actionType, payload, seq)
	if err != nil {
		panic(err)
	}
	return id
}
