package state

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/walletcore/internal/ir"
)

// Canonical converts the snapshot to an ir.Object for hashing.
func (s *Snapshot) Canonical() (ir.Object, error) {
	if s == nil {
		s = Empty()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot to ir: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("snapshot to ir: got %T", v)
	}
	return obj, nil
}

// Hash returns the domain-separated SHA-256 of the canonical snapshot.
func (s *Snapshot) Hash() (string, error) {
	obj, err := s.Canonical()
	if err != nil {
		return "", err
	}
	return ir.SnapshotHash(obj)
}

// PayloadValue converts an action payload to an ir.Object.
func PayloadValue(a Action) (ir.Object, error) {
	data, err := EncodePayload(a)
	if err != nil {
		return nil, err
	}
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("%s payload to ir: %w", a.Type, err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("%s payload to ir: got %T", a.Type, v)
	}
	return obj, nil
}
