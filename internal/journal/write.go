package journal

import (
	"context"
	"fmt"

	"github.com/roach88/walletcore/internal/ir"
	"github.com/roach88/walletcore/internal/state"
)

// Entry is one journaled action.
type Entry struct {
	Seq int64
	// ID is the content address of (type, payload, seq).
	ID      string
	Type    state.ActionType
	Payload string // canonical JSON
}

// Checkpoint is a snapshot hash taken after the action at Seq.
type Checkpoint struct {
	Seq  int64
	Hash string
}

// NewEntry encodes a at seq. The payload is stored as canonical JSON so the
// row is byte-identical for identical actions.
func NewEntry(seq int64, a state.Action) (Entry, error) {
	obj, err := state.PayloadValue(a)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %d: %w", seq, err)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %d: %w", seq, err)
	}
	id, err := ir.ActionID(string(a.Type), obj, seq)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %d: %w", seq, err)
	}
	return Entry{Seq: seq, ID: id, Type: a.Type, Payload: string(data)}, nil
}

// Action decodes the entry back into a state.Action.
func (e Entry) Action() (state.Action, error) {
	return state.DecodeAction(e.Type, []byte(e.Payload))
}

// AppendAction writes one entry. Appending a seq that already exists is a
// no-op, so a replayed writer can re-append safely.
func (j *Journal) AppendAction(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO actions (seq, id, type, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, e.Seq, e.ID, string(e.Type), e.Payload)
	if err != nil {
		return fmt.Errorf("append action %d: %w", e.Seq, err)
	}
	return nil
}

// WriteCheckpoint records the snapshot hash after seq. A later checkpoint
// for the same seq replaces the earlier one.
func (j *Journal) WriteCheckpoint(ctx context.Context, seq int64, hash string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO checkpoints (seq, snapshot_hash)
		VALUES (?, ?)
		ON CONFLICT(seq) DO UPDATE SET snapshot_hash = excluded.snapshot_hash
	`, seq, hash)
	if err != nil {
		return fmt.Errorf("write checkpoint %d: %w", seq, err)
	}
	return nil
}
