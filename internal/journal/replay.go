package journal

import (
	"context"
	"fmt"

	"github.com/roach88/walletcore/internal/state"
)

// ReplayResult is the outcome of re-reducing a journal.
type ReplayResult struct {
	Snapshot *state.Snapshot
	Hash     string
	Actions  int
	LastSeq  int64
	// Mismatches lists checkpoints whose recorded hash differs from the
	// replayed one.
	Mismatches []CheckpointMismatch
}

// CheckpointMismatch is one failed checkpoint comparison.
type CheckpointMismatch struct {
	Seq      int64
	Recorded string
	Replayed string
}

// Replay reduces every journaled action, in seq order, from an empty
// snapshot and compares the result against every checkpoint on the way. A
// nil reducer means state.Reduce.
func (j *Journal) Replay(ctx context.Context, reducer state.Reducer) (ReplayResult, error) {
	if reducer == nil {
		reducer = state.Reduce
	}

	entries, err := j.ReadActions(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	checkpoints, err := j.ReadCheckpoints(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	want := make(map[int64]string, len(checkpoints))
	for _, cp := range checkpoints {
		want[cp.Seq] = cp.Hash
	}

	res := ReplayResult{Snapshot: state.Empty()}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a, err := e.Action()
		if err != nil {
			return res, fmt.Errorf("replay seq %d: %w", e.Seq, err)
		}
		res.Snapshot = reducer(res.Snapshot, a)
		res.Actions++
		res.LastSeq = e.Seq

		recorded, ok := want[e.Seq]
		if !ok {
			continue
		}
		got, err := res.Snapshot.Hash()
		if err != nil {
			return res, fmt.Errorf("replay seq %d: %w", e.Seq, err)
		}
		if got != recorded {
			res.Mismatches = append(res.Mismatches, CheckpointMismatch{Seq: e.Seq, Recorded: recorded, Replayed: got})
		}
	}

	res.Hash, err = res.Snapshot.Hash()
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	return res, nil
}

// DeterminismError reports a journal that does not replay the same way
// twice or disagrees with its own checkpoints.
type DeterminismError struct {
	First, Second string
	Mismatches    []CheckpointMismatch
}

func (e *DeterminismError) Error() string {
	if e.First != e.Second {
		return fmt.Sprintf("replay is not deterministic: %s != %s", e.First, e.Second)
	}
	return fmt.Sprintf("replay disagrees with %d checkpoint(s), first at seq %d",
		len(e.Mismatches), e.Mismatches[0].Seq)
}

// VerifyDeterminism replays the journal twice and fails if the final hashes
// differ or any checkpoint does not match.
func (j *Journal) VerifyDeterminism(ctx context.Context, reducer state.Reducer) (string, error) {
	first, err := j.Replay(ctx, reducer)
	if err != nil {
		return "", err
	}
	second, err := j.Replay(ctx, reducer)
	if err != nil {
		return "", err
	}
	if first.Hash != second.Hash || len(first.Mismatches) > 0 {
		return first.Hash, &DeterminismError{First: first.Hash, Second: second.Hash, Mismatches: first.Mismatches}
	}
	return first.Hash, nil
}
