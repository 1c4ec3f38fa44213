package journal

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/roach88/walletcore/internal/state"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriter_RecordsStoreDispatches(t *testing.T) {
	j := createTestJournal(t)
	w := NewWriter(j, WithCheckpointEvery(4), WithWriterLogger(quietLogger()))

	store := state.NewStore(state.WithRecorder(w), state.WithLogger(quietLogger()))
	actions := sampleActions()
	for _, a := range actions {
		store.Dispatch(a)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	entries, err := j.ReadActions(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(actions) {
		t.Fatalf("journaled %d actions, want %d", len(entries), len(actions))
	}

	cps, err := j.ReadCheckpoints(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	// One at seq 4, then the final one at seq 6.
	if len(cps) != 2 || cps[0].Seq != 4 || cps[1].Seq != 6 {
		t.Fatalf("checkpoints = %v", cps)
	}

	live, err := store.Snapshot().Hash()
	if err != nil {
		t.Fatal(err)
	}
	if cps[1].Hash != live {
		t.Errorf("final checkpoint %s != live hash %s", cps[1].Hash, live)
	}

	if _, err := j.VerifyDeterminism(t.Context(), nil); err != nil {
		t.Errorf("VerifyDeterminism() failed: %v", err)
	}
}

func TestWriter_ConcurrentDispatch(t *testing.T) {
	j := createTestJournal(t)
	w := NewWriter(j, WithWriterLogger(quietLogger()))
	store := state.NewStore(state.WithRecorder(w), state.WithLogger(quietLogger()))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Dispatch(state.Action{Type: state.ActionLogout, Payload: state.LogoutPayload{AccountID: "x"}})
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	seq, err := j.LastSeq(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if seq != n {
		t.Errorf("LastSeq() = %d, want %d", seq, n)
	}
}

func TestWriter_NoCheckpointWhenEmpty(t *testing.T) {
	j := createTestJournal(t)
	w := NewWriter(j, WithWriterLogger(quietLogger()))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	cps, err := j.ReadCheckpoints(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(cps) != 0 {
		t.Errorf("checkpoints = %v, want none", cps)
	}
}

func TestWriter_RecordAfterClose(t *testing.T) {
	j := createTestJournal(t)
	w := NewWriter(j, WithWriterLogger(quietLogger()))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	// Dropped with a warning, never panics.
	w.Record(1, state.Action{Type: state.ActionLogout, Payload: state.LogoutPayload{AccountID: "x"}})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := j.ReadActions(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
}

func TestWriter_ReportsWriteErrors(t *testing.T) {
	j := createTestJournal(t)
	w := NewWriter(j, WithWriterLogger(quietLogger()))
	j.Close()

	w.Record(1, state.Action{Type: state.ActionLogout, Payload: state.LogoutPayload{AccountID: "x"}})
	if err := w.Close(); err == nil {
		t.Error("expected error writing to closed database")
	}
}
