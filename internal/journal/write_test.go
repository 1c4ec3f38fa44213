package journal

import (
	"testing"

	"github.com/roach88/walletcore/internal/state"
)

func TestNewEntry_CanonicalPayload(t *testing.T) {
	e, err := NewEntry(7, state.Action{Type: state.ActionLogin, Payload: state.LoginPayload{
		Username:  "alice",
		AccountID: "a",
	}})
	if err != nil {
		t.Fatalf("NewEntry() failed: %v", err)
	}

	want := `{"accountId":"a","appId":"","login":{"loginId":""},"loginType":"","username":"alice"}`
	if e.Payload != want {
		t.Errorf("payload = %s\nwant      %s", e.Payload, want)
	}
	if e.Seq != 7 || e.Type != state.ActionLogin || e.ID == "" {
		t.Errorf("unexpected entry header: %+v", e)
	}

	again, _ := NewEntry(7, state.Action{Type: state.ActionLogin, Payload: state.LoginPayload{AccountID: "a", Username: "alice"}})
	if again.ID != e.ID {
		t.Error("identical actions must have identical ids")
	}
	other, _ := NewEntry(8, state.Action{Type: state.ActionLogin, Payload: state.LoginPayload{AccountID: "a", Username: "alice"}})
	if other.ID == e.ID {
		t.Error("seq is part of the id")
	}
}

func TestEntry_RoundTrip(t *testing.T) {
	orig := state.Action{Type: state.ActionLogout, Payload: state.LogoutPayload{AccountID: "a"}}
	e, err := NewEntry(1, orig)
	if err != nil {
		t.Fatalf("NewEntry() failed: %v", err)
	}

	got, err := e.Action()
	if err != nil {
		t.Fatalf("Action() failed: %v", err)
	}
	if got.Type != orig.Type || got.Payload != orig.Payload {
		t.Errorf("round trip = %+v, want %+v", got, orig)
	}
}

func TestAppendAction_Idempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := t.Context()

	e, err := NewEntry(1, state.Action{Type: state.ActionLogout, Payload: state.LogoutPayload{AccountID: "a"}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := j.AppendAction(ctx, e); err != nil {
			t.Fatalf("AppendAction() attempt %d failed: %v", i, err)
		}
	}

	// A different action at the same seq is ignored too.
	dup, _ := NewEntry(1, state.Action{Type: state.ActionLogout, Payload: state.LogoutPayload{AccountID: "b"}})
	if err := j.AppendAction(ctx, dup); err != nil {
		t.Fatal(err)
	}

	entries, err := j.ReadActions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID != e.ID {
		t.Error("first write wins")
	}
}

func TestWriteCheckpoint_Replaces(t *testing.T) {
	j := createTestJournal(t)
	ctx := t.Context()

	if err := j.WriteCheckpoint(ctx, 4, "old"); err != nil {
		t.Fatal(err)
	}
	if err := j.WriteCheckpoint(ctx, 4, "new"); err != nil {
		t.Fatal(err)
	}
	if err := j.WriteCheckpoint(ctx, 2, "two"); err != nil {
		t.Fatal(err)
	}

	cps, err := j.ReadCheckpoints(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Checkpoint{{Seq: 2, Hash: "two"}, {Seq: 4, Hash: "new"}}
	if len(cps) != len(want) {
		t.Fatalf("got %v, want %v", cps, want)
	}
	for i := range want {
		if cps[i] != want[i] {
			t.Errorf("checkpoint[%d] = %v, want %v", i, cps[i], want[i])
		}
	}
}
