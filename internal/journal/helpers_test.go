package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/walletcore/internal/state"
)

// createTestJournal opens a journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// sampleActions is a short session: init, login, keys, rates, logout.
func sampleActions() []state.Action {
	return []state.Action{
		{Type: state.ActionInit, Payload: state.InitPayload{APIKey: "k", AuthServer: "https://auth"}},
		{Type: state.ActionLogin, Payload: state.LoginPayload{AccountID: "a", Username: "alice", LoginType: "passwordLogin"}},
		{Type: state.ActionCurrencyPluginsLoaded, Payload: state.CurrencyPluginsLoadedPayload{Names: []string{"bitcoin"}}},
		{Type: state.ActionExchangePairsFetched, Payload: state.ExchangePairsPayload{Pairs: []state.RatePair{
			{Base: "BTC", Quote: "iso:USD", Rate: "50000", Source: "a", Timestamp: 1},
		}}},
		{Type: state.ActionAccountSwapPluginsLoaded, Payload: state.AccountSwapPluginsLoadedPayload{AccountID: "a"}},
		{Type: state.ActionLogout, Payload: state.LogoutPayload{AccountID: "a"}},
	}
}

// appendAll journals actions with seq starting at 1.
func appendAll(t *testing.T, j *Journal, actions []state.Action) {
	t.Helper()
	for i, a := range actions {
		e, err := NewEntry(int64(i+1), a)
		if err != nil {
			t.Fatalf("NewEntry(%d) failed: %v", i+1, err)
		}
		if err := j.AppendAction(t.Context(), e); err != nil {
			t.Fatalf("AppendAction(%d) failed: %v", i+1, err)
		}
	}
}

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithCancel(t.Context())
}
