package engine

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/walletcore/internal/state"
)

// fakeSource is a Source whose snapshot is set directly by the test.
type fakeSource struct {
	mu   sync.Mutex
	snap *state.Snapshot
	subs map[int]func(*state.Snapshot)
	next int
}

func newFakeSource() *fakeSource {
	return &fakeSource{snap: state.Empty(), subs: map[int]func(*state.Snapshot){}}
}

func (f *fakeSource) Snapshot() *state.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Subscribe(fn func(*state.Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// set replaces the snapshot and notifies synchronously, like Dispatch.
func (f *fakeSource) set(snap *state.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	subs := make([]func(*state.Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// withAccounts returns prev with its account table replaced by ids. Accounts
// already in prev keep their pointers.
func withAccounts(prev *state.Snapshot, ids ...string) *state.Snapshot {
	next := *prev
	next.Accounts = state.NewTable(ids, func(id string) *state.Account {
		if a, ok := prev.Accounts.Get(id); ok {
			return a
		}
		return &state.Account{ID: id}
	})
	return &next
}

// lifecycle counts builds, updates and destroys per node id.
type lifecycle struct {
	mu       sync.Mutex
	builds   map[string]int
	updates  map[string]int
	destroys map[string]int
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		builds:   map[string]int{},
		updates:  map[string]int{},
		destroys: map[string]int{},
	}
}

func (l *lifecycle) inc(m map[string]int, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m[id]++
}

func (l *lifecycle) get(m map[string]int, id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return m[id]
}

// accountNode publishes the account id on every update.
type accountNode struct {
	in  *Input[*state.Account]
	log *lifecycle
}

func (n *accountNode) Update(_ context.Context, a *state.Account) error {
	n.log.inc(n.log.updates, a.ID)
	n.in.Publish(a.ID)
	return nil
}

func (n *accountNode) Destroy() {
	n.log.inc(n.log.destroys, path.Base(n.in.Path()))
}

func accountLeaf(log *lifecycle) Worker[*state.Account] {
	return Leaf(func(in *Input[*state.Account]) Node[*state.Account] {
		log.inc(log.builds, path.Base(in.Path()))
		return &accountNode{in: in, log: log}
	})
}

func accountsCollection(child Worker[*state.Account]) Worker[*state.Snapshot] {
	return Collection(
		func(s *state.Snapshot) []string { return s.Accounts.IDs() },
		func(s *state.Snapshot, id string) *state.Account {
			a, _ := s.Accounts.Get(id)
			return a
		},
		child,
	)
}

func snapshotProps(s *state.Snapshot, _ Output) *state.Snapshot {
	return s
}

// errorSink collects reported faults.
type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errorSink) report(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *errorSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond, msg)
}
