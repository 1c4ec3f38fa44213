package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/walletcore/internal/state"
)

func TestAttach_SubscribesAndUnsubscribes(t *testing.T) {
	src := newFakeSource()
	root := Attach(src, Combine(map[string]Worker[*state.Snapshot]{}), snapshotProps)

	assert.Equal(t, 1, src.subscribers())
	assert.Positive(t, root.Passes(), "first pass runs before Attach returns")

	root.Destroy()
	assert.Equal(t, 0, src.subscribers())
	assert.True(t, root.Destroyed())
}

func TestAttach_IdempotentTeardown(t *testing.T) {
	src := newFakeSource()
	log := newLifecycle()
	root := Attach(src, accountsCollection(accountLeaf(log)), snapshotProps)
	src.set(withAccounts(src.Snapshot(), "a", "b"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root.Destroy()
		}()
	}
	wg.Wait()
	root.Destroy()

	assert.Equal(t, 1, log.get(log.destroys, "a"))
	assert.Equal(t, 1, log.get(log.destroys, "b"))
}

func TestAttach_NoPassesAfterDestroy(t *testing.T) {
	src := newFakeSource()
	log := newLifecycle()
	root := Attach(src, accountsCollection(accountLeaf(log)), snapshotProps)
	root.Destroy()

	passes := root.Passes()
	src.set(withAccounts(src.Snapshot(), "late"))

	assert.Equal(t, passes, root.Passes())
	assert.Equal(t, 0, log.get(log.builds, "late"))
}

func TestAttach_FaultIsolation(t *testing.T) {
	src := newFakeSource()
	sink := &errorSink{}
	w := Combine(map[string]Worker[*state.Snapshot]{
		"bad": Func(func(context.Context, *Input[*state.Snapshot], *state.Snapshot) error {
			panic("boom")
		}),
		"failing": Func(func(context.Context, *Input[*state.Snapshot], *state.Snapshot) error {
			return errors.New("converge failed")
		}),
		"good": Func(func(_ context.Context, in *Input[*state.Snapshot], s *state.Snapshot) error {
			in.Publish(s.Accounts.Len())
			return nil
		}),
	})
	root := Attach(src, w, snapshotProps, WithErrorSink(sink.report))
	defer root.Destroy()

	src.set(withAccounts(src.Snapshot(), "a"))
	eventually(t, func() bool { return Lookup(root.Output(), "good") == 1 }, "good converges")
	eventually(t, func() bool { return len(sink.all()) >= 4 }, "both faults reported per pass")

	byPath := map[string]*NodeError{}
	for _, err := range sink.all() {
		var ne *NodeError
		require.ErrorAs(t, err, &ne)
		byPath[ne.Path] = ne
	}
	require.Contains(t, byPath, "/bad")
	require.Contains(t, byPath, "/failing")
	assert.NotContains(t, byPath, "/good")

	assert.Equal(t, OpUpdate, byPath["/bad"].Op)
	assert.Equal(t, "boom", byPath["/bad"].Panic)
	assert.EqualError(t, byPath["/failing"].Err, "converge failed")
}

func TestAttach_StopUpdates(t *testing.T) {
	src := newFakeSource()
	sink := &errorSink{}
	var calls atomic.Int32
	w := Func(func(context.Context, *Input[*state.Snapshot], *state.Snapshot) error {
		calls.Add(1)
		return StopUpdates
	})
	root := Attach(src, w, snapshotProps, WithErrorSink(sink.report))
	defer root.Destroy()

	eventually(t, func() bool { return calls.Load() == 1 }, "first converge")
	src.set(withAccounts(src.Snapshot(), "a"))
	src.set(withAccounts(src.Snapshot(), "a", "b"))

	assert.Never(t, func() bool { return calls.Load() > 1 }, 30*time.Millisecond, 2*time.Millisecond)
	assert.Empty(t, sink.all(), "StopUpdates is not a fault")
}

func TestAttach_BuildAndDestroyPanics(t *testing.T) {
	src := newFakeSource()
	sink := &errorSink{}
	log := newLifecycle()
	w := Combine(map[string]Worker[*state.Snapshot]{
		"broken": Leaf(func(*Input[*state.Snapshot]) Node[*state.Snapshot] {
			panic("factory")
		}),
		"leaky": Leaf(func(*Input[*state.Snapshot]) Node[*state.Snapshot] {
			return panicOnDestroy{}
		}),
		"accounts": accountsCollection(accountLeaf(log)),
	})
	root := Attach(src, w, snapshotProps, WithErrorSink(sink.report))
	src.set(withAccounts(src.Snapshot(), "a"))
	root.Destroy()

	ops := map[Op]string{}
	for _, err := range sink.all() {
		var ne *NodeError
		require.ErrorAs(t, err, &ne)
		ops[ne.Op] = ne.Path
	}
	assert.Equal(t, "/broken", ops[OpBuild])
	assert.Equal(t, "/leaky", ops[OpDestroy])
	assert.Equal(t, 1, log.get(log.destroys, "a"), "siblings still torn down")
}

type panicOnDestroy struct{}

func (panicOnDestroy) Update(context.Context, *state.Snapshot) error { return nil }
func (panicOnDestroy) Destroy()                                     { panic("destroy") }

func TestAttach_PassLimit(t *testing.T) {
	src := newFakeSource()
	sink := &errorSink{}
	root := Attach(src, Combine(map[string]Worker[*state.Snapshot]{}), snapshotProps,
		WithErrorSink(sink.report), WithMaxPasses(1))
	defer root.Destroy()

	errs := sink.all()
	require.Len(t, errs, 1)
	assert.True(t, IsPassLimitError(errs[0]))
}

func TestAttach_ReentrantDispatch(t *testing.T) {
	src := newFakeSource()
	log := newLifecycle()
	var once sync.Once
	props := func(s *state.Snapshot, _ Output) *state.Snapshot {
		once.Do(func() {
			src.set(withAccounts(s, "x"))
		})
		return s
	}

	root := Attach(src, accountsCollection(accountLeaf(log)), props)
	defer root.Destroy()

	assert.Equal(t, 1, log.get(log.builds, "x"), "dispatch from inside a pass is folded into the drain")
}

func TestAttach_DestroyFromInsidePass(t *testing.T) {
	src := newFakeSource()
	log := newLifecycle()
	var root atomic.Pointer[Root]
	props := func(s *state.Snapshot, _ Output) *state.Snapshot {
		if s.Accounts.Has("stop") {
			root.Load().Destroy()
		}
		return s
	}

	r := Attach(src, accountsCollection(accountLeaf(log)), props)
	root.Store(r)
	src.set(withAccounts(src.Snapshot(), "a"))
	src.set(withAccounts(src.Snapshot(), "a", "stop"))

	assert.True(t, r.Destroyed())
	assert.Equal(t, 1, log.get(log.destroys, "a"))
	assert.Equal(t, 1, log.get(log.destroys, "stop"))
}

func TestAttach_ConcurrentPublishers(t *testing.T) {
	src := newFakeSource()
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	counter := Leaf(func(in *Input[*state.Account]) Node[*state.Account] {
		return &countingNode{in: in}
	})
	root := Attach(src, accountsCollection(counter), snapshotProps)
	defer root.Destroy()

	src.set(withAccounts(src.Snapshot(), ids...))

	eventually(t, func() bool {
		for _, id := range ids {
			if Lookup(root.Output(), id) != 100 {
				return false
			}
		}
		return true
	}, "mirror converges to every leaf's final publish")
}

type countingNode struct {
	in *Input[*state.Account]
}

func (n *countingNode) Update(context.Context, *state.Account) error {
	for i := 1; i <= 100; i++ {
		n.in.Publish(i)
	}
	return StopUpdates
}

func (n *countingNode) Destroy() {}

func TestFilter(t *testing.T) {
	src := newFakeSource()
	sink := &errorSink{}
	w := Filter(
		Func(func(_ context.Context, in *Input[int], n int) error {
			in.Publish(n * 10)
			return nil
		}),
		func(s *state.Snapshot) int {
			if s.Accounts.Has("panic") {
				panic("selector")
			}
			return s.Accounts.Len()
		},
	)
	root := Attach(src, w, snapshotProps, WithErrorSink(sink.report))
	defer root.Destroy()

	src.set(withAccounts(src.Snapshot(), "a", "b"))
	eventually(t, func() bool { return root.Output() == 20 }, "filtered props reach the leaf")

	src.set(withAccounts(src.Snapshot(), "a", "panic"))
	require.NotEmpty(t, sink.all())
	var ne *NodeError
	require.ErrorAs(t, sink.all()[0], &ne)
	assert.Equal(t, OpProps, ne.Op)
	assert.Equal(t, 20, root.Output(), "subtree keeps its previous props")
}

func TestCombine_OutputStableWhenChildrenUnchanged(t *testing.T) {
	src := newFakeSource()
	w := Combine(map[string]Worker[*state.Snapshot]{
		"one": Func(func(_ context.Context, in *Input[*state.Snapshot], _ *state.Snapshot) error {
			in.Publish("fixed")
			return StopUpdates
		}),
		"two": Func(func(context.Context, *Input[*state.Snapshot], *state.Snapshot) error {
			return StopUpdates
		}),
	})
	root := Attach(src, w, snapshotProps)
	defer root.Destroy()

	eventually(t, func() bool { return Lookup(root.Output(), "one") == "fixed" }, "one publishes")
	before := root.Output()

	src.set(withAccounts(src.Snapshot(), "a"))
	assert.True(t, Same(before, root.Output()), "unchanged children keep the same mirror")
	assert.NotContains(t, before.(Output), "two", "unpublished children are absent")
}

func TestInput_NewTaskStopsWithNode(t *testing.T) {
	src := newFakeSource()
	sched := &recordingScheduler{}
	var runs atomic.Int32
	var task atomic.Pointer[Task]
	w := Func(func(_ context.Context, in *Input[*state.Snapshot], _ *state.Snapshot) error {
		tk := in.NewTask("probe", time.Second, func(context.Context) error {
			runs.Add(1)
			return nil
		}, nil)
		task.Store(tk)
		tk.Start()
		return StopUpdates
	})
	root := Attach(src, w, snapshotProps, WithScheduler(sched))

	eventually(t, func() bool { return sched.armed() == 1 }, "task armed on node scheduler")
	sched.fireLast()
	assert.Equal(t, int32(1), runs.Load())

	root.Destroy()
	sched.fireLast()
	assert.Equal(t, int32(1), runs.Load(), "a run after destroy is a no-op")
	task.Load().Stop()
}

// recordingScheduler keeps armed callbacks for the test to fire.
type recordingScheduler struct {
	mu  sync.Mutex
	fns []func()
}

func (s *recordingScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, f)
	return nopTimer{}
}

func (s *recordingScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

func (s *recordingScheduler) fireLast() {
	s.mu.Lock()
	f := s.fns[len(s.fns)-1]
	s.mu.Unlock()
	f()
}

type nopTimer struct{}

func (nopTimer) Stop() bool { return false }

func TestAttach_OnOutput(t *testing.T) {
	src := newFakeSource()
	var seen []any
	root := Attach(src, Combine(map[string]Worker[*state.Snapshot]{}), snapshotProps,
		WithOnOutput(func(v any) { seen = append(seen, v) }))
	defer root.Destroy()

	require.Len(t, seen, 1)
	assert.True(t, Same(root.Output(), seen[0]))
}

func TestAttach_ParentContextReachesNodes(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan context.Context, 1)
	w := Func(func(ctx context.Context, _ *Input[*state.Snapshot], _ *state.Snapshot) error {
		got <- ctx
		return StopUpdates
	})
	root := Attach(newFakeSource(), w, snapshotProps, WithContext(parent))
	defer root.Destroy()

	var ctx context.Context
	select {
	case ctx = <-got:
	case <-time.After(time.Second):
		t.Fatal("node never updated")
	}
	require.NoError(t, ctx.Err())

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("node context outlived its parent")
	}
}
