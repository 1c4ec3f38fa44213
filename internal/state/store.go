package state

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Recorder receives every dispatched action with its sequence number.
// Record is called under the writer lock and must not block.
type Recorder interface {
	Record(seq int64, a Action)
}

// Store holds the current snapshot and applies actions through the reducer.
//
// Thread-safety: Dispatch may be called from any goroutine. Transitions are
// serialized by a single writer lock; ordering between concurrent callers is
// whatever order they acquire it in. Snapshot is lock-free.
type Store struct {
	mu      sync.Mutex // writer lock
	reducer Reducer
	current atomic.Pointer[Snapshot]
	seq     int64

	subsMu  sync.Mutex
	subs    []subscription
	nextSub int

	recorder Recorder
	logger   *slog.Logger
}

type subscription struct {
	id int
	fn func(*Snapshot)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithReducer replaces the root reducer.
func WithReducer(r Reducer) StoreOption {
	return func(s *Store) {
		s.reducer = r
	}
}

// WithInitial sets the starting snapshot (default Empty()).
func WithInitial(snap *Snapshot) StoreOption {
	return func(s *Store) {
		s.current.Store(snap)
	}
}

// WithRecorder attaches a journal that sees every action.
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithStartSeq resumes sequence numbering after seq.
func WithStartSeq(seq int64) StoreOption {
	return func(s *Store) {
		s.seq = seq
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store holding Empty() and reducing with Reduce.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{reducer: Reduce}
	s.current.Store(Empty())

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Seq returns the sequence number of the last dispatched action.
func (s *Store) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Dispatch reduces a into the next snapshot and notifies every subscriber
// before returning. Subscribers run after the writer lock is released, so a
// subscriber may dispatch again.
func (s *Store) Dispatch(a Action) *Snapshot {
	s.mu.Lock()
	prev := s.current.Load()
	next := s.reducer(prev, a)
	s.seq++
	seq := s.seq
	s.current.Store(next)
	if s.recorder != nil {
		s.recorder.Record(seq, a)
	}
	s.mu.Unlock()

	s.logger.Debug("dispatch",
		"event", "dispatch",
		"seq", seq,
		"type", string(a.Type),
		"changed", next != prev)

	for _, sub := range s.subscribers() {
		sub.fn(next)
	}
	return next
}

// Subscribe registers fn to run after every dispatch. The returned function
// removes it; calling it more than once is harmless.
func (s *Store) Subscribe(fn func(*Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) subscribers() []subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	out := make([]subscription, len(s.subs))
	copy(out, s.subs)
	return out
}
