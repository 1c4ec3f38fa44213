package journal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/walletcore/internal/state"
	"github.com/roach88/walletcore/internal/telemetry"
)

// DefaultCheckpointEvery is how many actions pass between checkpoints.
const DefaultCheckpointEvery = 16

// record is one queued Record call.
type record struct {
	seq    int64
	action state.Action
}

// queue is an unbounded FIFO. Enqueue never blocks; the writer goroutine
// waits on signal.
type queue struct {
	mu      sync.Mutex
	records []record
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newQueue() *queue {
	return &queue{
		records: make([]record, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// enqueue appends r. It returns false once the queue is closed.
func (q *queue) enqueue(r record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.records = append(q.records, r)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// drain takes every queued record. done is true once the queue is closed
// and empty.
func (q *queue) drain() (batch []record, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch, q.records = q.records, nil
	return batch, q.closed && len(batch) == 0
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Writer journals actions as a state.Recorder. Record only enqueues; a
// single goroutine appends entries and, every N actions, reduces its own
// copy of the state to write a checkpoint.
//
// Thread-safety: Record may be called from any goroutine. Close waits for
// the queue to drain.
type Writer struct {
	j       *Journal
	q       *queue
	every   int
	reducer state.Reducer
	logger  *slog.Logger

	snap     *state.Snapshot
	sinceCkp int
	lastSeq  int64

	errMu sync.Mutex
	err   error

	done      chan struct{}
	closeOnce sync.Once
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCheckpointEvery sets the checkpoint interval. Zero disables
// checkpoints until Close, which always writes one.
func WithCheckpointEvery(n int) WriterOption {
	return func(w *Writer) {
		w.every = n
	}
}

// WithWriterLogger sets the logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithWriterReducer sets the reducer used for checkpoint hashes.
func WithWriterReducer(r state.Reducer) WriterOption {
	return func(w *Writer) {
		w.reducer = r
	}
}

// NewWriter starts a writer on j.
func NewWriter(j *Journal, opts ...WriterOption) *Writer {
	w := &Writer{
		j:       j,
		q:       newQueue(),
		every:   DefaultCheckpointEvery,
		reducer: state.Reduce,
		logger:  slog.Default(),
		snap:    state.Empty(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// Record implements state.Recorder.
func (w *Writer) Record(seq int64, a state.Action) {
	if !w.q.enqueue(record{seq: seq, action: a}) {
		telemetry.JournalDropped.Inc()
		w.logger.Warn("journal closed, action dropped", "event", "journal_drop", "seq", seq, "type", string(a.Type))
	}
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// Close flushes the queue, writes a final checkpoint and waits. It returns
// the first write error. The Journal itself stays open.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.q.close()
		<-w.done
	})
	return w.Err()
}

func (w *Writer) run() {
	defer close(w.done)
	ctx := context.Background()

	for {
		batch, done := w.q.drain()
		for _, r := range batch {
			w.write(ctx, r)
		}
		if done {
			break
		}
		if len(batch) == 0 {
			<-w.q.signal
		}
	}

	if w.lastSeq > 0 && w.sinceCkp > 0 {
		w.checkpoint(ctx)
	}
}

func (w *Writer) write(ctx context.Context, r record) {
	e, err := NewEntry(r.seq, r.action)
	if err != nil {
		w.fail(err)
		return
	}
	if err := w.j.AppendAction(ctx, e); err != nil {
		w.fail(err)
		return
	}

	// Fold the decoded action, not the original, so checkpoints match what
	// Replay will see.
	a, err := e.Action()
	if err != nil {
		w.fail(err)
		return
	}
	w.snap = w.reducer(w.snap, a)
	w.lastSeq = r.seq
	w.sinceCkp++
	if w.every > 0 && w.sinceCkp >= w.every {
		w.checkpoint(ctx)
	}
}

func (w *Writer) checkpoint(ctx context.Context) {
	hash, err := w.snap.Hash()
	if err != nil {
		w.fail(err)
		return
	}
	if err := w.j.WriteCheckpoint(ctx, w.lastSeq, hash); err != nil {
		w.fail(err)
		return
	}
	w.sinceCkp = 0
	w.logger.Debug("checkpoint", "event", "journal_checkpoint", "seq", w.lastSeq, "hash", hash)
}

func (w *Writer) fail(err error) {
	telemetry.JournalDropped.Inc()
	w.logger.Error("journal write failed", "event", "journal_error", "error", err)
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
