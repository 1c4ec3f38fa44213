package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/walletcore/internal/journal"
	"github.com/roach88/walletcore/internal/state"
)

// Option configures a run.
type Option func(*runner)

// WithLogger sets the logger (default discards).
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		r.logger = l
	}
}

// WithReducer replaces state.Reduce for the run and its replay.
func WithReducer(fn state.Reducer) Option {
	return func(r *runner) {
		r.reducer = fn
	}
}

type runner struct {
	logger  *slog.Logger
	reducer state.Reducer
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh store and a fresh in-memory journal. An error is
// returned only when the scenario cannot be executed at all (a payload that
// does not decode, a journal failure); failed expectations are reported in
// Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a context for the journal operations.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		reducer: state.Reduce,
	}
	for _, opt := range opts {
		opt(r)
	}

	actions, err := decodeActions(scenario.Actions)
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	w := journal.NewWriter(j,
		journal.WithCheckpointEvery(1),
		journal.WithWriterLogger(r.logger),
		journal.WithWriterReducer(r.reducer))

	st := state.NewStore(
		state.WithReducer(r.reducer),
		state.WithRecorder(w),
		state.WithLogger(r.logger))

	result := NewResult()
	for _, a := range actions {
		prev := st.Snapshot()
		next := st.Dispatch(a)
		seq := st.Seq()

		e, err := journal.NewEntry(seq, a)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("action %d (%s): %w", seq, a.Type, err)
		}
		payload, err := state.PayloadValue(a)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("action %d (%s): %w", seq, a.Type, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     seq,
			Type:    string(a.Type),
			Payload: payload,
			Changed: next != prev,
		})
		r.logger.Debug("scenario action",
			"event", "scenario_action",
			"scenario", scenario.Name,
			"seq", seq,
			"type", string(a.Type),
			"id", e.ID)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	final := st.Snapshot()
	result.SnapshotHash, err = final.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash final snapshot: %w", err)
	}

	if _, err := j.VerifyDeterminism(ctx, r.reducer); err != nil {
		result.AddError(err.Error())
	}

	env, err := Env(final, result.Trace)
	if err != nil {
		return nil, fmt.Errorf("build expect env: %w", err)
	}
	for _, msg := range EvaluateExpectations(scenario.Expect, env) {
		result.AddError(msg)
	}

	r.logger.Info("scenario complete",
		"event", "scenario_complete",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"actions", len(result.Trace))
	return result, nil
}

// decodeActions converts YAML payload maps to typed actions, rejecting
// fields the payload struct does not declare.
func decodeActions(steps []ActionStep) ([]state.Action, error) {
	out := make([]state.Action, 0, len(steps))
	for i, step := range steps {
		payload := step.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: encode payload: %w", i, err)
		}
		a, err := state.DecodeActionStrict(state.ActionType(step.Type), data)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}
