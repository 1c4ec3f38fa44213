package harness

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/roach88/walletcore/internal/state"
)

// Env builds the variables visible to expect expressions:
//
//	context   the INIT options
//	plugins   plugin load status
//	accounts  map of account id to account
//	wallets   map of wallet id to currency wallet
//	storage   map of repo id to storage wallet
//	exchange  map of pair key to rate pair
//	trace     the dispatched action types, in order
//	seq       the last sequence number
//
// Field names are the snapshot's JSON names. Numbers are float64.
func Env(snap *state.Snapshot, trace []TraceEvent) (map[string]any, error) {
	if snap == nil {
		snap = state.Empty()
	}

	env := make(map[string]any, 8)
	var err error
	if env["context"], err = asMap(snap.Context); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	if env["plugins"], err = asMap(snap.Plugins); err != nil {
		return nil, fmt.Errorf("plugins: %w", err)
	}
	if env["accounts"], err = tableItems(snap.Accounts); err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	if env["wallets"], err = tableItems(snap.Wallets); err != nil {
		return nil, fmt.Errorf("wallets: %w", err)
	}
	if env["storage"], err = tableItems(snap.Storage); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if env["exchange"], err = tableItems(snap.Exchange); err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}

	types := make([]string, len(trace))
	var seq int64
	for i, ev := range trace {
		types[i] = ev.Type
		seq = ev.Seq
	}
	env["trace"] = types
	env["seq"] = seq
	return env, nil
}

// EvaluateExpectations runs each expression against env and returns one
// message per expression that fails to compile, errors, or is false.
func EvaluateExpectations(exprs []string, env map[string]any) []string {
	var failures []string
	for i, src := range exprs {
		program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
		if err != nil {
			failures = append(failures, fmt.Sprintf("expect[%d] %q: compile: %v", i, src, err))
			continue
		}
		out, err := expr.Run(program, env)
		if err != nil {
			failures = append(failures, fmt.Sprintf("expect[%d] %q: %v", i, src, err))
			continue
		}
		if ok, _ := out.(bool); !ok {
			failures = append(failures, fmt.Sprintf("expect[%d] %q: evaluated to false", i, src))
		}
	}
	return failures
}

func asMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// tableItems flattens a table's JSON form to its items map.
func tableItems[T any](t *state.Table[T]) (map[string]any, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Items map[string]any `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Items == nil {
		raw.Items = map[string]any{}
	}
	return raw.Items, nil
}
