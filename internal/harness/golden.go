package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/walletcore/internal/ir"
)

// TraceSnapshot is the golden form of a run: the scenario name and every
// dispatched action with its canonical payload.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		payload := ev.Payload
		if payload == nil {
			payload = ir.Object{}
		}
		trace[i] = map[string]any{
			"seq":     ev.Seq,
			"type":    ev.Type,
			"payload": payload,
			"changed": ev.Changed,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
}

// MarshalGolden returns the canonical JSON compared against golden files.
func MarshalGolden(name string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden runs a scenario and compares its trace against
// testdata/golden/{name}.golden. The snapshot hash is not part of the
// golden file; the trace already determines it.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalGolden(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
