package harness

import (
	"github.com/roach88/walletcore/internal/ir"
)

// TraceEvent is one dispatched action.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	// Payload is the canonical payload as journaled.
	Payload ir.Object `json:"payload"`
	// Changed is false when the reducer returned the previous snapshot.
	Changed bool `json:"changed"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation held and replay agreed.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors is empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// SnapshotHash is the hash of the final snapshot.
	SnapshotHash string `json:"snapshot_hash"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
