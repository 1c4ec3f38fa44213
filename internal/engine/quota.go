package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxPasses bounds how many passes one drain may run while the output
// mirror keeps changing. A tree that never settles is a bug in a node, not
// something to spin on.
const DefaultMaxPasses = 1000

// passQuota counts passes within one drain.
type passQuota struct {
	max     int
	current int
}

func newPassQuota(max int) *passQuota {
	return &passQuota{max: max}
}

// check increments the pass counter and fails once it exceeds the limit.
func (q *passQuota) check() error {
	q.current++
	if q.current > q.max {
		return &PassLimitError{Passes: q.current, Limit: q.max}
	}
	return nil
}

// PassLimitError is reported when a drain exceeds its pass quota. The drain
// stops; the next notification starts a fresh one.
type PassLimitError struct {
	Passes int
	Limit  int
}

// Error implements the error interface.
func (e *PassLimitError) Error() string {
	return fmt.Sprintf("output did not settle: %d passes > %d limit", e.Passes, e.Limit)
}

// IsPassLimitError reports whether err is or wraps a *PassLimitError.
func IsPassLimitError(err error) bool {
	var pe *PassLimitError
	return errors.As(err, &pe)
}
