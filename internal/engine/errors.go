package engine

import (
	"errors"
	"fmt"
)

// StopUpdates is returned from Update (or a converge function) to mean "do
// not call again until this node is destroyed and rebuilt". It is not a fault.
var StopUpdates = errors.New("engine: stop updates")

// Op names the runtime operation that faulted.
type Op string

const (
	OpBuild   Op = "build"
	OpUpdate  Op = "update"
	OpDestroy Op = "destroy"
	OpProps   Op = "props"
	OpPass    Op = "pass"
	OpTask    Op = "task"
)

// NodeError is a fault caught by the runtime. Either Err or Panic is set.
type NodeError struct {
	// Path locates the node in the tree ("" is the root).
	Path string

	// Op is the operation that faulted.
	Op Op

	// Err is the returned error.
	Err error

	// Panic is the recovered panic value.
	Panic any
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	path := e.Path
	if path == "" {
		path = "/"
	}
	if e.Panic != nil {
		return fmt.Sprintf("%s %s: panic: %v", path, e.Op, e.Panic)
	}
	return fmt.Sprintf("%s %s: %v", path, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// IsNodeError reports whether err is or wraps a *NodeError.
func IsNodeError(err error) bool {
	var ne *NodeError
	return errors.As(err, &ne)
}

// IsNodePanic reports whether err wraps a recovered panic.
// Uses errors.As to handle wrapped errors.
func IsNodePanic(err error) bool {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.Panic != nil
	}
	return false
}

func recovered(path string, op Op, r any) *NodeError {
	return &NodeError{Path: path, Op: op, Panic: r}
}
