// Package engine implements the reactive orchestration runtime: a tree of
// worker nodes attached to a state.Store.
//
// ARCHITECTURE:
//
// Attach subscribes to the store once. Every notification, and every output
// published by a node, triggers an update pass. A pass recomputes the root
// props from the current snapshot and the output mirror, then walks the tree:
//
//   - Combine forwards props to each named child and aggregates their outputs.
//   - Collection diffs a derived id set, building and destroying children as
//     ids enter and leave.
//   - Filter transforms props for a subtree.
//   - Leaf nodes receive props through a single-slot mailbox and converge on
//     their own goroutine. Intermediate props may be skipped; the latest is
//     always delivered.
//
// Combinators run inline in the pass, so membership changes are applied
// before Dispatch returns. Leaf work is asynchronous and never blocks a pass.
//
// CHANGE DETECTION:
//
// Props and outputs are compared with Same, a shallow reference comparison.
// The state reducer returns identical pointers for unchanged subtrees, so a
// node only reconverges when something it reads was actually replaced.
//
// FAULTS:
//
// Panics and errors from Update, Destroy, factories and selectors are caught
// and delivered to the single error sink as *NodeError. A fault never unwinds
// a sibling.
//
// TEARDOWN:
//
// Root.Destroy detaches every node exactly once, cancels node contexts, and
// waits for leaf goroutines to run their Destroy. Calling it again is a no-op.
package engine
