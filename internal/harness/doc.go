// Package harness runs scenario files against the state store.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: login_then_logout
//	description: "An account appears on LOGIN and is removed on LOGOUT"
//	actions:
//	  - type: LOGIN
//	    payload: { accountId: a, username: alice }
//	  - type: LOGOUT
//	    payload: { accountId: a }
//	expect:
//	  - len(accounts) == 0
//	  - count(trace, # == "LOGIN") == 1
//
// Each action is decoded strictly against its payload struct and dispatched
// in order. Every expect entry is an expr-lang boolean expression evaluated
// against the final snapshot view (see Env).
//
// # Determinism
//
// Every run journals its actions to an in-memory SQLite journal with a
// checkpoint after each action, then replays the journal and fails the
// scenario if replay disagrees with any checkpoint.
package harness
