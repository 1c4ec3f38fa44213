// Package journal is the SQLite action journal behind deterministic replay.
//
// The journal is append-only:
//   - actions: every dispatched action, keyed by its store sequence number,
//     with the payload stored as canonical JSON
//   - checkpoints: snapshot hashes recorded every N actions
//
// Ordering uses seq only, never wall time, so a journal replays to the same
// snapshot hash on any machine. Reads always ORDER BY seq ASC.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - user_version tracks migrations
package journal
