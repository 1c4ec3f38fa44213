// Package state holds the single authoritative snapshot and the pure reducer
// that advances it.
//
// Every transition goes through Store.Dispatch. The reducer builds a new
// Snapshot by path copying: slices of state the action does not touch keep
// their pointers, so consumers can detect change with plain pointer
// comparison instead of deep equality.
//
// Actions are a closed set of tags with typed payloads. The payload registry
// lets the journal and the scenario harness rebuild actions from JSON.
package state
