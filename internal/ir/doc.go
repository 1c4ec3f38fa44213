// Package ir provides the canonical value representation used to fingerprint
// walletcore state.
//
// Snapshots and action payloads are converted into ir values before they are
// hashed or written to the journal. The canonical form is what makes replay
// verifiable: two runs that reduce the same action sequence must produce
// byte-identical canonical snapshots, and therefore identical hashes.
//
// Key design constraints:
//   - No float type. Rates and amounts are carried as decimal strings so the
//     canonical form never depends on float formatting.
//   - Object keys are ordered by UTF-16 code units (RFC 8785), not Go's
//     UTF-8 byte order.
//   - Strings are NFC normalized at the serialization boundary.
//
// ir imports nothing internal; every other package may import it.
package ir
