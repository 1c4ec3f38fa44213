// Package keys assembles the key material attached to an account when a
// wallet is created.
//
// A wallet is described by a KeyInfo: a type string, a bag of opaque keys,
// and an id derived from the keys themselves. MakeKeysKit packages one or
// more KeyInfos into a KeysKit, which carries the encrypted boxes submitted
// to the login server, the local stash, and the login-tree updates that are
// applied once the server accepts the kit.
//
// The derivation math here is intentionally small. Real deployments supply
// their own login server; this package only fixes the shapes that the
// runtime moves around.
package keys
