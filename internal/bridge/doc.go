// Package bridge exposes values to host code as live proxies.
//
// A Proxy wraps one value owned by an orchestration node. The owner replaces
// the value and calls Refresh; observers subscribe to named events, watch
// refreshes, or block in WaitFor until a condition holds. Close is terminal:
// every read afterwards fails with ErrDisposed and every refresh is a no-op.
package bridge
