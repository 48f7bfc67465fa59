// Package counterstore reads the outstanding-work counter that other
// processes on the node keep in Redis.
//
// Reads never fail from the caller's point of view: a missing key, an
// unreachable store, a timeout or a garbled value all read as zero, and
// the failure is logged with its category (connection-error,
// timeout-error, unknown-error). The next heartbeat tick is the retry.
package counterstore
