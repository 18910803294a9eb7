// Package cacheerr declares the sentinel error kinds shared across the
// coordinator, peer client, and ring, per the error handling design.
package cacheerr

import "errors"

var (
	// ErrRingEmpty means the hash ring currently has no physical nodes.
	ErrRingEmpty = errors.New("ring: no nodes available")

	// ErrPeerUnreachable means a peer HTTP call failed before a response
	// was received (connection refused, DNS failure, etc).
	ErrPeerUnreachable = errors.New("peer: unreachable")

	// ErrPeerTimeout means a peer HTTP call exceeded its configured
	// timeout.
	ErrPeerTimeout = errors.New("peer: timed out")

	// ErrPeerErrorResponse means a peer responded with a non-2xx status.
	ErrPeerErrorResponse = errors.New("peer: error response")

	// ErrNotFound means the requested key is absent or expired.
	ErrNotFound = errors.New("cache: key not found")
)
