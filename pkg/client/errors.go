package client

import "errors"

var (
	// ErrNotConnected is returned by Send when the handle is not in the
	// open state. Nothing is queued; the caller owns retry policy.
	ErrNotConnected = errors.New("push connection is not open")
	// ErrClosed is returned after an explicit Close; a closed handle
	// never reconnects.
	ErrClosed = errors.New("push connection is closed")
	// ErrTimeout is a mutation call or handshake that did not complete
	// in time. The API retries a timed-out call once before surfacing it.
	ErrTimeout = errors.New("request timed out")
)
