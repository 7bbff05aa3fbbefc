package live

import "errors"

var (
	// ErrNotAuthenticated means no credential was available or the server refused it.
	// It is terminal: the manager makes no further connection attempts.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotConnected is returned by Send while the channel is not open.
	ErrNotConnected = errors.New("not connected")
	// ErrMalformedFrame marks an inbound frame that could not be decoded or merged.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrReconnectExhausted is recorded when a bounded policy runs out of attempts.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// IsTerminal reports whether err leaves the manager idle for good.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrReconnectExhausted)
}
