package broker

import "errors"

// Domain-specific errors for the broker link.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoHandler indicates an air-bound message arrived before the
	// corresponding callback was registered.
	ErrNoHandler = errors.New("broker: no handler registered for topic")
)
