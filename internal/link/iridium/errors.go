package iridium

import "errors"

// Domain-specific errors for the Iridium link.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrClosed is returned by Send after the link has been stopped.
	ErrClosed = errors.New("iridium: link closed")

	// ErrDeliveryFailed indicates the gateway refused or never received an
	// outbound message attempt. Wrapped with the attempt's detail.
	ErrDeliveryFailed = errors.New("iridium: delivery failed")
)
