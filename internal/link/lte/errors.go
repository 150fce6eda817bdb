package lte

import "errors"

// Domain-specific errors for the LTE link.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoPeer is returned by Send when no aircraft address has been
	// learned, or the learned address has expired after silence.
	ErrNoPeer = errors.New("lte: no aircraft address learned")
)
