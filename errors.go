package ebstack

import (
	"errors"
)

// Standard errors, returned (wrapped) by the constructors when given invalid
// options. Push, Pop, and Size never fail.
var (
	// ErrInvalidStrategy is returned when an unknown Strategy is requested.
	ErrInvalidStrategy = errors.New("ebstack: invalid strategy")

	// ErrInvalidCapacity is returned when the elimination array capacity is not positive.
	ErrInvalidCapacity = errors.New("ebstack: invalid capacity")

	// ErrInvalidTimeout is returned when the elimination timeout is not positive.
	ErrInvalidTimeout = errors.New("ebstack: invalid timeout")

	// ErrInvalidLogRates is returned when the log rate limits are rejected by catrate.
	ErrInvalidLogRates = errors.New("ebstack: invalid log rates")
)
