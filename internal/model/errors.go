package model

import (
	"errors"
	"fmt"
)

// Sentinel errors a Provider implementation wraps its underlying SDK errors
// in, so the Runner can classify a failure without knowing which vendor
// produced it.
var (
	ErrRateLimited    = errors.New("model: rate limited")
	ErrUnavailable    = errors.New("model: provider unavailable")
	ErrInvalidRequest = errors.New("model: invalid request")
)

// Error wraps a provider-specific failure with the vendor name and the
// sentinel it maps to, pairing a struct with a matching sentinel so
// errors.Is still works after the wrap.
type Error struct {
	Provider string
	Sentinel error
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model(%s): %v: %v", e.Provider, e.Sentinel, e.Cause)
	}
	return fmt.Sprintf("model(%s): %v", e.Provider, e.Sentinel)
}

func (e *Error) Unwrap() error { return e.Sentinel }

// Retryable reports whether the Runner may reasonably retry the same
// request without the Model Provider's internal retry logic having already
// exhausted itself.
func (e *Error) Retryable() bool {
	return errors.Is(e.Sentinel, ErrRateLimited) || errors.Is(e.Sentinel, ErrUnavailable)
}
