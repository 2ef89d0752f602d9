package runner

import "errors"

var (
	// ErrIterationLimit is returned when a task's tool loop exceeds its
	// configured iteration ceiling without reaching a sentinel-terminated
	// response.
	ErrIterationLimit = errors.New("runner: iteration limit exceeded")

	// ErrOutputTokenLimit is returned when a task's cumulative Model output
	// exceeds its configured token ceiling.
	ErrOutputTokenLimit = errors.New("runner: output token limit exceeded")
)
