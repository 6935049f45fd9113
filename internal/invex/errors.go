package invex

import "errors"

// Error classes surfaced by the engine. Callers distinguish them with
// errors.Is to pick an exit status.
var (
	// ErrInput marks a failure reading an alignment or annotation source.
	ErrInput = errors.New("input error")
	// ErrOutput marks a failure writing a result sink.
	ErrOutput = errors.New("output error")
)
