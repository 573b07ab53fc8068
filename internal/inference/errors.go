package inference

import "errors"

var (
	// ErrCircuitOpen is returned without contacting the provider while the
	// breaker is open
	ErrCircuitOpen = errors.New("inference: circuit breaker is open")

	// ErrThrottled wraps the last transient error of a call that ran out of retries
	ErrThrottled = errors.New("inference: throttled")

	// ErrInvalidTransition reports an event the current state does not accept
	ErrInvalidTransition = errors.New("inference: invalid state transition")
)
