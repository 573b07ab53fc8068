// Package inference guards every external model call with a rate limiter,
// bounded retries and a circuit breaker, and serves repeats from a cache.
package inference

import "fmt"

// State is the lifecycle position of one external call
type State int

const (
	StatePending State = iota
	StateInFlight
	StateThrottled
	StateBackoff
	StateSuccess
	StateFailed
	StateCircuitOpen
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateThrottled:
		return "throttled"
	case StateBackoff:
		return "backoff"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	case StateCircuitOpen:
		return "circuit_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateCircuitOpen
}

// Event drives the call state machine
type Event int

const (
	EventDispatch  Event = iota // request handed to the provider
	EventOK                     // provider answered
	EventThrottle               // 429/503, provider overload or per-call timeout
	EventError                  // non-transient failure or cancellation
	EventRetry                  // retry budget left, start sleeping
	EventExhausted              // retry budget spent
	EventTrip                   // breaker opened after exhaustion
	EventRejected               // breaker refused the call
)

func (e Event) String() string {
	switch e {
	case EventDispatch:
		return "dispatch"
	case EventOK:
		return "ok"
	case EventThrottle:
		return "throttle"
	case EventError:
		return "error"
	case EventRetry:
		return "retry"
	case EventExhausted:
		return "exhausted"
	case EventTrip:
		return "trip"
	case EventRejected:
		return "rejected"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type edge struct {
	from State
	on   Event
}

var transitions = map[edge]State{
	{StatePending, EventDispatch}:    StateInFlight,
	{StatePending, EventRejected}:    StateCircuitOpen,
	{StatePending, EventError}:       StateFailed,
	{StateInFlight, EventOK}:         StateSuccess,
	{StateInFlight, EventThrottle}:   StateThrottled,
	{StateInFlight, EventError}:      StateFailed,
	{StateThrottled, EventRetry}:     StateBackoff,
	{StateThrottled, EventExhausted}: StateFailed,
	{StateThrottled, EventError}:     StateFailed,
	{StateBackoff, EventDispatch}:    StateInFlight,
	{StateBackoff, EventRejected}:    StateCircuitOpen,
	{StateBackoff, EventError}:       StateFailed,
	{StateFailed, EventTrip}:         StateCircuitOpen,
}

// Transition returns the state reached from s on e. It has no side effects.
func Transition(s State, e Event) (State, error) {
	next, ok := transitions[edge{s, e}]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
	}
	return next, nil
}
