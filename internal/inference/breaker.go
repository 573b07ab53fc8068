package inference

import "time"

// Breaker states
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"
)

// breaker counts consecutive throttles across all callers. It has no lock of
// its own; the owning Guard serializes every method.
type breaker struct {
	threshold int
	cooldown  time.Duration

	state     string
	throttles int
	openedAt  time.Time
	probing   bool
}

func newBreaker(threshold int, cooldown time.Duration) breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return breaker{threshold: threshold, cooldown: cooldown, state: CircuitClosed}
}

// allow admits a call. Once the cooldown has elapsed a single trial is let
// through; everyone else is refused until the trial settles.
func (b *breaker) allow(now time.Time) (trial bool, err error) {
	switch b.state {
	case CircuitOpen:
		if now.Sub(b.openedAt) < b.cooldown {
			return false, ErrCircuitOpen
		}
		b.state = CircuitHalfOpen
		b.probing = true
		return true, nil
	case CircuitHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *breaker) success(trial bool) {
	b.throttles = 0
	if trial || b.state == CircuitHalfOpen {
		b.state = CircuitClosed
		b.probing = false
	}
}

// throttle records a transient failure and reports whether it opened the breaker
func (b *breaker) throttle(now time.Time, trial bool) bool {
	if trial || b.state == CircuitHalfOpen {
		b.open(now)
		return true
	}
	b.throttles++
	if b.state == CircuitClosed && b.throttles >= b.threshold {
		b.open(now)
		return true
	}
	return false
}

// abandon settles a call that ended without a verdict on provider health
func (b *breaker) abandon(trial bool) {
	if trial {
		b.probing = false
	}
}

func (b *breaker) open(now time.Time) {
	b.state = CircuitOpen
	b.openedAt = now
	b.throttles = 0
	b.probing = false
}
