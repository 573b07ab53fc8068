package inference

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/entail/internal/model"
)

// Guard is the single point of admission for external calls. The token
// bucket and the breaker are only touched under mu, so every caller sees one
// consistent view of both. In-flight calls are bounded by a semaphore.
type Guard struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	breaker breaker
	slots   chan struct{}
	now     func() time.Time

	onStateChange func(state string)
}

// NewGuard creates a guard from the inference settings. A non-positive
// request rate disables the token bucket.
func NewGuard(config model.InferenceConfig) *Guard {
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	inFlight := config.MaxInFlight
	if inFlight <= 0 {
		inFlight = 2
	}

	return &Guard{
		limiter: rate.NewLimiter(limit, burst),
		breaker: newBreaker(config.MaxRetries+1, config.Cooldown),
		slots:   make(chan struct{}, inFlight),
		now:     time.Now,
	}
}

// Acquire waits for a rate token and an in-flight slot. It fails fast with
// ErrCircuitOpen while the breaker is open. trial is true when this call is
// the half-open trial. Every successful Acquire must be paired with Release.
func (g *Guard) Acquire(ctx context.Context) (trial bool, err error) {
	g.mu.Lock()
	now := g.now()
	before := g.breaker.state
	trial, err = g.breaker.allow(now)
	g.notify(before)
	if err != nil {
		g.mu.Unlock()
		return false, err
	}
	res := g.limiter.ReserveN(now, 1)
	g.mu.Unlock()

	if !res.OK() {
		g.settle(trial, EventError)
		return false, errors.New("inference: rate limiter burst is zero")
	}

	if err := sleepContext(ctx, res.DelayFrom(now)); err != nil {
		res.CancelAt(g.now())
		g.settle(trial, EventError)
		return false, err
	}

	select {
	case g.slots <- struct{}{}:
		return trial, nil
	case <-ctx.Done():
		g.settle(trial, EventError)
		return false, ctx.Err()
	}
}

// Release frees the slot taken by Acquire and feeds the call outcome to the
// breaker. outcome is EventOK, EventThrottle or anything else for a call
// that says nothing about provider health. It reports whether the breaker
// opened as a result.
func (g *Guard) Release(trial bool, outcome Event) (tripped bool) {
	<-g.slots
	return g.settle(trial, outcome)
}

func (g *Guard) settle(trial bool, outcome Event) (tripped bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	before := g.breaker.state
	switch outcome {
	case EventOK:
		g.breaker.success(trial)
	case EventThrottle:
		tripped = g.breaker.throttle(g.now(), trial)
	default:
		g.breaker.abandon(trial)
	}
	g.notify(before)
	return tripped
}

// Trip opens the breaker immediately
func (g *Guard) Trip() {
	g.mu.Lock()
	defer g.mu.Unlock()

	before := g.breaker.state
	if before != CircuitOpen {
		g.breaker.open(g.now())
	}
	g.notify(before)
}

// State returns the breaker state
func (g *Guard) State() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breaker.state
}

// Open reports whether calls are currently refused. A breaker whose cooldown
// has elapsed is not open, as the next call is let through as a trial.
func (g *Guard) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.breaker.state {
	case CircuitOpen:
		return g.now().Sub(g.breaker.openedAt) < g.breaker.cooldown
	case CircuitHalfOpen:
		return g.breaker.probing
	default:
		return false
	}
}

// notify must be called with mu held
func (g *Guard) notify(before string) {
	if g.onStateChange != nil && g.breaker.state != before {
		g.onStateChange(g.breaker.state)
	}
}
