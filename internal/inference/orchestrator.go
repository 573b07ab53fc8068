package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/entail/internal/cache"
	"github.com/ppiankov/entail/internal/llm"
	"github.com/ppiankov/entail/internal/model"
)

// CallFunc performs one attempt of an external call
type CallFunc func(ctx context.Context) ([]byte, error)

// Orchestrator runs external calls through the cache, the guard and the
// retry loop. It is safe for concurrent use and is meant to be shared by
// every evaluation in the process.
type Orchestrator struct {
	guard       *Guard
	cache       cache.Cache
	cacheTTL    time.Duration
	policy      BackoffPolicy
	maxRetries  int
	callTimeout time.Duration

	isThrottle func(error) bool
	sleep      func(context.Context, time.Duration) error
	random     func() float64
	metrics    *Metrics
	logger     *slog.Logger

	// in-flight misses per cache key
	flight singleflight.Group

	externalCalls atomic.Int64
	cacheHits     atomic.Int64
}

type flightResult struct {
	out []byte
	rec model.InferenceRecord
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSleep replaces the backoff sleep, mainly for tests
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithRand replaces the jitter source
func WithRand(random func() float64) Option {
	return func(o *Orchestrator) { o.random = random }
}

// WithClock replaces the clock used by the breaker and limiter
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.guard.now = now }
}

// WithMetrics records call outcomes on m
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithThrottleClassifier replaces llm.IsThrottle
func WithThrottleClassifier(fn func(error) bool) Option {
	return func(o *Orchestrator) { o.isThrottle = fn }
}

// New creates an orchestrator. c may be nil to disable caching.
func New(config model.InferenceConfig, c cache.Cache, cacheTTL time.Duration, opts ...Option) *Orchestrator {
	callTimeout := config.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	factor := config.BackoffFactor
	if factor < 1 {
		factor = 2
	}

	o := &Orchestrator{
		guard:    NewGuard(config),
		cache:    c,
		cacheTTL: cacheTTL,
		policy: BackoffPolicy{
			Initial: config.InitialBackoff,
			Max:     config.MaxBackoff,
			Factor:  factor,
			Jitter:  config.Jitter,
		},
		maxRetries:  max(config.MaxRetries, 0),
		callTimeout: callTimeout,
		isThrottle:  llm.IsThrottle,
		sleep:       sleepContext,
		random:      rand.Float64, // #nosec G404 -- jitter does not need a secure source
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.guard.onStateChange = func(state string) {
		o.metrics.setCircuit(state)
		o.logger.Warn("inference circuit breaker", "state", state)
	}
	return o
}

// Call returns the response for (kind, prompt, scope), from cache when
// possible. Concurrent misses for the same key share one external call.
// Throttles are retried with backoff; once retries run out the breaker opens
// and the error wraps ErrThrottled. While the breaker is open Call fails with
// ErrCircuitOpen without invoking fn. A cancelled or expired ctx is returned
// as is and never retried.
func (o *Orchestrator) Call(ctx context.Context, kind, prompt, scope string, fn CallFunc) ([]byte, model.InferenceRecord, error) {
	key := cache.CacheKey(kind, prompt, scope)
	usage := usageFrom(ctx)

	for {
		if out, ok := o.Lookup(key); ok {
			return out, o.hit(kind, key, usage), nil
		}
		if o.cache == nil {
			return o.call(ctx, kind, key, fn)
		}

		leader := false
		ch := o.flight.DoChan(key, func() (any, error) {
			leader = true
			out, rec, err := o.call(ctx, kind, key, fn)
			return flightResult{out: out, rec: rec}, err
		})
		var r singleflight.Result
		select {
		case r = <-ch:
		case <-ctx.Done():
			return nil, model.InferenceRecord{PromptHash: key, State: StateFailed.String()}, ctx.Err()
		}

		res := r.Val.(flightResult)
		if leader {
			return res.out, res.rec, r.Err
		}
		if r.Err != nil {
			// Another caller's cancellation says nothing about this one
			if ctx.Err() == nil && !errors.Is(r.Err, ErrThrottled) &&
				(errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)) {
				continue
			}
			return nil, res.rec, r.Err
		}
		return res.out, o.hit(kind, key, usage), nil
	}
}

func (o *Orchestrator) hit(kind, key string, usage *Usage) model.InferenceRecord {
	o.cacheHits.Add(1)
	usage.addCacheHit()
	o.metrics.recordCacheHit(kind)
	return model.InferenceRecord{PromptHash: key, CacheHit: true, State: StateSuccess.String()}
}

// call runs the guarded retry loop for one cache miss
func (o *Orchestrator) call(ctx context.Context, kind, key string, fn CallFunc) ([]byte, model.InferenceRecord, error) {
	rec := model.InferenceRecord{PromptHash: key}
	usage := usageFrom(ctx)

	start := time.Now()
	state := StatePending
	advance := func(e Event) {
		next, err := Transition(state, e)
		if err != nil {
			o.logger.Error("inference state machine", "kind", kind, "error", err)
			return
		}
		state = next
	}
	finish := func(out []byte, err error) ([]byte, model.InferenceRecord, error) {
		rec.State = state.String()
		rec.LatencyMS = time.Since(start).Milliseconds()
		if rec.AttemptCount > 0 {
			o.metrics.recordCall(kind, rec.State, time.Since(start).Seconds())
		}
		return out, rec, err
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			advance(EventError)
			return finish(nil, err)
		}

		trial, err := o.guard.Acquire(ctx)
		if err != nil {
			if errors.Is(err, ErrCircuitOpen) {
				advance(EventRejected)
			} else {
				advance(EventError)
			}
			return finish(nil, err)
		}

		advance(EventDispatch)
		rec.AttemptCount = attempt
		o.externalCalls.Add(1)
		usage.addExternalCall()

		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		out, err := fn(callCtx)
		cancel()

		if err == nil {
			o.guard.Release(trial, EventOK)
			advance(EventOK)
			o.Store(key, out)
			return finish(out, nil)
		}

		// Parent cancellation is not a provider signal
		if ctxErr := ctx.Err(); ctxErr != nil {
			o.guard.Release(trial, EventError)
			advance(EventError)
			return finish(nil, ctxErr)
		}

		if !o.isThrottle(err) {
			o.guard.Release(trial, EventError)
			advance(EventError)
			return finish(nil, fmt.Errorf("%s call: %w", kind, err))
		}

		o.metrics.recordThrottle()
		tripped := o.guard.Release(trial, EventThrottle)
		advance(EventThrottle)

		if attempt > o.maxRetries || tripped {
			advance(EventExhausted)
			o.guard.Trip()
			advance(EventTrip)
			return finish(nil, fmt.Errorf("%w: %s call failed after %d attempts: %w", ErrThrottled, kind, attempt, err))
		}

		advance(EventRetry)
		delay := o.policy.Delay(attempt, o.random())
		o.logger.Debug("inference throttled, backing off", "kind", kind, "attempt", attempt, "delay", delay, "error", err)
		if err := o.sleep(ctx, delay); err != nil {
			advance(EventError)
			return finish(nil, err)
		}
	}
}

// Lookup returns a cached response by key
func (o *Orchestrator) Lookup(key string) ([]byte, bool) {
	if o.cache == nil {
		return nil, false
	}
	return o.cache.Get(key)
}

// Store writes a response to the cache. Failures are logged and ignored.
func (o *Orchestrator) Store(key string, value []byte) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(key, value, o.cacheTTL); err != nil {
		o.logger.Warn("inference cache write failed", "error", err)
	}
}

// Degraded reports whether external calls are currently refused
func (o *Orchestrator) Degraded() bool {
	return o.guard.Open()
}

// BreakerState returns closed, open or half-open
func (o *Orchestrator) BreakerState() string {
	return o.guard.State()
}

// ExternalCalls returns the number of provider invocations so far
func (o *Orchestrator) ExternalCalls() int64 {
	return o.externalCalls.Load()
}

// CacheHits returns the number of calls served from cache so far
func (o *Orchestrator) CacheHits() int64 {
	return o.cacheHits.Load()
}

// Usage counts the calls made on behalf of one evaluation
type Usage struct {
	// in-flight misses per cache key
	flight singleflight.Group

	externalCalls atomic.Int64
	cacheHits     atomic.Int64
}

// ExternalCalls returns the provider invocations attributed to this usage
func (u *Usage) ExternalCalls() int64 { return u.externalCalls.Load() }

// CacheHits returns the cache hits attributed to this usage
func (u *Usage) CacheHits() int64 { return u.cacheHits.Load() }

func (u *Usage) addExternalCall() {
	if u != nil {
		u.externalCalls.Add(1)
	}
}

func (u *Usage) addCacheHit() {
	if u != nil {
		u.cacheHits.Add(1)
	}
}

type usageKey struct{}

// WithUsage attributes calls made with the returned context to u
func WithUsage(ctx context.Context, u *Usage) context.Context {
	return context.WithValue(ctx, usageKey{}, u)
}

func usageFrom(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}
