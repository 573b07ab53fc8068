package inference

import (
	"context"
	"math"
	"time"
)

// BackoffPolicy defines exponential backoff with proportional jitter
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64 // 0.0 to 1.0
}

// Delay returns the sleep before retry number attempt (1-based), given a
// random value in [0,1). The result is
// min(Max, Initial*Factor^(attempt-1) * (1 + Jitter*random)).
func (p BackoffPolicy) Delay(attempt int, random float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Initial) * math.Pow(p.Factor, exp)
	total := math.Min(float64(p.Max), base+base*p.Jitter*random)
	return time.Duration(math.Round(total/float64(time.Millisecond))) * time.Millisecond
}

// sleepContext sleeps for d unless ctx ends first
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
