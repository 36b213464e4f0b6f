package modelclient

import (
	"math/rand"
	"time"
)

// Policy controls retry behavior for model service calls. It is a plain
// value so it can be unit-tested with a fake clock and fake transport.
type Policy struct {
	// MaxAttempts bounds the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the first retry; each subsequent
	// retry doubles it up to MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration
	// Jitter is the fraction of the computed delay randomized in either
	// direction to avoid synchronized retry storms. Must be in [0, 1].
	Jitter float64
}

// DefaultPolicy returns the production retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

// Delay computes the backoff before retrying after the given attempt
// (1-based). The result is exponential in the attempt number, capped at
// MaxDelay, with +/- Jitter randomization applied.
func (p Policy) Delay(attempt int, rnd *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 && rnd != nil {
		spread := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) + (rnd.Float64()*2-1)*spread)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}
