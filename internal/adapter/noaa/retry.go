package noaa

import (
	"math/rand"
	"time"
)

// RetryPolicy bounds retries against the rate-limited CDO API. Delays grow
// exponentially from BaseDelay up to MaxDelay, with uniform jitter so
// parallel fetchers sharing one token quota don't retry in lockstep.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration // upper bound of jitter added to each delay
}

// DefaultRetryPolicy mirrors the API's documented rate-limit guidance:
// three attempts, 500ms base, capped at 30s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    30 * time.Second,
	Jitter:      300 * time.Millisecond,
}

// Delay returns the wait before retry number attempt (1-based):
// min(MaxDelay, BaseDelay·2^(attempt−1)) plus jitter in [0, Jitter).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}
