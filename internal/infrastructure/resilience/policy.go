package resilience

import (
	"math"
	"time"
)

// Config bounds retries and breaker behaviour. Zero fields take the
// DefaultConfig value.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig suits object-store fetches: three attempts within roughly
// half a second, and a breaker that opens for 30s once half of at least five
// calls fail.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// WithRetryAttempts returns a copy with the attempt budget replaced; n <= 0
// keeps the current value.
func (c Config) WithRetryAttempts(n int) Config {
	if n > 0 {
		c.RetryMaxAttempts = n
	}
	return c
}

// Delay is the wait after the given failed attempt (1-based):
// initial * multiplier^(attempt-1), capped at RetryMaxBackoff.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := float64(c.RetryInitialBackoff) * math.Pow(c.RetryMultiplier, float64(attempt-1))
	if d >= float64(c.RetryMaxBackoff) || math.IsInf(d, 1) {
		return c.RetryMaxBackoff
	}
	return time.Duration(d)
}

func positiveOr[T int | uint32 | float64 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

func (c Config) normalize() Config {
	def := DefaultConfig()

	c.RetryMaxAttempts = positiveOr(c.RetryMaxAttempts, def.RetryMaxAttempts)
	c.RetryInitialBackoff = positiveOr(c.RetryInitialBackoff, def.RetryInitialBackoff)
	c.RetryMaxBackoff = max(positiveOr(c.RetryMaxBackoff, def.RetryMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	c.BreakerMinRequests = positiveOr(c.BreakerMinRequests, def.BreakerMinRequests)
	if c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = 0
	}
	c.BreakerFailureRatio = positiveOr(c.BreakerFailureRatio, def.BreakerFailureRatio)
	c.BreakerOpenTimeout = positiveOr(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	c.BreakerHalfOpenMaxCalls = positiveOr(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return c
}
