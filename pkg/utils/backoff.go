package utils

import (
	"math"
	"time"
)

// Backoff kinds accepted by ParseBackoff
const (
	BackoffConstant    = "constant"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// defaultCeiling bounds growing backoffs configured without a maximum
const defaultCeiling = 30 * time.Second

// Backoff maps a zero-based retry number to the wait before that retry
type Backoff func(retry int) time.Duration

// NextDelay returns the wait before the given retry. A nil Backoff never waits.
func (b Backoff) NextDelay(retry int) time.Duration {
	if b == nil || retry < 0 {
		return 0
	}
	return b(retry)
}

// Constant waits d before every retry
func Constant(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Linear waits step, 2*step, 3*step... up to ceiling
func Linear(step, ceiling time.Duration) Backoff {
	return func(retry int) time.Duration {
		return capDelay(float64(step)*float64(retry+1), ceiling)
	}
}

// Exponential waits base*factor^retry up to ceiling. A factor below or
// equal to one is replaced by two. When jitter is non-nil the capped delay
// is scaled by 0.5+jitter(), so jitter should draw from [0, 1).
func Exponential(base, ceiling time.Duration, factor float64, jitter func() float64) Backoff {
	if factor <= 1 {
		factor = 2
	}
	return func(retry int) time.Duration {
		d := capDelay(float64(base)*math.Pow(factor, float64(retry)), ceiling)
		if jitter != nil {
			d = time.Duration(float64(d) * (0.5 + jitter()))
		}
		return d
	}
}

// ParseBackoff builds the backoff named by kind. Unknown kinds become a
// jittered exponential drawing from the package default source.
func ParseBackoff(kind string, base, ceiling time.Duration) Backoff {
	if ceiling <= 0 {
		ceiling = defaultCeiling
	}
	switch kind {
	case BackoffConstant:
		return Constant(base)
	case BackoffLinear:
		return Linear(base, ceiling)
	default:
		return Exponential(base, ceiling, 2, Float64)
	}
}

func capDelay(d float64, ceiling time.Duration) time.Duration {
	if ceiling > 0 && (d > float64(ceiling) || math.IsInf(d, 1) || math.IsNaN(d)) {
		return ceiling
	}
	return time.Duration(d)
}
