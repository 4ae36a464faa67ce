// Package policy holds the resilience policies applied around engine calls.
package policy

import (
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
)

// Policy is the part shared by every engine policy
type Policy interface {
	Enabled() bool
	Name() string
}

// RetryPolicy decides whether a failed MCML call is attempted again.
// attempt counts from zero for the call that just failed; the backoff
// is asked for the retry number, which counts from one.
type RetryPolicy interface {
	Policy
	ShouldRetry(attempt int, err error) bool
	GetBackoffDuration(retry int) time.Duration
	GetMaxRetries() int
}

// CircuitBreakerPolicy stops calling an engine that keeps failing. State
// is tracked per key so several engines could share one breaker.
type CircuitBreakerPolicy interface {
	Policy
	AllowRequest(key string) bool
	RecordSuccess(key string)
	RecordFailure(key string)
	GetState(key string) CircuitState
}

// CircuitState is the position of one breaker key
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "halfopen"
)

// Set is the resilience configured for the engine of one run. A nil member
// is switched off.
type Set struct {
	Retry   RetryPolicy
	Breaker CircuitBreakerPolicy
}

// FromConfig builds the policy set of cfg. Retries and the breaker are
// opt-in: they stay nil until max_retries or failure_threshold is set.
func FromConfig(cfg *config.Config) Set {
	var s Set
	if cfg == nil {
		return s
	}
	if cfg.Retries.MaxRetries > 0 {
		s.Retry = NewRetryPolicyFromConfig(&cfg.Retries)
	}
	if cfg.Breaker.FailureThreshold > 0 {
		s.Breaker = NewCircuitBreakerPolicyFromConfig(&cfg.Breaker)
	}
	return s
}
