package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/internal/policy"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/logger"
)

// BreakerKey is the circuit key used for engine calls
const BreakerKey = "engine"

// WithTimeout bounds every call to d. A zero or negative d returns e
// unchanged. The call returns at the deadline even if e ignores ctx.
func WithTimeout(e Engine, d time.Duration) Engine {
	if d <= 0 {
		return e
	}
	return Func(func(ctx context.Context, req Request) (float64, error) {
		callCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			value float64
			err   error
		}
		done := make(chan result, 1)
		go func() {
			v, err := e.Simulate(callCtx, req)
			done <- result{v, err}
		}()

		select {
		case r := <-done:
			if r.err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
				return 0, fmt.Errorf("%w after %s: %w", ErrTimeout, d, r.err)
			}
			return r.value, r.err
		case <-callCtx.Done():
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
	})
}

// WithRetry re-invokes e after failures the policy accepts, waiting the
// policy's backoff between attempts. A nil or disabled policy returns e
// unchanged.
func WithRetry(e Engine, p policy.RetryPolicy) Engine {
	if p == nil || !p.Enabled() {
		return e
	}
	return Func(func(ctx context.Context, req Request) (float64, error) {
		for attempt := 0; ; attempt++ {
			v, err := e.Simulate(ctx, req)
			if err == nil {
				return v, nil
			}
			if ctx.Err() != nil || !p.ShouldRetry(attempt, err) {
				return 0, err
			}

			wait := p.GetBackoffDuration(attempt + 1)
			logger.Warn("retrying engine call",
				"sim_index", req.SimIndex,
				"wavelength", req.Wavelength,
				"attempt", attempt+1,
				"backoff", wait,
				"error", err)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return 0, ctx.Err()
			case <-timer.C:
			}
		}
	})
}

// WithCircuitBreaker rejects calls with ErrCircuitOpen while cb is open and
// feeds it the outcome of every call that ran. Cancellation is not counted.
// A nil or disabled breaker returns e unchanged.
func WithCircuitBreaker(e Engine, cb policy.CircuitBreakerPolicy) Engine {
	if cb == nil || !cb.Enabled() {
		return e
	}
	return Func(func(ctx context.Context, req Request) (float64, error) {
		if !cb.AllowRequest(BreakerKey) {
			return 0, ErrCircuitOpen
		}
		v, err := e.Simulate(ctx, req)
		switch {
		case err == nil:
			cb.RecordSuccess(BreakerKey)
		case ctx.Err() == nil:
			cb.RecordFailure(BreakerKey)
		}
		return v, err
	})
}

// Wrap applies the per-call timeout, then the retry policy and the circuit
// breaker of ps around e. Each retry attempt gets its own deadline.
func Wrap(e Engine, timeout time.Duration, ps policy.Set) Engine {
	e = WithTimeout(e, timeout)
	e = WithRetry(e, ps.Retry)
	return WithCircuitBreaker(e, ps.Breaker)
}
