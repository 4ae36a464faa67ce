package policy

import (
	"context"
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/config"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
)

// engineRetry re-runs a failed MCML call up to limit extra times
type engineRetry struct {
	limit int
	wait  utils.Backoff
}

// NewRetryPolicyFromConfig builds the retry policy of the engine section.
// max_retries of zero disables it.
func NewRetryPolicyFromConfig(cfg *config.RetryPolicy) RetryPolicy {
	wait := utils.ParseBackoff(cfg.Backoff, utils.Millis(cfg.BaseMs), utils.Millis(cfg.MaxMs))
	return NewRetryPolicy(cfg.MaxRetries > 0, cfg.MaxRetries, wait)
}

// NewRetryPolicy creates a retry policy. A disabled policy keeps its limit
// for reporting but never retries.
func NewRetryPolicy(enabled bool, maxRetries int, wait utils.Backoff) RetryPolicy {
	r := engineRetry{limit: maxRetries, wait: wait}
	if !enabled {
		return disabledRetry{r}
	}
	return r
}

func (r engineRetry) Enabled() bool      { return true }
func (r engineRetry) Name() string       { return "retry" }
func (r engineRetry) GetMaxRetries() int { return r.limit }

func (r engineRetry) ShouldRetry(attempt int, err error) bool {
	return attempt < r.limit && retryable(err)
}

func (r engineRetry) GetBackoffDuration(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}
	return r.wait.NextDelay(retry - 1)
}

// disabledRetry reports the configured limit but never retries
type disabledRetry struct{ engineRetry }

func (disabledRetry) Enabled() bool                        { return false }
func (disabledRetry) ShouldRetry(int, error) bool          { return false }
func (disabledRetry) GetBackoffDuration(int) time.Duration { return 0 }

// retryable reports whether err may succeed on another attempt. A cancelled
// run and a broken configuration never do; a per-call deadline may.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var cfgErr *models.ConfigurationError
	return !errors.As(err, &cfgErr)
}
