package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/logger"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
)

// SecretHeader carries the configured callback secret
const SecretHeader = "X-Spectragen-Callback-Secret"

// NotificationPayload is the JSON body posted to the callback URL
type NotificationPayload struct {
	RunID        string             `json:"run_id"`
	Status       models.RunStatus   `json:"status"`
	Simulations  int                `json:"simulations"`
	Wavelengths  int                `json:"wavelengths"`
	Seed         int64              `json:"seed"`
	FailedCells  int                `json:"failed_cells"`
	StartedAtMs  int64              `json:"started_at_unix_ms"`
	EndedAtMs    int64              `json:"ended_at_unix_ms,omitempty"`
	Error        string             `json:"error,omitempty"`
	Reflectances string             `json:"reflectances,omitempty"`
	Parameters   string             `json:"parameters,omitempty"`
	Metrics      *models.RunMetrics `json:"metrics,omitempty"`
	Timestamp    int64              `json:"timestamp"`
}

// NewPayload builds a callback payload from a run summary
func NewPayload(run models.RunSummary) NotificationPayload {
	p := NotificationPayload{
		RunID:       run.ID,
		Status:      run.Status,
		Simulations: run.Simulations,
		Wavelengths: len(run.Wavelengths),
		Seed:        run.Seed,
		FailedCells: run.FailedCells,
		StartedAtMs: run.StartTime.UnixMilli(),
		Error:       run.Error,
	}
	if !run.EndTime.IsZero() {
		p.EndedAtMs = run.EndTime.UnixMilli()
	}
	return p
}

// Notifier posts the final run state to a callback URL
type Notifier struct {
	httpClient *http.Client
	url        string
	secret     string
	maxRetries int
	backoff    utils.Backoff
}

// NewNotifier creates a notifier for callbackURL. {run_id} in the URL is
// replaced with the run id.
func NewNotifier(callbackURL, secret string) *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		url:        callbackURL,
		secret:     secret,
		maxRetries: 3,
		backoff:    utils.Exponential(time.Second, 10*time.Second, 2, nil),
	}
}

// Notify sends the payload, retrying failed attempts. It blocks until the
// callback succeeds, the retries are exhausted or ctx is done.
func (n *Notifier) Notify(ctx context.Context, payload NotificationPayload) error {
	if n.url == "" {
		return nil
	}
	finalURL := strings.ReplaceAll(n.url, "{run_id}", payload.RunID)
	payload.Timestamp = time.Now().UTC().UnixMilli()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"callback_url", finalURL,
				"run_id", payload.RunID,
				"attempt", attempt,
				"delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = n.send(ctx, finalURL, body)
		if lastErr == nil {
			logger.Info("notification sent",
				"run_id", payload.RunID,
				"status", payload.Status)
			return nil
		}
		logger.Warn("notification attempt failed",
			"callback_url", finalURL,
			"run_id", payload.RunID,
			"attempt", attempt+1,
			"error", lastErr)
	}
	return fmt.Errorf("notification to %s failed after %d attempts: %w", finalURL, n.maxRetries+1, lastErr)
}

func (n *Notifier) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "spectragen/1.0")
	if n.secret != "" {
		req.Header.Set(SecretHeader, n.secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
