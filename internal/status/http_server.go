package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/logger"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

// ProgressSource reports the live state of the current run
type ProgressSource interface {
	Progress() models.Progress
}

// MetricsFunc returns the engine metrics gathered so far
type MetricsFunc func() *models.RunMetrics

// TimeSeriesSource exposes the recorded metric points
type TimeSeriesSource interface {
	GetMetricNames() []string
	GetLabelsForMetric(name string) []map[string]string
	GetTimeSeries(name string, labels map[string]string) []*models.MetricPoint
}

// HTTPServer serves read-only progress of a generation run
type HTTPServer struct {
	mux        *http.ServeMux
	progress   ProgressSource
	metrics    MetricsFunc
	timeSeries TimeSeriesSource
}

// NewHTTPServer creates the status handler. metrics may be nil.
func NewHTTPServer(progress ProgressSource, metrics MetricsFunc) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		progress: progress,
		metrics:  metrics,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/progress", s.handleProgress)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)
	s.mux.HandleFunc("/v1/metrics/timeseries", s.handleTimeSeries)

	return s
}

// WithTimeSeries enables /v1/metrics/timeseries
func (s *HTTPServer) WithTimeSeries(ts TimeSeriesSource) *HTTPServer {
	s.timeSeries = ts
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleProgress handles GET /v1/progress
func (s *HTTPServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	p := s.progress.Progress()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":                p.ID,
		"status":                p.Status,
		"simulations":           p.Simulations,
		"wavelengths":           len(p.Wavelengths),
		"seed":                  p.Seed,
		"completed_simulations": p.CompletedSimulations,
		"completed_calls":       p.CompletedCalls,
		"total_calls":           p.TotalCalls,
		"percent":               p.Percent,
		"failed_cells":          p.FailedCells,
		"elapsed_ms":            p.Duration.Milliseconds(),
		"error":                 p.Error,
	})
}

// handleMetrics handles GET /v1/metrics
func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.metrics == nil {
		s.writeError(w, http.StatusNotFound, "metrics not enabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.metrics())
}

// handleTimeSeries handles GET /v1/metrics/timeseries[?metric=name]
func (s *HTTPServer) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.timeSeries == nil {
		s.writeError(w, http.StatusNotFound, "metrics not enabled")
		return
	}

	names := s.timeSeries.GetMetricNames()
	if want := r.URL.Query().Get("metric"); want != "" {
		names = []string{want}
	}

	result := make([]map[string]any, 0, len(names))
	for _, name := range names {
		points := make([]map[string]any, 0)
		for _, labels := range s.timeSeries.GetLabelsForMetric(name) {
			for _, p := range s.timeSeries.GetTimeSeries(name, labels) {
				points = append(points, map[string]any{
					"timestamp": p.Timestamp.Format(time.RFC3339Nano),
					"value":     p.Value,
					"labels":    p.Labels,
				})
			}
		}
		if len(points) == 0 {
			continue
		}
		result = append(result, map[string]any{
			"metric": name,
			"points": points,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"time_series": result})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

// NewServer wraps h in an http.Server with conservative limits
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
