package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

type fixedProgress models.Progress

func (f fixedProgress) Progress() models.Progress { return models.Progress(f) }

func testProgress() fixedProgress {
	return fixedProgress{
		RunSummary: models.RunSummary{
			ID:          "run-1",
			Status:      models.RunStatusRunning,
			Simulations: 4,
			Wavelengths: []float64{500, 600},
			Seed:        42,
		},
		CompletedSimulations: 1,
		CompletedCalls:       3,
		TotalCalls:           8,
		Percent:              37.5,
	}
}

func TestHTTPServerHealthz(t *testing.T) {
	srv := NewHTTPServer(testProgress(), nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHTTPServerProgress(t *testing.T) {
	srv := NewHTTPServer(testProgress(), nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["run_id"] != "run-1" || body["status"] != string(models.RunStatusRunning) {
		t.Fatalf("unexpected body %v", body)
	}
	if body["completed_calls"] != float64(3) || body["total_calls"] != float64(8) {
		t.Fatalf("unexpected call counts %v", body)
	}
	if body["wavelengths"] != float64(2) {
		t.Fatalf("expected 2 wavelengths, got %v", body["wavelengths"])
	}
}

func TestHTTPServerMethodNotAllowed(t *testing.T) {
	srv := NewHTTPServer(testProgress(), nil)
	for _, path := range []string{"/v1/progress", "/v1/metrics"} {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", path, rr.Code)
		}
	}
}

func TestHTTPServerMetrics(t *testing.T) {
	srv := NewHTTPServer(testProgress(), nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", rr.Code)
	}

	srv = NewHTTPServer(testProgress(), func() *models.RunMetrics {
		return &models.RunMetrics{Calls: 5, FailedCalls: 1}
	})
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body models.RunMetrics
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Calls != 5 || body.FailedCalls != 1 {
		t.Fatalf("unexpected metrics %+v", body)
	}
}

type fakeSeries map[string][]*models.MetricPoint

func (f fakeSeries) GetMetricNames() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	return names
}

func (f fakeSeries) GetLabelsForMetric(name string) []map[string]string {
	if len(f[name]) == 0 {
		return nil
	}
	return []map[string]string{nil}
}

func (f fakeSeries) GetTimeSeries(name string, labels map[string]string) []*models.MetricPoint {
	return f[name]
}

func TestHTTPServerTimeSeries(t *testing.T) {
	now := time.Now()
	series := fakeSeries{
		"engine_call_latency_ms": {
			{Name: "engine_call_latency_ms", Value: 12, Timestamp: now},
			{Name: "engine_call_latency_ms", Value: 15, Timestamp: now},
		},
		"reflectance": {
			{Name: "reflectance", Value: 0.2, Timestamp: now, Labels: map[string]string{"wavelength": "500"}},
		},
	}

	srv := NewHTTPServer(testProgress(), nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics/timeseries", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a source, got %d", rr.Code)
	}

	srv.WithTimeSeries(series)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics/timeseries?metric=engine_call_latency_ms", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		TimeSeries []struct {
			Metric string           `json:"metric"`
			Points []map[string]any `json:"points"`
		} `json:"time_series"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.TimeSeries) != 1 || body.TimeSeries[0].Metric != "engine_call_latency_ms" {
		t.Fatalf("unexpected series %+v", body.TimeSeries)
	}
	if len(body.TimeSeries[0].Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(body.TimeSeries[0].Points))
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics/timeseries", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.TimeSeries) != 2 {
		t.Fatalf("expected 2 series, got %d", len(body.TimeSeries))
	}
}

func TestNewServerLimits(t *testing.T) {
	s := NewServer(":0", http.NotFoundHandler())
	if s.ReadHeaderTimeout == 0 || s.MaxHeaderBytes == 0 {
		t.Fatalf("expected limits to be set, got %+v", s)
	}
}

func checkStatus(t *testing.T, h *Health, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.srv.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthFollowsRunEvents(t *testing.T) {
	h := NewHealth()
	if got := checkStatus(t, h, ServiceName); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}

	h.Observe(models.Event{Type: models.EventRunFailed})
	if got := checkStatus(t, h, ""); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after failure, got %v", got)
	}

	h.Observe(models.Event{Type: models.EventWavelengthCompleted})
	if got := checkStatus(t, h, ServiceName); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("unrelated events must not change status, got %v", got)
	}

	h.Observe(models.Event{Type: models.EventRunStarted})
	if got := checkStatus(t, h, ServiceName); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING after a new run, got %v", got)
	}

	h.Shutdown()
	h.Observe(models.Event{Type: models.EventRunStarted})
	if got := checkStatus(t, h, ServiceName); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after shutdown, got %v", got)
	}
}

func TestHealthOverGRPC(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	grpcServer := grpc.NewServer()
	h := NewHealth()
	h.Register(grpcServer)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		grpcServer.GracefulStop()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	}()

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}
