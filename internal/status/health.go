package status

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
)

// ServiceName is the health service name reported for the generator
const ServiceName = "spectragen"

// Health publishes the run state over the standard gRPC health protocol.
// The generator is SERVING while a run is pending or in progress and
// NOT_SERVING once a run has failed or the process is shutting down.
type Health struct {
	srv *health.Server
}

// NewHealth creates a health service in the SERVING state
func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.set(grpc_health_v1.HealthCheckResponse_SERVING)
	return h
}

// Register attaches the health service to a gRPC server
func (h *Health) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.srv)
}

// Observe flips the serving status on run lifecycle events
func (h *Health) Observe(ev models.Event) {
	switch ev.Type {
	case models.EventRunStarted, models.EventRunCompleted:
		h.set(grpc_health_v1.HealthCheckResponse_SERVING)
	case models.EventRunFailed:
		h.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
}

// Shutdown marks every service NOT_SERVING and ignores later updates
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

func (h *Health) set(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
}
