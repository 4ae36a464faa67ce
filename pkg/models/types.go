package models

import (
	"fmt"
	"time"
)

// RunStatus represents the status of a generation run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// NumParameters is the width of a parameter vector
const NumParameters = 8

// Column indices of a ParameterVector.
const (
	ParamBVF = iota
	ParamVs
	ParamD
	ParamR
	ParamSaO2
	ParamSubmucosaBVF
	ParamSubmucosaVs
	ParamSubmucosaSaO2
)

// ParameterNames lists the column names of the parameter matrix in order.
var ParameterNames = [NumParameters]string{
	"BVF", "Vs", "d", "r", "SaO2", "sm_BVF", "sm_Vs", "sm_SaO2",
}

// ParameterVector is one sampled tissue configuration:
// [BVF, Vs, d, r, SaO2, sm_BVF, sm_Vs, sm_SaO2].
type ParameterVector [NumParameters]float64

// Mucosa returns the mucosa layer parameters of the vector
func (p ParameterVector) Mucosa() Mucosa {
	return Mucosa{
		BVF:       p[ParamBVF],
		Vs:        p[ParamVs],
		Thickness: p[ParamD],
		Radius:    p[ParamR],
		SaO2:      p[ParamSaO2],
	}
}

// Submucosa returns the submucosa layer parameters of the vector
func (p ParameterVector) Submucosa() Submucosa {
	return Submucosa{
		BVF:  p[ParamSubmucosaBVF],
		Vs:   p[ParamSubmucosaVs],
		SaO2: p[ParamSubmucosaSaO2],
	}
}

// String renders the vector as the name=value tuple used in log lines
func (p ParameterVector) String() string {
	s := "("
	for i, v := range p {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%g", ParameterNames[i], v)
	}
	return s + ")"
}

// Mucosa holds the parameters of the upper tissue layer.
// Thickness and Radius are in micrometres.
type Mucosa struct {
	BVF       float64 `json:"bvf"`
	Vs        float64 `json:"vs"`
	Thickness float64 `json:"d"`
	Radius    float64 `json:"r"`
	SaO2      float64 `json:"sao2"`
}

// Submucosa holds the parameters of the lower tissue layer
type Submucosa struct {
	BVF  float64 `json:"sm_bvf"`
	Vs   float64 `json:"sm_vs"`
	SaO2 float64 `json:"sm_sao2"`
}

// RunSummary describes a finished generation run
type RunSummary struct {
	ID          string        `json:"id"`
	Status      RunStatus     `json:"status"`
	Simulations int           `json:"simulations"`
	Wavelengths []float64     `json:"wavelengths"`
	Seed        int64         `json:"seed"`
	FailedCells int           `json:"failed_cells"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Progress is a live snapshot of a run
type Progress struct {
	RunSummary
	CompletedSimulations int     `json:"completed_simulations"`
	CompletedCalls       int     `json:"completed_calls"`
	TotalCalls           int     `json:"total_calls"`
	Percent              float64 `json:"percent"`
}

// RunMetrics summarizes engine behaviour over a run
type RunMetrics struct {
	Calls         int64                   `json:"calls"`
	FailedCalls   int64                   `json:"failed_calls"`
	LatencyP50    float64                 `json:"latency_p50_ms"`
	LatencyP95    float64                 `json:"latency_p95_ms"`
	LatencyP99    float64                 `json:"latency_p99_ms"`
	LatencyMean   float64                 `json:"latency_mean_ms"`
	CallsPerSec   float64                 `json:"calls_per_sec"`
	Reflectance   map[string]*Aggregation `json:"reflectance,omitempty"` // by wavelength
	SimulationsMs *Aggregation            `json:"simulation_ms,omitempty"`
}

// MetricPoint represents a single metric data point
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Aggregation represents aggregated statistics for a metric
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}
