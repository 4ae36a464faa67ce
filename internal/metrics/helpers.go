package metrics

import (
	"strconv"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
)

// Metric names
const (
	MetricCallLatency        = "engine_call_latency_ms"
	MetricCallCount          = "engine_call_count"
	MetricCallErrorCount     = "engine_call_error_count"
	MetricReflectance        = "reflectance"
	MetricSimulationDuration = "simulation_duration_ms"
)

// WavelengthLabels creates a labels map for one wavelength
func WavelengthLabels(wavelength float64) map[string]string {
	return map[string]string{
		"wavelength": strconv.FormatFloat(wavelength, 'g', -1, 64),
	}
}

// RecordCall records the outcome of one engine call
func RecordCall(c *Collector, wavelength float64, latency time.Duration, reflectance float64, failed bool, timestamp time.Time) {
	labels := WavelengthLabels(wavelength)
	c.Record(MetricCallCount, 1, timestamp, labels)
	c.Record(MetricCallLatency, utils.DurationMs(latency), timestamp, labels)
	if failed {
		c.Record(MetricCallErrorCount, 1, timestamp, labels)
		return
	}
	c.Record(MetricReflectance, reflectance, timestamp, labels)
}

// RecordSimulation records the wall time of one simulation row
func RecordSimulation(c *Collector, elapsed time.Duration, timestamp time.Time) {
	c.Record(MetricSimulationDuration, utils.DurationMs(elapsed), timestamp, nil)
}

// observer feeds run events into a collector
type observer struct {
	c *Collector
}

// NewObserver returns an observer that records engine calls and
// simulation durations into c and starts/stops it with the run.
func NewObserver(c *Collector) models.Observer {
	return observer{c: c}
}

func (o observer) Observe(ev models.Event) {
	switch ev.Type {
	case models.EventRunStarted:
		o.c.Start()
	case models.EventWavelengthCompleted:
		RecordCall(o.c, ev.Wavelength, ev.Elapsed, ev.Reflectance, false, ev.Time)
	case models.EventWavelengthFailed:
		RecordCall(o.c, ev.Wavelength, ev.Elapsed, 0, true, ev.Time)
	case models.EventSimulationCompleted:
		RecordSimulation(o.c, ev.Elapsed, ev.Time)
	case models.EventRunCompleted, models.EventRunFailed:
		o.c.Stop()
	}
}

// Summarize converts collector metrics to RunMetrics
func Summarize(c *Collector) *models.RunMetrics {
	rm := &models.RunMetrics{
		Reflectance: make(map[string]*models.Aggregation),
	}
	if agg := c.GetTotalAggregation(MetricCallCount); agg != nil {
		rm.Calls = int64(agg.Sum)
	}
	if agg := c.GetTotalAggregation(MetricCallErrorCount); agg != nil {
		rm.FailedCalls = int64(agg.Sum)
	}
	if agg := c.GetTotalAggregation(MetricCallLatency); agg != nil {
		rm.LatencyP50 = agg.P50
		rm.LatencyP95 = agg.P95
		rm.LatencyP99 = agg.P99
		rm.LatencyMean = agg.Mean
	}
	for _, labels := range c.GetLabelsForMetric(MetricReflectance) {
		rm.Reflectance[labels["wavelength"]] = c.GetAggregation(MetricReflectance, labels)
	}
	rm.SimulationsMs = c.GetAggregation(MetricSimulationDuration, nil)

	if d := c.Elapsed(); d > 0 {
		rm.CallsPerSec = float64(rm.Calls) / d.Seconds()
	}
	return rm
}
