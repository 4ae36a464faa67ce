// Package metrics collects engine-call statistics during a generation run.
package metrics

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// Collector collects time-series metrics during a run
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	// metric name -> label key -> points
	timeSeries map[string]map[string][]*models.MetricPoint
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:  time.Now(),
		timeSeries: make(map[string]map[string][]*models.MetricPoint),
	}
}

// Start marks the start of metric collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of metric collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Record records a metric value at a specific timestamp. NaN values are
// dropped.
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	if math.IsNaN(value) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.timeSeries[name] == nil {
		c.timeSeries[name] = make(map[string][]*models.MetricPoint)
	}
	c.timeSeries[name][key] = append(c.timeSeries[name][key], &models.MetricPoint{
		Timestamp: timestamp,
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	})
}

// GetTimeSeries returns a copy of the points of a metric with exactly these labels
func (c *Collector) GetTimeSeries(name string, labels map[string]string) []*models.MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.timeSeries[name][labelKey(labels)]
	if points == nil {
		return nil
	}
	result := make([]*models.MetricPoint, len(points))
	for i, p := range points {
		cp := *p
		cp.Labels = copyLabels(p.Labels)
		result[i] = &cp
	}
	return result
}

// GetAggregation aggregates the points of a metric with exactly these labels
func (c *Collector) GetAggregation(name string, labels map[string]string) *models.Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calculateAggregation(values(c.timeSeries[name][labelKey(labels)]))
}

// GetTotalAggregation aggregates a metric across all label combinations
func (c *Collector) GetTotalAggregation(name string) *models.Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []float64
	for _, points := range c.timeSeries[name] {
		all = append(all, values(points)...)
	}
	return calculateAggregation(all)
}

// Elapsed is the collection window, up to now while the run is in flight
func (c *Collector) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.endTime.IsZero() {
		return time.Since(c.startTime)
	}
	return c.endTime.Sub(c.startTime)
}

// GetMetricNames returns all metric names that have been collected, sorted
func (c *Collector) GetMetricNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.timeSeries))
	for name := range c.timeSeries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLabelsForMetric returns all label combinations for a metric
func (c *Collector) GetLabelsForMetric(name string) []map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	labelsList := make([]map[string]string, 0, len(c.timeSeries[name]))
	for _, points := range c.timeSeries[name] {
		if len(points) > 0 {
			labelsList = append(labelsList, copyLabels(points[0].Labels))
		}
	}
	return labelsList
}

// labelKey creates a stable map key from labels
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return cp
}

func values(points []*models.MetricPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// calculateAggregation computes statistics over values; nil when empty
func calculateAggregation(vals []float64) *models.Aggregation {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	agg := &models.Aggregation{
		Count: int64(len(sorted)),
		Sum:   sum,
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P95:   stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		P99:   stat.Quantile(0.99, stat.LinInterp, sorted, nil),
	}
	if len(sorted) > 1 {
		agg.Std = stat.StdDev(sorted, nil)
	}
	return agg
}
