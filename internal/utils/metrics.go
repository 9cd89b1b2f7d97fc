// internal/utils/metrics.go
package utils

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the story map services.
const (
	MetricMapsCreated      = "maps.created"
	MetricMapsDeleted      = "maps.deleted"
	MetricThreadsAdded     = "threads.added"
	MetricThreadsDeleted   = "threads.deleted"
	MetricScenesAdded      = "scenes.added"
	MetricScenesDeleted    = "scenes.deleted"
	MetricScenesReordered  = "scenes.reordered"
	MetricImportsOK        = "imports.ok"
	MetricImportsFailed    = "imports.failed"
	MetricExports          = "exports.total"
	MetricGraphProjections = "graph.projections"
	MetricGraphCacheHits   = "graph.cache_hits"
	MetricWSClients        = "ws.clients"
	MetricStructuresLoaded = "structures.loaded"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]*atomic.Int64
	gauges     map[string]*atomic.Int64
	histograms map[string]*Histogram
}

// Histogram tracks count, sum, min and max of observed values.
type Histogram struct {
	mu    sync.Mutex
	count int64
	sum   int64
	min   int64
	max   int64
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector returns an empty collector, mostly for tests.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*atomic.Int64),
		gauges:     make(map[string]*atomic.Int64),
		histograms: make(map[string]*Histogram),
	}
}

// value returns the cell for name, creating it under the write lock on first use.
func (m *MetricsCollector) value(set map[string]*atomic.Int64, name string) *atomic.Int64 {
	m.mu.RLock()
	v, ok := set[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = set[name]; !ok {
		v = new(atomic.Int64)
		set[name] = v
	}
	return v
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	m.value(m.counters, name).Add(1)
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, delta int64) {
	m.value(m.counters, name).Add(delta)
}

// SetGauge sets a gauge metric
func (m *MetricsCollector) SetGauge(name string, v int64) {
	m.value(m.gauges, name).Store(v)
}

// IncGauge increments a gauge metric
func (m *MetricsCollector) IncGauge(name string) {
	m.value(m.gauges, name).Add(1)
}

// DecGauge decrements a gauge metric
func (m *MetricsCollector) DecGauge(name string) {
	m.value(m.gauges, name).Add(-1)
}

// GetGauge returns the current value of a gauge
func (m *MetricsCollector) GetGauge(name string) int64 {
	return m.value(m.gauges, name).Load()
}

// GetCounterValue returns the current value of a counter
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	return m.value(m.counters, name).Load()
}

// RecordHistogram records a value in a histogram
func (m *MetricsCollector) RecordHistogram(name string, v int64) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if h, ok = m.histograms[name]; !ok {
			h = &Histogram{min: v, max: v}
			m.histograms[name] = h
		}
		m.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	h.min = min(h.min, v)
	h.max = max(h.max, v)
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = v.Load()
	}
	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = v.Load()
	}
	histograms := make(map[string]map[string]int64, len(m.histograms))
	for name, h := range m.histograms {
		h.mu.Lock()
		histograms[name] = map[string]int64{"count": h.count, "sum": h.sum, "min": h.min, "max": h.max}
		h.mu.Unlock()
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// APIMetrics records per-request metrics for the HTTP layer
type APIMetrics struct {
	metrics *MetricsCollector
	logger  *Logger
}

// NewAPIMetrics creates a new API metrics instance
func NewAPIMetrics(metrics *MetricsCollector, logger *Logger) *APIMetrics {
	return &APIMetrics{metrics: metrics, logger: logger}
}

// RecordAPIRequest records metrics for an API request
func (am *APIMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	am.metrics.IncrementCounter("api.requests")
	am.metrics.IncrementCounter("api.requests." + method + " " + route)
	am.metrics.IncrementCounter("api.responses." + strconv.Itoa(statusCode/100) + "xx")
	am.metrics.RecordHistogram("api.response_time_ms", duration.Milliseconds())
}

// RecordError records an error metric
func (am *APIMetrics) RecordError(errorType, component string) {
	am.metrics.IncrementCounter("errors.total")
	am.metrics.IncrementCounter("errors." + errorType)
	am.logger.Warn("error recorded", map[string]interface{}{
		"type":      errorType,
		"component": component,
	})
}

// StartMetricsCollection logs a metrics snapshot every interval until ctx ends.
func (am *APIMetrics) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.logger.Info("periodic metrics report", map[string]interface{}{
				"metrics": am.metrics.GetMetrics(),
			})
		}
	}
}
