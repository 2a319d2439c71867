package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StockMetrics records outcomes for stock write operations and the advisory
// read cache.
type StockMetrics struct {
	opDuration     *prometheus.HistogramVec
	opSuccess      *prometheus.CounterVec
	opFailure      *prometheus.CounterVec
	versionRetries prometheus.Counter
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	lowStockEvents prometheus.Counter
}

// NewStockMetrics registers the stock metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stock_operation_duration_seconds",
		Help:    "Duration of stock write operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	opSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_operation_success",
		Help: "Successful stock write operations.",
	}, []string{"operation"})
	opFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_operation_failure",
		Help: "Failed stock write operations.",
	}, []string{"operation", "code"})
	versionRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_version_conflict_retries",
		Help: "Optimistic-lock retries across all write operations.",
	})
	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_cache_hits",
		Help: "Inventory cache hits.",
	}, []string{"kind"})
	cacheMisses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_cache_misses",
		Help: "Inventory cache misses, including cache errors absorbed as misses.",
	}, []string{"kind"})
	lowStockEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_low_stock_events",
		Help: "Low-stock threshold crossings detected.",
	})
	reg.MustRegister(opDuration, opSuccess, opFailure, versionRetries, cacheHits, cacheMisses, lowStockEvents)
	return &StockMetrics{
		opDuration:     opDuration,
		opSuccess:      opSuccess,
		opFailure:      opFailure,
		versionRetries: versionRetries,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
		lowStockEvents: lowStockEvents,
	}
}

// ObserveOperation records the duration for the named write operation.
func (m *StockMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil || m.opDuration == nil {
		return
	}
	m.opDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *StockMetrics) IncSuccess(operation string) {
	if m == nil || m.opSuccess == nil {
		return
	}
	m.opSuccess.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncFailure increments the failure counter for the named operation and
// error code.
func (m *StockMetrics) IncFailure(operation, code string) {
	if m == nil || m.opFailure == nil {
		return
	}
	m.opFailure.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// IncVersionRetry counts one optimistic-lock retry.
func (m *StockMetrics) IncVersionRetry() {
	if m == nil || m.versionRetries == nil {
		return
	}
	m.versionRetries.Inc()
}

// IncCacheHit counts a cache hit for the given entry kind (item/list).
func (m *StockMetrics) IncCacheHit(kind string) {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncCacheMiss counts a cache miss for the given entry kind.
func (m *StockMetrics) IncCacheMiss(kind string) {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncLowStockEvent counts one low-stock threshold crossing.
func (m *StockMetrics) IncLowStockEvent() {
	if m == nil || m.lowStockEvents == nil {
		return
	}
	m.lowStockEvents.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
