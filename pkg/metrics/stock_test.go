package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStockMetricsRecordsOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewStockMetrics(registry)

	m.ObserveOperation("adjust_stock", 150*time.Millisecond)
	m.IncSuccess("adjust_stock")
	m.IncSuccess("adjust_stock")
	m.IncFailure("reserve", "INSUFFICIENT_STOCK")
	m.IncVersionRetry()
	m.IncCacheHit("item")
	m.IncCacheMiss("list")
	m.IncLowStockEvent()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := fetchCounterValue(t, families, "stock_operation_success", map[string]string{"operation": "adjust_stock"}); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := fetchCounterValue(t, families, "stock_operation_failure", map[string]string{"operation": "reserve", "code": "INSUFFICIENT_STOCK"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := fetchCounterValue(t, families, "stock_version_conflict_retries", nil); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
	if got := fetchCounterValue(t, families, "stock_cache_hits", map[string]string{"kind": "item"}); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
	if got := fetchCounterValue(t, families, "stock_cache_misses", map[string]string{"kind": "list"}); got != 1 {
		t.Fatalf("expected 1 cache miss, got %v", got)
	}
	if got := fetchCounterValue(t, families, "stock_low_stock_events", nil); got != 1 {
		t.Fatalf("expected 1 low stock event, got %v", got)
	}
	if got := fetchHistogramSum(t, families, "stock_operation_duration_seconds", map[string]string{"operation": "adjust_stock"}); got < 0.149 || got > 0.151 {
		t.Fatalf("unexpected histogram sum %v", got)
	}
}

func TestStockMetricsNormalizesEmptyLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewStockMetrics(registry)

	m.IncFailure("", "")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := fetchCounterValue(t, families, "stock_operation_failure", map[string]string{"operation": "unknown", "code": "unknown"}); got != 1 {
		t.Fatalf("expected empty labels to normalize to unknown, got %v", got)
	}
}

func TestStockMetricsNilReceiverIsNoop(t *testing.T) {
	var m *StockMetrics
	m.ObserveOperation("adjust_stock", time.Second)
	m.IncSuccess("adjust_stock")
	m.IncFailure("adjust_stock", "INTERNAL_ERROR")
	m.IncVersionRetry()
	m.IncCacheHit("item")
	m.IncCacheMiss("item")
	m.IncLowStockEvent()

	unregistered := NewStockMetrics(nil)
	unregistered.IncSuccess("adjust_stock")
}

func fetchCounterValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !matchesLabels(metric, labels) {
				continue
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func fetchHistogramSum(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !matchesLabels(metric, labels) {
				continue
			}
			return metric.GetHistogram().GetSampleSum()
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func matchesLabels(metric *dto.Metric, labels map[string]string) bool {
	for key, value := range labels {
		found := false
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == key && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
