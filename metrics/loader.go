package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LoaderMetrics instruments the request-scoped batch loaders.
type LoaderMetrics struct {
	batches    *prometheus.CounterVec
	batchSizes *prometheus.HistogramVec
}

// NewDefaultLoaderMetrics creates Prometheus metric instrumentation for batch loaders:
//
// 1. Counts of dispatched batches, partitioned by loader and status.
// 2. Number of keys per dispatched batch, partitioned by loader.
func NewDefaultLoaderMetrics(pkg string) *LoaderMetrics {
	metrics := &LoaderMetrics{
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_loader_batches", pkg),
				Help: "How many loader batches were dispatched to storage, partitioned by loader and status.",
			},
			[]string{"loader", "status"}, // Labels.
		),
		batchSizes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_loader_batch_size", pkg),
				Help:    "How many keys a dispatched loader batch carries, partitioned by loader.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 11),
			},
			[]string{"loader"}, // Labels.
		),
	}
	metrics.batches = registerOnce(metrics.batches).(*prometheus.CounterVec)
	metrics.batchSizes = registerOnce(metrics.batchSizes).(*prometheus.HistogramVec)
	return metrics
}

// Batches returns the counter of dispatched batches for the loader.
func (m *LoaderMetrics) Batches(loader, status string) prometheus.Counter {
	return m.batches.WithLabelValues(loader, status)
}

// BatchSizes returns the batch size observer for the loader.
func (m *LoaderMetrics) BatchSizes(loader string) prometheus.Observer {
	return m.batchSizes.WithLabelValues(loader)
}
