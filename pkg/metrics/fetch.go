package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FetchMetrics provides observability for file fetches.
type FetchMetrics interface {
	// RecordFetch records a finished fetch.
	//
	// Parameters:
	//   - sink: sink type the file was written to
	//   - err: nil on success
	//   - bytes: file bytes written to the sink
	//   - duration: time from start to commit or failure
	RecordFetch(sink string, err error, bytes uint64, duration time.Duration)

	// RecordRead records one completed READ reply.
	RecordRead(bytes int)

	// SetReadsInFlight updates the number of outstanding READ calls.
	SetReadsInFlight(n int)
}

// fetchMetrics is the Prometheus implementation of FetchMetrics.
type fetchMetrics struct {
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchBytes    *prometheus.CounterVec
	readsTotal    prometheus.Counter
	readBytes     prometheus.Histogram
	readsInFlight prometheus.Gauge
}

// NewFetchMetrics creates a new Prometheus-backed FetchMetrics instance, or a
// no-op one when metrics are not enabled.
func NewFetchMetrics() FetchMetrics {
	if !IsEnabled() {
		return NewNoopFetchMetrics()
	}
	return newFetchMetrics(GetRegistry())
}

func newFetchMetrics(reg prometheus.Registerer) *fetchMetrics {
	return &fetchMetrics{
		fetchesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_fetches_total",
				Help: "Total number of fetches by sink type and status",
			},
			[]string{"sink", "status"},
		),
		fetchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nfsfetch_fetch_duration_seconds",
				Help: "Duration of fetches in seconds",
				// Buckets: 10ms to ~80s
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"sink"},
		),
		fetchBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_fetch_bytes_total",
				Help: "Total file bytes written to sinks",
			},
			[]string{"sink"},
		),
		readsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfsfetch_nfs_reads_total",
				Help: "Total number of completed NFS READ calls",
			},
		),
		readBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nfsfetch_nfs_read_bytes",
				Help:    "Data bytes returned per NFS READ reply",
				Buckets: prometheus.ExponentialBuckets(512, 2, 10),
			},
		),
		readsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfsfetch_nfs_reads_in_flight",
				Help: "Current number of outstanding NFS READ calls",
			},
		),
	}
}

func (m *fetchMetrics) RecordFetch(sink string, err error, bytes uint64, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.fetchesTotal.WithLabelValues(sink, status).Inc()
	m.fetchDuration.WithLabelValues(sink).Observe(duration.Seconds())
	m.fetchBytes.WithLabelValues(sink).Add(float64(bytes))
}

func (m *fetchMetrics) RecordRead(bytes int) {
	m.readsTotal.Inc()
	m.readBytes.Observe(float64(bytes))
}

func (m *fetchMetrics) SetReadsInFlight(n int) {
	m.readsInFlight.Set(float64(n))
}

// NewNoopFetchMetrics returns a FetchMetrics that discards everything.
func NewNoopFetchMetrics() FetchMetrics {
	return noopFetchMetrics{}
}

type noopFetchMetrics struct{}

func (noopFetchMetrics) RecordFetch(sink string, err error, bytes uint64, duration time.Duration) {}
func (noopFetchMetrics) RecordRead(bytes int)                                                     {}
func (noopFetchMetrics) SetReadsInFlight(n int)                                                   {}
