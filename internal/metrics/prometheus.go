// Package metrics exposes Prometheus instrumentation for the capture
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the capture service.
type Metrics struct {
	// Session lifecycle
	SessionsStarted prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionActive   prometheus.Gauge

	// Chunk emission
	ChunksEmitted prometheus.Counter
	ChunkDuration prometheus.Histogram
	ChunkSize     prometheus.Histogram

	// Capture health
	CaptureErrors *prometheus.CounterVec
	InputLevel    prometheus.Gauge
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on the given registerer. Tests pass a
// fresh registry to avoid duplicate registration across cases.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "miccap_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "miccap_sessions_failed_total",
			Help: "Total number of recording sessions that ended in failure",
		}),
		SessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "miccap_session_active",
			Help: "Whether a recording session is currently active (1) or not (0)",
		}),
		ChunksEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "miccap_chunks_emitted_total",
			Help: "Total number of audio chunks emitted",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "miccap_chunk_duration_seconds",
			Help:    "Duration of emitted audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "miccap_chunk_size_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		CaptureErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miccap_capture_errors_total",
			Help: "Total number of capture errors by kind",
		}, []string{"kind"}),
		InputLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "miccap_input_level",
			Help: "Current normalized input level in [0, 1]",
		}),
	}
}

// RecordSessionStarted marks a new active session.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionActive.Set(1)
}

// RecordSessionStopped clears the active session gauge.
func (m *Metrics) RecordSessionStopped() {
	m.SessionActive.Set(0)
	m.InputLevel.Set(0)
}

// RecordSessionFailed records a session ending in failure.
func (m *Metrics) RecordSessionFailed(kind string) {
	m.SessionsFailed.Inc()
	m.CaptureErrors.WithLabelValues(kind).Inc()
	m.SessionActive.Set(0)
	m.InputLevel.Set(0)
}

// RecordChunkEmitted records an emitted chunk.
func (m *Metrics) RecordChunkEmitted(durationSeconds float64, sizeBytes int) {
	m.ChunksEmitted.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordCaptureError counts a non-fatal capture error by kind.
func (m *Metrics) RecordCaptureError(kind string) {
	m.CaptureErrors.WithLabelValues(kind).Inc()
}

// SetInputLevel publishes the current input level.
func (m *Metrics) SetInputLevel(level float64) {
	m.InputLevel.Set(level)
}
