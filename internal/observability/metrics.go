package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveJobs        prometheus.Gauge
	ChunkOutcomes     *prometheus.CounterVec
	SynthesisLatency  *prometheus.HistogramVec
	MergeDuration     prometheus.Histogram
	Finalizations     *prometheus.CounterVec
	LibraryEvictions  prometheus.Counter
	ProviderErrors    *prometheus.CounterVec
	TranscribeLatency prometheus.Histogram
	WSMessages        *prometheus.CounterVec

	latency *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Number of registered long-text synthesis jobs.",
		}),
		ChunkOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_outcomes_total",
			Help:      "Settled chunk synthesis calls by provider and status.",
		}, []string{"provider", "status"}),
		SynthesisLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Per-chunk synthesis latency in milliseconds.",
			Buckets:   []float64{500, 1000, 2000, 5000, 10000, 20000, 40000, 80000},
		}, []string{"provider"}),
		MergeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_ms",
			Help:      "Time to merge or split completed chunks into clips, in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		Finalizations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Job finalizations by mode and result.",
		}, []string{"mode", "result"}),
		LibraryEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_evictions_total",
			Help:      "Clips evicted to keep the library within its bounds.",
		}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		TranscribeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_latency_ms",
			Help:      "Speech-to-text latency in milliseconds.",
			Buckets:   []float64{500, 1000, 2000, 5000, 10000, 20000, 40000},
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		latency: newLatencyWindow(256),
	}
}

// ObserveChunk records one settled synthesis call.
func (m *Metrics) ObserveChunk(provider, status string, d time.Duration) {
	m.ChunkOutcomes.WithLabelValues(provider, status).Inc()
	m.SynthesisLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
	m.latency.Observe("synthesize_"+provider, float64(d.Milliseconds()))
	if status != "completed" {
		m.latency.ObserveIndicator("chunk_" + status)
	}
}

func (m *Metrics) ObserveFinalize(mode string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Finalizations.WithLabelValues(mode, result).Inc()
	m.MergeDuration.Observe(float64(d.Milliseconds()))
	m.latency.Observe("finalize_"+mode, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTranscribe(d time.Duration) {
	m.TranscribeLatency.Observe(float64(d.Milliseconds()))
	m.latency.Observe("transcribe", float64(d.Milliseconds()))
}

func (m *Metrics) ObserveEvictions(n int) {
	if n <= 0 {
		return
	}
	m.LibraryEvictions.Add(float64(n))
	for i := 0; i < n; i++ {
		m.latency.ObserveIndicator("clip_evicted")
	}
}

func (m *Metrics) ObserveIndicator(name string) {
	m.latency.ObserveIndicator(name)
}

// SnapshotLatency returns rolling per-stage latency statistics.
func (m *Metrics) SnapshotLatency() LatencySnapshot {
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
