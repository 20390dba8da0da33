package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"neonote/internal/domain/job"
)

// Metrics holds the tracker's Prometheus collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	uploads     *prometheus.CounterVec
	polls       *prometheus.CounterVec
	activePolls prometheus.Gauge
	jobDuration *prometheus.HistogramVec
}

// New registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neonote_uploads_total",
			Help: "Uploads by file type and result.",
		}, []string{"file_type", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neonote_poll_requests_total",
			Help: "Status poll requests by outcome.",
		}, []string{"outcome"}),
		activePolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "neonote_active_polls",
			Help: "Jobs currently being polled.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "neonote_job_duration_seconds",
			Help:    "Time from first poll to the end of polling.",
			Buckets: []float64{5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.uploads,
		m.polls,
		m.activePolls,
		m.jobDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) UploadAccepted(kind job.Kind) {
	m.uploads.WithLabelValues(string(kind), "accepted").Inc()
}

func (m *Metrics) UploadRejected(fileType, reason string) {
	m.uploads.WithLabelValues(fileType, reason).Inc()
}

func (m *Metrics) UploadFailed(kind job.Kind) {
	m.uploads.WithLabelValues(string(kind), "failed").Inc()
}

func (m *Metrics) PollRequest(outcome string) {
	m.polls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PollStarted() {
	m.activePolls.Inc()
}

func (m *Metrics) PollFinished(outcome string, elapsed time.Duration) {
	m.activePolls.Dec()
	m.jobDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
