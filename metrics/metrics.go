// Package metrics exports submission counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbolis/quick-form/submission"
)

// Metrics follows the submission pipeline as its Observer.
type Metrics struct {
	submissions *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	duration    prometheus.Histogram
	inProgress  prometheus.Gauge
}

var _ submission.Observer = (*Metrics)(nil)

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickform_submissions_total",
			Help: "Form submissions by outcome.",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickform_uploads_total",
			Help: "Files uploaded while submitting, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quickform_submission_duration_seconds",
			Help:    "Time spent in the submission pipeline.",
			Buckets: prometheus.DefBuckets,
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quickform_submissions_in_progress",
			Help: "Submissions currently between upload and persistence.",
		}),
	}
	reg.MustRegister(m.submissions, m.uploads, m.duration, m.inProgress)
	return m
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Metrics) Transition(_ string, from, to submission.State) {
	switch {
	case from == submission.Idle && to == submission.Uploading:
		m.inProgress.Inc()
	case to == submission.Done, to == submission.Idle:
		m.inProgress.Dec()
	}
}

func (m *Metrics) Uploaded(_, _ string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Finished(_ string, err error, elapsed time.Duration) {
	m.submissions.WithLabelValues(submission.Outcome(err)).Inc()
	if elapsed > 0 {
		m.duration.Observe(elapsed.Seconds())
	}
}
