package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IntakeMetrics exposes counters/histograms for the intake pipeline.
type IntakeMetrics struct {
	submissionsTotal   *prometheus.CounterVec
	enrichmentTotal    *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	stageLatency       *prometheus.HistogramVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadintake",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Inquiry submissions by gate outcome",
		}, []string{"outcome"}),
		enrichmentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadintake",
			Subsystem: "enrichment",
			Name:      "jobs_total",
			Help:      "Enrichment jobs by terminal state",
		}, []string{"state"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadintake",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Notification emails by kind and status",
		}, []string{"kind", "status"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadintake",
			Subsystem: "intake",
			Name:      "stage_latency_seconds",
			Help:      "Latency of individual pipeline stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.enrichmentTotal, m.notificationsTotal, m.stageLatency)
	return m
}

func (m *IntakeMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *IntakeMetrics) ObserveEnrichment(state string) {
	if m == nil {
		return
	}
	m.enrichmentTotal.WithLabelValues(state).Inc()
}

func (m *IntakeMetrics) ObserveNotification(kind string, sent bool) {
	if m == nil {
		return
	}
	status := "failed"
	if sent {
		status = "sent"
	}
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveStage records the time since started under stage.
func (m *IntakeMetrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}
