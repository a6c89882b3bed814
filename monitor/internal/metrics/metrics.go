package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
)

const namespace = "pulsewatch"

// Evaluation results recorded in evaluations_total.
const (
	ResultOK         = "ok"
	ResultStale      = "stale"
	ResultFetchError = "fetch_error"
	ResultInvalid    = "invalid"
)

// Delivery outcomes recorded in notifications_total.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Metrics holds all Prometheus collectors of the monitor.
type Metrics struct {
	// Report metrics
	HealthScore      *prometheus.GaugeVec
	HealthTier       *prometheus.GaugeVec
	APIErrorRate     *prometheus.GaugeVec
	Alerts           *prometheus.GaugeVec
	RequestsObserved *prometheus.GaugeVec
	ReportStale      *prometheus.GaugeVec

	// Driver metrics
	EvaluationsTotal *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	Notifications    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HealthScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_score",
				Help:      "Composite health score (0-100) of the last report",
			},
			[]string{"source"},
		),

		HealthTier: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_tier",
				Help:      "1 for the tier of the last report, 0 for the other tiers",
			},
			[]string{"source", "tier"},
		),

		APIErrorRate: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "api_error_rate",
				Help:      "Mean API endpoint error rate in percent",
			},
			[]string{"source"},
		),

		Alerts: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "alerts",
				Help:      "Number of active alerts by severity",
			},
			[]string{"source", "severity"},
		),

		RequestsObserved: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_observed",
				Help:      "Total requests across all endpoints in the last snapshot",
			},
			[]string{"source"},
		),

		ReportStale: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "report_stale",
				Help:      "1 when the last report was computed from a reused snapshot",
			},
			[]string{"source"},
		),

		EvaluationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of poll evaluations by result",
			},
			[]string{"source", "result"},
		),

		FetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of snapshot fetches",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		Notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of webhook notifications by transition and outcome",
			},
			[]string{"transition", "outcome"},
		),
	}
}

// Observe sets the report gauges of sourceID from r.
func (m *Metrics) Observe(sourceID string, r compute.Report) {
	m.HealthScore.WithLabelValues(sourceID).Set(r.Score)
	for _, t := range compute.Tiers() {
		v := 0.0
		if t.Label == r.Tier.Label {
			v = 1
		}
		m.HealthTier.WithLabelValues(sourceID, t.Label).Set(v)
	}
	m.APIErrorRate.WithLabelValues(sourceID).Set(r.AvgErrorRate)
	m.RequestsObserved.WithLabelValues(sourceID).Set(float64(r.TotalRequests))
	for _, sev := range []compute.Severity{compute.SeverityWarning, compute.SeverityError} {
		m.Alerts.WithLabelValues(sourceID, string(sev)).Set(float64(compute.Count(r.Alerts, sev)))
	}
}

// MarkStale sets report_stale for sourceID.
func (m *Metrics) MarkStale(sourceID string, stale bool) {
	v := 0.0
	if stale {
		v = 1
	}
	m.ReportStale.WithLabelValues(sourceID).Set(v)
}

// Evaluated counts one poll evaluation of sourceID with the given result.
func (m *Metrics) Evaluated(sourceID, result string) {
	m.EvaluationsTotal.WithLabelValues(sourceID, result).Inc()
}

// ObserveFetch records how long one fetch of sourceID took.
func (m *Metrics) ObserveFetch(sourceID string, d time.Duration) {
	m.FetchDuration.WithLabelValues(sourceID).Observe(d.Seconds())
}

// Notified counts one webhook delivery.
func (m *Metrics) Notified(transition, outcome string) {
	m.Notifications.WithLabelValues(transition, outcome).Inc()
}

// Forget deletes every per-source series of sourceID, e.g. after a config
// reload removed the source.
func (m *Metrics) Forget(sourceID string) {
	labels := prometheus.Labels{"source": sourceID}
	for _, v := range []interface {
		DeletePartialMatch(prometheus.Labels) int
	}{
		m.HealthScore, m.HealthTier, m.APIErrorRate, m.Alerts,
		m.RequestsObserved, m.ReportStale, m.EvaluationsTotal, m.FetchDuration,
	} {
		v.DeletePartialMatch(labels)
	}
}

// Handler returns the /metrics HTTP handler serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
