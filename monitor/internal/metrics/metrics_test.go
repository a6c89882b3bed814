package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func sampleReport(t *testing.T) compute.Report {
	t.Helper()
	r, err := compute.Analyze(compute.Snapshot{
		CPU:    compute.CPUStat{Percent: 95, Count: 4},
		Memory: compute.UsageStat{Percent: 85},
		Disk:   compute.UsageStat{Percent: 40},
		EndpointStats: map[string]compute.EndpointStat{
			"/a": {Count: 10, ErrorRate: 2},
			"/b": {Count: 30, ErrorRate: 4},
		},
	}, 0)
	require.NoError(t, err)
	return r
}

func TestObserve_SetsReportGauges(t *testing.T) {
	m, _ := newTestMetrics(t)
	r := sampleReport(t)

	m.Observe("backend", r)

	assert.Equal(t, r.Score, testutil.ToFloat64(m.HealthScore.WithLabelValues("backend")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.APIErrorRate.WithLabelValues("backend")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.RequestsObserved.WithLabelValues("backend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alerts.WithLabelValues("backend", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alerts.WithLabelValues("backend", "warning")))
}

func TestObserve_ExactlyOneTierIsSet(t *testing.T) {
	m, _ := newTestMetrics(t)
	r := sampleReport(t)

	m.Observe("backend", r)

	var ones int
	for _, tier := range compute.Tiers() {
		v := testutil.ToFloat64(m.HealthTier.WithLabelValues("backend", tier.Label))
		if v == 1 {
			ones++
			assert.Equal(t, r.Tier.Label, tier.Label)
		} else {
			assert.Zero(t, v, "tier %s", tier.Label)
		}
	}
	assert.Equal(t, 1, ones)
	assert.Equal(t, len(compute.Tiers()), testutil.CollectAndCount(m.HealthTier))
}

func TestObserve_TierMovesOnNextReport(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.Observe("s", sampleReport(t))

	healthy, err := compute.Analyze(compute.Snapshot{}, 0)
	require.NoError(t, err)
	m.Observe("s", healthy)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthTier.WithLabelValues("s", compute.TierExcellent)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Alerts.WithLabelValues("s", "error")))
}

func TestCountersAndStale(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.Evaluated("s", ResultOK)
	m.Evaluated("s", ResultOK)
	m.Evaluated("s", ResultFetchError)
	m.MarkStale("s", true)
	m.Notified("firing", OutcomeSent)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("s", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("s", ResultFetchError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportStale.WithLabelValues("s")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("firing", OutcomeSent)))

	m.MarkStale("s", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ReportStale.WithLabelValues("s")))
}

func TestObserveFetch(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ObserveFetch("s", 120*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestForget_RemovesSourceSeries(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.Observe("keep", sampleReport(t))
	m.Observe("drop", sampleReport(t))
	m.Evaluated("drop", ResultOK)

	m.Forget("drop")

	assert.Equal(t, 1, testutil.CollectAndCount(m.HealthScore))
	assert.Equal(t, 0, testutil.CollectAndCount(m.EvaluationsTotal))
	assert.Equal(t, len(compute.Tiers()), testutil.CollectAndCount(m.HealthTier))
}

func TestHandler_ServesExposition(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.Observe("backend", sampleReport(t))
	m.Evaluated("backend", ResultOK)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `pulsewatch_health_score{source="backend"}`))
	assert.True(t, strings.Contains(string(body), "# TYPE pulsewatch_evaluations_total counter"))
}
