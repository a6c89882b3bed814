package source

import (
	"context"
	"fmt"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"go.uber.org/multierr"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
)

// Metric families read from a prometheus source. Resource families are
// single-series gauges; endpoint families carry an "endpoint" label.
const (
	promCPUPercent    = "pulsewatch_source_cpu_percent"
	promCPUCount      = "pulsewatch_source_cpu_count"
	promMemoryPercent = "pulsewatch_source_memory_percent"
	promMemoryUsed    = "pulsewatch_source_memory_used_bytes"
	promMemoryTotal   = "pulsewatch_source_memory_total_bytes"
	promDiskPercent   = "pulsewatch_source_disk_percent"
	promDiskUsed      = "pulsewatch_source_disk_used_bytes"
	promDiskTotal     = "pulsewatch_source_disk_total_bytes"

	promEndpointRequests  = "pulsewatch_source_endpoint_requests_total"
	promEndpointAvgTime   = "pulsewatch_source_endpoint_avg_seconds"
	promEndpointErrorRate = "pulsewatch_source_endpoint_error_rate_percent"

	endpointLabel = "endpoint"
)

type promSource struct {
	src    config.Source
	client *http.Client
}

func (s *promSource) ID() string { return s.src.ID }

// Fetch scrapes the exposition at Source.Endpoint and maps it onto a
// snapshot. The three resource percent families are required; byte counts
// and endpoint families are optional. Byte and request counts that are
// negative, non-finite or fractional are reported as
// *compute.ValidationError rather than converted.
func (s *promSource) Fetch(ctx context.Context) (*compute.Snapshot, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("prometheus source %q: %w", s.src.ID, err)
	}
	snap, err := snapshotFromFamilies(mfs)
	if err != nil {
		return nil, fmt.Errorf("prometheus source %q: %w", s.src.ID, err)
	}
	return snap, nil
}

func snapshotFromFamilies(mfs map[string]*dto.MetricFamily) (*compute.Snapshot, error) {
	for _, name := range []string{promCPUPercent, promMemoryPercent, promDiskPercent} {
		if mfs[name] == nil {
			return nil, fmt.Errorf("missing metric family %s", name)
		}
	}

	var errs error
	bytesOf := func(field, family string) uint64 {
		v, err := byteCount(field, sumFamily(mfs[family]))
		errs = multierr.Append(errs, err)
		return v
	}
	cpuCount, err := count("cpu.count", sumFamily(mfs[promCPUCount]))
	errs = multierr.Append(errs, err)

	snap := &compute.Snapshot{
		CPU: compute.CPUStat{
			Percent: sumFamily(mfs[promCPUPercent]),
			Count:   cpuCount,
		},
		Memory: compute.UsageStat{
			Percent: sumFamily(mfs[promMemoryPercent]),
			Used:    bytesOf("memory.used", promMemoryUsed),
			Total:   bytesOf("memory.total", promMemoryTotal),
		},
		Disk: compute.UsageStat{
			Percent: sumFamily(mfs[promDiskPercent]),
			Used:    bytesOf("disk.used", promDiskUsed),
			Total:   bytesOf("disk.total", promDiskTotal),
		},
	}

	stats := make(map[string]compute.EndpointStat)
	eachEndpoint(mfs[promEndpointRequests], func(ep string, v float64) {
		n, err := count(endpointField(ep, "count"), v)
		errs = multierr.Append(errs, err)
		st := stats[ep]
		st.Count = n
		stats[ep] = st
	})
	eachEndpoint(mfs[promEndpointAvgTime], func(ep string, v float64) {
		st := stats[ep]
		st.AvgTime = v
		stats[ep] = st
	})
	eachEndpoint(mfs[promEndpointErrorRate], func(ep string, v float64) {
		st := stats[ep]
		st.ErrorRate = v
		stats[ep] = st
	})
	if errs != nil {
		return nil, errs
	}
	if len(stats) > 0 {
		snap.EndpointStats = stats
	}
	return snap, nil
}

// eachEndpoint calls fn with the endpoint label and value of every series
// in mf. Series without an endpoint label are skipped.
func eachEndpoint(mf *dto.MetricFamily, fn func(endpoint string, v float64)) {
	if mf == nil {
		return
	}
	for _, m := range mf.GetMetric() {
		ep := labelValue(m, endpointLabel)
		if ep == "" {
			continue
		}
		fn(ep, metricValue(m))
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += metricValue(m)
	}
	return total
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
