package source

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
)

// systemStatus is the system status document served at Source.Endpoint.
// Unknown fields (uptime, platform, ...) are ignored.
type systemStatus struct {
	CPU    wireCPU   `json:"cpu"`
	Memory wireUsage `json:"memory"`
	Disk   wireUsage `json:"disk"`
}

// performanceStats is the endpoint performance document served at
// Source.PerformanceEndpoint. Its total_requests field is ignored; the
// report derives the total from the endpoint counts.
type performanceStats struct {
	EndpointStats map[string]wireEndpoint `json:"endpoint_stats"`
}

type backendSource struct {
	src    config.Source
	client *http.Client
}

func (s *backendSource) ID() string { return s.src.ID }

// Fetch reads the system status and, when configured, the endpoint
// performance document concurrently and merges them into one snapshot.
// Either request failing fails the fetch. Out-of-range integer fields are
// reported as *compute.ValidationError.
func (s *backendSource) Fetch(ctx context.Context) (*compute.Snapshot, error) {
	var (
		sys  systemStatus
		perf performanceStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := getJSON(gctx, s.client, s.src.Endpoint, &sys); err != nil {
			return fmt.Errorf("system status: %w", err)
		}
		return nil
	})
	if s.src.PerformanceEndpoint != "" {
		g.Go(func() error {
			if err := getJSON(gctx, s.client, s.src.PerformanceEndpoint, &perf); err != nil {
				return fmt.Errorf("performance stats: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backend source %q: %w", s.src.ID, err)
	}

	snap, err := wireSnapshot{
		CPU:           sys.CPU,
		Memory:        sys.Memory,
		Disk:          sys.Disk,
		EndpointStats: perf.EndpointStats,
	}.snapshot()
	if err != nil {
		return nil, fmt.Errorf("backend source %q: %w", s.src.ID, err)
	}
	return snap, nil
}
