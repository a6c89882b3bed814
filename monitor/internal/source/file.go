package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
)

type fileSource struct {
	src config.Source
}

func (s *fileSource) ID() string { return s.src.ID }

// Fetch reads a snapshot document from the configured path. The file is
// re-read on every call so an external writer can refresh it in place.
func (s *fileSource) Fetch(ctx context.Context) (*compute.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("file source %q: %w", s.src.ID, err)
	}
	var doc wireSnapshot
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("file source %q: decode json: %w", s.src.ID, err)
	}
	snap, err := doc.snapshot()
	if err != nil {
		return nil, fmt.Errorf("file source %q: %w", s.src.ID, err)
	}
	return snap, nil
}
