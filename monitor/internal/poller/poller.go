package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/metrics"
	"github.com/pulsewatch/pulsewatch/monitor/internal/notify"
	"github.com/pulsewatch/pulsewatch/monitor/internal/source"
	"github.com/pulsewatch/pulsewatch/monitor/internal/store"
)

var errNilSnapshot = errors.New("source returned no snapshot")

// Notifier receives every fresh report. *notify.Notifier implements it.
type Notifier interface {
	Observe(ctx context.Context, sourceID string, r compute.Report) (*notify.Notification, error)
}

// Options controls the polling cycle.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	TopN         int
}

// Outcome is the result of polling one source in one cycle.
type Outcome struct {
	SourceID string
	// Result is one of the metrics.Result* values.
	Result string
	// Err is the fetch or validation error, nil when Result is ResultOK.
	Err error
}

// Poller owns the polling loop. Sources and options can be swapped while
// Run is active.
type Poller struct {
	store    *store.Store
	metrics  *metrics.Metrics
	notifier Notifier

	mu      sync.RWMutex
	sources []source.Source
	opts    Options
	reset   chan struct{}
}

// New creates a Poller. n may be nil to disable notifications.
func New(sources []source.Source, st *store.Store, m *metrics.Metrics, n Notifier, opts Options) *Poller {
	return &Poller{
		store:    st,
		metrics:  m,
		notifier: n,
		sources:  sources,
		opts:     opts,
		reset:    make(chan struct{}, 1),
	}
}

// SetSources replaces the polled sources. State held for sources that are
// no longer present is dropped from the store and the metrics.
func (p *Poller) SetSources(sources []source.Source) {
	p.mu.Lock()
	old := p.sources
	p.sources = sources
	p.mu.Unlock()

	keep := make(map[string]bool, len(sources))
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		keep[s.ID()] = true
		ids = append(ids, s.ID())
	}
	for _, s := range old {
		if !keep[s.ID()] {
			p.metrics.Forget(s.ID())
			if f, ok := p.notifier.(interface{ Forget(string) }); ok {
				f.Forget(s.ID())
			}
		}
	}
	if n := p.store.Retain(ids); n > 0 {
		slog.Info("poller: dropped removed sources", "count", n)
	}
}

// SetOptions replaces the cycle options. An interval change takes effect on
// the next tick.
func (p *Poller) SetOptions(opts Options) {
	p.mu.Lock()
	changed := opts.Interval != p.opts.Interval
	p.opts = opts
	p.mu.Unlock()
	if changed {
		select {
		case p.reset <- struct{}{}:
		default:
		}
	}
}

func (p *Poller) snapshot() ([]source.Source, Options) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sources, p.opts
}

// Latest returns the last report published for sourceID.
func (p *Poller) Latest(sourceID string) (store.Entry, bool) {
	e, ok := p.store.Get(sourceID)
	if !ok || !e.HasReport {
		return store.Entry{}, false
	}
	return e, true
}

// Run polls immediately and then on every interval tick until ctx is
// cancelled.
func (p *Poller) Run(ctx context.Context) {
	_, opts := p.snapshot()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	p.RunOnce(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.reset:
			_, opts := p.snapshot()
			ticker.Reset(opts.Interval)
			slog.Info("poller: interval changed", "interval", opts.Interval)
		case t := <-ticker.C:
			p.RunOnce(ctx, t)
		}
	}
}

// RunOnce polls every source concurrently and waits for all of them.
// Outcomes are returned in source order.
func (p *Poller) RunOnce(ctx context.Context, now time.Time) []Outcome {
	sources, opts := p.snapshot()
	out := make([]Outcome, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			out[i] = p.poll(ctx, src, opts, now)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Poller) poll(ctx context.Context, src source.Source, opts Options, now time.Time) Outcome {
	id := src.ID()
	res := Outcome{SourceID: id}

	report, err := p.fetchAndAnalyze(ctx, src, opts)
	if err == nil {
		p.metrics.Evaluated(id, metrics.ResultOK)
		p.publish(ctx, id, report, false)
		res.Result = metrics.ResultOK
		return res
	}

	res.Err = err
	res.Result = metrics.ResultFetchError
	if errors.Is(err, compute.ErrInvalidSnapshot) {
		res.Result = metrics.ResultInvalid
	}
	p.metrics.Evaluated(id, res.Result)
	slog.Warn("poller: evaluation failed", "source", id, "result", res.Result, "err", err)

	snap, at, ok := p.store.Fallback(id)
	if !ok {
		return res
	}
	stale, err := compute.Analyze(snap, opts.TopN)
	if err != nil {
		// Unreachable while stored snapshots are validated on the way in.
		slog.Error("poller: stored snapshot rejected", "source", id, "err", err)
		return res
	}
	p.metrics.Evaluated(id, metrics.ResultStale)
	p.publish(ctx, id, stale, true)
	slog.Info("poller: serving stale snapshot", "source", id, "age", now.Sub(at).Round(time.Second))
	return res
}

// fetchAndAnalyze fetches one snapshot under the fetch timeout and analyzes
// it. A valid snapshot is recorded in the store as the new fallback.
func (p *Poller) fetchAndAnalyze(ctx context.Context, src source.Source, opts Options) (compute.Report, error) {
	id := src.ID()

	fctx, cancel := context.WithTimeout(ctx, opts.FetchTimeout)
	start := time.Now()
	snap, err := src.Fetch(fctx)
	cancel()
	p.metrics.ObserveFetch(id, time.Since(start))
	if err != nil {
		return compute.Report{}, fmt.Errorf("poller: fetch %q: %w", id, err)
	}
	if snap == nil {
		return compute.Report{}, fmt.Errorf("poller: fetch %q: %w", id, errNilSnapshot)
	}

	report, err := compute.Analyze(*snap, opts.TopN)
	if err != nil {
		return compute.Report{}, fmt.Errorf("poller: analyze %q: %w", id, err)
	}
	p.store.PutSnapshot(id, *snap)
	return report, nil
}

func (p *Poller) publish(ctx context.Context, id string, r compute.Report, stale bool) {
	p.store.PutReport(id, r, stale)
	p.metrics.Observe(id, r)
	p.metrics.MarkStale(id, stale)

	slog.Debug("poller: report published",
		"source", id,
		"score", r.Score,
		"tier", r.Tier.Label,
		"banner", r.Banner,
		"alerts", len(r.Alerts),
		"stale", stale,
	)

	if stale || p.notifier == nil {
		return
	}
	note, err := p.notifier.Observe(ctx, id, r)
	if note == nil {
		return
	}
	outcome := metrics.OutcomeSent
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	p.metrics.Notified(string(note.Transition), outcome)
}
