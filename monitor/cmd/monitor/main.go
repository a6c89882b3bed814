package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
	"github.com/pulsewatch/pulsewatch/monitor/internal/metrics"
	"github.com/pulsewatch/pulsewatch/monitor/internal/notify"
	"github.com/pulsewatch/pulsewatch/monitor/internal/poller"
	"github.com/pulsewatch/pulsewatch/monitor/internal/source"
	"github.com/pulsewatch/pulsewatch/monitor/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug | info | warn | error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	slog.Info("pulsewatch-monitor starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"sources", len(cfg.Monitor.Sources),
		"poll_interval", cfg.Monitor.PollInterval,
		"stale_after", cfg.Monitor.StaleAfter,
		"webhooks", len(cfg.Notify.Webhooks),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sources, err := source.NewAll(cfg.Monitor.Sources)
	if err != nil {
		slog.Error("failed to build sources", "err", err)
		os.Exit(1)
	}
	for _, src := range cfg.Monitor.Sources {
		slog.Info("registered source", "id", src.ID, "type", src.Type, "endpoint", src.Endpoint)
	}
	if len(sources) == 0 {
		slog.Warn("no sources configured, monitor will idle")
	}

	// Last valid snapshot per source, reused for stale reports.
	st := store.New(cfg.Monitor.StaleAfter)
	go st.Run(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	notifier := notify.New(cfg.Notify)
	p := poller.New(sources, st, m, notifier, optionsFrom(cfg.Monitor))

	// Hot reload rebuilds the sources and re-targets the notifier.
	pending := newRestartTracker(cfg)
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			next, err := source.NewAll(updated.Monitor.Sources)
			if err != nil {
				slog.Error("config reload: keeping previous sources", "err", err)
				return
			}
			p.SetSources(next)
			p.SetOptions(optionsFrom(updated.Monitor))
			notifier.Reconfigure(updated.Notify)
			for _, c := range pending.observe(updated) {
				slog.Warn("config reload: change takes effect after restart",
					"setting", c.setting, "running", c.running, "configured", c.configured)
			}
			slog.Info("config hot-reloaded", "sources", len(next))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var httpSrv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		httpSrv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics server listening", "addr", cfg.Metrics.Listen)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	p.Run(ctx)

	slog.Info("pulsewatch-monitor shutting down")
	if httpSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}
}

// restartTracker follows the settings that are only read at startup and
// reports each reload that changes one of them.
type restartTracker struct {
	running *config.Config
	last    *config.Config
}

type restartChange struct {
	setting    string
	running    any
	configured any
}

func newRestartTracker(running *config.Config) *restartTracker {
	return &restartTracker{running: running, last: running}
}

// observe records next as the latest loaded config. It returns the
// startup-only settings that next changes relative to the previous load
// and that differ from the running values.
func (t *restartTracker) observe(next *config.Config) []restartChange {
	var out []restartChange
	if next.Monitor.StaleAfter != t.last.Monitor.StaleAfter && next.Monitor.StaleAfter != t.running.Monitor.StaleAfter {
		out = append(out, restartChange{"monitor.stale_after", t.running.Monitor.StaleAfter, next.Monitor.StaleAfter})
	}
	if next.Metrics.Listen != t.last.Metrics.Listen && next.Metrics.Listen != t.running.Metrics.Listen {
		out = append(out, restartChange{"metrics.listen", t.running.Metrics.Listen, next.Metrics.Listen})
	}
	t.last = next
	return out
}

func optionsFrom(m config.MonitorConfig) poller.Options {
	return poller.Options{
		Interval:     m.PollInterval,
		FetchTimeout: m.FetchTimeout,
		TopN:         m.TopN,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
