// Command eventkeep scores and compacts execution-history event logs: it
// replays a log to learn which SQL entities are still live, then rewrites
// the log keeping only the records some filter still needs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/basket/eventkeep/internal/bus"
	"github.com/basket/eventkeep/internal/compactor"
	"github.com/basket/eventkeep/internal/config"
	"github.com/basket/eventkeep/internal/cron"
	"github.com/basket/eventkeep/internal/filter"
	"github.com/basket/eventkeep/internal/liveness"
	"github.com/basket/eventkeep/internal/telemetry"
	"github.com/basket/eventkeep/internal/watch"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

  %s score <log.jsonl>        Report what a compaction pass would keep and drop
  %s compact <log.jsonl>      Write the compacted log to <log.jsonl>.compact
  %s daemon                   Watch and/or schedule compaction of the event log dir

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
EXAMPLES:
  Score a log:            %s score events.jsonl
  Compact a log:          %s -config config.yaml compact events.jsonl
  Run the daemon:         %s -config config.yaml daemon
`, os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	quiet := flag.Bool("quiet", false, "log to file only, not stdout")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println("eventkeep", Version)
		return
	}
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.LogDir, cfg.LogLevel, *quiet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: set up logging:", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer provider.Shutdown(context.Background())
	metrics, err := telemetry.NewMetrics(provider.Meter)
	if err != nil {
		logger.Error("metrics init failed", "error", err)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "score":
		err = runOnce(ctx, cfg, logger, metrics, flag.Arg(1), false)
	case "compact":
		err = runOnce(ctx, cfg, logger, metrics, flag.Arg(1), true)
	case "daemon":
		err = runDaemon(ctx, cfg, logger, metrics)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

// newCompactor wires one compaction session: a fresh tracker, registered as
// both replay listener and filter source. Trackers are session-scoped, so
// every pass starts from an empty liveness graph.
func newCompactor(cfg config.Config, logger *slog.Logger, metrics *telemetry.Metrics) *compactor.Compactor {
	tracker := liveness.NewTracker(logger)
	registry := filter.NewRegistry()
	registry.Register(filter.NewSQLBuilder(tracker, nil))

	defaultDecision := filter.Accept
	if cfg.Compaction.DefaultDecision == config.DecisionDrop {
		defaultDecision = filter.Reject
	}
	return compactor.New(compactor.Config{
		Registry:        registry,
		Listeners:       []bus.Listener{tracker},
		DefaultDecision: defaultDecision,
		Logger:          logger,
		Metrics:         metrics,
	})
}

func runOnce(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *telemetry.Metrics, path string, write bool) error {
	if path == "" {
		return fmt.Errorf("missing event log path")
	}
	c := newCompactor(cfg, logger, metrics)

	var (
		report compactor.Report
		err    error
	)
	if write {
		report, err = c.CompactFile(ctx, path)
	} else {
		report, err = c.ScoreFile(ctx, path)
	}
	if err != nil {
		return err
	}

	fmt.Printf("total:       %d\n", report.Total)
	fmt.Printf("kept:        %d\n", report.Kept)
	fmt.Printf("dropped:     %d\n", report.Dropped)
	fmt.Printf("abstained:   %d\n", report.Abstained)
	fmt.Printf("undecodable: %d\n", report.Undecodable)
	if report.OutputPath != "" {
		fmt.Printf("written:     %s\n", report.OutputPath)
	}
	return nil
}

func runDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *telemetry.Metrics) error {
	if !cfg.Compaction.Watch && cfg.Compaction.Schedule == "" {
		return fmt.Errorf("daemon mode needs compaction.watch or compaction.schedule set")
	}

	compactAll := func(ctx context.Context) {
		for _, path := range eventLogs(cfg.Compaction.EventLogDir, logger) {
			compactPath(ctx, cfg, logger, metrics, path)
		}
	}

	if cfg.Compaction.Schedule != "" {
		sched, err := cron.NewScheduler(cron.Config{
			Expr:   cfg.Compaction.Schedule,
			Run:    compactAll,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("compaction.schedule: %w", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	var triggers <-chan watch.Trigger
	if cfg.Compaction.Watch {
		watcher := watch.NewWatcher(cfg.Compaction.EventLogDir, cfg.Compaction.WatchDebounce(), logger)
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start log watcher: %w", err)
		}
		triggers = watcher.Triggers()
	}

	logger.Info("eventkeep daemon started",
		"version", Version,
		"event_log_dir", cfg.Compaction.EventLogDir,
		"watch", cfg.Compaction.Watch,
		"schedule", cfg.Compaction.Schedule,
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("eventkeep daemon stopping")
			return nil
		case trig, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			compactPath(ctx, cfg, logger, metrics, trig.Path)
		}
	}
}

// compactPath runs one compaction pass over path with a fresh session.
func compactPath(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *telemetry.Metrics, path string) {
	if ctx.Err() != nil {
		return
	}
	c := newCompactor(cfg, logger, metrics)
	if _, err := c.CompactFile(ctx, path); err != nil {
		logger.Error("compaction pass failed", "log", path, "error", err)
	}
}

// eventLogs lists the JSON-lines logs in dir, skipping compacted outputs.
func eventLogs(dir string, logger *slog.Logger) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("list event log dir", "dir", dir, "error", err)
		return nil
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") || strings.Contains(name, ".compact") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths
}
