// Package compactor rewrites an execution-history event log, dropping
// records no registered filter still needs. Trackers accumulate liveness
// during a replay pass; filters are built once at the compaction boundary
// and applied record by record.
package compactor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/basket/eventkeep/internal/bus"
	"github.com/basket/eventkeep/internal/events"
	"github.com/basket/eventkeep/internal/filter"
	"github.com/basket/eventkeep/internal/telemetry"
)

// Config holds the dependencies for a Compactor.
type Config struct {
	// Registry supplies the filter builders queried at each compaction
	// boundary.
	Registry *filter.Registry

	// Listeners are replayed the full log before filters are built. Leave
	// empty when the registry's trackers are fed by a live session instead.
	Listeners []bus.Listener

	// DefaultDecision resolves events every filter abstains on. Reject
	// means drop; anything else means keep, the default policy.
	DefaultDecision filter.Decision

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Compactor scores and rewrites event logs.
type Compactor struct {
	registry        *filter.Registry
	listeners       []bus.Listener
	defaultDecision filter.Decision
	logger          *slog.Logger
	metrics         *telemetry.Metrics
}

// New creates a Compactor from cfg. Registry is required; Logger and
// Metrics may be nil.
func New(cfg Config) *Compactor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		registry:        cfg.Registry,
		listeners:       cfg.Listeners,
		defaultDecision: cfg.DefaultDecision,
		logger:          logger,
		metrics:         cfg.Metrics,
	}
}

// Report summarizes one compaction pass.
type Report struct {
	RunID       string
	OutputPath  string // empty for score-only passes
	Total       int    // records read
	Kept        int
	Dropped     int
	Abstained   int // records every filter abstained on, resolved by the default
	Undecodable int // lines that did not decode, always kept verbatim
}

// Replay feeds every decodable event in r to the configured listeners, in
// order, through a serial dispatcher. Lines that do not decode are skipped;
// the trackers cannot learn anything from them.
func (c *Compactor) Replay(ctx context.Context, r io.Reader) error {
	d := bus.NewDispatcher(c.logger)
	for _, l := range c.listeners {
		d.Register(l)
	}
	reader := events.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}
		if rec.Event == nil {
			continue
		}
		d.Post(rec.Event)
	}
}

// Rewrite classifies every record in src against filters built now and
// writes the kept records to dst. A nil dst counts without writing. A
// record is kept when any filter accepts, dropped when at least one rejects
// and none accepts, and resolved by the default decision when all abstain.
func (c *Compactor) Rewrite(ctx context.Context, src io.Reader, dst io.Writer) (Report, error) {
	filters := c.registry.BuildAll()

	var w *events.Writer
	if dst != nil {
		w = events.NewWriter(dst)
	}

	var report Report
	reader := events.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read event log: %w", err)
		}
		report.Total++

		keep := true
		if rec.Event == nil {
			// We cannot judge what we cannot decode.
			report.Undecodable++
		} else {
			decision := filter.Undecided
			for _, f := range filters {
				decision = decision.Or(f.Classify(rec.Event))
			}
			switch decision {
			case filter.Reject:
				keep = false
			case filter.Undecided:
				report.Abstained++
				keep = c.defaultDecision != filter.Reject
			}
		}

		if keep {
			report.Kept++
			if w != nil {
				if err := w.WriteRaw(rec.Line); err != nil {
					return report, fmt.Errorf("write compacted log: %w", err)
				}
			}
		} else {
			report.Dropped++
		}
	}
	if w != nil {
		if err := w.Flush(); err != nil {
			return report, fmt.Errorf("flush compacted log: %w", err)
		}
	}
	return report, nil
}

// ScoreFile replays path and reports what a compaction pass would keep and
// drop, without writing anything.
func (c *Compactor) ScoreFile(ctx context.Context, path string) (Report, error) {
	return c.run(ctx, path, false)
}

// CompactFile replays path, then writes the kept records to a ".compact"
// sibling via a temp file and atomic rename. The original log is never
// modified.
func (c *Compactor) CompactFile(ctx context.Context, path string) (Report, error) {
	return c.run(ctx, path, true)
}

func (c *Compactor) run(ctx context.Context, path string, write bool) (Report, error) {
	runID := uuid.NewString()
	mode := "score"
	if write {
		mode = "compact"
	}
	logger := c.logger.With("run_id", runID, "log", path, "mode", mode)
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	if c.metrics != nil {
		c.metrics.RunsTotal.Add(ctx, 1, attrs)
	}

	if len(c.listeners) > 0 {
		src, err := os.Open(path)
		if err != nil {
			return Report{}, fmt.Errorf("open event log: %w", err)
		}
		err = c.Replay(ctx, src)
		src.Close()
		if err != nil {
			return Report{}, fmt.Errorf("replay event log: %w", err)
		}
	}

	src, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open event log: %w", err)
	}
	defer src.Close()

	var report Report
	if write {
		out := path + ".compact"
		tmp := out + ".tmp"
		dst, err := os.Create(tmp)
		if err != nil {
			return Report{}, fmt.Errorf("create compacted log: %w", err)
		}
		report, err = c.Rewrite(ctx, src, dst)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(tmp)
			return report, err
		}
		if err := os.Rename(tmp, out); err != nil {
			os.Remove(tmp)
			return report, fmt.Errorf("replace compacted log: %w", err)
		}
		report.OutputPath = out
	} else {
		report, err = c.Rewrite(ctx, src, nil)
		if err != nil {
			return report, err
		}
	}
	report.RunID = runID

	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.EventsScanned.Add(ctx, int64(report.Total), attrs)
		c.metrics.EventsKept.Add(ctx, int64(report.Kept), attrs)
		c.metrics.EventsDropped.Add(ctx, int64(report.Dropped), attrs)
		c.metrics.RunDuration.Record(ctx, elapsed.Seconds(), attrs)
	}

	logger.Info("compaction pass finished",
		"total", report.Total,
		"kept", report.Kept,
		"dropped", report.Dropped,
		"abstained", report.Abstained,
		"undecodable", report.Undecodable,
		"duration_ms", elapsed.Milliseconds(),
	)
	return report, nil
}
