package telemetry

import "go.opentelemetry.io/otel/metric"

// Metrics holds all eventkeep metric instruments.
type Metrics struct {
	EventsScanned metric.Int64Counter
	EventsKept    metric.Int64Counter
	EventsDropped metric.Int64Counter
	RunsTotal     metric.Int64Counter
	RunDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.EventsScanned, err = meter.Int64Counter("eventkeep.events.scanned",
		metric.WithDescription("Event records read during a compaction pass"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsKept, err = meter.Int64Counter("eventkeep.events.kept",
		metric.WithDescription("Event records retained by a compaction pass"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsDropped, err = meter.Int64Counter("eventkeep.events.dropped",
		metric.WithDescription("Event records dropped by a compaction pass"),
	)
	if err != nil {
		return nil, err
	}

	m.RunsTotal, err = meter.Int64Counter("eventkeep.runs.total",
		metric.WithDescription("Compaction passes started"),
	)
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("eventkeep.run.duration",
		metric.WithDescription("Compaction pass duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
