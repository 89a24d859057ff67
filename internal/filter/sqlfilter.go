package filter

import (
	"github.com/basket/eventkeep/internal/events"
	"github.com/basket/eventkeep/internal/liveness"
)

// SQLFilter classifies historical events against a point-in-time snapshot
// of live SQL entities. It is immutable once built and safe for
// unsynchronized concurrent use; Classify has no side effects.
type SQLFilter struct {
	snap     liveness.Snapshot
	delegate JobFilter
}

// NewSQLFilter builds a filter over snap. A nil delegate defaults to a
// LiveIndex over the snapshot's own job/stage/task/dataset sets.
func NewSQLFilter(snap liveness.Snapshot, delegate JobFilter) *SQLFilter {
	if delegate == nil {
		delegate = LiveIndex{
			Jobs:     snap.Jobs,
			Stages:   snap.Stages,
			Tasks:    snap.Tasks,
			Datasets: snap.Datasets,
		}
	}
	return &SQLFilter{snap: snap, delegate: delegate}
}

// Classify returns the filter's decision for one historical event.
//
// Execution-scoped events are always decidable: live execution means
// Accept, anything else Reject. Job-lineage events are delegated; only a
// definitive Live upgrades to Accept. A negative or not-applicable answer
// stays Undecided because the job may not be SQL-related, or may be kept by
// another filter with authority this one lacks. Periodic progress reports
// are dead weight once the run produced them and are always rejected.
// Everything else is abstained on.
func (f *SQLFilter) Classify(e events.Event) Decision {
	switch ev := e.(type) {
	case events.ExecutorMetricsUpdate, events.StageExecutorMetrics:
		return Reject
	case events.ExecutionScoped:
		if _, live := f.snap.Executions[ev.Execution()]; live {
			return Accept
		}
		return Reject
	case events.JobStart, events.JobEnd,
		events.StageSubmitted, events.StageCompleted,
		events.TaskStart, events.TaskEnd,
		events.DatasetUnpersist:
		if f.delegate.Check(e) == Live {
			return Accept
		}
		return Undecided
	default:
		return Undecided
	}
}
