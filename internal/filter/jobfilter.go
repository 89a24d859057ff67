package filter

import "github.com/basket/eventkeep/internal/events"

// Verdict is a JobFilter's answer for one job-lineage event.
type Verdict int

const (
	// NotApplicable means the filter does not understand the event kind.
	NotApplicable Verdict = iota
	// Live means the event relates to a known-live job, stage, task, or
	// dataset.
	Live
	// NotLive means the event's subject is known and not live.
	NotLive
)

func (v Verdict) String() string {
	switch v {
	case Live:
		return "live"
	case NotLive:
		return "not_live"
	default:
		return "not_applicable"
	}
}

// JobFilter answers whether a job-lineage event (job, stage, task, or
// dataset lifecycle) relates to a known-live entity.
type JobFilter interface {
	Check(e events.Event) Verdict
}

// LiveIndex is a JobFilter backed by explicit live-id sets. It checks pure
// set membership per event kind and reports NotApplicable for kinds it does
// not understand.
type LiveIndex struct {
	Jobs     map[int]struct{}
	Stages   map[int]struct{}
	Tasks    map[int64]struct{}
	Datasets map[int]struct{}
}

// Check reports the liveness verdict for e by id membership.
func (ix LiveIndex) Check(e events.Event) Verdict {
	switch ev := e.(type) {
	case events.JobStart:
		return verdict(memberInt(ix.Jobs, ev.JobID))
	case events.JobEnd:
		return verdict(memberInt(ix.Jobs, ev.JobID))
	case events.StageSubmitted:
		return verdict(memberInt(ix.Stages, ev.StageID))
	case events.StageCompleted:
		return verdict(memberInt(ix.Stages, ev.StageID))
	case events.StageExecutorMetrics:
		return verdict(memberInt(ix.Stages, ev.StageID))
	case events.TaskStart:
		return verdict(memberInt64(ix.Tasks, ev.TaskID))
	case events.TaskEnd:
		return verdict(memberInt64(ix.Tasks, ev.TaskID))
	case events.DatasetUnpersist:
		return verdict(memberInt(ix.Datasets, ev.DatasetID))
	default:
		return NotApplicable
	}
}

func verdict(live bool) Verdict {
	if live {
		return Live
	}
	return NotLive
}

func memberInt(set map[int]struct{}, id int) bool {
	_, ok := set[id]
	return ok
}

func memberInt64(set map[int64]struct{}, id int64) bool {
	_, ok := set[id]
	return ok
}
