// Package liveness tracks which SQL executions, jobs, stages, tasks, and
// datasets are still live while an event stream is being consumed. The
// tracker is the single source of truth the compaction filters snapshot.
package liveness

import (
	"log/slog"
	"sync"

	"github.com/basket/eventkeep/internal/events"
)

// Tracker maintains the hierarchical liveness graph
// execution → jobs → stages → {tasks, datasets}, driven one event at a time.
//
// One mutex guards all five tables so a snapshot can never observe a torn
// update, e.g. an execution whose jobs are gone but whose stages are not.
type Tracker struct {
	mu     sync.Mutex
	logger *slog.Logger

	executions    map[int64]map[int]struct{} // execution id → job ids added under it
	jobStages     map[int]map[int]struct{}   // job id → stage ids declared at job start
	stageTasks    map[int]map[int64]struct{} // stage id → task ids observed so far
	stageDatasets map[int]map[int]struct{}   // stage id → dataset ids fixed at submit
	interesting   map[int]struct{}           // stage ids declared by some tracked job
}

// NewTracker creates an empty tracker. A nil logger falls back to
// slog.Default.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger:        logger,
		executions:    make(map[int64]map[int]struct{}),
		jobStages:     make(map[int]map[int]struct{}),
		stageTasks:    make(map[int]map[int64]struct{}),
		stageDatasets: make(map[int]map[int]struct{}),
		interesting:   make(map[int]struct{}),
	}
}

// HandleEvent feeds one event into the tracker. Events it does not
// recognize, and job starts without a parsable SQL execution correlation,
// are ignored. It never fails.
func (t *Tracker) HandleEvent(e events.Event) {
	switch ev := e.(type) {
	case events.ExecutionStart:
		t.OnExecutionStart(ev.ExecutionID)
	case events.ExecutionEnd:
		t.OnExecutionEnd(ev.ExecutionID)
	case events.JobStart:
		execID, ok := ev.ExecutionID()
		if !ok {
			t.logger.Debug("job without SQL execution correlation, not tracking", "job_id", ev.JobID)
			return
		}
		t.OnJobStart(execID, ev.JobID, ev.StageIDs)
	case events.StageSubmitted:
		t.OnStageSubmitted(ev.StageID, ev.DatasetIDs)
	case events.TaskStart:
		t.OnTaskStart(ev.StageID, ev.TaskID)
	default:
		// Liveness is only driven by start/submit/end signals.
	}
}

// OnExecutionStart registers an execution with an empty job set. Restarting
// an id already present overwrites its previous job set.
func (t *Tracker) OnExecutionStart(executionID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executions[executionID] = make(map[int]struct{})
}

// OnJobStart records a job under its owning execution, fixes the job's
// stage declaration, and marks those stages interesting. The execution's
// job set is created on demand: the job-start event may arrive before the
// execution-start event.
func (t *Tracker) OnJobStart(executionID int64, jobID int, stageIDs []int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs, ok := t.executions[executionID]
	if !ok {
		jobs = make(map[int]struct{})
		t.executions[executionID] = jobs
	}
	jobs[jobID] = struct{}{}

	stages := make(map[int]struct{}, len(stageIDs))
	for _, id := range stageIDs {
		stages[id] = struct{}{}
		t.interesting[id] = struct{}{}
	}
	t.jobStages[jobID] = stages
}

// OnStageSubmitted records a stage's dataset set and opens its task set.
// Stages no tracked job has declared are ignored: the tracker never records
// entities it cannot attribute to a live job.
func (t *Tracker) OnStageSubmitted(stageID int, datasetIDs []int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.interesting[stageID]; !ok {
		return
	}
	datasets := make(map[int]struct{}, len(datasetIDs))
	for _, id := range datasetIDs {
		datasets[id] = struct{}{}
	}
	t.stageDatasets[stageID] = datasets
	t.stageTasks[stageID] = make(map[int64]struct{})
}

// OnTaskStart appends a task to its stage's task set. Ignored unless the
// stage's submission was recorded.
func (t *Tracker) OnTaskStart(stageID int, taskID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks, ok := t.stageTasks[stageID]
	if !ok {
		return
	}
	tasks[taskID] = struct{}{}
}

// OnExecutionEnd drops the execution and, transitively, exactly the jobs
// added under it, the stages those jobs declared, and the tasks and
// datasets recorded for those stages. Unknown ids are a no-op.
func (t *Tracker) OnExecutionEnd(executionID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs, ok := t.executions[executionID]
	delete(t.executions, executionID)
	if !ok {
		return
	}
	for jobID := range jobs {
		stages := t.jobStages[jobID]
		delete(t.jobStages, jobID)
		for stageID := range stages {
			delete(t.interesting, stageID)
			delete(t.stageTasks, stageID)
			delete(t.stageDatasets, stageID)
		}
	}
}
