package liveness

import (
	"sync"
	"testing"

	"github.com/basket/eventkeep/internal/events"
)

func wantSet[K comparable](t *testing.T, name string, got map[K]struct{}, want ...K) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
	for _, id := range want {
		if _, ok := got[id]; !ok {
			t.Fatalf("%s: missing %v in %v", name, id, got)
		}
	}
}

// Replays the full lifecycle of one SQL execution and checks each live set.
func TestTracker_FullLifecycle(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})
	tr.OnStageSubmitted(100, []int{1000})
	tr.OnTaskStart(100, 9999)

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions, int64(1))
	wantSet(t, "jobs", snap.Jobs, 10)
	wantSet(t, "stages", snap.Stages, 100)
	wantSet(t, "tasks", snap.Tasks, int64(9999))
	wantSet(t, "datasets", snap.Datasets, 1000)
}

func TestTracker_ExecutionEndDropsEverything(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})
	tr.OnStageSubmitted(100, []int{1000})
	tr.OnTaskStart(100, 9999)

	tr.OnExecutionEnd(1)

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions)
	wantSet(t, "jobs", snap.Jobs)
	wantSet(t, "stages", snap.Stages)
	wantSet(t, "tasks", snap.Tasks)
	wantSet(t, "datasets", snap.Datasets)
}

func TestTracker_ExecutionEndLeavesOtherExecutionsAlone(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})
	tr.OnStageSubmitted(100, []int{1000})
	tr.OnTaskStart(100, 111)

	tr.OnExecutionStart(2)
	tr.OnJobStart(2, 20, []int{200})
	tr.OnStageSubmitted(200, []int{2000})
	tr.OnTaskStart(200, 222)

	tr.OnExecutionEnd(1)

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions, int64(2))
	wantSet(t, "jobs", snap.Jobs, 20)
	wantSet(t, "stages", snap.Stages, 200)
	wantSet(t, "tasks", snap.Tasks, int64(222))
	wantSet(t, "datasets", snap.Datasets, 2000)
}

func TestTracker_JobWithoutCorrelationIsIgnored(t *testing.T) {
	tr := NewTracker(nil)
	tr.HandleEvent(events.JobStart{JobID: 10, StageIDs: []int{100}})
	tr.HandleEvent(events.JobStart{
		JobID:    11,
		Props:    map[string]string{events.ExecutionIDProp: "not a number"},
		StageIDs: []int{101},
	})

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions)
	wantSet(t, "jobs", snap.Jobs)
	wantSet(t, "stages", snap.Stages)
}

func TestTracker_JobBeforeExecutionStart(t *testing.T) {
	tr := NewTracker(nil)
	// Out-of-order delivery: the job arrives first.
	tr.OnJobStart(1, 10, []int{100})
	tr.OnExecutionEnd(1)

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions)
	wantSet(t, "jobs", snap.Jobs)
	wantSet(t, "stages", snap.Stages)
}

func TestTracker_UninterestingStageIgnored(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})

	// Stage 999 was never declared by a tracked job.
	tr.OnStageSubmitted(999, []int{5000})
	tr.OnTaskStart(999, 42)

	snap := tr.Snapshot()
	wantSet(t, "stages", snap.Stages, 100)
	wantSet(t, "tasks", snap.Tasks)
	wantSet(t, "datasets", snap.Datasets)
}

func TestTracker_TaskBeforeStageSubmitIgnored(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})

	// Interesting, but no submission recorded yet: no task container.
	tr.OnTaskStart(100, 42)

	if tasks := tr.LiveTasks(); len(tasks) != 0 {
		t.Fatalf("tasks = %v, want empty", tasks)
	}
}

func TestTracker_ExecutionRestartOverwrites(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})

	// The same execution id starts again: its job set is replaced.
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 11, []int{101})
	tr.OnExecutionEnd(1)

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions)
	if _, ok := snap.Jobs[11]; ok {
		t.Fatalf("job 11 should be gone after execution end, got %v", snap.Jobs)
	}
}

func TestTracker_EndUnknownExecutionIsNoop(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})

	tr.OnExecutionEnd(42)

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions, int64(1))
	wantSet(t, "jobs", snap.Jobs, 10)
}

func TestTracker_HandleEventIgnoresUnknownKinds(t *testing.T) {
	tr := NewTracker(nil)
	tr.HandleEvent(events.Custom{Name: "something_else"})
	tr.HandleEvent(events.ExecutorMetricsUpdate{})
	tr.HandleEvent(events.JobEnd{JobID: 1})

	snap := tr.Snapshot()
	wantSet(t, "executions", snap.Executions)
	wantSet(t, "jobs", snap.Jobs)
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnExecutionStart(1)
	tr.OnJobStart(1, 10, []int{100})

	snap := tr.Snapshot()
	snap.Executions[99] = struct{}{}
	snap.Jobs[99] = struct{}{}

	if _, ok := tr.LiveExecutions()[99]; ok {
		t.Fatal("mutating a snapshot leaked into the tracker")
	}
	if _, ok := tr.LiveJobs()[99]; ok {
		t.Fatal("mutating a snapshot leaked into the tracker")
	}
}

// A snapshot taken while an execution is being torn down must observe the
// execution either fully present or fully gone, never a mix.
func TestTracker_SnapshotNeverTorn(t *testing.T) {
	tr := NewTracker(nil)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			tr.OnExecutionStart(1)
			tr.OnJobStart(1, 10, []int{100})
			tr.OnStageSubmitted(100, []int{1000})
			tr.OnTaskStart(100, 9999)
			tr.OnExecutionEnd(1)
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		snap := tr.Snapshot()
		_, hasExec := snap.Executions[1]
		_, hasJob := snap.Jobs[10]
		_, hasStage := snap.Stages[100]
		_, hasTask := snap.Tasks[9999]
		_, hasDataset := snap.Datasets[1000]
		if hasExec {
			continue
		}
		// Execution gone: all descendants must be gone with it.
		if hasJob || hasStage || hasTask || hasDataset {
			t.Fatalf("torn snapshot: exec=false job=%v stage=%v task=%v dataset=%v",
				hasJob, hasStage, hasTask, hasDataset)
		}
	}
}
