package liveness

// Snapshot is a point-in-time copy of the five live-entity sets. All sets
// are independent copies taken under one lock acquisition, so a snapshot is
// internally consistent and safe to read without synchronization.
type Snapshot struct {
	Executions map[int64]struct{}
	Jobs       map[int]struct{}
	Stages     map[int]struct{}
	Tasks      map[int64]struct{}
	Datasets   map[int]struct{}
}

// Snapshot copies all five live sets atomically.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Executions: t.liveExecutionsLocked(),
		Jobs:       t.liveJobsLocked(),
		Stages:     t.liveStagesLocked(),
		Tasks:      t.liveTasksLocked(),
		Datasets:   t.liveDatasetsLocked(),
	}
}

// LiveExecutions returns a copy of the live SQL execution ids.
func (t *Tracker) LiveExecutions() map[int64]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveExecutionsLocked()
}

// LiveJobs returns a copy of the live job ids.
func (t *Tracker) LiveJobs() map[int]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveJobsLocked()
}

// LiveStages returns a copy of the live stage ids.
func (t *Tracker) LiveStages() map[int]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveStagesLocked()
}

// LiveTasks returns a copy of the live task ids.
func (t *Tracker) LiveTasks() map[int64]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveTasksLocked()
}

// LiveDatasets returns a copy of the live dataset ids.
func (t *Tracker) LiveDatasets() map[int]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveDatasetsLocked()
}

func (t *Tracker) liveExecutionsLocked() map[int64]struct{} {
	out := make(map[int64]struct{}, len(t.executions))
	for id := range t.executions {
		out[id] = struct{}{}
	}
	return out
}

func (t *Tracker) liveJobsLocked() map[int]struct{} {
	out := make(map[int]struct{}, len(t.jobStages))
	for id := range t.jobStages {
		out[id] = struct{}{}
	}
	return out
}

func (t *Tracker) liveStagesLocked() map[int]struct{} {
	out := make(map[int]struct{}, len(t.interesting))
	for id := range t.interesting {
		out[id] = struct{}{}
	}
	return out
}

func (t *Tracker) liveTasksLocked() map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, tasks := range t.stageTasks {
		for id := range tasks {
			out[id] = struct{}{}
		}
	}
	return out
}

func (t *Tracker) liveDatasetsLocked() map[int]struct{} {
	out := make(map[int]struct{})
	for _, datasets := range t.stageDatasets {
		for id := range datasets {
			out[id] = struct{}{}
		}
	}
	return out
}
