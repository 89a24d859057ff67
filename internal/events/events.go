// Package events defines the typed records of an execution-history event
// log. Every record carries a kind discriminator; kinds the module does not
// model decode as Custom and round-trip unchanged.
package events

import (
	"encoding/json"
	"strconv"
)

// Kind identifies an event record type on the wire.
type Kind string

const (
	KindExecutionStart        Kind = "execution_start"
	KindExecutionEnd          Kind = "execution_end"
	KindAdaptivePlanUpdate    Kind = "adaptive_plan_update"
	KindDriverAccumUpdate     Kind = "driver_accum_update"
	KindJobStart              Kind = "job_start"
	KindJobEnd                Kind = "job_end"
	KindStageSubmitted        Kind = "stage_submitted"
	KindStageCompleted        Kind = "stage_completed"
	KindTaskStart             Kind = "task_start"
	KindTaskEnd               Kind = "task_end"
	KindDatasetUnpersist      Kind = "dataset_unpersist"
	KindExecutorMetricsUpdate Kind = "executor_metrics_update"
	KindStageExecutorMetrics  Kind = "stage_executor_metrics"
)

// ExecutionIDProp is the job property that links a job to its owning SQL
// execution. Jobs without it are not SQL-related.
const ExecutionIDProp = "sql.execution.id"

// Event is one record of the execution-history log.
type Event interface {
	Kind() Kind
}

// ExecutionScoped is implemented by events that belong to exactly one SQL
// execution and carry its id directly.
type ExecutionScoped interface {
	Event
	Execution() int64
}

// ExecutionStart marks the beginning of a SQL execution.
type ExecutionStart struct {
	ExecutionID int64 `json:"execution_id"`
}

// ExecutionEnd marks the end of a SQL execution.
type ExecutionEnd struct {
	ExecutionID int64 `json:"execution_id"`
}

// AdaptivePlanUpdate reports a plan change for a running SQL execution.
type AdaptivePlanUpdate struct {
	ExecutionID int64 `json:"execution_id"`
}

// DriverAccumUpdate reports driver-side accumulator values for a SQL
// execution.
type DriverAccumUpdate struct {
	ExecutionID int64 `json:"execution_id"`
}

// JobStart marks the start of a scheduler job. Props may carry the SQL
// execution correlation and StageIDs is the job's full stage declaration,
// fixed at start.
type JobStart struct {
	JobID    int               `json:"job_id"`
	Props    map[string]string `json:"props,omitempty"`
	StageIDs []int             `json:"stage_ids"`
}

// JobEnd marks the end of a scheduler job.
type JobEnd struct {
	JobID int `json:"job_id"`
}

// StageSubmitted marks a stage entering the scheduler, with the dataset ids
// it materializes.
type StageSubmitted struct {
	StageID    int   `json:"stage_id"`
	DatasetIDs []int `json:"dataset_ids"`
}

// StageCompleted marks a stage leaving the scheduler.
type StageCompleted struct {
	StageID int `json:"stage_id"`
}

// TaskStart marks one task starting within a stage.
type TaskStart struct {
	StageID int   `json:"stage_id"`
	TaskID  int64 `json:"task_id"`
}

// TaskEnd marks one task finishing within a stage.
type TaskEnd struct {
	StageID int   `json:"stage_id"`
	TaskID  int64 `json:"task_id"`
}

// DatasetUnpersist marks a cached dataset being released.
type DatasetUnpersist struct {
	DatasetID int `json:"dataset_id"`
}

// ExecutorMetricsUpdate is a periodic executor progress report. Once logged
// it has no replay value.
type ExecutorMetricsUpdate struct {
	ExecutorID string `json:"executor_id,omitempty"`
}

// StageExecutorMetrics is a per-stage executor progress report. Once logged
// it has no replay value.
type StageExecutorMetrics struct {
	StageID int `json:"stage_id"`
}

// Custom is any event kind this module does not model. The payload is
// preserved byte for byte.
type Custom struct {
	Name    string
	Payload json.RawMessage
}

func (ExecutionStart) Kind() Kind        { return KindExecutionStart }
func (ExecutionEnd) Kind() Kind          { return KindExecutionEnd }
func (AdaptivePlanUpdate) Kind() Kind    { return KindAdaptivePlanUpdate }
func (DriverAccumUpdate) Kind() Kind     { return KindDriverAccumUpdate }
func (JobStart) Kind() Kind              { return KindJobStart }
func (JobEnd) Kind() Kind                { return KindJobEnd }
func (StageSubmitted) Kind() Kind        { return KindStageSubmitted }
func (StageCompleted) Kind() Kind        { return KindStageCompleted }
func (TaskStart) Kind() Kind             { return KindTaskStart }
func (TaskEnd) Kind() Kind               { return KindTaskEnd }
func (DatasetUnpersist) Kind() Kind      { return KindDatasetUnpersist }
func (ExecutorMetricsUpdate) Kind() Kind { return KindExecutorMetricsUpdate }
func (StageExecutorMetrics) Kind() Kind  { return KindStageExecutorMetrics }
func (c Custom) Kind() Kind              { return Kind(c.Name) }

func (e ExecutionStart) Execution() int64     { return e.ExecutionID }
func (e ExecutionEnd) Execution() int64       { return e.ExecutionID }
func (e AdaptivePlanUpdate) Execution() int64 { return e.ExecutionID }
func (e DriverAccumUpdate) Execution() int64  { return e.ExecutionID }

// ExecutionID returns the owning SQL execution id from the job's properties.
// ok is false when the property is absent or unparsable, meaning the job is
// not SQL-related.
func (e JobStart) ExecutionID() (int64, bool) {
	raw, found := e.Props[ExecutionIDProp]
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
