package models

import "time"

type ExecutionStatus string

const (
	ExecutionStatusInProgress ExecutionStatus = "IN_PROGRESS"
	ExecutionStatusDone       ExecutionStatus = "DONE"
	ExecutionStatusFailed     ExecutionStatus = "FAILED"
)

type StepExecutionStatus string

const (
	StepExecutionStatusSuccess StepExecutionStatus = "SUCCESS"
	StepExecutionStatusFailure StepExecutionStatus = "FAILURE"
)

// Execution is the append-only audit record of one Zap run. Created at run
// start, finalized at run end, immutable afterwards.
type Execution struct {
	ID         string           `json:"id"`
	ZapID      string           `json:"zap_id"`
	Status     ExecutionStatus  `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Steps      []*StepExecution `json:"steps"`
}

// StepExecution records one attempted step within an execution.
type StepExecution struct {
	ID          string              `json:"id"`
	ExecutionID string              `json:"execution_id"`
	StepID      string              `json:"step_id"`
	Ordinal     int                 `json:"ordinal"`
	Status      StepExecutionStatus `json:"status"`
	Output      Variables           `json:"output,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	DurationMs  int64               `json:"duration_ms"`
}

// Finalize stamps the end of the run.
func (e *Execution) Finalize(status ExecutionStatus, finishedAt time.Time) {
	e.Status = status
	e.FinishedAt = &finishedAt
	e.DurationMs = finishedAt.Sub(e.StartedAt).Milliseconds()
}
