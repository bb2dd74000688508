package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity is the task type for the nightly GL integrity check.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskSummaryRebuild is the task type for rebuilding one period's summaries.
	TaskSummaryRebuild = "ledger:summary_rebuild"
)

// IntegrityPayload scopes an integrity run. A zero PeriodID means all open
// periods.
type IntegrityPayload struct {
	PeriodID int64 `json:"periodId"`
}

// RebuildPayload identifies the period whose summaries should be rebuilt.
type RebuildPayload struct {
	PeriodID int64 `json:"periodId"`
}

// NewIntegrityTask constructs an Asynq task for an integrity run.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewRebuildTask constructs an Asynq task for a summary rebuild.
func NewRebuildTask(payload RebuildPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryRebuild, data), nil
}
