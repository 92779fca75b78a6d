package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep reconciles expired sessions between Postgres and the
	// registry.
	TaskSessionSweep = "session:sweep"
	// TaskAuditRetention trims audit rows past the retention window.
	TaskAuditRetention = "audit:retention"
)

// SessionSweepPayload bounds one sweep run.
type SessionSweepPayload struct {
	BatchSize int `json:"batchSize"`
}

// NewSessionSweepTask constructs an Asynq task.
func NewSessionSweepTask(payload SessionSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, data), nil
}

// AuditRetentionPayload overrides the configured retention window when
// RetentionHours is positive.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
