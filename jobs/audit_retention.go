package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/praxis-platform/praxis/internal/audit"
	jobmetrics "github.com/praxis-platform/praxis/internal/jobs"
)

// AuditRetentionJob deletes audit rows past the retention window.
type AuditRetentionJob struct {
	Audit     *audit.Logger
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Retention time.Duration
}

// NewAuditRetentionJob initialises the retention handler.
func NewAuditRetentionJob(auditLogger *audit.Logger, logger *slog.Logger, metrics *jobmetrics.Metrics, retention time.Duration) *AuditRetentionJob {
	return &AuditRetentionJob{
		Audit:     auditLogger,
		Logger:    logger,
		Metrics:   metrics,
		Retention: retention,
	}
}

// Handle executes one retention pass.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskAuditRetention)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	deleted, err := j.Audit.Trim(ctx, retention)
	if err != nil {
		resultErr = err
		j.Logger.Error("audit retention failed", slog.Any("error", err))
		return resultErr
	}
	j.Logger.Info("audit retention completed",
		slog.Int64("deleted", deleted),
		slog.Duration("retention", retention),
	)
	return resultErr
}
