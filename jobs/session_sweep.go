package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/praxis-platform/praxis/internal/jobs"
	"github.com/praxis-platform/praxis/internal/session"
)

// SessionSweepJob expires sessions whose refresh validity has lapsed.
// Postgres rows are the ledger, with expires_at extended on every rotation;
// the registry is reconciled to match.
type SessionSweepJob struct {
	Pool     *pgxpool.Pool
	Registry session.Registry
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewSessionSweepJob initialises the sweep handler.
func NewSessionSweepJob(pool *pgxpool.Pool, registry session.Registry, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionSweepJob {
	return &SessionSweepJob{
		Pool:     pool,
		Registry: registry,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep run.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil || j.Registry == nil {
		return errors.New("session sweep: handler not configured")
	}
	var payload SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 500
	}

	tracker := j.Metrics.Track(TaskSessionSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.clock()
	swept, err := j.sweep(ctx, payload.BatchSize, start)
	if err != nil {
		resultErr = err
		j.Logger.Error("session sweep failed", slog.Any("error", err))
		return resultErr
	}

	j.Metrics.AddSwept(swept)
	j.Logger.Info("session sweep completed",
		slog.Int("swept", swept),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *SessionSweepJob) sweep(ctx context.Context, batchSize int, now time.Time) (int, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT id FROM sessions WHERE active AND expires_at < $1 ORDER BY expires_at LIMIT $2`,
		now, batchSize)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var (
		mu    sync.Mutex
		swept []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := j.Registry.Terminate(gctx, id); err != nil {
				j.Logger.Warn("terminate expired session", slog.String("session_id", id), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			swept = append(swept, id)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if len(swept) == 0 {
		return 0, nil
	}

	if _, err := j.Pool.Exec(ctx, `UPDATE sessions SET active = FALSE WHERE id = ANY($1)`, swept); err != nil {
		return 0, err
	}
	return len(swept), nil
}
