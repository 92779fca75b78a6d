// Package audit is the append-only sink for authentication and
// authorization events. It is write-only from the platform's point of view;
// operators consume the rows with external tooling.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event actions recorded by the core.
const (
	ActionLogin             = "auth.login"
	ActionLoginFailed       = "auth.login_failed"
	ActionTokenRejected     = "auth.token_rejected"
	ActionAccessDenied      = "authz.denied"
	ActionSessionTerminated = "session.terminated"
	ActionForcedLogout      = "session.forced_logout"
)

// Event is one audit record. ActorID is zero when the actor could not be
// established (failed logins, rejected tokens).
type Event struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	IP       string
	Meta     map[string]any
	At       time.Time
}

// Recorder accepts events. Implementations must never fail the request
// path; persistence errors are logged and swallowed.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Logger writes events into the audit_logs table.
type Logger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLogger returns a pgx-backed Recorder.
func NewLogger(pool *pgxpool.Pool, logger *slog.Logger) *Logger {
	return &Logger{pool: pool, logger: logger}
}

// Record persists the event. TokenPrefix helpers elsewhere guarantee full
// tokens never reach Meta.
func (l *Logger) Record(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil {
		l.logger.Warn("audit meta marshal", slog.Any("error", err))
		metaJSON = []byte("{}")
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, ip, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ActorID, e.Action, e.Entity, e.EntityID, e.IP, metaJSON, e.At)
	if err != nil {
		l.logger.Warn("audit record", slog.String("action", e.Action), slog.Any("error", err))
	}
}

// Trim deletes events older than the retention window. Used by the
// background retention job.
func (l *Logger) Trim(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM audit_logs WHERE occurred_at < $1`,
		time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Nop discards every event. Used where auditing is not wired, never in
// production paths.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) {}

// TokenPrefix returns a loggable, non-replayable prefix of a token.
func TokenPrefix(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12]
}

var _ Recorder = (*Logger)(nil)
var _ Recorder = Nop{}
