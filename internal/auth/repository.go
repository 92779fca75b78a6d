package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-platform/praxis/internal/shared"
)

// Repository defines persistence operations for the auth module. Session
// rows in postgres exist for reporting; the redis registry is the source of
// truth for liveness.
type Repository interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
	CreateSessionRow(ctx context.Context, id string, userID int64, issuedAt, expiresAt time.Time, ip, device string) error
	TouchSessionRow(ctx context.Context, id string, expiresAt time.Time) error
	MarkSessionRowInactive(ctx context.Context, id string) error
	MarkUserSessionRowsInactive(ctx context.Context, userID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByLogin fetches a user by normalized username or email.
func (r *PGRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, status, created_at, updated_at
		 FROM users WHERE username = $1 OR email = $1`, login).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateSessionRow persists a new login session row.
func (r *PGRepository) CreateSessionRow(ctx context.Context, id string, userID int64, issuedAt, expiresAt time.Time, ip, device string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, issued_at, expires_at, ip, device, active)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE)`,
		id, userID, issuedAt.UTC(), expiresAt.UTC(), ip, device)
	return err
}

// TouchSessionRow extends a session row's expiry after token rotation.
func (r *PGRepository) TouchSessionRow(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE id = $1 AND active`,
		id, expiresAt.UTC())
	return err
}

// MarkSessionRowInactive records termination of one session.
func (r *PGRepository) MarkSessionRowInactive(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE id = $1`, id)
	return err
}

// MarkUserSessionRowsInactive records termination of all of a user's
// sessions.
func (r *PGRepository) MarkUserSessionRowsInactive(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE user_id = $1 AND active`, userID)
	return err
}

var _ Repository = (*PGRepository)(nil)
