// Package session tracks active login sessions per user and enforces the
// concurrent-session ceiling. Tokens stay cryptographically valid after
// logout; rejecting them is this registry's liveness check.
package session

import (
	"context"
	"time"
)

// Session is one login's lifetime. Records are never deleted; termination
// flips Active so the audit trail stays intact.
type Session struct {
	ID           string
	UserID       int64
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	Device       string
	IP           string
	Active       bool
}

// Summary is the read-only view returned when a user audits their sessions.
type Summary struct {
	ID       string    `json:"sessionId"`
	Device   string    `json:"device"`
	IP       string    `json:"ip"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Registry is the shared mutable state of the authentication core. Every
// mutating operation must be safe under concurrent requests for the same
// user.
type Registry interface {
	// CheckAndReserve atomically reserves a session slot for the user.
	// Returns false when the user already holds ceiling active sessions.
	// A ceiling of zero or less means unlimited. A successful reservation
	// must be followed by Register or Release.
	CheckAndReserve(ctx context.Context, userID int64, ceiling int) (bool, error)
	// Release undoes a reservation whose Register never happened.
	Release(ctx context.Context, userID int64) error
	// Register persists a new active session under a reserved slot.
	Register(ctx context.Context, sess Session) error
	// IsActive reports whether the session exists and has not been
	// terminated.
	IsActive(ctx context.Context, sessionID string) (bool, error)
	// Owner returns the user owning the session, or shared.ErrNotFound.
	Owner(ctx context.Context, sessionID string) (int64, error)
	// Terminate marks one session inactive. Unknown or already inactive
	// sessions are a no-op, never an error.
	Terminate(ctx context.Context, sessionID string) error
	// TerminateAll marks every active session of the user inactive and
	// returns how many were terminated.
	TerminateAll(ctx context.Context, userID int64) (int, error)
	// ListActive enumerates the user's active sessions, oldest first.
	ListActive(ctx context.Context, userID int64) ([]Summary, error)
	// UpdateTokens swaps the stored token pair after a refresh rotation.
	// The session keeps its identity, metadata and ceiling slot.
	UpdateTokens(ctx context.Context, sessionID, accessToken, refreshToken string) error
}
