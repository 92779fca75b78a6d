package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/praxis-platform/praxis/internal/audit"
	"github.com/praxis-platform/praxis/internal/observability"
	"github.com/praxis-platform/praxis/internal/session"
	"github.com/praxis-platform/praxis/internal/shared"
	"github.com/praxis-platform/praxis/internal/token"
)

// RoleSource supplies the role names shown in login responses.
type RoleSource interface {
	UserRoleNames(ctx context.Context, userID int64) ([]string, error)
}

// Service wraps authentication business rules: credential checks, session
// lifecycle and token pair issuance.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	tokens   *token.Service
	registry session.Registry
	roles    RoleSource
	audit    audit.Recorder
	ceiling  int

	// Metrics is optional. A nil value disables counting.
	Metrics *observability.Metrics
}

// NewService constructs a Service. ceiling is the maximum number of active
// sessions per user on the ceiling-enforcing login path.
func NewService(logger *slog.Logger, repo Repository, tokens *token.Service, registry session.Registry, roles RoleSource, recorder audit.Recorder, ceiling int) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		tokens:   tokens,
		registry: registry,
		roles:    roles,
		audit:    recorder,
		ceiling:  ceiling,
	}
}

// UserInfo is the user payload embedded in login responses.
type UserInfo struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// LoginResult carries the issued token pair and session identity.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	SessionID    string
	User         UserInfo
}

// RefreshResult carries a rotated token pair.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Login validates credentials and issues a session with its token pair.
// With enforceCeiling, the concurrent-session ceiling is applied and
// shared.ErrSessionLimit returned when exceeded.
func (s *Service) Login(ctx context.Context, login, password, ip, device string, enforceCeiling bool) (*LoginResult, error) {
	normalized := NormalizeLogin(login)

	user, err := s.repo.FindByLogin(ctx, normalized)
	if err != nil {
		s.auditLoginFailure(ctx, normalized, ip, "unknown user")
		return nil, shared.ErrBadCredentials
	}
	if user.Status != shared.StatusActive {
		s.auditLoginFailure(ctx, normalized, ip, "account not active")
		return nil, shared.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.auditLoginFailure(ctx, normalized, ip, "wrong password")
		return nil, shared.ErrBadCredentials
	}

	ceiling := 0
	if enforceCeiling {
		ceiling = s.ceiling
	}
	ok, err := s.registry.CheckAndReserve(ctx, user.ID, ceiling)
	if err != nil {
		return nil, fmt.Errorf("auth: reserve session: %w", err)
	}
	if !ok {
		s.Metrics.CountLogin("limited")
		s.audit.Record(ctx, audit.Event{
			ActorID:  user.ID,
			Action:   audit.ActionLoginFailed,
			Entity:   "user",
			EntityID: user.Username,
			IP:       ip,
			Meta:     map[string]any{"reason": "concurrent session limit"},
		})
		return nil, shared.ErrSessionLimit
	}

	sessionID := uuid.NewString()
	pair, err := s.tokens.Mint(user.Username, user.ID, sessionID)
	if err != nil {
		_ = s.registry.Release(ctx, user.ID)
		return nil, fmt.Errorf("auth: mint tokens: %w", err)
	}

	now := time.Now()
	sess := session.Session{
		ID:           sessionID,
		UserID:       user.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IssuedAt:     now,
		Device:       device,
		IP:           ip,
		Active:       true,
	}
	if err := s.registry.Register(ctx, sess); err != nil {
		_ = s.registry.Release(ctx, user.ID)
		return nil, fmt.Errorf("auth: register session: %w", err)
	}
	if err := s.repo.CreateSessionRow(ctx, sessionID, user.ID, now, pair.RefreshExpiresAt, ip, device); err != nil {
		s.logger.Warn("record session row", slog.Any("error", err))
	}

	s.Metrics.CountLogin("success")
	s.audit.Record(ctx, audit.Event{
		ActorID:  user.ID,
		Action:   audit.ActionLogin,
		Entity:   "session",
		EntityID: sessionID,
		IP:       ip,
		Meta:     map[string]any{"device": device},
	})

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		SessionID:    sessionID,
		User:         s.userInfo(ctx, user),
	}, nil
}

// Refresh validates a refresh token and rotates the session's token pair.
// The session keeps its identity, metadata and slot against the ceiling;
// its row expiry is pushed out to the new refresh validity.
func (s *Service) Refresh(ctx context.Context, refreshToken, ip string) (*RefreshResult, error) {
	claims, err := s.tokens.Validate(refreshToken, token.KindRefresh)
	if err != nil {
		s.audit.Record(ctx, audit.Event{
			Action:   audit.ActionTokenRejected,
			Entity:   "token",
			EntityID: audit.TokenPrefix(refreshToken),
			IP:       ip,
			Meta:     map[string]any{"reason": err.Error(), "flow": "refresh"},
		})
		return nil, err
	}
	active, err := s.registry.IsActive(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("auth: refresh liveness: %w", err)
	}
	if !active {
		s.audit.Record(ctx, audit.Event{
			ActorID:  claims.UserID,
			Action:   audit.ActionTokenRejected,
			Entity:   "session",
			EntityID: claims.SessionID,
			IP:       ip,
			Meta:     map[string]any{"reason": "session revoked", "flow": "refresh"},
		})
		return nil, shared.ErrSessionRevoked
	}

	pair, err := s.tokens.Mint(claims.Subject, claims.UserID, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("auth: rotate tokens: %w", err)
	}
	if err := s.registry.UpdateTokens(ctx, claims.SessionID, pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("auth: rotate tokens: %w", err)
	}
	if err := s.repo.TouchSessionRow(ctx, claims.SessionID, pair.RefreshExpiresAt); err != nil {
		s.logger.Warn("extend session row", slog.Any("error", err))
	}
	return &RefreshResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout terminates the session carried by the bearer token. Invalid or
// expired tokens are ignored: logout is idempotent and always safe.
func (s *Service) Logout(ctx context.Context, bearer, ip string) error {
	claims, err := s.tokens.Validate(bearer, token.KindAccess)
	if err != nil {
		return nil
	}
	return s.terminate(ctx, claims.SessionID, claims.UserID, ip, audit.ActionSessionTerminated)
}

// ListSessions enumerates a user's active sessions.
func (s *Service) ListSessions(ctx context.Context, userID int64) ([]session.Summary, error) {
	return s.registry.ListActive(ctx, userID)
}

// TerminateSession ends one of the principal's own sessions. Sessions of
// other users are reported as not found.
func (s *Service) TerminateSession(ctx context.Context, principal *shared.Principal, sessionID string) error {
	owner, err := s.registry.Owner(ctx, sessionID)
	if err != nil {
		return err
	}
	if owner != principal.UserID {
		return shared.ErrNotFound
	}
	return s.terminate(ctx, sessionID, principal.UserID, "", audit.ActionSessionTerminated)
}

// TerminateAll ends every active session of userID. forced marks an
// administrative action in the audit trail.
func (s *Service) TerminateAll(ctx context.Context, userID int64, actorID int64, ip string) (int, error) {
	n, err := s.registry.TerminateAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.repo.MarkUserSessionRowsInactive(ctx, userID); err != nil {
		s.logger.Warn("mark session rows inactive", slog.Any("error", err))
	}
	s.Metrics.CountSessionTerminated(n)
	action := audit.ActionSessionTerminated
	if actorID != userID {
		action = audit.ActionForcedLogout
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		IP:       ip,
		Meta:     map[string]any{"terminated": n},
	})
	return n, nil
}

func (s *Service) terminate(ctx context.Context, sessionID string, actorID int64, ip, action string) error {
	if err := s.registry.Terminate(ctx, sessionID); err != nil {
		return err
	}
	if err := s.repo.MarkSessionRowInactive(ctx, sessionID); err != nil {
		s.logger.Warn("mark session row inactive", slog.Any("error", err))
	}
	s.Metrics.CountSessionTerminated(1)
	s.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   action,
		Entity:   "session",
		EntityID: sessionID,
		IP:       ip,
	})
	return nil
}

func (s *Service) userInfo(ctx context.Context, user *User) UserInfo {
	info := UserInfo{ID: user.ID, Username: user.Username, Email: user.Email, Roles: []string{}}
	if s.roles != nil {
		if names, err := s.roles.UserRoleNames(ctx, user.ID); err == nil && names != nil {
			info.Roles = names
		}
	}
	return info
}

func (s *Service) auditLoginFailure(ctx context.Context, login, ip, reason string) {
	s.Metrics.CountLogin("denied")
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionLoginFailed,
		Entity:   "user",
		EntityID: login,
		IP:       ip,
		Meta:     map[string]any{"reason": reason},
	})
}
