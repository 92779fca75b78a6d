package authz

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/praxis-platform/praxis/internal/audit"
	"github.com/praxis-platform/praxis/internal/observability"
	"github.com/praxis-platform/praxis/internal/platform/httpx"
	"github.com/praxis-platform/praxis/internal/session"
	"github.com/praxis-platform/praxis/internal/shared"
	"github.com/praxis-platform/praxis/internal/token"
)

// Middleware bridges transport-level requests to the evaluator so business
// handlers never see authorization logic. By the time a handler runs,
// access is settled.
type Middleware struct {
	logger    *slog.Logger
	tokens    *token.Service
	sessions  session.Registry
	evaluator *Evaluator
	audit     audit.Recorder

	// Metrics is optional. A nil value disables counting.
	Metrics *observability.Metrics
}

// NewMiddleware constructs the interceptor.
func NewMiddleware(logger *slog.Logger, tokens *token.Service, sessions session.Registry, evaluator *Evaluator, recorder audit.Recorder) *Middleware {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Middleware{
		logger:    logger,
		tokens:    tokens,
		sessions:  sessions,
		evaluator: evaluator,
		audit:     recorder,
	}
}

// Authenticate validates the bearer credential, confirms session liveness
// and stores the principal in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}

		claims, err := m.tokens.Validate(raw, token.KindAccess)
		if err != nil {
			m.audit.Record(r.Context(), audit.Event{
				Action:   audit.ActionTokenRejected,
				Entity:   "token",
				EntityID: audit.TokenPrefix(raw),
				IP:       r.RemoteAddr,
				Meta:     map[string]any{"reason": err.Error()},
			})
			httpx.RespondError(w, err)
			return
		}

		active, err := m.sessions.IsActive(r.Context(), claims.SessionID)
		if err != nil {
			m.logger.Error("session liveness check", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, httpx.CodeInternal, "internal error")
			return
		}
		if !active {
			m.audit.Record(r.Context(), audit.Event{
				ActorID:  claims.UserID,
				Action:   audit.ActionTokenRejected,
				Entity:   "session",
				EntityID: claims.SessionID,
				IP:       r.RemoteAddr,
				Meta:     map[string]any{"reason": "session revoked"},
			})
			httpx.RespondError(w, shared.ErrSessionRevoked)
			return
		}

		principal := &shared.Principal{
			UserID:    claims.UserID,
			Username:  claims.Subject,
			SessionID: claims.SessionID,
			Status:    shared.StatusActive,
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require enforces the operation's registered Requirement. Must be mounted
// inside Authenticate.
func (m *Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}

			var ownerID *int64
			if req.Owner != nil {
				if id, ok := req.Owner(r); ok {
					ownerID = &id
				}
			}

			decision, err := m.evaluator.Evaluate(r.Context(), principal.UserID, req, ownerID)
			if err != nil {
				m.logger.Error("authorization evaluate", slog.Any("error", err))
				httpx.Error(w, http.StatusInternalServerError, httpx.CodeInternal, "internal error")
				return
			}
			if !decision.Granted {
				op := operationName(r)
				m.Metrics.CountAuthzDenial()
				m.logger.Warn("access denied",
					slog.Int64("user_id", principal.UserID),
					slog.String("operation", op),
					slog.String("reason", decision.Reason))
				m.audit.Record(r.Context(), audit.Event{
					ActorID:  principal.UserID,
					Action:   audit.ActionAccessDenied,
					Entity:   "operation",
					EntityID: op,
					IP:       r.RemoteAddr,
					Meta:     map[string]any{"reason": decision.Reason},
				})
				if decision.Reason == ReasonPrincipalNotFound {
					httpx.RespondError(w, shared.ErrPrincipalNotFound)
					return
				}
				httpx.RespondError(w, shared.ErrInsufficientPermission)
				return
			}

			m.logger.Debug("access granted",
				slog.Int64("user_id", principal.UserID),
				slog.String("operation", operationName(r)),
				slog.String("reason", decision.Reason))
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func operationName(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return r.Method + " " + pattern
		}
	}
	return r.Method + " " + r.URL.Path
}
