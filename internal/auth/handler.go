package auth

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxis-platform/praxis/internal/authz"
	"github.com/praxis-platform/praxis/internal/platform/httpx"
	"github.com/praxis-platform/praxis/internal/session"
	"github.com/praxis-platform/praxis/internal/shared"
)

// Handler exposes the authentication and session endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    *authz.Middleware
	validate *validator.Validate

	// LoginLimiter, when set, throttles the credential-accepting routes.
	LoginLimiter func(http.Handler) http.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		logger:   logger,
		service:  service,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers authentication routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.LoginLimiter != nil {
			r.Use(h.LoginLimiter)
		}
		r.Post("/login", h.login)
		r.Post("/enhanced/login", h.enhancedLogin)
	})
	r.Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Authenticate)
		r.Get("/me", h.me)
		r.Get("/enhanced/sessions", h.listSessions)
		r.Delete("/enhanced/sessions/all", h.terminateAllSessions)
		r.Delete("/enhanced/sessions/{sessionID}", h.terminateSession)

		r.Group(func(r chi.Router) {
			r.Use(h.guard.Require(authz.Any(shared.PermSystemAdmin)))
			r.Delete("/enhanced/admin/users/{userID}/sessions", h.forceLogoutUser)
		})
	})
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	SessionID    string   `json:"sessionId,omitempty"`
	User         UserInfo `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, false)
}

// enhancedLogin applies the concurrent-session ceiling and surfaces the
// session identifier to the client.
func (h *Handler) enhancedLogin(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, true)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, enforceCeiling bool) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	result, err := h.service.Login(r.Context(), req.UsernameOrEmail, req.Password, clientIP(r), r.UserAgent(), enforceCeiling)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	resp := loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		User:         result.User,
	}
	if enforceCeiling {
		resp.SessionID = result.SessionID
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken, clientIP(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"tokenType":    "Bearer",
		"expiresIn":    result.ExpiresIn,
	})
}

// logout succeeds regardless of token state so clients can always discard
// their credentials.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if bearer, ok := bearerToken(r); ok {
		if err := h.service.Logout(r.Context(), bearer, clientIP(r)); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":       principal.UserID,
		"username": principal.Username,
		"status":   principal.Status,
	})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	sessions, err := h.service.ListSessions(r.Context(), principal.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if sessions == nil {
		sessions = []session.Summary{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) terminateSession(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.service.TerminateSession(r.Context(), principal, sessionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}

func (h *Handler) terminateAllSessions(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	n, err := h.service.TerminateAll(r.Context(), principal.UserID, principal.UserID, clientIP(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"terminated": n})
}

func (h *Handler) forceLogoutUser(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	n, err := h.service.TerminateAll(r.Context(), userID, principal.UserID, clientIP(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"terminated": n})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// clientIP strips the port when one is present. RealIP may have rewritten
// RemoteAddr to a bare address, IPv6 included, so a failed split returns
// the value as is.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
