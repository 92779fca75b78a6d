// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/praxis-platform/praxis/internal/shared"
)

// Stable machine-readable error codes surfaced to API clients.
const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeBadCredentials    = "BAD_CREDENTIALS"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeTokenMalformed    = "TOKEN_MALFORMED"
	CodeTokenKindMismatch = "TOKEN_KIND_MISMATCH"
	CodeSessionRevoked    = "SESSION_REVOKED"
	CodeInsufficientPerm  = "INSUFFICIENT_PERMISSION"
	CodePrincipalNotFound = "PRINCIPAL_NOT_FOUND"
	CodeSessionLimit      = "CONCURRENT_SESSION_LIMIT"
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicate         = "DUPLICATE"
	CodeValidation        = "VALIDATION_FAILED"
	CodeInternal          = "INTERNAL"
)

// RespondError maps domain errors to HTTP responses. Authentication-kind
// failures map to 401, authorization-kind failures to 403, and the
// session-ceiling business rule to 400. Messages never echo tokens or name
// missing permissions.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Error(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
	case errors.Is(err, shared.ErrBadCredentials):
		Error(w, http.StatusUnauthorized, CodeBadCredentials, "invalid username or password")
	case errors.Is(err, shared.ErrTokenExpired):
		Error(w, http.StatusUnauthorized, CodeTokenExpired, "token expired")
	case errors.Is(err, shared.ErrTokenMalformed):
		Error(w, http.StatusUnauthorized, CodeTokenMalformed, "token invalid")
	case errors.Is(err, shared.ErrTokenKindMismatch):
		Error(w, http.StatusUnauthorized, CodeTokenKindMismatch, "wrong token kind for this operation")
	case errors.Is(err, shared.ErrSessionRevoked):
		Error(w, http.StatusUnauthorized, CodeSessionRevoked, "session is no longer active")
	case errors.Is(err, shared.ErrInsufficientPermission):
		Error(w, http.StatusForbidden, CodeInsufficientPerm, "access denied")
	case errors.Is(err, shared.ErrPrincipalNotFound):
		Error(w, http.StatusForbidden, CodePrincipalNotFound, "access denied")
	case errors.Is(err, shared.ErrSessionLimit):
		Error(w, http.StatusBadRequest, CodeSessionLimit, "too many active sessions")
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.Is(err, shared.ErrDuplicate):
		Error(w, http.StatusConflict, CodeDuplicate, "duplicate entry")
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, CodeValidation, "request validation failed")
	default:
		Error(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
