package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing or malformed credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrBadCredentials indicates a failed username/password login.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrTokenExpired indicates the token's validity window has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed indicates the token could not be parsed or verified.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenKindMismatch indicates a refresh token used where an access
	// token was expected, or vice versa.
	ErrTokenKindMismatch = errors.New("token kind mismatch")
	// ErrSessionRevoked indicates a cryptographically valid token whose
	// session has been terminated.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrInsufficientPermission indicates a denied authorization decision.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrPrincipalNotFound indicates the acting user does not exist.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrSessionLimit indicates the concurrent-session ceiling was reached.
	ErrSessionLimit = errors.New("concurrent session limit reached")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")
)
