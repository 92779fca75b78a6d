// Package token mints and validates the signed access/refresh token pair.
// Tokens are self-contained: validation needs no server-side state. Session
// liveness is the session registry's concern, not this package's.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/praxis-platform/praxis/internal/shared"
)

// Kind distinguishes the two token artifacts sharing a session.
type Kind string

const (
	KindAccess  Kind = "ACCESS"
	KindRefresh Kind = "REFRESH"
)

// Claims carries the identity encoded in every token.
type Claims struct {
	UserID    int64  `json:"uid"`
	SessionID string `json:"sid"`
	TokenKind Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service signs and verifies HS256 tokens.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
}

// NewService constructs a token service. A few seconds of clock skew are
// tolerated when comparing expiry against now.
func NewService(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		issuer:     "praxis",
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		leeway:     30 * time.Second,
	}
}

// AccessTTL exposes the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// Mint issues an access/refresh pair bound to the given session.
func (s *Service) Mint(username string, userID int64, sessionID string) (Pair, error) {
	now := time.Now()
	access, err := s.sign(username, userID, sessionID, KindAccess, now, now.Add(s.accessTTL))
	if err != nil {
		return Pair{}, fmt.Errorf("token: sign access: %w", err)
	}
	refresh, err := s.sign(username, userID, sessionID, KindRefresh, now, now.Add(s.refreshTTL))
	if err != nil {
		return Pair{}, fmt.Errorf("token: sign refresh: %w", err)
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

// Validate verifies signature, expiry and kind, returning the claims.
func (s *Service) Validate(tokenStr string, expected Kind) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, shared.ErrTokenExpired
		}
		return nil, shared.ErrTokenMalformed
	}
	if !parsed.Valid {
		return nil, shared.ErrTokenMalformed
	}
	if claims.TokenKind != expected {
		return nil, shared.ErrTokenKindMismatch
	}
	if claims.SessionID == "" || claims.UserID == 0 {
		return nil, shared.ErrTokenMalformed
	}
	return claims, nil
}

func (s *Service) sign(username string, userID int64, sessionID string, kind Kind, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		TokenKind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
