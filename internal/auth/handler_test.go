package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-platform/praxis/internal/authz"
	"github.com/praxis-platform/praxis/internal/platform/httpx"
	"github.com/praxis-platform/praxis/internal/session"
	"github.com/praxis-platform/praxis/internal/shared"
	"github.com/praxis-platform/praxis/internal/token"
	_ "github.com/praxis-platform/praxis/testing"
)

type staticResolver map[int64][]string

func (r staticResolver) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	perms, ok := r[userID]
	if !ok {
		return nil, shared.ErrPrincipalNotFound
	}
	return perms, nil
}

type authFixture struct {
	router  chi.Router
	service *Service
}

func newAuthFixture(t *testing.T, ceiling int) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry := session.NewRedisRegistry(client)
	tokens := token.NewService("0123456789abcdef0123456789abcdef", time.Hour, 24*time.Hour)

	repo := newStubRepo()
	repo.addUser(1, "alice", "alice@example.com", "s3cret", shared.StatusActive)
	repo.addUser(2, "root", "root@example.com", "toor", shared.StatusActive)

	resolver := staticResolver{
		1: {shared.PermUserRead},
		2: {shared.PermSystemAdmin},
	}
	guard := authz.NewMiddleware(nil, tokens, registry, authz.NewEvaluator(resolver), nil)

	svc := NewService(nil, repo, tokens, registry, nil, nil, ceiling)
	handler := NewHandler(nil, svc, guard)

	router := chi.NewRouter()
	router.Route("/api/auth", handler.MountRoutes)
	return &authFixture{router: router, service: svc}
}

func (f *authFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestLoginEndpoint(t *testing.T) {
	f := newAuthFixture(t, 5)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": "alice", "password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Empty(t, resp.SessionID)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	f := newAuthFixture(t, 5)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": "alice", "password": "nope",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httpx.CodeBadCredentials, errorCode(t, rec))
}

func TestLoginEndpointMissingFields(t *testing.T) {
	f := newAuthFixture(t, 5)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": "alice",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httpx.CodeValidation, errorCode(t, rec))
}

func TestEnhancedLoginReturnsSessionAndLimit(t *testing.T) {
	f := newAuthFixture(t, 1)
	creds := map[string]string{"usernameOrEmail": "alice", "password": "s3cret"}

	rec := f.do(t, http.MethodPost, "/api/auth/enhanced/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)

	rec = f.do(t, http.MethodPost, "/api/auth/enhanced/login", "", creds)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httpx.CodeSessionLimit, errorCode(t, rec))
}

func TestRefreshEndpoint(t *testing.T) {
	f := newAuthFixture(t, 0)

	login, err := f.service.Login(context.Background(), "alice", "s3cret", "", "", false)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": login.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": login.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httpx.CodeTokenKindMismatch, errorCode(t, rec))
}

func TestLogoutEndpointAlwaysSucceeds(t *testing.T) {
	f := newAuthFixture(t, 0)

	login, err := f.service.Login(context.Background(), "alice", "s3cret", "", "", false)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/auth/logout", login.AccessToken, nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/auth/logout", login.AccessToken, nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/auth/logout", "garbage", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/auth/logout", "", nil).Code)
}

func TestMeEndpoint(t *testing.T) {
	f := newAuthFixture(t, 0)

	login, err := f.service.Login(context.Background(), "alice", "s3cret", "", "", false)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])

	rec = f.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()

	first, err := f.service.Login(ctx, "alice", "s3cret", "1.1.1.1", "laptop", false)
	require.NoError(t, err)
	second, err := f.service.Login(ctx, "alice", "s3cret", "2.2.2.2", "phone", false)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/auth/enhanced/sessions", first.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Sessions []session.Summary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Sessions, 2)

	rec = f.do(t, http.MethodDelete, "/api/auth/enhanced/sessions/"+second.SessionID, first.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/auth/enhanced/sessions", first.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Sessions, 1)
}

func TestTerminateAllEndpointRevokesCaller(t *testing.T) {
	f := newAuthFixture(t, 0)

	login, err := f.service.Login(context.Background(), "alice", "s3cret", "", "", false)
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/api/auth/enhanced/sessions/all", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The token is still cryptographically valid but the session is gone.
	rec = f.do(t, http.MethodGet, "/api/auth/enhanced/sessions", login.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httpx.CodeSessionRevoked, errorCode(t, rec))
}

func TestAdminForceLogout(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()

	aliceLogin, err := f.service.Login(ctx, "alice", "s3cret", "", "", false)
	require.NoError(t, err)
	adminLogin, err := f.service.Login(ctx, "root", "toor", "", "", false)
	require.NoError(t, err)

	// A regular user may not force-logout others.
	rec := f.do(t, http.MethodDelete, "/api/auth/enhanced/admin/users/2/sessions", aliceLogin.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, httpx.CodeInsufficientPerm, errorCode(t, rec))

	rec = f.do(t, http.MethodDelete, "/api/auth/enhanced/admin/users/1/sessions", adminLogin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body["terminated"])

	rec = f.do(t, http.MethodGet, "/api/auth/enhanced/sessions", aliceLogin.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientIPPreservesIPv6(t *testing.T) {
	cases := map[string]string{
		"10.0.0.1:54321":      "10.0.0.1",
		"[2001:db8::1]:54321": "2001:db8::1",
		"2001:db8::1":         "2001:db8::1",
		"10.0.0.1":            "10.0.0.1",
	}
	for remote, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		assert.Equal(t, want, clientIP(r))
	}
}
