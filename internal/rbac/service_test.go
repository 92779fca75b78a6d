package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-platform/praxis/internal/shared"
)

type stubRepo struct {
	Repository
	users        map[int64][]string
	resolveCalls int
}

func (s *stubRepo) UserExists(ctx context.Context, userID int64) (bool, error) {
	_, ok := s.users[userID]
	return ok, nil
}

func (s *stubRepo) UserEffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	s.resolveCalls++
	return s.users[userID], nil
}

func (s *stubRepo) ReplaceRolePermissions(ctx context.Context, roleID int64, codes []string) error {
	return nil
}

func (s *stubRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	return Role{ID: id, Name: "role"}, nil
}

func newCachedService(t *testing.T, repo Repository) (*Service, *PermissionCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewPermissionCache(client, 30*time.Second)
	return NewService(repo, cache), cache
}

func TestEffectivePermissionsUnknownPrincipal(t *testing.T) {
	repo := &stubRepo{users: map[int64][]string{}}
	svc, _ := newCachedService(t, repo)

	_, err := svc.EffectivePermissions(context.Background(), 404)
	assert.ErrorIs(t, err, shared.ErrPrincipalNotFound)
}

func TestEffectivePermissionsEmptySetForRolelessUser(t *testing.T) {
	repo := &stubRepo{users: map[int64][]string{7: nil}}
	svc, _ := newCachedService(t, repo)

	perms, err := svc.EffectivePermissions(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestEffectivePermissionsCached(t *testing.T) {
	repo := &stubRepo{users: map[int64][]string{7: {shared.PermUserRead}}}
	svc, _ := newCachedService(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		perms, err := svc.EffectivePermissions(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{shared.PermUserRead}, perms)
	}
	assert.Equal(t, 1, repo.resolveCalls, "repeat resolutions served from cache")
}

func TestGenerationBumpInvalidatesCache(t *testing.T) {
	repo := &stubRepo{users: map[int64][]string{7: {shared.PermUserRead}}}
	svc, cache := newCachedService(t, repo)
	ctx := context.Background()

	_, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)

	// A role's permission set changed: next resolution must see it.
	repo.users[7] = []string{shared.PermUserRead, shared.PermRoleRead}
	require.NoError(t, cache.Bump(ctx))

	perms, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermUserRead, shared.PermRoleRead}, perms)
	assert.Equal(t, 2, repo.resolveCalls)
}

func TestAssignRoleInvalidatesUserEntry(t *testing.T) {
	repo := &stubRepo{users: map[int64][]string{7: {}}}
	svc, _ := newCachedService(t, &assignStub{stubRepo: repo})
	ctx := context.Background()

	_, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)

	repo.users[7] = []string{shared.PermAuditRead}
	require.NoError(t, svc.AssignRole(ctx, 7, 1))

	perms, err := svc.EffectivePermissions(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermAuditRead}, perms)
}

type assignStub struct {
	*stubRepo
}

func (assignStub) AssignRole(ctx context.Context, userID, roleID int64) error { return nil }

func TestSetRolePermissionsRejectsUnknownCode(t *testing.T) {
	repo := &stubRepo{users: map[int64][]string{}}
	svc, _ := newCachedService(t, repo)

	err := svc.SetRolePermissions(context.Background(), 1, []string{"nonsense:perm"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
