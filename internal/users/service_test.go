package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/praxis-platform/praxis/internal/shared"
)

type memRepo struct {
	nextID int64
	byID   map[int64]*User
	hashes map[int64]string
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, byID: map[int64]*User{}, hashes: map[int64]string{}}
}

func (r *memRepo) ListUsers(_ context.Context, limit, offset int) ([]User, error) {
	var out []User
	for id := int64(1); id < r.nextID; id++ {
		if u, ok := r.byID[id]; ok {
			out = append(out, *u)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) CountUsers(context.Context) (int, error) { return len(r.byID), nil }

func (r *memRepo) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := r.byID[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return *u, nil
}

func (r *memRepo) CreateUser(_ context.Context, username, email, hash string) (User, error) {
	for _, u := range r.byID {
		if u.Username == username || u.Email == email {
			return User{}, shared.ErrDuplicate
		}
	}
	u := &User{ID: r.nextID, Username: username, Email: email, Status: shared.StatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.byID[u.ID] = u
	r.hashes[u.ID] = hash
	r.nextID++
	return *u, nil
}

func (r *memRepo) UpdateUser(_ context.Context, id int64, username, email string) (User, error) {
	u, ok := r.byID[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	u.Username, u.Email = username, email
	return *u, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id int64, status shared.AccountStatus) error {
	u, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Status = status
	return nil
}

func (r *memRepo) DeleteUser(_ context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

type memRoles struct {
	assignments map[int64][]int64
}

func (r *memRoles) UserRoleNames(_ context.Context, userID int64) ([]string, error) {
	names := make([]string, 0, len(r.assignments[userID]))
	for range r.assignments[userID] {
		names = append(names, "member")
	}
	return names, nil
}

func (r *memRoles) SetUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	if r.assignments == nil {
		r.assignments = map[int64][]int64{}
	}
	r.assignments[userID] = roleIDs
	return nil
}

type memTerminator struct {
	terminated []int64
}

func (t *memTerminator) TerminateAll(_ context.Context, userID int64) (int, error) {
	t.terminated = append(t.terminated, userID)
	return 1, nil
}

func newTestService() (*Service, *memRepo, *memRoles, *memTerminator) {
	repo := newMemRepo()
	roles := &memRoles{}
	sessions := &memTerminator{}
	return NewService(nil, repo, roles, sessions, nil), repo, roles, sessions
}

func TestCreateUserNormalizesAndHashes(t *testing.T) {
	svc, repo, _, _ := newTestService()

	user, err := svc.CreateUser(context.Background(), "  Alice ", "Alice@Example.COM", "password123", 0)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, shared.StatusActive, user.Status)

	hash := repo.hashes[user.ID]
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("password123")))
}

func TestCreateUserDuplicate(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice", "alice@example.com", "password123", 0)
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "ALICE", "other@example.com", "password123", 0)
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestSuspendRevokesSessions(t *testing.T) {
	svc, _, _, sessions := newTestService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "alice@example.com", "password123", 0)
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(ctx, user.ID, shared.StatusSuspended, 99))
	assert.Equal(t, []int64{user.ID}, sessions.terminated)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.StatusSuspended, got.Status)
}

func TestReactivateKeepsSessionsUntouched(t *testing.T) {
	svc, _, _, sessions := newTestService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "alice@example.com", "password123", 0)
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(ctx, user.ID, shared.StatusActive, 99))
	assert.Empty(t, sessions.terminated)
}

func TestSetStatusUnknownValue(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.SetStatus(context.Background(), 1, "BANNED", 0)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	svc, _, _, sessions := newTestService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "alice@example.com", "password123", 0)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, user.ID, 99))
	assert.Equal(t, []int64{user.ID}, sessions.terminated)

	_, err = svc.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetRolesUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.SetRoles(context.Background(), 42, []int64{1}, 0)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetRoles(t *testing.T) {
	svc, _, roles, _ := newTestService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "alice@example.com", "password123", 0)
	require.NoError(t, err)

	require.NoError(t, svc.SetRoles(ctx, user.ID, []int64{3, 5}, 99))
	assert.Equal(t, []int64{3, 5}, roles.assignments[user.ID])
}

func TestListUsersPagination(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	for _, name := range []string{"a1", "a2", "a3"} {
		_, err := svc.CreateUser(ctx, name, name+"@example.com", "password123", 0)
		require.NoError(t, err)
	}

	list, p, err := svc.ListUsers(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.TotalPages)

	list, _, err = svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
