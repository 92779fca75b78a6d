package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-platform/praxis/internal/shared"
)

func newTestRegistry(t *testing.T) *RedisRegistry {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRegistry(client)
}

func register(t *testing.T, reg *RedisRegistry, id string, userID int64) {
	t.Helper()
	ok, err := reg.CheckAndReserve(context.Background(), userID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, reg.Register(context.Background(), Session{
		ID:           id,
		UserID:       userID,
		AccessToken:  "at-" + id,
		RefreshToken: "rt-" + id,
		IssuedAt:     time.Now(),
		Device:       "test-agent",
		IP:           "127.0.0.1",
		Active:       true,
	}))
}

func TestRegisterAndLiveness(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	register(t, reg, "s1", 1)

	active, err := reg.IsActive(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, active)

	owner, err := reg.Owner(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), owner)

	active, err = reg.IsActive(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, active)

	_, err = reg.Owner(ctx, "unknown")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCeilingEnforced(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := reg.CheckAndReserve(ctx, 1, 5)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := reg.CheckAndReserve(ctx, 1, 5)
	require.NoError(t, err)
	assert.False(t, ok, "sixth reservation must be rejected")

	// Other users are unaffected.
	ok, err = reg.CheckAndReserve(ctx, 2, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCeilingUnderConcurrentLogins(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	const attempts = 20
	const ceiling = 5

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := reg.CheckAndReserve(ctx, 1, ceiling)
			require.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for ok := range results {
		if ok {
			granted++
		}
	}
	assert.Equal(t, ceiling, granted, "exactly ceiling logins may succeed")
}

func TestTerminateIdempotent(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	register(t, reg, "s1", 1)

	require.NoError(t, reg.Terminate(ctx, "s1"))
	active, err := reg.IsActive(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, active)

	// Second terminate is a no-op, not an error.
	require.NoError(t, reg.Terminate(ctx, "s1"))
	require.NoError(t, reg.Terminate(ctx, "never-existed"))

	// The slot was released exactly once.
	ok, err := reg.CheckAndReserve(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTerminateFreesCeilingSlot(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	// Device A logs in with ceiling 1.
	ok, err := reg.CheckAndReserve(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, reg.Register(ctx, Session{ID: "a", UserID: 1, IssuedAt: time.Now(), Active: true}))

	// Device B is rejected.
	ok, err = reg.CheckAndReserve(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// Terminating A admits B.
	require.NoError(t, reg.Terminate(ctx, "a"))
	ok, err = reg.CheckAndReserve(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTerminateAll(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	register(t, reg, "s1", 1)
	register(t, reg, "s2", 1)
	register(t, reg, "s3", 2)

	n, err := reg.TerminateAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"s1", "s2"} {
		active, err := reg.IsActive(ctx, id)
		require.NoError(t, err)
		assert.False(t, active, id)
	}
	active, err := reg.IsActive(ctx, "s3")
	require.NoError(t, err)
	assert.True(t, active, "other users keep their sessions")

	// Repeat terminates nothing further.
	n, err = reg.TerminateAll(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListActive(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	register(t, reg, "s1", 1)
	register(t, reg, "s2", 1)
	require.NoError(t, reg.Terminate(ctx, "s1"))

	summaries, err := reg.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "s2", summaries[0].ID)
	assert.Equal(t, "test-agent", summaries[0].Device)
	assert.Equal(t, "127.0.0.1", summaries[0].IP)
}

func TestUpdateTokens(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	register(t, reg, "s1", 1)
	require.NoError(t, reg.UpdateTokens(ctx, "s1", "new-at", "new-rt"))

	err := reg.UpdateTokens(ctx, "unknown", "a", "b")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReleaseUndoesReservation(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	ok, err := reg.CheckAndReserve(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, ok)

	// Token minting failed; caller releases the slot.
	require.NoError(t, reg.Release(ctx, 1))

	ok, err = reg.CheckAndReserve(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}
