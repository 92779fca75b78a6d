package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "praxis:perms:gen"

// PermissionCache memoizes effective permission sets in Redis. Keys embed a
// generation counter; bumping it on any role mutation orphans every cached
// entry at once. The TTL bounds staleness if a bump is ever lost.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPermissionCache constructs a cache with the given staleness bound.
func NewPermissionCache(client *redis.Client, ttl time.Duration) *PermissionCache {
	return &PermissionCache{client: client, ttl: ttl}
}

// Generation returns the current cache generation.
func (c *PermissionCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}

// Bump advances the generation, invalidating all cached decisions.
func (c *PermissionCache) Bump(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

// Get returns the cached permission set, or ok=false on a miss.
func (c *PermissionCache) Get(ctx context.Context, gen, userID int64) ([]string, bool) {
	data, err := c.client.Get(ctx, c.key(gen, userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

// Set stores the permission set under the current generation.
func (c *PermissionCache) Set(ctx context.Context, gen, userID int64, perms []string) {
	data, err := json.Marshal(perms)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(gen, userID), data, c.ttl).Err()
}

// InvalidateUser drops one user's entry under the current generation.
// Cheaper than a bump when only a single user's assignments changed.
func (c *PermissionCache) InvalidateUser(ctx context.Context, userID int64) error {
	gen, err := c.Generation(ctx)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, c.key(gen, userID)).Err()
}

func (c *PermissionCache) key(gen, userID int64) string {
	return fmt.Sprintf("praxis:perms:%d:user:%d", gen, userID)
}
