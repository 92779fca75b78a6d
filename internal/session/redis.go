package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxis-platform/praxis/internal/shared"
)

const keyPrefix = "praxis:"

// reserveScript counts the user's active sessions and claims a slot in one
// server-side step. A read-count-then-insert sequence from Go would race
// under concurrent logins by the same user.
var reserveScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local ceiling = tonumber(ARGV[1])
if ceiling > 0 and count >= ceiling then
	return 0
end
redis.call('INCR', KEYS[1])
return 1
`)

// terminateScript flips the active flag and releases the ceiling slot,
// atomically and idempotently.
var terminateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'active') == '1' then
	redis.call('HSET', KEYS[1], 'active', '0')
	local count = tonumber(redis.call('GET', KEYS[2]) or '0')
	if count > 0 then
		redis.call('DECR', KEYS[2])
	end
	return 1
end
return 0
`)

// releaseScript decrements the active counter without going below zero.
var releaseScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count > 0 then
	redis.call('DECR', KEYS[1])
end
return count
`)

// RedisRegistry implements Registry on a shared Redis instance.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry constructs a Registry backed by the given client.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func sessionKey(id string) string {
	return keyPrefix + "session:" + id
}

func userSessionsKey(userID int64) string {
	return fmt.Sprintf("%suser:%d:sessions", keyPrefix, userID)
}

func activeCountKey(userID int64) string {
	return fmt.Sprintf("%suser:%d:active", keyPrefix, userID)
}

// CheckAndReserve implements Registry.
func (r *RedisRegistry) CheckAndReserve(ctx context.Context, userID int64, ceiling int) (bool, error) {
	res, err := reserveScript.Run(ctx, r.client, []string{activeCountKey(userID)}, ceiling).Int()
	if err != nil {
		return false, fmt.Errorf("session: reserve: %w", err)
	}
	return res == 1, nil
}

// Release implements Registry.
func (r *RedisRegistry) Release(ctx context.Context, userID int64) error {
	if err := releaseScript.Run(ctx, r.client, []string{activeCountKey(userID)}).Err(); err != nil {
		return fmt.Errorf("session: release: %w", err)
	}
	return nil
}

// Register implements Registry.
func (r *RedisRegistry) Register(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return errors.New("session: id required")
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(sess.ID), map[string]any{
		"user_id":       sess.UserID,
		"access_token":  sess.AccessToken,
		"refresh_token": sess.RefreshToken,
		"issued_at":     sess.IssuedAt.UTC().Format(time.RFC3339Nano),
		"device":        sess.Device,
		"ip":            sess.IP,
		"active":        "1",
	})
	pipe.SAdd(ctx, userSessionsKey(sess.UserID), sess.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: register: %w", err)
	}
	return nil
}

// IsActive implements Registry.
func (r *RedisRegistry) IsActive(ctx context.Context, sessionID string) (bool, error) {
	active, err := r.client.HGet(ctx, sessionKey(sessionID), "active").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("session: liveness: %w", err)
	}
	return active == "1", nil
}

// Owner implements Registry.
func (r *RedisRegistry) Owner(ctx context.Context, sessionID string) (int64, error) {
	uid, err := r.client.HGet(ctx, sessionKey(sessionID), "user_id").Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("session: owner: %w", err)
	}
	return uid, nil
}

// Terminate implements Registry.
func (r *RedisRegistry) Terminate(ctx context.Context, sessionID string) error {
	uid, err := r.client.HGet(ctx, sessionKey(sessionID), "user_id").Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Unknown session: logout must be safe to call twice.
			return nil
		}
		return fmt.Errorf("session: terminate: %w", err)
	}
	keys := []string{sessionKey(sessionID), activeCountKey(uid)}
	if err := terminateScript.Run(ctx, r.client, keys).Err(); err != nil {
		return fmt.Errorf("session: terminate: %w", err)
	}
	return nil
}

// TerminateAll implements Registry.
func (r *RedisRegistry) TerminateAll(ctx context.Context, userID int64) (int, error) {
	ids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("session: terminate all: %w", err)
	}
	terminated := 0
	for _, id := range ids {
		keys := []string{sessionKey(id), activeCountKey(userID)}
		n, err := terminateScript.Run(ctx, r.client, keys).Int()
		if err != nil {
			return terminated, fmt.Errorf("session: terminate all: %w", err)
		}
		terminated += n
	}
	return terminated, nil
}

// ListActive implements Registry.
func (r *RedisRegistry) ListActive(ctx context.Context, userID int64) ([]Summary, error) {
	ids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("session: list: %w", err)
		}
		if fields["active"] != "1" {
			continue
		}
		issuedAt, _ := time.Parse(time.RFC3339Nano, fields["issued_at"])
		summaries = append(summaries, Summary{
			ID:       id,
			Device:   fields["device"],
			IP:       fields["ip"],
			IssuedAt: issuedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].IssuedAt.Before(summaries[j].IssuedAt)
	})
	return summaries, nil
}

// UpdateTokens implements Registry.
func (r *RedisRegistry) UpdateTokens(ctx context.Context, sessionID, accessToken, refreshToken string) error {
	exists, err := r.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("session: update tokens: %w", err)
	}
	if exists == 0 {
		return shared.ErrNotFound
	}
	err = r.client.HSet(ctx, sessionKey(sessionID), map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}).Err()
	if err != nil {
		return fmt.Errorf("session: update tokens: %w", err)
	}
	return nil
}

var _ Registry = (*RedisRegistry)(nil)
