package roles

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PermissionCache memoises resolver answers in Redis for a short TTL.
// Invalidation bumps a per-employee version number instead of scanning for
// keys; stale entries fall out via TTL.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPermissionCache instantiates the cache helper.
func NewPermissionCache(client *redis.Client, ttl time.Duration) *PermissionCache {
	return &PermissionCache{client: client, ttl: ttl}
}

// Get returns (hit, value, error) for a cached predicate answer.
func (c *PermissionCache) Get(ctx context.Context, employeeID int64, predicate string) (bool, bool, error) {
	if c == nil || c.client == nil {
		return false, false, nil
	}
	key, err := c.buildKey(ctx, employeeID, predicate)
	if err != nil {
		return false, false, err
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, raw == "1", nil
}

// Set stores a predicate answer.
func (c *PermissionCache) Set(ctx context.Context, employeeID int64, predicate string, value bool) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.buildKey(ctx, employeeID, predicate)
	if err != nil {
		return err
	}
	raw := "0"
	if value {
		raw = "1"
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the employee's cache version so every memoised answer for
// them misses from now on.
func (c *PermissionCache) Invalidate(ctx context.Context, employeeID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(employeeID)).Err()
}

func (c *PermissionCache) buildKey(ctx context.Context, employeeID int64, predicate string) (string, error) {
	ver, err := c.client.Get(ctx, c.versionKey(employeeID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("perm:%d:%d:%s", employeeID, ver, predicate), nil
}

func (c *PermissionCache) versionKey(employeeID int64) string {
	return fmt.Sprintf("perm:%d:version", employeeID)
}
