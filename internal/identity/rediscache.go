package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
)

const roleCacheKeyPrefix = "libris:roles:"

// RedisRoleCache stores resolved role sets in Redis as JSON arrays.
type RedisRoleCache struct {
	client redis.UniversalClient
}

func NewRedisRoleCache(client redis.UniversalClient) *RedisRoleCache {
	return &RedisRoleCache{client: client}
}

func roleCacheKey(userID id.UserID) string {
	return roleCacheKeyPrefix + userID.String()
}

func (c *RedisRoleCache) Get(ctx context.Context, userID id.UserID) (id.RoleSet, error) {
	raw, err := c.client.Get(ctx, roleCacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("reading cached roles: %w", err)
	}

	var names []id.Role
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decoding cached roles: %w", err)
	}
	return id.NewRoleSet(names...), nil
}

func (c *RedisRoleCache) Set(ctx context.Context, userID id.UserID, roles id.RoleSet, ttl time.Duration) error {
	raw, err := json.Marshal(roles.Roles())
	if err != nil {
		return fmt.Errorf("encoding roles: %w", err)
	}
	if err := c.client.Set(ctx, roleCacheKey(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("caching roles: %w", err)
	}
	return nil
}

func (c *RedisRoleCache) Invalidate(ctx context.Context, userID id.UserID) error {
	if err := c.client.Del(ctx, roleCacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached roles: %w", err)
	}
	return nil
}
