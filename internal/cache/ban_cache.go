package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// BanCache is the shared ban list keyed by origin. The orchestration pipeline
// only writes to it; enforcement happens in transport middleware before the
// pipeline runs.
type BanCache interface {
	IsBanned(ctx context.Context, origin string) (bool, error)
	Ban(ctx context.Context, origin, reason string, ttl time.Duration) error
}

type banCache struct {
	client *redis.Client
}

func NewBanCache(client *redis.Client) BanCache {
	return &banCache{
		client: client,
	}
}

func (c *banCache) key(origin string) string {
	return "ban:" + origin
}

func (c *banCache) IsBanned(ctx context.Context, origin string) (bool, error) {
	_, err := c.client.Get(ctx, c.key(origin)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *banCache) Ban(ctx context.Context, origin, reason string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(origin), reason, ttl).Err()
}
