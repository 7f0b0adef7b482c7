package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OriginCounterCache tracks per-origin abuse counters in fixed 24h windows.
// Keeping these in redis (not a process-local map) keeps the counts correct
// across multiple orchestrator instances.
type OriginCounterCache interface {
	IncrSessions(ctx context.Context, origin string) (int64, error)
	Sessions(ctx context.Context, origin string) (int64, error)
	IncrFlagged(ctx context.Context, origin string) (int64, error)
	Flagged(ctx context.Context, origin string) (int64, error)
}

type originCounterCache struct {
	client *redis.Client
	window time.Duration
}

func NewOriginCounterCache(client *redis.Client) OriginCounterCache {
	return &originCounterCache{
		client: client,
		window: 24 * time.Hour,
	}
}

// key buckets by window start so counters expire naturally with the window.
func (c *originCounterCache) key(kind, origin string) string {
	bucket := time.Now().UTC().Truncate(c.window).Unix()
	return fmt.Sprintf("origin:%s:%s:%d", origin, kind, bucket)
}

func (c *originCounterCache) incr(ctx context.Context, key string) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *originCounterCache) get(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *originCounterCache) IncrSessions(ctx context.Context, origin string) (int64, error) {
	return c.incr(ctx, c.key("sessions", origin))
}

func (c *originCounterCache) Sessions(ctx context.Context, origin string) (int64, error) {
	return c.get(ctx, c.key("sessions", origin))
}

func (c *originCounterCache) IncrFlagged(ctx context.Context, origin string) (int64, error) {
	return c.incr(ctx, c.key("flagged", origin))
}

func (c *originCounterCache) Flagged(ctx context.Context, origin string) (int64, error) {
	return c.get(ctx, c.key("flagged", origin))
}
