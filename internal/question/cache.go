package question

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache keeps each tier's question pool in Redis to offload Postgres.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PoolCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(tier string) string {
	return "question:pool:" + tier
}

// Get returns the cached pool, or nil on a miss.
func (c *Cache) Get(ctx context.Context, tier string) ([]Item, error) {
	data, err := c.client.Get(ctx, c.key(tier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Cache) Set(ctx context.Context, tier string, items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(tier), data, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, tier string) error {
	return c.client.Del(ctx, c.key(tier)).Err()
}
