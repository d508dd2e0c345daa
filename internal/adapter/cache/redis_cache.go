package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

// RedisCache serves slightly-stale depth snapshots so read traffic never
// blocks matching.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ port.DepthCache = (*RedisCache)(nil)

func NewRedisCache(addr string, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

func key(symbol string) string { return "depth:" + symbol }

func (c *RedisCache) SetDepth(ctx context.Context, symbol string, d *domain.MarketDepth) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(symbol), b, c.ttl).Err()
}

func (c *RedisCache) GetDepth(ctx context.Context, symbol string) (*domain.MarketDepth, error) {
	b, err := c.client.Get(ctx, key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d domain.MarketDepth
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, symbol string) error {
	return c.client.Del(ctx, key(symbol)).Err()
}
