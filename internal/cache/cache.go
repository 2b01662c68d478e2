package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"coffeehouse/internal/estimate"
)

const DefaultEstimateTTL = 30 * time.Second

// EstimateCache holds the general wait estimate (no order position). It is
// invalidated whenever the queue or the completion history changes.
type EstimateCache interface {
	Get(ctx context.Context) (estimate.Result, bool, error)
	Set(ctx context.Context, res estimate.Result) error
	Invalidate(ctx context.Context) error
}

type RedisEstimateCache struct {
	Client *redis.Client
	TTL    time.Duration
	Key    string
}

func NewRedisEstimateCache(client *redis.Client, ttl time.Duration) *RedisEstimateCache {
	if ttl <= 0 {
		ttl = DefaultEstimateTTL
	}
	return &RedisEstimateCache{Client: client, TTL: ttl, Key: "estimate:general"}
}

func (c *RedisEstimateCache) Get(ctx context.Context) (estimate.Result, bool, error) {
	raw, err := c.Client.Get(ctx, c.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return estimate.Result{}, false, nil
	}
	if err != nil {
		return estimate.Result{}, false, fmt.Errorf("get estimate: %w", err)
	}
	var res estimate.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return estimate.Result{}, false, fmt.Errorf("decode estimate: %w", err)
	}
	return res, true, nil
}

func (c *RedisEstimateCache) Set(ctx context.Context, res estimate.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.Key, data, c.TTL).Err()
}

func (c *RedisEstimateCache) Invalidate(ctx context.Context) error {
	return c.Client.Del(ctx, c.Key).Err()
}

// MemoryEstimateCache is used when no Redis is configured.
type MemoryEstimateCache struct {
	mu      sync.RWMutex
	res     estimate.Result
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryEstimateCache(ttl time.Duration) *MemoryEstimateCache {
	if ttl <= 0 {
		ttl = DefaultEstimateTTL
	}
	return &MemoryEstimateCache{ttl: ttl, now: time.Now}
}

func (c *MemoryEstimateCache) Get(context.Context) (estimate.Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.expires.IsZero() || !c.now().Before(c.expires) {
		return estimate.Result{}, false, nil
	}
	return c.res, true, nil
}

func (c *MemoryEstimateCache) Set(_ context.Context, res estimate.Result) error {
	c.mu.Lock()
	c.res = res
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}

func (c *MemoryEstimateCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.expires = time.Time{}
	c.mu.Unlock()
	return nil
}
