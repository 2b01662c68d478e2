// Package cart keeps in-progress carts in Redis so a customer can build an
// order across page loads before submitting it.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
)

const (
	DefaultTTL = 24 * time.Hour
	tombstone  = "__removed__"
)

type RedisCart struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCart(client *redis.Client, ttl time.Duration) *RedisCart {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCart{Client: client, TTL: ttl}
}

func (c *RedisCart) key(cartID string) string {
	return "cart:" + cartID
}

func (c *RedisCart) Add(ctx context.Context, cartID string, item models.OrderItem) ([]models.OrderItem, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	key := c.key(cartID)
	_, err = c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, data)
		p.Expire(ctx, key, c.TTL)
		return nil
	})
	if err != nil {
		return nil, apperr.Provider("redis", fmt.Errorf("add cart item: %w", err))
	}
	return c.Items(ctx, cartID)
}

func (c *RedisCart) Items(ctx context.Context, cartID string) ([]models.OrderItem, error) {
	raw, err := c.Client.LRange(ctx, c.key(cartID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Provider("redis", fmt.Errorf("read cart: %w", err))
	}
	items := make([]models.OrderItem, 0, len(raw))
	for _, r := range raw {
		if r == tombstone {
			continue
		}
		var it models.OrderItem
		if err := json.Unmarshal([]byte(r), &it); err != nil {
			return nil, fmt.Errorf("decode cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, nil
}

// Remove drops the item at index (0-based, in display order).
func (c *RedisCart) Remove(ctx context.Context, cartID string, index int) ([]models.OrderItem, error) {
	key := c.key(cartID)
	n, err := c.Client.LLen(ctx, key).Result()
	if err != nil {
		return nil, apperr.Provider("redis", fmt.Errorf("cart length: %w", err))
	}
	if index < 0 || int64(index) >= n {
		return nil, apperr.NotFound("cart item", strconv.Itoa(index))
	}
	_, err = c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LSet(ctx, key, int64(index), tombstone)
		p.LRem(ctx, key, 1, tombstone)
		p.Expire(ctx, key, c.TTL)
		return nil
	})
	if err != nil {
		return nil, apperr.Provider("redis", fmt.Errorf("remove cart item: %w", err))
	}
	return c.Items(ctx, cartID)
}

func (c *RedisCart) Clear(ctx context.Context, cartID string) error {
	if err := c.Client.Del(ctx, c.key(cartID)).Err(); err != nil {
		return apperr.Provider("redis", fmt.Errorf("clear cart: %w", err))
	}
	return nil
}
