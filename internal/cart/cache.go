package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/skinet/internal/cache"
	"github.com/fjod/skinet/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	cartTTL       = 15 * time.Minute
	cartTTLSpread = 5 * time.Minute
)

type Cache interface {
	Get(ctx context.Context, id string) (*domain.ShoppingCart, error)
	Set(ctx context.Context, cart *domain.ShoppingCart) error
	Delete(ctx context.Context, id string) error
}

// entries is the subset of the shared Redis cache carts are stored through.
type entries interface {
	CacheResponse(ctx context.Context, key string, value any, ttl time.Duration) error
	GetCachedResponse(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisCache keeps carts as JSON under "cart:<id>" in the shared cache.
type RedisCache struct {
	entries entries
}

func NewRedisCache(rc *cache.RedisCache) *RedisCache {
	return &RedisCache{entries: rc}
}

func (c *RedisCache) Get(ctx context.Context, id string) (*domain.ShoppingCart, error) {
	data, ok, err := c.entries.GetCachedResponse(ctx, cacheKey(id))
	if err != nil {
		return nil, fmt.Errorf("cart cache: %w", err)
	}
	if !ok {
		return nil, ErrCacheMiss
	}

	var cart domain.ShoppingCart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (c *RedisCache) Set(ctx context.Context, cart *domain.ShoppingCart) error {
	ttl := cache.JitteredTTL(cartTTL, cartTTLSpread)
	if err := c.entries.CacheResponse(ctx, cacheKey(cart.ID), cart, ttl); err != nil {
		return fmt.Errorf("cart cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.entries.Delete(ctx, cacheKey(id))
}

func cacheKey(id string) string {
	return "cart:" + id
}
