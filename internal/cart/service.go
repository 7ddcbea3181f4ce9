package cart

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/fjod/skinet/internal/domain"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
	sfg    singleflight.Group
}

func NewService(repo Repository, cache Cache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// GetCart reads through the cache. Concurrent misses for one cart share a
// single repository read. Each caller gets its own copy.
func (s *Service) GetCart(ctx context.Context, id string) (*domain.ShoppingCart, error) {
	v, err, _ := s.sfg.Do(id, func() (any, error) {
		cart, err := s.cache.Get(ctx, id)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("cart cache get failed", "cart_id", id, "error", err)
		}

		cart, err = s.repo.GetCart(ctx, id)
		if err != nil {
			return nil, err
		}

		go func(c domain.ShoppingCart) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, &c); err != nil {
				s.logger.Warn("cart cache set failed", "cart_id", c.ID, "error", err)
			}
		}(clone(cart))

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	c := clone(v.(*domain.ShoppingCart))
	return &c, nil
}

// SetCart validates and stores the whole cart. Concurrent writers of one cart
// are last-write-wins.
func (s *Service) SetCart(ctx context.Context, cart *domain.ShoppingCart) (*domain.ShoppingCart, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}

	if err := s.repo.SetCart(ctx, cart); err != nil {
		s.logger.Error("cart upsert failed", "cart_id", cart.ID, "error", err)
		return nil, err
	}

	s.invalidateCache(cart.ID)
	return cart, nil
}

func (s *Service) DeleteCart(ctx context.Context, id string) error {
	if err := s.repo.DeleteCart(ctx, id); err != nil {
		if !errors.Is(err, ErrCartNotFound) {
			s.logger.Error("cart delete failed", "cart_id", id, "error", err)
		}
		return err
	}

	s.invalidateCache(id)
	return nil
}

func (s *Service) invalidateCache(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("cart cache invalidate failed", "cart_id", id, "error", err)
	}
}

func clone(c *domain.ShoppingCart) domain.ShoppingCart {
	out := *c
	out.Items = slices.Clone(c.Items)
	if c.DeliveryMethodID != nil {
		id := *c.DeliveryMethodID
		out.DeliveryMethodID = &id
	}
	if c.Coupon != nil {
		coupon := *c.Coupon
		out.Coupon = &coupon
	}
	return out
}
