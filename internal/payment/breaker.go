package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/skinet/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
)

// BreakerGateway stops calling the processor after repeated failures and
// fails fast with ErrGateway until it recovers.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[any]
}

type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func NewBreakerGateway(next Gateway, cfg BreakerSettings, logger *slog.Logger) *BreakerGateway {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	return &BreakerGateway{
		next: next,
		cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "payment-gateway",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
			IsSuccessful: countsAsSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// countsAsSuccess keeps client-side rejections (declined cards, bad
// requests) and cancellations from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrRefundFailed) ||
		errors.Is(err, ErrCouponNotFound) {
		return true
	}
	var se *stripe.Error
	return errors.As(err, &se) && se.HTTPStatusCode > 0 && se.HTTPStatusCode < 500
}

func call[T any](b *BreakerGateway, fn func() (T, error)) (T, error) {
	var zero T
	v, err := b.cb.Execute(func() (any, error) {
		res, err := fn()
		return res, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (b *BreakerGateway) CreateIntent(ctx context.Context, amount int64, currency string, methods []string) (*Intent, error) {
	return call(b, func() (*Intent, error) { return b.next.CreateIntent(ctx, amount, currency, methods) })
}

func (b *BreakerGateway) UpdateIntent(ctx context.Context, id string, amount int64) (*Intent, error) {
	return call(b, func() (*Intent, error) { return b.next.UpdateIntent(ctx, id, amount) })
}

func (b *BreakerGateway) Refund(ctx context.Context, intentID string) error {
	_, err := call(b, func() (struct{}, error) { return struct{}{}, b.next.Refund(ctx, intentID) })
	return err
}

// ParseWebhook is local signature verification and bypasses the breaker.
func (b *BreakerGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return b.next.ParseWebhook(payload, signature)
}

func (b *BreakerGateway) PromotionCoupon(ctx context.Context, code string) (*domain.AppCoupon, error) {
	return call(b, func() (*domain.AppCoupon, error) { return b.next.PromotionCoupon(ctx, code) })
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}
