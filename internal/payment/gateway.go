// Package payment prices carts into processor payment intents and reconciles
// orders when the processor reports a charge.
package payment

import (
	"context"
	"errors"

	"github.com/fjod/skinet/internal/domain"
)

var (
	// ErrGateway marks failures of the external processor. Callers must not
	// leak the wrapped detail to clients.
	ErrGateway          = errors.New("payment processor error")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidEvent     = errors.New("invalid webhook event")
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrRefundFailed     = errors.New("refund was not accepted by the processor")
)

const IntentSucceeded = "succeeded"

// Intent is the processor side of one checkout. Amount is in minor units.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Status       string
}

type WebhookEvent struct {
	ID   string
	Type string
	// Intent is nil when the event does not carry a payment intent.
	Intent *Intent
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, methods []string) (*Intent, error)
	UpdateIntent(ctx context.Context, id string, amount int64) (*Intent, error)
	Refund(ctx context.Context, intentID string) error
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
	PromotionCoupon(ctx context.Context, code string) (*domain.AppCoupon, error)
}
