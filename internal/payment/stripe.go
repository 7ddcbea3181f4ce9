package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/skinet/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency string, methods []string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice(methods),
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create intent: %w", ErrGateway, err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) UpdateIntent(ctx context.Context, id string, amount int64) (*Intent, error) {
	params := &stripe.PaymentIntentParams{Amount: stripe.Int64(amount)}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("%w: update intent %s: %w", ErrGateway, id, err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return fmt.Errorf("%w: refund %s: %w", ErrGateway, intentID, err)
	}
	if refund.Status != stripe.RefundStatusSucceeded {
		return fmt.Errorf("%w: status %s", ErrRefundFailed, refund.Status)
	}
	return nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) ||
			errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) ||
			errors.Is(err, webhook.ErrTooOld) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	ev := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || event.Data.Object["object"] != "payment_intent" {
		return ev, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	ev.Intent = toIntent(&pi)
	return ev, nil
}

func (g *StripeGateway) PromotionCoupon(ctx context.Context, code string) (*domain.AppCoupon, error) {
	params := &stripe.PromotionCodeListParams{
		Code:   stripe.String(code),
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := g.api.PromotionCodes.List(params)
	for iter.Next() {
		pc := iter.PromotionCode()
		if pc.Coupon == nil {
			continue
		}
		return toCoupon(pc.Code, pc.Coupon), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: promotion code lookup: %w", ErrGateway, err)
	}
	return nil, ErrCouponNotFound
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Status:       string(pi.Status),
	}
}

// toCoupon converts processor amounts (minor units, percent as float) to domain values.
func toCoupon(promotionCode string, c *stripe.Coupon) *domain.AppCoupon {
	coupon := &domain.AppCoupon{
		Name:          c.Name,
		PromotionCode: promotionCode,
		CouponID:      c.ID,
	}
	if c.AmountOff > 0 {
		off := domain.FromMinorUnits(c.AmountOff)
		coupon.AmountOff = &off
	}
	if c.PercentOff > 0 {
		pct := decimal.NewFromFloat(c.PercentOff)
		coupon.PercentOff = &pct
	}
	return coupon
}
