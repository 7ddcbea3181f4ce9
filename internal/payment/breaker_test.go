package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type countingGateway struct {
	*fakeGateway
	calls int
}

func (c *countingGateway) CreateIntent(ctx context.Context, amount int64, currency string, methods []string) (*Intent, error) {
	c.calls++
	return c.fakeGateway.CreateIntent(ctx, amount, currency, methods)
}

func TestBreakerGateway_OpensAfterFailures(t *testing.T) {
	next := &countingGateway{fakeGateway: newFakeGateway()}
	next.err = errors.Join(ErrGateway, errors.New("503"))
	b := NewBreakerGateway(next, BreakerSettings{MaxFailures: 3, OpenTimeout: time.Minute}, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.CreateIntent(ctx, 100, "usd", cardOnly)
		require.ErrorIs(t, err, ErrGateway)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.CreateIntent(ctx, 100, "usd", cardOnly)
	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestBreakerGateway_ClientErrorsDoNotTrip(t *testing.T) {
	next := &countingGateway{fakeGateway: newFakeGateway()}
	next.err = &stripe.Error{HTTPStatusCode: 402, Code: stripe.ErrorCodeCardDeclined}
	b := NewBreakerGateway(next, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}, testLogger())

	for i := 0; i < 5; i++ {
		_, err := b.CreateIntent(context.Background(), 100, "usd", cardOnly)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, next.calls)
}

func TestBreakerGateway_PassesResults(t *testing.T) {
	next := newFakeGateway()
	b := NewBreakerGateway(next, BreakerSettings{}, testLogger())
	ctx := context.Background()

	intent, err := b.CreateIntent(ctx, 250, "usd", cardOnly)
	require.NoError(t, err)
	assert.Equal(t, int64(250), intent.Amount)

	require.NoError(t, b.Refund(ctx, intent.ID))
	assert.Equal(t, []string{intent.ID}, next.refunds)

	_, err = b.PromotionCoupon(ctx, "ONE")
	assert.ErrorIs(t, err, ErrCouponNotFound)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestToCoupon(t *testing.T) {
	amount := toCoupon("SAVE5", &stripe.Coupon{ID: "co_1", Name: "Five off", AmountOff: 500})
	require.NotNil(t, amount.AmountOff)
	assert.Equal(t, "5", amount.AmountOff.String())
	assert.Nil(t, amount.PercentOff)
	assert.Equal(t, "SAVE5", amount.PromotionCode)

	pct := toCoupon("TEN", &stripe.Coupon{ID: "co_2", PercentOff: 12.5})
	require.NotNil(t, pct.PercentOff)
	assert.Equal(t, "12.5", pct.PercentOff.String())
	assert.Nil(t, pct.AmountOff)
}
