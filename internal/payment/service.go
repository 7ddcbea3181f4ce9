package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound        = errors.New("cart references an unknown product")
	ErrDeliveryMethodNotFound = errors.New("delivery method not found")
)

var cardOnly = []string{"card"}

// Carts is the part of the cart service pricing needs.
type Carts interface {
	GetCart(ctx context.Context, id string) (*domain.ShoppingCart, error)
	SetCart(ctx context.Context, cart *domain.ShoppingCart) (*domain.ShoppingCart, error)
}

type Service struct {
	store    *store.Store
	carts    Carts
	gateway  Gateway
	currency string
	logger   *slog.Logger
}

func NewService(s *store.Store, carts Carts, gateway Gateway, currency string, logger *slog.Logger) *Service {
	return &Service{
		store:    s,
		carts:    carts,
		gateway:  gateway,
		currency: currency,
		logger:   logger,
	}
}

// CreateOrUpdatePaymentIntent reprices the cart from the catalog and keeps
// exactly one processor intent in sync with the total. The first call creates
// the intent, later calls update its amount.
//
// If the intent call succeeds but storing the cart fails the processor keeps
// an intent the cart does not know about.
func (s *Service) CreateOrUpdatePaymentIntent(ctx context.Context, cartID string) (*domain.ShoppingCart, error) {
	cart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		var errs domain.ValidationErrors
		errs.Add("items", "required", "cart has no items")
		return nil, errs
	}

	amount, err := s.price(ctx, cart)
	if err != nil {
		return nil, err
	}

	var intent *Intent
	if cart.PaymentIntentID == "" {
		intent, err = s.gateway.CreateIntent(ctx, amount, s.currency, cardOnly)
		if err != nil {
			return nil, err
		}
		cart.PaymentIntentID = intent.ID
		cart.ClientSecret = intent.ClientSecret
		s.logger.Info("payment intent created", "cart_id", cart.ID, "intent_id", intent.ID, "amount", amount)
	} else {
		intent, err = s.gateway.UpdateIntent(ctx, cart.PaymentIntentID, amount)
		if err != nil {
			return nil, err
		}
		if intent.ClientSecret != "" {
			cart.ClientSecret = intent.ClientSecret
		}
		s.logger.Info("payment intent updated", "cart_id", cart.ID, "intent_id", intent.ID, "amount", amount)
	}

	return s.carts.SetCart(ctx, cart)
}

// price rewrites every line to the catalog price and returns the amount due
// in minor units.
func (s *Service) price(ctx context.Context, cart *domain.ShoppingCart) (int64, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()

	shipping := decimal.Zero
	if cart.DeliveryMethodID != nil {
		dm, err := store.Repo[domain.DeliveryMethod](uow).GetByID(ctx, *cart.DeliveryMethodID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: %d", ErrDeliveryMethodNotFound, *cart.DeliveryMethodID)
		}
		if err != nil {
			return 0, err
		}
		shipping = dm.Price
	}

	coupon, err := s.ResolveCoupon(ctx, cart.Coupon)
	if err != nil {
		return 0, err
	}
	cart.Coupon = coupon

	products := store.Repo[domain.Product](uow)
	for i := range cart.Items {
		item := &cart.Items[i]
		p, err := products.GetByID(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
		if err != nil {
			return 0, err
		}
		if !item.Price.Equal(p.Price) {
			s.logger.Debug("cart price corrected", "cart_id", cart.ID, "product_id", p.ID,
				"client_price", item.Price.String(), "price", p.Price.String())
			item.Price = p.Price
		}
	}

	subtotal := cart.Subtotal()
	total := subtotal.Add(shipping).Sub(cart.Coupon.Discount(subtotal))
	return domain.MinorUnits(total), nil
}

// ResolveCoupon replaces a client supplied coupon with the processor's view of
// its promotion code. A nil coupon resolves to nil; an unknown code is a
// validation error.
func (s *Service) ResolveCoupon(ctx context.Context, c *domain.AppCoupon) (*domain.AppCoupon, error) {
	if c == nil {
		return nil, nil
	}
	resolved, err := s.LookupCoupon(ctx, c.PromotionCode)
	if errors.Is(err, ErrCouponNotFound) {
		var errs domain.ValidationErrors
		errs.Add("coupon", "invalid", "promotion code is not valid")
		return nil, errs
	}
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// LookupCoupon resolves a promotion code to the coupon behind it.
func (s *Service) LookupCoupon(ctx context.Context, code string) (*domain.AppCoupon, error) {
	if code == "" {
		return nil, ErrCouponNotFound
	}
	return s.gateway.PromotionCoupon(ctx, code)
}

// Refund asks the processor to refund the whole intent.
func (s *Service) Refund(ctx context.Context, intentID string) error {
	return s.gateway.Refund(ctx, intentID)
}
