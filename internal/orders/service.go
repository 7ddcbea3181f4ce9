// Package orders turns a paid-for cart into an order and serves order history.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/spec"
	"github.com/fjod/skinet/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrNoPaymentIntent        = errors.New("cart has no payment intent")
	ErrProductNotFound        = errors.New("cart references an unknown product")
	ErrDeliveryMethodNotFound = errors.New("delivery method not found")
)

type Carts interface {
	GetCart(ctx context.Context, id string) (*domain.ShoppingCart, error)
}

// Payments is the part of the payment service orders depend on.
type Payments interface {
	// ResolveCoupon returns the processor's terms for the coupon's code.
	ResolveCoupon(ctx context.Context, c *domain.AppCoupon) (*domain.AppCoupon, error)
	// Refund returns the money of a payment intent to the buyer.
	Refund(ctx context.Context, intentID string) error
}

type Service struct {
	store    *store.Store
	carts    Carts
	payments Payments
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(s *store.Store, carts Carts, payments Payments, logger *slog.Logger) *Service {
	return &Service{
		store:    s,
		carts:    carts,
		payments: payments,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder stores a Pending order for the cart together with its
// OrderCreated event. Repeating the call for a cart whose payment intent
// already has an order returns that order.
func (s *Service) CreateOrder(ctx context.Context, email string, req domain.CreateOrderRequest) (domain.OrderDTO, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderDTO{}, err
	}

	cart, err := s.carts.GetCart(ctx, req.CartID)
	if err != nil {
		return domain.OrderDTO{}, err
	}
	if len(cart.Items) == 0 {
		var errs domain.ValidationErrors
		errs.Add("items", "required", "cart has no items")
		return domain.OrderDTO{}, errs
	}
	if cart.PaymentIntentID == "" {
		return domain.OrderDTO{}, ErrNoPaymentIntent
	}

	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	orders := store.Repo[domain.Order](uow)

	existing, err := orders.First(ctx, queries.OrderByPaymentIntent(cart.PaymentIntentID))
	if err == nil {
		s.logger.Info("order already exists for payment intent", "order_id", existing.ID, "intent_id", cart.PaymentIntentID)
		return existing.ToDTO(), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.OrderDTO{}, err
	}

	items, err := snapshot(ctx, store.Repo[domain.Product](uow), cart.Items)
	if err != nil {
		return domain.OrderDTO{}, err
	}

	coupon, err := s.payments.ResolveCoupon(ctx, cart.Coupon)
	if err != nil {
		return domain.OrderDTO{}, err
	}

	dm, err := store.Repo[domain.DeliveryMethod](uow).GetByID(ctx, req.DeliveryMethodID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.OrderDTO{}, fmt.Errorf("%w: %d", ErrDeliveryMethodNotFound, req.DeliveryMethodID)
	}
	if err != nil {
		return domain.OrderDTO{}, err
	}

	order := &domain.Order{
		OrderDate:        s.now(),
		BuyerEmail:       email,
		ShippingAddress:  req.ShippingAddress,
		DeliveryMethodID: dm.ID,
		DeliveryMethod:   dm,
		PaymentSummary:   req.PaymentSummary,
		OrderItems:       items,
		Status:           domain.OrderStatusPending,
		PaymentIntentID:  cart.PaymentIntentID,
	}
	order.Subtotal = subtotal(items)
	order.Discount = coupon.Discount(order.Subtotal)

	payload, err := json.Marshal(domain.OrderCreatedEvent{
		CartID:          cart.ID,
		BuyerEmail:      email,
		PaymentIntentID: cart.PaymentIntentID,
		Total:           order.Total(),
	})
	if err != nil {
		return domain.OrderDTO{}, fmt.Errorf("marshal order event: %w", err)
	}

	orders.Add(order)
	store.Repo[domain.OutboxEvent](uow).Add(&domain.OutboxEvent{
		AggregateID: cart.PaymentIntentID,
		EventType:   domain.EventOrderCreated,
		Payload:     payload,
		CreatedAt:   order.OrderDate,
	})

	if _, err := uow.Complete(ctx); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// lost a race with a concurrent checkout of the same cart
			existing, ferr := orders.First(ctx, queries.OrderByPaymentIntent(cart.PaymentIntentID))
			if ferr == nil {
				return existing.ToDTO(), nil
			}
		}
		return domain.OrderDTO{}, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("order created", "order_id", order.ID, "intent_id", order.PaymentIntentID, "buyer", email)
	return order.ToDTO(), nil
}

// snapshot copies the catalog name, picture and price of every cart line.
func snapshot(ctx context.Context, products *store.Repository[domain.Product], lines []domain.CartItem) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		p, err := products.GetByID(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, line.ProductID)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			PictureURL:  p.PictureURL,
			Price:       p.Price,
			Quantity:    line.Quantity,
		})
	}
	return items, nil
}

func subtotal(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (s *Service) ListForUser(ctx context.Context, email string) ([]domain.OrderDTO, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()

	orders, err := store.Repo[domain.Order](uow).List(ctx, queries.OrdersForUser(email))
	if err != nil {
		return nil, err
	}
	return toDTOs(orders), nil
}

// GetForUser hides orders of other buyers behind ErrOrderNotFound.
func (s *Service) GetForUser(ctx context.Context, email string, id int64) (domain.OrderDTO, error) {
	return s.first(ctx, queries.OrderForUser(email, id))
}

func (s *Service) Get(ctx context.Context, id int64) (domain.OrderDTO, error) {
	return s.first(ctx, queries.OrderByID(id))
}

// ListPaged is the admin listing. Count covers every matching order.
func (s *Service) ListPaged(ctx context.Context, params queries.OrderSpecParams) (spec.Pagination[domain.OrderDTO], error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	repo := store.Repo[domain.Order](uow)

	sp := queries.Orders(params)
	orders, err := repo.List(ctx, sp)
	if err != nil {
		return spec.Pagination[domain.OrderDTO]{}, err
	}
	count, err := repo.Count(ctx, sp)
	if err != nil {
		return spec.Pagination[domain.OrderDTO]{}, err
	}
	return spec.NewPagination(params.PageIndex, params.PageSize, count, toDTOs(orders)), nil
}

// Refund returns the payment of a charged order and marks it Refunded.
// If the processor refunds but the status cannot be saved the order stays
// in its charged status and the failure is logged.
func (s *Service) Refund(ctx context.Context, id int64) (domain.OrderDTO, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	orders := store.Repo[domain.Order](uow)

	order, err := orders.First(ctx, queries.OrderByID(id))
	if errors.Is(err, store.ErrNotFound) {
		return domain.OrderDTO{}, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return domain.OrderDTO{}, err
	}

	if err := order.CanRefund(); err != nil {
		return domain.OrderDTO{}, err
	}
	if err := s.payments.Refund(ctx, order.PaymentIntentID); err != nil {
		return domain.OrderDTO{}, err
	}
	if err := order.MarkRefunded(); err != nil {
		return domain.OrderDTO{}, err
	}

	orders.Update(&order)
	if _, err := uow.Complete(ctx); err != nil {
		s.logger.Error("refund issued but order not updated", "order_id", id, "intent_id", order.PaymentIntentID, "error", err)
		return domain.OrderDTO{}, fmt.Errorf("failed to save refunded order %d: %w", id, err)
	}

	s.logger.Info("order refunded", "order_id", id, "intent_id", order.PaymentIntentID)
	return order.ToDTO(), nil
}

func (s *Service) first(ctx context.Context, sp spec.Spec[domain.Order]) (domain.OrderDTO, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()

	order, err := store.Repo[domain.Order](uow).First(ctx, sp)
	if errors.Is(err, store.ErrNotFound) {
		return domain.OrderDTO{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.OrderDTO{}, err
	}
	return order.ToDTO(), nil
}

func toDTOs(orders []domain.Order) []domain.OrderDTO {
	out := make([]domain.OrderDTO, len(orders))
	for i := range orders {
		out[i] = orders[i].ToDTO()
	}
	return out
}
