package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/skinet/internal/cart"
	"github.com/fjod/skinet/internal/domain"
)

type CartDeleter interface {
	DeleteCart(ctx context.Context, id string) error
}

// CartCleanup ends the life of a cart once an order was placed from it.
type CartCleanup struct {
	carts  CartDeleter
	logger *slog.Logger
}

func NewCartCleanup(carts CartDeleter, logger *slog.Logger) *CartCleanup {
	return &CartCleanup{carts: carts, logger: logger}
}

func (h *CartCleanup) Handle(ctx context.Context, eventType string, payload []byte) error {
	if eventType != domain.EventOrderCreated {
		return nil
	}

	var ev domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("error parsing %s event: %w", eventType, err)
	}
	if ev.CartID == "" {
		return fmt.Errorf("%s event for intent %s has no cart id", eventType, ev.PaymentIntentID)
	}

	err := h.carts.DeleteCart(ctx, ev.CartID)
	if err != nil && !errors.Is(err, cart.ErrCartNotFound) {
		return fmt.Errorf("failed to delete cart %s: %w", ev.CartID, err)
	}
	h.logger.Info("cart removed after order", "cart_id", ev.CartID, "intent_id", ev.PaymentIntentID)
	return nil
}
