package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/store"
)

const NotificationOrderComplete = "OrderCompleteNotification"

// Notifier pushes a message to a connected buyer. It must not block and
// must not fail when the buyer is offline.
type Notifier interface {
	Notify(email, method string, payload any)
}

type WebhookService struct {
	store    *store.Store
	gateway  Gateway
	notifier Notifier
	logger   *slog.Logger
}

func NewWebhookService(s *store.Store, gateway Gateway, notifier Notifier, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		store:    s,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle verifies and applies one processor event. A payment for an unknown
// order is an error so the processor retries delivery. Orders that already
// left Pending are not touched again.
func (w *WebhookService) Handle(ctx context.Context, payload []byte, signature string) error {
	ev, err := w.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if ev.Intent == nil {
		return fmt.Errorf("%w: event %s of type %s", ErrInvalidEvent, ev.ID, ev.Type)
	}
	if ev.Intent.Status != IntentSucceeded {
		w.logger.Debug("ignoring payment intent event", "intent_id", ev.Intent.ID, "status", ev.Intent.Status)
		return nil
	}

	uow := w.store.NewUnitOfWork()
	defer uow.Close()
	orders := store.Repo[domain.Order](uow)

	order, err := orders.First(ctx, queries.OrderByPaymentIntent(ev.Intent.ID))
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: payment intent %s", domain.ErrOrderNotFound, ev.Intent.ID)
	}
	if err != nil {
		return err
	}

	if order.Status != domain.OrderStatusPending {
		w.logger.Info("payment already reconciled", "order_id", order.ID, "status", order.Status.String())
		return nil
	}

	if err := order.ReconcilePayment(ev.Intent.Amount); err != nil {
		return err
	}
	orders.Update(&order)
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("failed to save order %d: %w", order.ID, err)
	}

	w.logger.Info("payment reconciled", "order_id", order.ID, "status", order.Status.String(),
		"charged", ev.Intent.Amount, "total", domain.MinorUnits(order.Total()))
	w.notifier.Notify(order.BuyerEmail, NotificationOrderComplete, order.ToDTO())
	return nil
}
