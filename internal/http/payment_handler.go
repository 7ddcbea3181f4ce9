package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/skinet/internal/domain"
)

const (
	maxWebhookSize  = 64 << 10
	signatureHeader = "Stripe-Signature"
)

type PaymentService interface {
	CreateOrUpdatePaymentIntent(ctx context.Context, cartID string) (*domain.ShoppingCart, error)
	LookupCoupon(ctx context.Context, code string) (*domain.AppCoupon, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

type DeliveryMethodLister interface {
	DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error)
}

type PaymentHandler struct {
	payments PaymentService
	webhooks WebhookHandler
	delivery DeliveryMethodLister
	logger   *slog.Logger
}

func NewPaymentHandler(payments PaymentService, webhooks WebhookHandler, delivery DeliveryMethodLister, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		webhooks: webhooks,
		delivery: delivery,
		logger:   logger,
	}
}

func (h *PaymentHandler) CreateOrUpdateIntent(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")
	c, err := h.payments.CreateOrUpdatePaymentIntent(r.Context(), cartID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *PaymentHandler) DeliveryMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.delivery.DeliveryMethods(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(methods))
}

// Webhook needs the raw body for signature verification.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookSize))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "invalid_request", "payload too large")
		return
	}
	if err := h.webhooks.Handle(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		h.logger.Warn("webhook rejected", "error", err)
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *PaymentHandler) Coupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.payments.LookupCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, coupon)
}
