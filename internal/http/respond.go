package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/skinet/internal/cart"
	"github.com/fjod/skinet/internal/catalog"
	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/orders"
	"github.com/fjod/skinet/internal/payment"
)

const maxBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ValidationResponse struct {
	Errors domain.ValidationErrors `json:"errors"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses. Processor
// failures are logged in full and answered with a generic message.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		respondJSON(w, http.StatusBadRequest, ValidationResponse{Errors: verrs})
		return
	}

	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, payment.ErrCouponNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, orders.ErrNoPaymentIntent),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrDeliveryMethodNotFound),
		errors.Is(err, payment.ErrProductNotFound),
		errors.Is(err, payment.ErrDeliveryMethodNotFound):
		status, code = http.StatusBadRequest, "invalid_cart"
	case errors.Is(err, domain.ErrPaymentNotReceived),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, payment.ErrRefundFailed):
		status, code = http.StatusBadRequest, "invalid_state"
	case errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, payment.ErrInvalidEvent):
		status, code = http.StatusBadRequest, "invalid_webhook"
	case errors.Is(err, payment.ErrGateway):
		logger.Error("payment processor failure", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusBadGateway, "payment_unavailable", "payment service unavailable")
		return
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}
