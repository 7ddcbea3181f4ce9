package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/skinet/internal/cart"
	"github.com/fjod/skinet/internal/domain"
)

type CartService interface {
	GetCart(ctx context.Context, id string) (*domain.ShoppingCart, error)
	SetCart(ctx context.Context, c *domain.ShoppingCart) (*domain.ShoppingCart, error)
	DeleteCart(ctx context.Context, id string) error
}

type CartHandler struct {
	carts  CartService
	logger *slog.Logger
}

func NewCartHandler(carts CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// GetCart answers an unknown id with an empty cart under that id, so a
// client can start filling a cart it generated the id for.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_cart_id", "id is required")
		return
	}

	c, err := h.carts.GetCart(r.Context(), id)
	if errors.Is(err, cart.ErrCartNotFound) {
		respondJSON(w, http.StatusOK, domain.ShoppingCart{ID: id, Items: []domain.CartItem{}})
		return
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) SetCart(w http.ResponseWriter, r *http.Request) {
	var req domain.ShoppingCart
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.carts.SetCart(r.Context(), &req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_cart_id", "id is required")
		return
	}
	if err := h.carts.DeleteCart(r.Context(), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
