package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/spec"
)

type OrderService interface {
	CreateOrder(ctx context.Context, email string, req domain.CreateOrderRequest) (domain.OrderDTO, error)
	ListForUser(ctx context.Context, email string) ([]domain.OrderDTO, error)
	GetForUser(ctx context.Context, email string, id int64) (domain.OrderDTO, error)
	ListPaged(ctx context.Context, params queries.OrderSpecParams) (spec.Pagination[domain.OrderDTO], error)
	Get(ctx context.Context, id int64) (domain.OrderDTO, error)
	Refund(ctx context.Context, id int64) (domain.OrderDTO, error)
}

type OrdersHandler struct {
	orders OrderService
	logger *slog.Logger
}

func NewOrdersHandler(orders OrderService, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, logger: logger}
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFromContext(w, r)
	if !ok {
		return
	}
	var req domain.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), email, req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFromContext(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListForUser(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(orders))
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFromContext(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetForUser(r.Context(), email, id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	params, err := queries.ParseOrderSpecParams(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	page, err := h.orders.ListPaged(r.Context(), params)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Refund(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
