package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/spec"
)

type ProductService interface {
	ListProducts(ctx context.Context, params queries.ProductSpecParams) (spec.Pagination[domain.Product], error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, p domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	Brands(ctx context.Context) ([]string, error)
	Types(ctx context.Context) ([]string, error)
}

type ProductHandler struct {
	products ProductService
	logger   *slog.Logger
}

func NewProductHandler(products ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := queries.ParseProductSpecParams(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	page, err := h.products.ListProducts(r.Context(), params)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.Product
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.products.CreateProduct(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/products/"+strconv.FormatInt(p.ID, 10))
	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req domain.Product
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.products.UpdateProduct(r.Context(), id, req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.products.DeleteProduct(r.Context(), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) Brands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.products.Brands(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(brands))
}

func (h *ProductHandler) Types(w http.ResponseWriter, r *http.Request) {
	types, err := h.products.Types(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(types))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
