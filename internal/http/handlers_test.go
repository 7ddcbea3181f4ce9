package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/skinet/internal/catalog"
	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/orders"
	"github.com/fjod/skinet/internal/payment"
	"github.com/fjod/skinet/internal/spec"
)

func TestHealth(t *testing.T) {
	h, _ := setupRouter(t)
	rec := request(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProducts_ListIsCachedAndInvalidatedByWrites(t *testing.T) {
	h, d := setupRouter(t)
	d.products.products = []domain.Product{{ID: 1, Name: "Angular Board", Price: decimal.NewFromInt(150)}}

	rec := request(t, h, http.MethodGet, "/api/products?pageSize=2&sort=priceAsc", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page spec.Pagination[domain.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 1, page.PageIndex)
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Data, 1)

	rec = request(t, h, http.MethodGet, "/api/products?sort=priceAsc&pageSize=2", "", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, d.products.calls())

	body := `{"name":"Redis Hat","description":"d","price":"20","pictureUrl":"/p.png","type":"Hats","brand":"Redis","quantityInStock":3}`
	rec = request(t, h, http.MethodPost, "/api/products", body, token(t, "admin@test.com", RoleAdmin))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/products/2", rec.Header().Get("Location"))
	assert.Empty(t, d.mr.Keys())

	rec = request(t, h, http.MethodGet, "/api/products?pageSize=2&sort=priceAsc", "", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, d.products.calls())
}

func TestProducts_Errors(t *testing.T) {
	h, d := setupRouter(t)
	d.products.err = fmt.Errorf("%w: 9", catalog.ErrProductNotFound)
	admin := token(t, "admin@test.com", RoleAdmin)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		tok    string
		want   int
	}{
		{"bad paging", http.MethodGet, "/api/products?pageIndex=x", "", "", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/products/abc", "", "", http.StatusBadRequest},
		{"missing product", http.MethodGet, "/api/products/9", "", "", http.StatusNotFound},
		{"anonymous create", http.MethodPost, "/api/products", `{}`, "", http.StatusUnauthorized},
		{"customer create", http.MethodPost, "/api/products", `{}`, token(t, "bob@test.com", ""), http.StatusForbidden},
		{"invalid product", http.MethodPost, "/api/products", `{"name":"x"}`, admin, http.StatusBadRequest},
		{"broken json", http.MethodPost, "/api/products", `{`, admin, http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/products/9", `{}`, admin, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/products/9", "", admin, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, h, tt.method, tt.target, tt.body, tt.tok)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestProducts_ValidationErrorShape(t *testing.T) {
	h, _ := setupRouter(t)
	rec := request(t, h, http.MethodPost, "/api/products", `{"name":"x","price":"0"}`, token(t, "admin@test.com", RoleAdmin))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ValidationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Errors)
	fields := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		assert.NotEmpty(t, e.Code)
		assert.NotEmpty(t, e.Description)
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "price")
}

func TestCart_EmptyFallbackAndRoundTrip(t *testing.T) {
	h, d := setupRouter(t)

	rec := request(t, h, http.MethodGet, "/api/cart?id=c1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"c1","items":[]}`, rec.Body.String())

	body := `{"id":"c1","items":[{"productId":1,"productName":"Board","price":"10.5","quantity":2,"pictureUrl":"/b.png","brand":"React","type":"Boards"}]}`
	rec = request(t, h, http.MethodPost, "/api/cart", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, d.carts.carts, "c1")

	rec = request(t, h, http.MethodGet, "/api/cart?id=c1", "", "")
	var c domain.ShoppingCart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)

	assert.Equal(t, http.StatusNoContent, request(t, h, http.MethodDelete, "/api/cart?id=c1", "", "").Code)
	assert.Equal(t, http.StatusNotFound, request(t, h, http.MethodDelete, "/api/cart?id=c1", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, request(t, h, http.MethodGet, "/api/cart", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, request(t, h, http.MethodPost, "/api/cart", `{"items":[]}`, "").Code)
}

func TestPayments_Intent(t *testing.T) {
	h, d := setupRouter(t)
	d.payments.cart = &domain.ShoppingCart{ID: "c1", PaymentIntentID: "pi_1", ClientSecret: "secret"}
	tok := token(t, "bob@test.com", "")

	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodPost, "/api/payments/c1", "", "").Code)

	rec := request(t, h, http.MethodPost, "/api/payments/c1", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var c domain.ShoppingCart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.Equal(t, "pi_1", c.PaymentIntentID)

	request(t, h, http.MethodPost, "/api/payments/c1", "", tok)
	rec = request(t, h, http.MethodPost, "/api/payments/c1", "", tok)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPayments_GatewayFailureIsGeneric(t *testing.T) {
	h, d := setupRouter(t)
	d.payments.err = fmt.Errorf("%w: card_declined: secret processor detail", payment.ErrGateway)

	rec := request(t, h, http.MethodPost, "/api/payments/c1", "", token(t, "bob@test.com", ""))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret processor detail")
}

func TestPayments_Webhook(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"handled", nil, http.StatusOK},
		{"bad signature", payment.ErrInvalidSignature, http.StatusBadRequest},
		{"not an intent", payment.ErrInvalidEvent, http.StatusBadRequest},
		{"unknown order", fmt.Errorf("intent pi_1: %w", domain.ErrOrderNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d := setupRouter(t)
			d.webhooks.err = tt.err

			req := `{"type":"payment_intent.succeeded"}`
			rec := request(t, h, http.MethodPost, "/api/payments/webhook", req, "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, req, string(d.webhooks.payload))
		})
	}
}

func TestPayments_DeliveryMethodsAndCoupons(t *testing.T) {
	h, d := setupRouter(t)

	rec := request(t, h, http.MethodGet, "/api/payments/delivery-methods", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPS1")

	amount := decimal.NewFromInt(5)
	d.payments.coupon = &domain.AppCoupon{Name: "Five off", AmountOff: &amount, PromotionCode: "FIVE"}
	rec = request(t, h, http.MethodGet, "/api/coupons/FIVE", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"promotionCode":"FIVE"`)

	d.payments.err = payment.ErrCouponNotFound
	assert.Equal(t, http.StatusNotFound, request(t, h, http.MethodGet, "/api/coupons/NOPE", "", "").Code)
}

func TestOrders(t *testing.T) {
	h, d := setupRouter(t)
	tok := token(t, "bob@test.com", "")
	d.orders.order = domain.OrderDTO{ID: 4, BuyerEmail: "bob@test.com", Status: "Pending"}

	body := `{"cartId":"c1","deliveryMethodId":1}`
	rec := request(t, h, http.MethodPost, "/api/orders", body, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "bob@test.com", d.orders.email)
	assert.Equal(t, "c1", d.orders.created.CartID)

	rec = request(t, h, http.MethodGet, "/api/orders", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = request(t, h, http.MethodGet, "/api/orders/4", "", tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/api/orders", "", "").Code)

	d.orders.err = orders.ErrNoPaymentIntent
	assert.Equal(t, http.StatusBadRequest, request(t, h, http.MethodPost, "/api/orders", body, tok).Code)
	d.orders.err = domain.ErrOrderNotFound
	assert.Equal(t, http.StatusNotFound, request(t, h, http.MethodGet, "/api/orders/5", "", tok).Code)
}

func TestAdminOrders(t *testing.T) {
	h, d := setupRouter(t)
	admin := token(t, "admin@test.com", RoleAdmin)
	d.orders.order = domain.OrderDTO{ID: 4, Status: "Refunded"}

	assert.Equal(t, http.StatusForbidden, request(t, h, http.MethodGet, "/api/admin/orders", "", token(t, "bob@test.com", "")).Code)

	rec := request(t, h, http.MethodGet, "/api/admin/orders?status=PaymentReceived&pageIndex=2", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusPaymentReceived, d.orders.params.Status)
	assert.Equal(t, 2, d.orders.params.PageIndex)

	assert.Equal(t, http.StatusBadRequest, request(t, h, http.MethodGet, "/api/admin/orders?status=Shipped", "", admin).Code)
	assert.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/api/admin/orders/4", "", admin).Code)

	rec = request(t, h, http.MethodPost, "/api/admin/orders/refund/4", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"Refunded"`)

	d.orders.err = domain.ErrPaymentNotReceived
	assert.Equal(t, http.StatusBadRequest, request(t, h, http.MethodPost, "/api/admin/orders/refund/4", "", admin).Code)
	d.orders.err = fmt.Errorf("refund re_1: %w", payment.ErrGateway)
	assert.Equal(t, http.StatusBadGateway, request(t, h, http.MethodPost, "/api/admin/orders/refund/4", "", admin).Code)
}

func TestHub_RequiresToken(t *testing.T) {
	h, d := setupRouter(t)
	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/hub/notifications", "", "").Code)

	rec := request(t, h, http.MethodGet, "/hub/notifications", "", token(t, "bob@test.com", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob@test.com", d.hub.email)
}
