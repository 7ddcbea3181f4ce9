package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fjod/skinet/internal/cache"
	"github.com/fjod/skinet/internal/cart"
	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/spec"
)

const testSecret = "test-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisCache(client), mr
}

func token(t *testing.T, email, role string) string {
	tok, err := NewAuthenticator(testSecret).Issue(email, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func request(t *testing.T, h http.Handler, method, target, body, tok string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type mockProducts struct {
	mu       sync.Mutex
	listed   int
	products []domain.Product
	err      error
}

func (m *mockProducts) ListProducts(_ context.Context, p queries.ProductSpecParams) (spec.Pagination[domain.Product], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed++
	if m.err != nil {
		return spec.Pagination[domain.Product]{}, m.err
	}
	return spec.NewPagination(p.PageIndex, p.PageSize, len(m.products), m.products), nil
}

func (m *mockProducts) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, m.err
}

func (m *mockProducts) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	p.ID = int64(len(m.products) + 1)
	m.products = append(m.products, p)
	return p, nil
}

func (m *mockProducts) UpdateProduct(context.Context, int64, domain.Product) error { return m.err }
func (m *mockProducts) DeleteProduct(context.Context, int64) error                 { return m.err }
func (m *mockProducts) Brands(context.Context) ([]string, error)                   { return nil, m.err }
func (m *mockProducts) Types(context.Context) ([]string, error)                    { return []string{"Boards"}, m.err }

func (m *mockProducts) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listed
}

type mockDelivery struct{}

func (mockDelivery) DeliveryMethods(context.Context) ([]domain.DeliveryMethod, error) {
	return []domain.DeliveryMethod{{ID: 1, ShortName: "UPS1"}}, nil
}

type mockCarts struct {
	carts map[string]*domain.ShoppingCart
}

func (m *mockCarts) GetCart(_ context.Context, id string) (*domain.ShoppingCart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c, nil
}

func (m *mockCarts) SetCart(_ context.Context, c *domain.ShoppingCart) (*domain.ShoppingCart, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m.carts[c.ID] = c
	return c, nil
}

func (m *mockCarts) DeleteCart(_ context.Context, id string) error {
	if _, ok := m.carts[id]; !ok {
		return cart.ErrCartNotFound
	}
	delete(m.carts, id)
	return nil
}

type mockPayments struct {
	cart   *domain.ShoppingCart
	coupon *domain.AppCoupon
	err    error
}

func (m *mockPayments) CreateOrUpdatePaymentIntent(context.Context, string) (*domain.ShoppingCart, error) {
	return m.cart, m.err
}

func (m *mockPayments) LookupCoupon(context.Context, string) (*domain.AppCoupon, error) {
	return m.coupon, m.err
}

type mockWebhooks struct {
	payload   []byte
	signature string
	err       error
}

func (m *mockWebhooks) Handle(_ context.Context, payload []byte, signature string) error {
	m.payload = payload
	m.signature = signature
	return m.err
}

type mockOrders struct {
	email   string
	created domain.CreateOrderRequest
	order   domain.OrderDTO
	params  queries.OrderSpecParams
	err     error
}

func (m *mockOrders) CreateOrder(_ context.Context, email string, req domain.CreateOrderRequest) (domain.OrderDTO, error) {
	m.email, m.created = email, req
	return m.order, m.err
}

func (m *mockOrders) ListForUser(_ context.Context, email string) ([]domain.OrderDTO, error) {
	m.email = email
	return nil, m.err
}

func (m *mockOrders) GetForUser(_ context.Context, email string, _ int64) (domain.OrderDTO, error) {
	m.email = email
	return m.order, m.err
}

func (m *mockOrders) ListPaged(_ context.Context, p queries.OrderSpecParams) (spec.Pagination[domain.OrderDTO], error) {
	m.params = p
	return spec.NewPagination(p.PageIndex, p.PageSize, 1, []domain.OrderDTO{m.order}), m.err
}

func (m *mockOrders) Get(context.Context, int64) (domain.OrderDTO, error) {
	return m.order, m.err
}

func (m *mockOrders) Refund(context.Context, int64) (domain.OrderDTO, error) {
	return m.order, m.err
}

type mockHub struct {
	email string
}

func (m *mockHub) ServeWS(w http.ResponseWriter, _ *http.Request, email string) {
	m.email = email
	w.WriteHeader(http.StatusOK)
}

type testDeps struct {
	products *mockProducts
	carts    *mockCarts
	payments *mockPayments
	webhooks *mockWebhooks
	orders   *mockOrders
	hub      *mockHub
	mr       *miniredis.Miniredis
}

func setupRouter(t *testing.T) (http.Handler, *testDeps) {
	rc, mr := setupCache(t)
	d := &testDeps{
		products: &mockProducts{},
		carts:    &mockCarts{carts: map[string]*domain.ShoppingCart{}},
		payments: &mockPayments{},
		webhooks: &mockWebhooks{},
		orders:   &mockOrders{},
		hub:      &mockHub{},
		mr:       mr,
	}
	h := NewRouter(RouterConfig{
		JWTSecret:       testSecret,
		RequestTimeout:  5 * time.Second,
		ProductCacheTTL: time.Minute,
		PaymentLimiter:  NewRateLimiter(1, 2),
	}, Deps{
		Products: d.products,
		Delivery: mockDelivery{},
		Carts:    d.carts,
		Payments: d.payments,
		Webhooks: d.webhooks,
		Orders:   d.orders,
		Hub:      d.hub,
		Cache:    rc,
		Logger:   testLogger(),
	})
	return h, d
}
