package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/fjod/skinet/internal/cart"
	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStore(t *testing.T) *store.Store {
	cred := &store.Credentials{Driver: store.DriverSQLite, Path: ":memory:"}
	db, err := store.Open(cred)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(cred))
	t.Cleanup(func() { db.Close() })
	return store.NewStore(db, store.DefaultRegistry())
}

func seed[T any](t *testing.T, s *store.Store, entities ...*T) {
	uow := s.NewUnitOfWork()
	defer uow.Close()
	for _, e := range entities {
		store.Repo[T](uow).Add(e)
	}
	_, err := uow.Complete(context.Background())
	require.NoError(t, err)
}

func product(name, price string) *domain.Product {
	return &domain.Product{
		Name:            name,
		Description:     name,
		Price:           decimal.RequireFromString(price),
		PictureURL:      "/images/" + name + ".png",
		Type:            "Boards",
		Brand:           "Angular",
		QuantityInStock: 100,
	}
}

type mockCarts struct {
	m     sync.RWMutex
	carts map[string]*domain.ShoppingCart
	sets  int
}

func newMockCarts(carts ...*domain.ShoppingCart) *mockCarts {
	m := &mockCarts{carts: make(map[string]*domain.ShoppingCart)}
	for _, c := range carts {
		m.carts[c.ID] = c
	}
	return m
}

func (m *mockCarts) GetCart(_ context.Context, id string) (*domain.ShoppingCart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	out := *c
	out.Items = append([]domain.CartItem(nil), c.Items...)
	return &out, nil
}

func (m *mockCarts) SetCart(_ context.Context, c *domain.ShoppingCart) (*domain.ShoppingCart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	stored := *c
	m.carts[c.ID] = &stored
	m.sets++
	return c, nil
}

func (m *mockCarts) get(id string) *domain.ShoppingCart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[id]
}

type fakeGateway struct {
	m       sync.Mutex
	created []int64
	updated map[string]int64
	refunds []string
	coupons map[string]*domain.AppCoupon
	err     error
	next    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{updated: make(map[string]int64), coupons: make(map[string]*domain.AppCoupon)}
}

func (f *fakeGateway) CreateIntent(_ context.Context, amount int64, _ string, _ []string) (*Intent, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.next++
	f.created = append(f.created, amount)
	id := fmt.Sprintf("pi_%d", f.next)
	return &Intent{ID: id, ClientSecret: id + "_secret", Amount: amount, Status: "requires_payment_method"}, nil
}

func (f *fakeGateway) UpdateIntent(_ context.Context, id string, amount int64) (*Intent, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.updated[id] = amount
	return &Intent{ID: id, Amount: amount, Status: "requires_payment_method"}, nil
}

func (f *fakeGateway) Refund(_ context.Context, intentID string) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return f.err
	}
	f.refunds = append(f.refunds, intentID)
	return nil
}

func (f *fakeGateway) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, errors.New("not supported")
}

func (f *fakeGateway) PromotionCoupon(_ context.Context, code string) (*domain.AppCoupon, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.coupons[code]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return c, nil
}

type notification struct {
	email, method string
	payload       any
}

type mockNotifier struct {
	m    sync.Mutex
	sent []notification
}

func (n *mockNotifier) Notify(email, method string, payload any) {
	n.m.Lock()
	defer n.m.Unlock()
	n.sent = append(n.sent, notification{email, method, payload})
}

func (n *mockNotifier) count() int {
	n.m.Lock()
	defer n.m.Unlock()
	return len(n.sent)
}
