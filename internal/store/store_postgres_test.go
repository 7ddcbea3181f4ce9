package store

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/spec"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresStore(t *testing.T) *Store {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cred := &Credentials{
		Driver:   DriverPostgres,
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		DBName:   "testdb",
	}
	db, err := Open(cred)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(cred))
	t.Cleanup(func() { db.Close() })

	return NewStore(db, DefaultRegistry())
}

func TestPostgres_ProductSpecification(t *testing.T) {
	s := setupPostgresStore(t)
	seedProducts(t, s)
	ctx := context.Background()

	uow := s.NewUnitOfWork()
	defer uow.Close()
	repo := Repo[domain.Product](uow)

	params := queries.ProductSpecParams{
		PagingParams: spec.NewPagingParams(2, 4),
		Types:        []string{"Boards"},
		Sort:         queries.SortPriceAsc,
	}
	page, err := repo.List(ctx, queries.Products(params))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Product 10", page[0].Name)
	assert.Equal(t, "Product 12", page[1].Name)

	count, err := repo.Count(ctx, queries.Products(params))
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	types, err := ListProjected(ctx, repo, queries.Types())
	require.NoError(t, err)
	assert.Equal(t, []string{"Boards", "Hats"}, types)
}

func TestPostgres_OrderRoundTrip(t *testing.T) {
	s := setupPostgresStore(t)
	dm := seedDeliveryMethod(t, s, "10.99")
	ctx := context.Background()

	uow := s.NewUnitOfWork()
	defer uow.Close()
	repo := Repo[domain.Order](uow)

	order := newOrder(dm, "pi_pg")
	order.Discount = decimal.RequireFromString("2.50")
	repo.Add(order)
	_, err := uow.Complete(ctx)
	require.NoError(t, err)

	got, err := repo.First(ctx, queries.OrderByPaymentIntent("pi_pg"))
	require.NoError(t, err)
	assert.Len(t, got.OrderItems, 2)
	assert.True(t, got.Total().Equal(decimal.RequireFromString("50.49")), got.Total().String())

	repo.Add(newOrder(dm, "pi_pg"))
	_, err = uow.Complete(ctx)
	assert.ErrorIs(t, err, ErrDuplicate)
}
