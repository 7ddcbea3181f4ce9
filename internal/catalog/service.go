// Package catalog serves products, their brands and types, and delivery methods.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/spec"
	"github.com/fjod/skinet/internal/store"
)

var ErrProductNotFound = errors.New("product not found")

type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(s *store.Store, logger *slog.Logger) *Service {
	return &Service{store: s, logger: logger}
}

func (s *Service) ListProducts(ctx context.Context, params queries.ProductSpecParams) (spec.Pagination[domain.Product], error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	repo := store.Repo[domain.Product](uow)

	sp := queries.Products(params)
	products, err := repo.List(ctx, sp)
	if err != nil {
		return spec.Pagination[domain.Product]{}, err
	}
	count, err := repo.Count(ctx, sp)
	if err != nil {
		return spec.Pagination[domain.Product]{}, err
	}
	return spec.NewPagination(params.PageIndex, params.PageSize, count, products), nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()

	p, err := store.Repo[domain.Product](uow).GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return p, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return p, err
}

func (s *Service) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	p.ID = 0

	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	store.Repo[domain.Product](uow).Add(&p)
	if _, err := uow.Complete(ctx); err != nil {
		return domain.Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	s.logger.Info("product created", "product_id", p.ID)
	return p, nil
}

// UpdateProduct replaces the product stored under id. A body id, when set,
// has to match.
func (s *Service) UpdateProduct(ctx context.Context, id int64, p domain.Product) error {
	if p.ID != 0 && p.ID != id {
		var errs domain.ValidationErrors
		errs.Add("id", "mismatch", "product id does not match the route")
		return errs
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = id

	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	store.Repo[domain.Product](uow).Update(&p)
	_, err := uow.Complete(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	repo := store.Repo[domain.Product](uow)

	p, err := repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return err
	}
	repo.Remove(&p)
	if _, err := uow.Complete(ctx); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	s.logger.Info("product deleted", "product_id", id)
	return nil
}

func (s *Service) Brands(ctx context.Context) ([]string, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	return store.ListProjected(ctx, store.Repo[domain.Product](uow), queries.Brands())
}

func (s *Service) Types(ctx context.Context) ([]string, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	return store.ListProjected(ctx, store.Repo[domain.Product](uow), queries.Types())
}

func (s *Service) DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error) {
	uow := s.store.NewUnitOfWork()
	defer uow.Close()
	return store.Repo[domain.DeliveryMethod](uow).List(ctx, queries.DeliveryMethods())
}
