package queries

import (
	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/spec"
)

func productCriteria(p ProductSpecParams) spec.Expr {
	var parts []spec.Expr
	if p.Search != "" {
		parts = append(parts, spec.ContainsFold("name", p.Search))
	}
	if len(p.Brands) > 0 {
		parts = append(parts, spec.In("brand", p.Brands...))
	}
	if len(p.Types) > 0 {
		parts = append(parts, spec.In("type", p.Types...))
	}
	return spec.And(parts...)
}

// Products filters by search, brands and types, sorts and pages.
func Products(p ProductSpecParams) spec.Spec[domain.Product] {
	opts := []spec.Option{p.PagingParams.Option()}
	switch p.Sort {
	case SortPriceAsc:
		opts = append(opts, spec.WithOrderBy("price"))
	case SortPriceDesc:
		opts = append(opts, spec.WithOrderByDescending("price"))
	default:
		opts = append(opts, spec.WithOrderBy("name"))
	}
	return spec.New[domain.Product](productCriteria(p), opts...)
}

func Brands() spec.Projection[domain.Product, string] {
	s := spec.New[domain.Product](spec.Expr{}, spec.WithOrderBy("brand"), spec.WithDistinct())
	return spec.Project(s, func(p domain.Product) string { return p.Brand })
}

func Types() spec.Projection[domain.Product, string] {
	s := spec.New[domain.Product](spec.Expr{}, spec.WithOrderBy("type"), spec.WithDistinct())
	return spec.Project(s, func(p domain.Product) string { return p.Type })
}

func DeliveryMethods() spec.Spec[domain.DeliveryMethod] {
	return spec.New[domain.DeliveryMethod](spec.Expr{}, spec.WithOrderByDescending("price"))
}
