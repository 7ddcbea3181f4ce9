// Package queries holds the catalog and order specifications and the request
// parameters they are built from.
package queries

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/spec"
)

const (
	SortPriceAsc  = "priceAsc"
	SortPriceDesc = "priceDesc"
)

type ProductSpecParams struct {
	spec.PagingParams
	Brands []string
	Types  []string
	Sort   string
	Search string
}

type OrderSpecParams struct {
	spec.PagingParams
	Status domain.OrderStatus
}

func ParseProductSpecParams(q url.Values) (ProductSpecParams, error) {
	var errs domain.ValidationErrors
	paging := parsePaging(q, &errs)
	return ProductSpecParams{
		PagingParams: paging,
		Brands:       splitList(q["brands"]),
		Types:        splitList(q["types"]),
		Sort:         q.Get("sort"),
		Search:       strings.ToLower(strings.TrimSpace(q.Get("search"))),
	}, errs.Err()
}

func ParseOrderSpecParams(q url.Values) (OrderSpecParams, error) {
	var errs domain.ValidationErrors
	p := OrderSpecParams{PagingParams: parsePaging(q, &errs)}
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			errs.Add("status", "invalid_status", "unknown order status "+strconv.Quote(raw))
		}
		p.Status = status
	}
	return p, errs.Err()
}

func parsePaging(q url.Values, errs *domain.ValidationErrors) spec.PagingParams {
	index := parseInt(q, "pageIndex", errs)
	size := parseInt(q, "pageSize", errs)
	return spec.NewPagingParams(index, size)
}

func parseInt(q url.Values, name string, errs *domain.ValidationErrors) int {
	raw := q.Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.Add(name, "invalid_number", name+" must be an integer")
		return 0
	}
	return n
}

// splitList flattens repeated and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
