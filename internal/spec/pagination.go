package spec

import "math"

const (
	DefaultPageSize = 6
	MaxPageSize     = 50
	// MaxPageIndex keeps the page offset within an int.
	MaxPageIndex = math.MaxInt/MaxPageSize + 1
)

// Pagination is the envelope returned by paged list endpoints. Count is the
// number of items matching the filter, not the length of Data.
type Pagination[T any] struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Count     int `json:"count"`
	Data      []T `json:"data"`
}

func NewPagination[T any](pageIndex, pageSize, count int, data []T) Pagination[T] {
	if data == nil {
		data = []T{}
	}
	return Pagination[T]{
		PageIndex: pageIndex,
		PageSize:  pageSize,
		Count:     count,
		Data:      data,
	}
}

// PagingParams is a 1-based page request.
type PagingParams struct {
	PageIndex int
	PageSize  int
}

func NewPagingParams(pageIndex, pageSize int) PagingParams {
	p := PagingParams{PageIndex: pageIndex, PageSize: pageSize}
	p.PageIndex = min(max(p.PageIndex, 1), MaxPageIndex)
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

func (p PagingParams) Skip() int {
	return (p.PageIndex - 1) * p.PageSize
}

func (p PagingParams) Option() Option {
	return WithPaging(p.Skip(), p.PageSize)
}
