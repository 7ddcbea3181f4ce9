package spec

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type board struct {
	ID    int64
	Name  string
	Brand string
	Price decimal.Decimal
}

func boardField(b board, field string) (any, bool) {
	switch field {
	case "id":
		return b.ID, true
	case "name":
		return b.Name, true
	case "brand":
		return b.Brand, true
	case "price":
		return b.Price, true
	}
	return nil, false
}

func boards() []board {
	var out []board
	brands := []string{"Angular", "NetCore", "React"}
	for i := 1; i <= 17; i++ {
		out = append(out, board{
			ID:    int64(i),
			Name:  fmt.Sprintf("Board %02d", i),
			Brand: brands[i%len(brands)],
			Price: decimal.NewFromInt(int64(100 - i)),
		})
	}
	return out
}

func TestApply_PagingRespectsCriteriaAndSize(t *testing.T) {
	ctx := context.Background()
	criteria := In("brand", "React", "Angular")
	src := FromSlice(boards(), boardField)

	for _, size := range []int{1, 3, 6, 50} {
		for index := 1; index <= 5; index++ {
			params := NewPagingParams(index, size)
			s := New[board](criteria, WithOrderBy("name"), params.Option())

			page, err := Apply(src, s).List(ctx)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(page), size)
			for _, b := range page {
				assert.Contains(t, []string{"React", "Angular"}, b.Brand)
			}

			count, err := ApplyCriteria(src, s).Count(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, len(page))
		}
	}
}

func TestApply_UnpagedReturnsAll(t *testing.T) {
	s := New[board](ContainsFold("name", "BOARD 1"))

	items, err := Apply(FromSlice(boards(), boardField), s).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 8) // 10..17
}

func TestApply_DescendingWinsWhenBothSet(t *testing.T) {
	s := New[board](Expr{}, WithOrderBy("price"), WithOrderByDescending("price"))

	items, err := Apply(FromSlice(boards(), boardField), s).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "99", items[0].Price.String())
	assert.Equal(t, "83", items[len(items)-1].Price.String())
}

func TestApply_UnknownFieldFails(t *testing.T) {
	s := New[board](Eq("colour", "red"))

	_, err := Apply(FromSlice(boards(), boardField), s).List(context.Background())
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestMatch_Combinators(t *testing.T) {
	b := board{ID: 4, Name: "Green Board", Brand: "React", Price: decimal.RequireFromString("12.50")}

	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{"zero matches", Expr{}, true},
		{"eq", Eq("brand", "React"), true},
		{"empty in", In[string]("brand"), false},
		{"contains ignores case", ContainsFold("name", "green"), true},
		{"decimal greater", Cmp("price", Greater, decimal.NewFromInt(12)), true},
		{"decimal vs int less", Cmp("price", Less, 12), false},
		{"and", And(Eq("brand", "React"), Eq("id", int64(5))), false},
		{"or", Or(Eq("brand", "Angular"), Eq("id", 4)), true},
		{"not", Not(Eq("brand", "React")), false},
		{"and drops zero", And(Expr{}, Eq("id", 4)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.expr, b, boardField)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListProjected_DistinctThenPaged(t *testing.T) {
	s := New[board](Expr{}, WithOrderBy("brand"), WithDistinct(), WithPaging(1, 5))
	p := Project(s, func(b board) string { return b.Brand })

	brands, err := ListProjected(context.Background(), FromSlice(boards(), boardField), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"NetCore", "React"}, brands)
}

func TestListProjected_DistinctComparesDecimalsByValue(t *testing.T) {
	type brandPrice struct {
		Brand string
		Price decimal.Decimal
	}
	items := []board{
		{ID: 1, Brand: "Angular", Price: decimal.RequireFromString("10.50")},
		{ID: 2, Brand: "Angular", Price: decimal.RequireFromString("10.5")},
		{ID: 3, Brand: "React", Price: decimal.RequireFromString("10.50")},
	}
	s := New[board](Expr{}, WithOrderBy("id"), WithDistinct())
	p := Project(s, func(b board) brandPrice { return brandPrice{b.Brand, b.Price} })

	out, err := ListProjected(context.Background(), FromSlice(items, boardField), p)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Angular", out[0].Brand)
	assert.Equal(t, "React", out[1].Brand)
}

func TestListProjected_DistinctWithUnhashableField(t *testing.T) {
	type tagged struct {
		Name string
		Tags any
	}
	s := New[board](Expr{}, WithOrderBy("id"), WithDistinct())
	p := Project(s, func(b board) tagged { return tagged{b.Brand, []string{b.Brand}} })

	var out []tagged
	require.NotPanics(t, func() {
		var err error
		out, err = ListProjected(context.Background(), FromSlice(boards(), boardField), p)
		require.NoError(t, err)
	})
	assert.Len(t, out, 3)
}

func TestApply_HugeTakeReturnsRest(t *testing.T) {
	s := New[board](Expr{}, WithOrderBy("id"), WithPaging(1, math.MaxInt))

	out, err := Apply(FromSlice(boards(), boardField), s).List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 16)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestListProjected_PassthroughWithoutSelector(t *testing.T) {
	s := New[board](Eq("id", 3))

	out, err := ListProjected(context.Background(), FromSlice(boards(), boardField), Project[board, board](s, nil))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].ID)
}

func TestListProjected_MismatchedTypeWithoutSelector(t *testing.T) {
	s := New[board](Expr{})

	_, err := ListProjected(context.Background(), FromSlice(boards(), boardField), Project[board, string](s, nil))
	assert.ErrorIs(t, err, ErrProjection)
}

func TestFirstProjected_Empty(t *testing.T) {
	s := New[board](Eq("brand", "Vue"))
	p := Project(s, func(b board) int64 { return b.ID })

	_, found, err := FirstProjected(context.Background(), FromSlice(boards(), boardField), p)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSpec_IncludesAreCopied(t *testing.T) {
	s := New[board](Expr{}, WithIncludes("OrderItems"))
	inc := s.Includes()
	inc[0] = "changed"
	assert.Equal(t, []string{"OrderItems"}, s.Includes())
}

func TestPagingParams(t *testing.T) {
	assert.Equal(t, PagingParams{PageIndex: 1, PageSize: DefaultPageSize}, NewPagingParams(0, 0))
	assert.Equal(t, MaxPageSize, NewPagingParams(2, 500).PageSize)
	assert.Equal(t, 12, NewPagingParams(3, 6).Skip())

	huge := NewPagingParams(math.MaxInt, MaxPageSize)
	assert.Equal(t, MaxPageIndex, huge.PageIndex)
	assert.Positive(t, huge.Skip())
}

func TestNewPagination_NilDataBecomesEmpty(t *testing.T) {
	p := NewPagination[board](1, 6, 0, nil)
	assert.NotNil(t, p.Data)
	assert.Empty(t, p.Data)
}
