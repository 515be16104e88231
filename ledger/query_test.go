package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseQuery_NormalizeDefaults(t *testing.T) {
	q, err := ExpenseQuery{}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageLimit, q.Limit)
	assert.Equal(t, SortByDate, q.SortBy)
	assert.Equal(t, SortDesc, q.SortOrder)
	assert.Equal(t, 0, q.Offset())
}

func TestExpenseQuery_NormalizeRejects(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	fine := decimal.RequireFromString("10.005")
	tests := []struct {
		name  string
		q     ExpenseQuery
		field string
	}{
		{"negative page", ExpenseQuery{Page: -1}, "page"},
		{"limit too large", ExpenseQuery{Limit: MaxPageLimit + 1}, "limit"},
		{"negative limit", ExpenseQuery{Limit: -5}, "limit"},
		{"unknown sort field", ExpenseQuery{SortBy: "wallet"}, "sortBy"},
		{"unknown sort order", ExpenseQuery{SortOrder: "sideways"}, "sortOrder"},
		{"negative min amount", ExpenseQuery{MinAmount: &neg}, "minAmount"},
		{"min amount below a cent", ExpenseQuery{MinAmount: &fine}, "minAmount"},
		{"max amount below a cent", ExpenseQuery{MaxAmount: &fine}, "maxAmount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.q.Normalize()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestExpenseQuery_EndDateIsInclusive(t *testing.T) {
	end := time.Date(2025, 8, 10, 15, 0, 0, 0, time.UTC)
	q, err := ExpenseQuery{EndDate: &end}.Normalize()
	require.NoError(t, err)

	onEnd := Expense{Date: time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)}
	after := Expense{Date: time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)}

	assert.True(t, q.Matches(onEnd))
	assert.False(t, q.Matches(after))
}

func TestExpenseQuery_LessBreaksTiesByID(t *testing.T) {
	q, err := ExpenseQuery{SortBy: SortByAmount, SortOrder: "ASC"}.Normalize()
	require.NoError(t, err)
	a := Expense{ID: "a", Amount: decimal.NewFromInt(5)}
	b := Expense{ID: "b", Amount: decimal.NewFromInt(5)}

	assert.True(t, q.Less(a, b))
	assert.False(t, q.Less(b, a))
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		total, page, limit int
		want               Pagination
	}{
		{0, 1, 20, Pagination{Total: 0, Page: 1, Limit: 20}},
		{20, 1, 20, Pagination{Total: 20, Page: 1, Limit: 20, TotalPages: 1}},
		{21, 1, 20, Pagination{Total: 21, Page: 1, Limit: 20, TotalPages: 2, HasNext: true}},
		{45, 3, 20, Pagination{Total: 45, Page: 3, Limit: 20, TotalPages: 3, HasPrev: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewPagination(tt.total, tt.page, tt.limit))
	}
}
