package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EXPENSE LISTING
// =============================================================================

type SortField string

const (
	SortByDate        SortField = "date"
	SortByAmount      SortField = "amount"
	SortByDescription SortField = "description"
	SortByCreatedAt   SortField = "createdAt"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ExpenseQuery filters are combined with AND. Nil/empty filters are ignored.
type ExpenseQuery struct {
	Page  int
	Limit int

	StartDate   *time.Time // date >= StartDate
	EndDate     *time.Time // date <= EndDate
	CategoryID  *CategoryID
	WalletID    *WalletID
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	Description string // case-insensitive substring

	SortBy    SortField
	SortOrder SortOrder
}

// Normalize fills defaults and rejects out-of-range values.
func (q ExpenseQuery) Normalize() (ExpenseQuery, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Page < 1 {
		return q, invalid("page", "must be at least 1")
	}
	if q.Limit < 1 || q.Limit > MaxPageLimit {
		return q, invalid("limit", "must be between 1 and %d", MaxPageLimit)
	}

	switch q.SortBy {
	case "":
		q.SortBy = SortByDate
	case SortByDate, SortByAmount, SortByDescription, SortByCreatedAt:
	default:
		return q, invalid("sortBy", "must be one of date, amount, description, createdAt")
	}
	switch SortOrder(strings.ToLower(string(q.SortOrder))) {
	case "", SortDesc:
		q.SortOrder = SortDesc
	case SortAsc:
		q.SortOrder = SortAsc
	default:
		return q, invalid("sortOrder", "must be asc or desc")
	}

	if q.MinAmount != nil && q.MinAmount.IsNegative() {
		return q, invalid("minAmount", "must be non-negative")
	}
	if q.MaxAmount != nil && q.MaxAmount.IsNegative() {
		return q, invalid("maxAmount", "must be non-negative")
	}
	// bounds are compared in minor units by SQL stores; finer precision
	// would be rounded there and compared exactly in memory
	if q.MinAmount != nil && !HasMinorPrecision(*q.MinAmount) {
		return q, invalid("minAmount", "must have at most %d decimal places", MinorUnits)
	}
	if q.MaxAmount != nil && !HasMinorPrecision(*q.MaxAmount) {
		return q, invalid("maxAmount", "must have at most %d decimal places", MinorUnits)
	}
	if q.StartDate != nil {
		d := DateOf(*q.StartDate)
		q.StartDate = &d
	}
	if q.EndDate != nil {
		d := DateOf(*q.EndDate)
		q.EndDate = &d
	}
	q.Description = strings.TrimSpace(q.Description)
	return q, nil
}

// Offset is the number of rows skipped before the current page.
func (q ExpenseQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Matches applies the query filters to e. Used by stores that scan in memory.
func (q ExpenseQuery) Matches(e Expense) bool {
	if q.StartDate != nil && e.Date.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && e.Date.After(*q.EndDate) {
		return false
	}
	if q.CategoryID != nil && e.CategoryID != *q.CategoryID {
		return false
	}
	if q.WalletID != nil && e.WalletID != *q.WalletID {
		return false
	}
	if q.MinAmount != nil && e.Amount.LessThan(*q.MinAmount) {
		return false
	}
	if q.MaxAmount != nil && e.Amount.GreaterThan(*q.MaxAmount) {
		return false
	}
	if q.Description != "" &&
		!strings.Contains(strings.ToLower(e.Description), strings.ToLower(q.Description)) {
		return false
	}
	return true
}

// Less orders a before b according to SortBy/SortOrder, with the expense id
// as tie-breaker so pages are stable.
func (q ExpenseQuery) Less(a, b Expense) bool {
	var cmp int
	switch q.SortBy {
	case SortByAmount:
		cmp = a.Amount.Cmp(b.Amount)
	case SortByDescription:
		cmp = strings.Compare(a.Description, b.Description)
	case SortByCreatedAt:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	default:
		cmp = a.Date.Compare(b.Date)
	}
	if cmp == 0 {
		cmp = strings.Compare(string(a.ID), string(b.ID))
	}
	if q.SortOrder == SortAsc {
		return cmp < 0
	}
	return cmp > 0
}

// =============================================================================
// PAGINATION
// =============================================================================

type Pagination struct {
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

func NewPagination(total, page, limit int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

type ExpensePage struct {
	Expenses   []Expense
	Pagination Pagination
}
