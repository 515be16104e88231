/*
aggregate.go - Aggregation Engine (read-only summary statistics)

PURPOSE:
  Computes totals, "this month" / "this week" totals and per-category /
  per-wallet breakdowns for one user. Never writes.

WINDOWS:
  Both windows are [start, now] on the expense's calendar date, not its
  creation time:
    this month: date >= first day of the current month
    this week:  date >= most recent weekStart day (inclusive)

CONSISTENCY:
  The several reads are independent; a concurrent post may be reflected in
  one figure and not another. Summary figures are informational only.

UNRESOLVED GROUPS:
  A breakdown row whose wallet/category cannot be found is rendered as
  "Unknown" rather than failing the whole summary.
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const UnknownName = "Unknown"

// UnknownWalletType is the Attr of an unresolved wallet group.
const UnknownWalletType = "UNKNOWN"

type WindowTotals struct {
	Count int
	Total decimal.Decimal
}

// Breakdown is one group of a per-category or per-wallet breakdown.
type Breakdown struct {
	ID         string
	Name       string
	Attr       string // category color or wallet type
	Count      int
	Total      decimal.Decimal
	Percentage float64
}

type Summary struct {
	TotalExpenses  int
	TotalAmount    decimal.Decimal
	AverageExpense decimal.Decimal
	ThisMonth      WindowTotals
	ThisWeek       WindowTotals
	ByCategory     []Breakdown
	ByWallet       []Breakdown
}

// Aggregator is the Aggregation Engine.
type Aggregator struct {
	options
	store Reader
}

func NewAggregator(store Reader, opts ...Option) *Aggregator {
	return &Aggregator{options: buildOptions(opts), store: store}
}

// Summarize computes the expense summary for userID as of now.
func (a *Aggregator) Summarize(ctx context.Context, userID UserID) (*Summary, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	now := a.now().In(a.location)

	all, err := a.store.ExpenseTotals(ctx, userID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("total expenses: %w", err)
	}
	month, err := a.store.ExpenseTotals(ctx, userID, StartOfMonth(now))
	if err != nil {
		return nil, fmt.Errorf("month expenses: %w", err)
	}
	week, err := a.store.ExpenseTotals(ctx, userID, StartOfWeek(now, a.weekStart))
	if err != nil {
		return nil, fmt.Errorf("week expenses: %w", err)
	}
	byCategory, err := a.store.ExpenseGroups(ctx, userID, GroupByCategory)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	byWallet, err := a.store.ExpenseGroups(ctx, userID, GroupByWallet)
	if err != nil {
		return nil, fmt.Errorf("wallet breakdown: %w", err)
	}

	s := &Summary{
		TotalExpenses:  all.Count,
		TotalAmount:    all.Sum,
		AverageExpense: decimal.Zero,
		ThisMonth:      WindowTotals{Count: month.Count, Total: month.Sum},
		ThisWeek:       WindowTotals{Count: week.Count, Total: week.Sum},
		ByCategory:     Breakdowns(byCategory, all.Sum, DefaultCategoryColor),
		ByWallet:       Breakdowns(byWallet, all.Sum, UnknownWalletType),
	}
	if all.Count > 0 {
		s.AverageExpense = all.Sum.Div(decimal.NewFromInt(int64(all.Count)))
	}
	return s, nil
}

// Breakdowns converts group totals into percentage rows sorted by total,
// largest first. unknownAttr is used for groups that did not resolve.
func Breakdowns(groups []GroupTotal, grandTotal decimal.Decimal, unknownAttr string) []Breakdown {
	rows := make([]Breakdown, 0, len(groups))
	for _, g := range groups {
		b := Breakdown{
			ID:         g.ID,
			Name:       g.Name,
			Attr:       g.Attr,
			Count:      g.Count,
			Total:      g.Total,
			Percentage: Percentage(g.Total, grandTotal),
		}
		if !g.Resolved {
			b.Name = UnknownName
			b.Attr = unknownAttr
		}
		rows = append(rows, b)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// Percentage returns 100 * part / whole, or 0 when whole is zero.
func Percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Mul(decimal.NewFromInt(100)).Div(whole).InexactFloat64()
}
