package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-ledger/ledger"
)

func postOn(t *testing.T, tl *testLedger, w *ledger.Wallet, c *ledger.Category, amount string, date time.Time) {
	t.Helper()
	_, err := tl.engine.PostExpense(context.Background(), tl.user, ledger.PostExpense{
		WalletID: w.ID, CategoryID: c.ID, Amount: dec(amount),
		Description: "Summary row", Date: date,
	})
	require.NoError(t, err)
}

func TestSummarize_BreakdownPercentages(t *testing.T) {
	// GIVEN: 100 and 300 in category X, 600 in category Y
	// WHEN: Summarizing
	// THEN: Total 1000, X = 40%, Y = 60%, Y listed first

	tl := newTestLedger(t)
	bank := tl.wallet(t, "Bank", ledger.WalletBank, "5000")
	x := tl.category(t, "Category X")
	y := tl.category(t, "Category Y")
	postOn(t, tl, bank, x, "100", fixedNow)
	postOn(t, tl, bank, x, "300", fixedNow)
	postOn(t, tl, bank, y, "600", fixedNow)

	agg := ledger.NewAggregator(tl.store, ledger.WithClock(func() time.Time { return fixedNow }))
	s, err := agg.Summarize(context.Background(), tl.user)
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalExpenses)
	assert.True(t, s.TotalAmount.Equal(dec("1000")))
	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, "Category Y", s.ByCategory[0].Name)
	assert.InDelta(t, 60.0, s.ByCategory[0].Percentage, 0.0001)
	assert.Equal(t, "Category X", s.ByCategory[1].Name)
	assert.Equal(t, 2, s.ByCategory[1].Count)
	assert.InDelta(t, 40.0, s.ByCategory[1].Percentage, 0.0001)
	assert.Equal(t, ledger.DefaultCategoryColor, s.ByCategory[1].Attr)

	require.Len(t, s.ByWallet, 1)
	assert.Equal(t, "Bank", s.ByWallet[0].Name)
	assert.Equal(t, string(ledger.WalletBank), s.ByWallet[0].Attr)
	assert.InDelta(t, 100.0, s.ByWallet[0].Percentage, 0.0001)
}

func TestSummarize_Windows(t *testing.T) {
	// GIVEN: now is Wednesday 2025-08-13, weeks start on Sunday
	// WHEN: Expenses fall last month, earlier this month and this week
	// THEN: Each window only counts expenses dated on or after its start

	tl := newTestLedger(t)
	cash := tl.wallet(t, "Cash", ledger.WalletCash, "0")
	food := tl.category(t, "Food")
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }

	postOn(t, tl, cash, food, "10", day(time.July, 31))
	postOn(t, tl, cash, food, "20", day(time.August, 1))
	postOn(t, tl, cash, food, "30", day(time.August, 9))
	postOn(t, tl, cash, food, "40", day(time.August, 10))
	postOn(t, tl, cash, food, "50", day(time.August, 13))

	agg := ledger.NewAggregator(tl.store, ledger.WithClock(func() time.Time { return fixedNow }))
	s, err := agg.Summarize(context.Background(), tl.user)
	require.NoError(t, err)

	assert.Equal(t, 5, s.TotalExpenses)
	assert.True(t, s.AverageExpense.Equal(dec("30")))
	assert.Equal(t, 4, s.ThisMonth.Count)
	assert.True(t, s.ThisMonth.Total.Equal(dec("140")))
	assert.Equal(t, 2, s.ThisWeek.Count)
	assert.True(t, s.ThisWeek.Total.Equal(dec("90")))

	monday := ledger.NewAggregator(tl.store,
		ledger.WithClock(func() time.Time { return fixedNow }),
		ledger.WithWeekStart(time.Monday))
	s, err = monday.Summarize(context.Background(), tl.user)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ThisWeek.Count)
}

func TestSummarize_Empty(t *testing.T) {
	tl := newTestLedger(t)

	s, err := ledger.NewAggregator(tl.store).Summarize(context.Background(), tl.user)
	require.NoError(t, err)

	assert.Zero(t, s.TotalExpenses)
	assert.True(t, s.TotalAmount.IsZero())
	assert.True(t, s.AverageExpense.IsZero())
	assert.Empty(t, s.ByCategory)
	assert.Empty(t, s.ByWallet)
}

func TestBreakdowns_UnresolvedGroupIsUnknown(t *testing.T) {
	groups := []ledger.GroupTotal{
		{ID: "w1", Name: "Bank", Attr: "BANK", Resolved: true, Count: 1, Total: dec("25")},
		{ID: "gone", Resolved: false, Count: 3, Total: dec("75")},
	}

	rows := ledger.Breakdowns(groups, dec("100"), ledger.UnknownWalletType)

	require.Len(t, rows, 2)
	assert.Equal(t, ledger.UnknownName, rows[0].Name)
	assert.Equal(t, ledger.UnknownWalletType, rows[0].Attr)
	assert.InDelta(t, 75.0, rows[0].Percentage, 0.0001)
	assert.Equal(t, "Bank", rows[1].Name)
}

func TestPercentage_ZeroWhole(t *testing.T) {
	assert.Equal(t, 0.0, ledger.Percentage(dec("10"), decimal.Zero))
	assert.InDelta(t, 33.3333, ledger.Percentage(dec("1"), dec("3")), 0.001)
}
