package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-ledger/ledger"
)

// parseExpenseQuery reads the listing filters from the URL. Only syntax is
// checked here; ranges and defaults are applied by ExpenseQuery.Normalize.
func parseExpenseQuery(v url.Values) (ledger.ExpenseQuery, error) {
	var q ledger.ExpenseQuery

	for _, p := range []struct {
		key string
		dst *int
	}{{"page", &q.Page}, {"limit", &q.Limit}} {
		s := v.Get(p.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, &ledger.ValidationError{Field: p.key, Message: "must be a number"}
		}
		*p.dst = n
	}

	for _, p := range []struct {
		key string
		dst **decimal.Decimal
	}{{"minAmount", &q.MinAmount}, {"maxAmount", &q.MaxAmount}} {
		s := v.Get(p.key)
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return q, &ledger.ValidationError{Field: p.key, Message: "must be a number"}
		}
		*p.dst = &d
	}

	if s := v.Get("startDate"); s != "" {
		d, err := ledger.ParseDate(s)
		if err != nil {
			return q, &ledger.ValidationError{Field: "startDate", Message: "must be a valid date (YYYY-MM-DD)"}
		}
		q.StartDate = &d
	}
	if s := v.Get("endDate"); s != "" {
		d, err := ledger.ParseDate(s)
		if err != nil {
			return q, &ledger.ValidationError{Field: "endDate", Message: "must be a valid date (YYYY-MM-DD)"}
		}
		q.EndDate = &d
	}

	if s := v.Get("categoryId"); s != "" {
		if err := checkUUID("categoryId", s); err != nil {
			return q, err
		}
		id := ledger.CategoryID(s)
		q.CategoryID = &id
	}
	if s := v.Get("walletId"); s != "" {
		if err := checkUUID("walletId", s); err != nil {
			return q, err
		}
		id := ledger.WalletID(s)
		q.WalletID = &id
	}

	q.Description = strings.TrimSpace(v.Get("description"))
	q.SortBy = ledger.SortField(v.Get("sortBy"))
	q.SortOrder = ledger.SortOrder(v.Get("sortOrder"))
	return q, nil
}
