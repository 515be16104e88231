/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Authentication (missing/invalid token)
- Expense post/revise/void through HTTP, with wallet balances
- Error mapping (insufficient funds, not found, validation, duplicates)
- Listing query parameters and the summary endpoint
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-ledger/ledger"
	"github.com/warp/wallet-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.August, 13, 10, 30, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	router http.Handler
	auth   *Auth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := NewHandler(store.NewMemory(), nil, ledger.WithClock(func() time.Time { return testNow }))
	auth := NewAuth("test-secret", "wallet-ledger")
	return &testServer{
		t:      t,
		router: NewRouter(h, RouterConfig{Auth: auth}),
		auth:   auth,
	}
}

func (s *testServer) token(user string) string {
	s.t.Helper()
	tok, err := s.auth.IssueToken(ledger.UserID(user), time.Hour)
	require.NoError(s.t, err)
	return tok
}

// do sends a request as user; an empty user sends no Authorization header.
func (s *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(user))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createWallet(user, name, typ string, balance float64) WalletDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/wallets", user, map[string]any{
		"name": name, "type": typ, "balance": balance,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[WalletDTO](s.t, rec)
}

func (s *testServer) createCategory(user, name, color string) CategoryDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/categories", user, map[string]any{"name": name, "color": color})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CategoryDTO](s.t, rec)
}

func (s *testServer) createExpense(user string, w WalletDTO, c CategoryDTO, amount float64, desc, date string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/expenses", user, map[string]any{
		"amount": amount, "description": desc, "date": date,
		"walletId": w.ID, "categoryId": c.ID,
	})
}

func (s *testServer) walletBalance(user, id string) float64 {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/wallets/"+id, user, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[WalletDTO](s.t, rec).Balance
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_RequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: No Authorization header
	rec := s.do(http.MethodGet, "/api/wallets", "", nil)

	// THEN: 401
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// AND: A token signed with another secret is rejected too
	other := NewAuth("other-secret", "wallet-ledger")
	tok, err := other.IssueToken("alice", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/wallets", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_HealthzIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// EXPENSE LIFECYCLE
// =============================================================================

func TestAPI_ExpenseLifecycle(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A bank wallet with 500 and a category
	w := s.createWallet("alice", "HDFC", "BANK", 500)
	c := s.createCategory("alice", "Food", "#ff0000")
	assert.Equal(t, "#FF0000", c.Color)

	// WHEN: Posting a 120.50 expense
	rec := s.createExpense("alice", w, c, 120.50, "Groceries", "2025-08-10")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exp := decode[ExpenseDTO](t, rec)

	// THEN: The wallet is debited and the expense embeds its references
	assert.Equal(t, 379.50, s.walletBalance("alice", w.ID))
	assert.Equal(t, "2025-08-10", exp.Date)
	assert.Equal(t, "HDFC", exp.Wallet.Name)
	assert.Equal(t, "Food", exp.Category.Name)

	// WHEN: Revising the amount up to 200
	rec = s.do(http.MethodPatch, "/api/expenses/"+exp.ID, "alice", map[string]any{"amount": 200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Only the delta is debited
	assert.Equal(t, 300.0, s.walletBalance("alice", w.ID))

	// WHEN: Voiding it
	rec = s.do(http.MethodDelete, "/api/expenses/"+exp.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msg := decode[MessageResponse](t, rec)

	// THEN: The full amount is refunded
	assert.Contains(t, msg.Message, "Groceries")
	assert.Equal(t, 500.0, s.walletBalance("alice", w.ID))

	// AND: The expense is gone
	rec = s.do(http.MethodGet, "/api/expenses/"+exp.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_TransferBetweenWallets(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: An expense of 40 on bank A (100 -> 60) and an empty cash wallet
	a := s.createWallet("alice", "Bank A", "BANK", 100)
	cash := s.createWallet("alice", "Pocket", "CASH", 0)
	c := s.createCategory("alice", "Fuel", "")
	rec := s.createExpense("alice", a, c, 40, "Petrol", "2025-08-11")
	require.Equal(t, http.StatusCreated, rec.Code)
	exp := decode[ExpenseDTO](t, rec)

	// WHEN: Moving it to the cash wallet
	rec = s.do(http.MethodPatch, "/api/expenses/"+exp.ID, "alice", map[string]any{"walletId": cash.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: A is refunded and cash goes negative
	assert.Equal(t, 100.0, s.walletBalance("alice", a.ID))
	assert.Equal(t, -40.0, s.walletBalance("alice", cash.ID))
	assert.Equal(t, cash.ID, decode[ExpenseDTO](t, rec).WalletID)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_InsufficientFunds(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A UPI wallet with 100
	w := s.createWallet("alice", "GPay", "UPI", 100)
	c := s.createCategory("alice", "Food", "")

	// WHEN: Posting 150
	rec := s.createExpense("alice", w, c, 150, "Dinner", "2025-08-12")

	// THEN: 400 with both figures, and no debit
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_funds", body.Code)
	require.NotNil(t, body.Available)
	require.NotNil(t, body.Required)
	assert.Equal(t, 100.0, *body.Available)
	assert.Equal(t, 150.0, *body.Required)
	assert.Contains(t, body.Error, "Available: 100.00, Required: 150.00")
	assert.Equal(t, 100.0, s.walletBalance("alice", w.ID))
}

func TestAPI_OtherUsersRecordsAreNotFound(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: Alice's wallet, category and expense
	w := s.createWallet("alice", "HDFC", "BANK", 500)
	c := s.createCategory("alice", "Food", "")
	rec := s.createExpense("alice", w, c, 10, "Tea", "2025-08-12")
	require.Equal(t, http.StatusCreated, rec.Code)
	exp := decode[ExpenseDTO](t, rec)

	// THEN: Bob sees 404 for every one of them
	for _, path := range []string{
		"/api/wallets/" + w.ID,
		"/api/categories/" + c.ID,
		"/api/expenses/" + exp.ID,
	} {
		rec := s.do(http.MethodGet, path, "bob", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	// AND: Bob cannot void Alice's expense
	rec = s.do(http.MethodDelete, "/api/expenses/"+exp.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// AND: Bob cannot post against Alice's wallet with his own category
	bobCat := s.createCategory("bob", "Food", "")
	rec = s.createExpense("bob", w, bobCat, 10, "Tea", "2025-08-12")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 490.0, s.walletBalance("alice", w.ID))
}

func TestAPI_ValidationErrors(t *testing.T) {
	s := newTestServer(t)
	w := s.createWallet("alice", "HDFC", "BANK", 500)
	c := s.createCategory("alice", "Food", "")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"zero amount", map[string]any{"amount": 0, "description": "Tea", "date": "2025-08-12", "walletId": w.ID, "categoryId": c.ID}, "amount"},
		{"short description", map[string]any{"amount": 5, "description": "T", "date": "2025-08-12", "walletId": w.ID, "categoryId": c.ID}, "description"},
		{"bad date", map[string]any{"amount": 5, "description": "Tea", "date": "12/08/2025", "walletId": w.ID, "categoryId": c.ID}, "date"},
		{"wallet id not a uuid", map[string]any{"amount": 5, "description": "Tea", "date": "2025-08-12", "walletId": "abc", "categoryId": c.ID}, "walletId"},
		{"missing category", map[string]any{"amount": 5, "description": "Tea", "date": "2025-08-12", "walletId": w.ID}, "categoryId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/expenses", "alice", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, "validation_failed", body.Code)
			assert.Equal(t, map[string]any{"field": tt.field}, body.Details)
		})
	}

	// Path ids are syntax-checked too
	rec := s.do(http.MethodGet, "/api/expenses/not-a-uuid", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed JSON
	req := httptest.NewRequest(http.MethodPost, "/api/wallets", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+s.token("alice"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, 500.0, s.walletBalance("alice", w.ID))
}

func TestAPI_DuplicateAndInUse(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A wallet named "HDFC"
	w := s.createWallet("alice", "HDFC", "BANK", 500)

	// WHEN: Creating "hdfc" again
	rec := s.do(http.MethodPost, "/api/wallets", "alice", map[string]any{"name": "hdfc", "type": "CASH", "balance": 0})

	// THEN: 409
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_name", decode[ErrorResponse](t, rec).Code)

	// AND: Another user may use the same name
	s.createWallet("bob", "HDFC", "BANK", 0)

	// GIVEN: The wallet has an expense
	c := s.createCategory("alice", "Food", "")
	rec = s.createExpense("alice", w, c, 5, "Tea", "2025-08-12")
	require.Equal(t, http.StatusCreated, rec.Code)

	// THEN: Deleting the wallet or category is refused
	rec = s.do(http.MethodDelete, "/api/wallets/"+w.ID, "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "in_use", decode[ErrorResponse](t, rec).Code)
	rec = s.do(http.MethodDelete, "/api/categories/"+c.ID, "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestAPI_WalletRenameAndDelete(t *testing.T) {
	s := newTestServer(t)
	w := s.createWallet("alice", "Old Name", "WALLET", 20)

	rec := s.do(http.MethodPatch, "/api/wallets/"+w.ID, "alice", map[string]any{"name": "New Name"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	renamed := decode[WalletDTO](t, rec)
	assert.Equal(t, "New Name", renamed.Name)
	assert.Equal(t, 20.0, renamed.Balance)

	rec = s.do(http.MethodDelete, "/api/wallets/"+w.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `Wallet "New Name" has been deleted successfully`, decode[MessageResponse](t, rec).Message)

	rec = s.do(http.MethodGet, "/api/wallets", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]WalletDTO](t, rec))
}

func TestAPI_SeedDefaultsAndSummaries(t *testing.T) {
	s := newTestServer(t)

	// WHEN: Seeding twice
	rec := s.do(http.MethodPost, "/api/defaults", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[SeedResponse](t, rec)
	rec = s.do(http.MethodPost, "/api/defaults", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[SeedResponse](t, rec)

	// THEN: Only the first call creates anything
	assert.Len(t, first.Wallets, len(ledger.DefaultWallets))
	assert.Len(t, first.Categories, len(ledger.DefaultCategories))
	assert.Empty(t, second.Wallets)
	assert.Empty(t, second.Categories)

	rec = s.do(http.MethodGet, "/api/wallets/summary", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ws := decode[WalletSummaryResponse](t, rec)
	assert.Equal(t, 0.0, ws.TotalBalance)
	assert.Equal(t, 1, ws.WalletsByType["BANK"].Count)

	rec = s.do(http.MethodGet, "/api/categories/summary", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cs := decode[CategorySummaryResponse](t, rec)
	assert.Equal(t, len(ledger.DefaultCategories), cs.TotalCategories)
	assert.Equal(t, 0, cs.CategoriesWithExpenses)
}

// =============================================================================
// LISTING AND SUMMARY
// =============================================================================

func TestAPI_ListExpensesQuery(t *testing.T) {
	s := newTestServer(t)
	w := s.createWallet("alice", "HDFC", "BANK", 1000)
	food := s.createCategory("alice", "Food", "")
	fuel := s.createCategory("alice", "Fuel", "")

	for _, e := range []struct {
		cat    CategoryDTO
		amount float64
		desc   string
		date   string
	}{
		{food, 10, "Coffee beans", "2025-08-01"},
		{food, 25, "Lunch", "2025-08-05"},
		{fuel, 60, "Petrol", "2025-08-05"},
		{food, 15, "Coffee", "2025-08-09"},
	} {
		rec := s.createExpense("alice", w, e.cat, e.amount, e.desc, e.date)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	t.Run("defaults", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/expenses", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[ExpensePageResponse](t, rec)
		assert.Len(t, page.Expenses, 4)
		assert.Equal(t, "2025-08-09", page.Expenses[0].Date)
		assert.Equal(t, PaginationDTO{Total: 4, Page: 1, Limit: 20, TotalPages: 1}, page.Pagination)
	})

	t.Run("filters", func(t *testing.T) {
		rec := s.do(http.MethodGet,
			"/api/expenses?categoryId="+food.ID+"&endDate=2025-08-05&description=LUNCH", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[ExpensePageResponse](t, rec)
		require.Len(t, page.Expenses, 1)
		assert.Equal(t, "Lunch", page.Expenses[0].Description)
	})

	t.Run("sort and paginate", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/expenses?sortBy=amount&sortOrder=asc&limit=3&page=2", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[ExpensePageResponse](t, rec)
		require.Len(t, page.Expenses, 1)
		assert.Equal(t, 60.0, page.Expenses[0].Amount)
		assert.Equal(t, 2, page.Pagination.TotalPages)
		assert.True(t, page.Pagination.HasPrev)
		assert.False(t, page.Pagination.HasNext)
	})

	t.Run("amount range", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/expenses?minAmount=15&maxAmount=25", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[ExpensePageResponse](t, rec).Expenses, 2)
	})

	t.Run("bad parameters", func(t *testing.T) {
		for _, q := range []string{"limit=101", "page=x", "sortBy=color", "walletId=nope", "startDate=yesterday", "maxAmount=10.005"} {
			rec := s.do(http.MethodGet, "/api/expenses?"+q, "alice", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("other users see nothing", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/expenses", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[ExpensePageResponse](t, rec)
		assert.Empty(t, page.Expenses)
		assert.Equal(t, 0, page.Pagination.Total)
	})
}

func TestAPI_ExpenseSummary(t *testing.T) {
	s := newTestServer(t)
	w := s.createWallet("alice", "Pocket", "CASH", 0)
	food := s.createCategory("alice", "Food", "#00ff00")
	fuel := s.createCategory("alice", "Fuel", "")

	// GIVEN: 40 on food and 60 on fuel, both this week
	require.Equal(t, http.StatusCreated, s.createExpense("alice", w, food, 40, "Lunch", "2025-08-11").Code)
	require.Equal(t, http.StatusCreated, s.createExpense("alice", w, fuel, 60, "Petrol", "2025-08-12").Code)

	rec := s.do(http.MethodGet, "/api/expenses/summary", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[ExpenseSummaryResponse](t, rec)

	assert.Equal(t, 2, sum.TotalExpenses)
	assert.Equal(t, 100.0, sum.TotalAmount)
	assert.Equal(t, 50.0, sum.AverageExpense)
	assert.Equal(t, WindowDTO{TotalExpenses: 2, TotalAmount: 100}, sum.ThisMonth)
	assert.Equal(t, WindowDTO{TotalExpenses: 2, TotalAmount: 100}, sum.ThisWeek)

	require.Len(t, sum.ByCategory, 2)
	pct := map[string]float64{}
	for _, b := range sum.ByCategory {
		pct[b.CategoryName] = b.Percentage
	}
	assert.InDelta(t, 40.0, pct["Food"], 0.001)
	assert.InDelta(t, 60.0, pct["Fuel"], 0.001)

	require.Len(t, sum.ByWallet, 1)
	assert.Equal(t, "CASH", sum.ByWallet[0].WalletType)
	assert.InDelta(t, 100.0, sum.ByWallet[0].Percentage, 0.001)
}
