/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  ledger types so fields can be renamed without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers (pages, summaries, messages)

MONEY:
  Request amounts decode into decimal.Decimal (JSON number or string).
  Response amounts are JSON numbers rounded to two decimals.

DATES:
  Expense dates are YYYY-MM-DD. Timestamps are RFC 3339 UTC.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-ledger/ledger"
)

// =============================================================================
// WALLETS
// =============================================================================

type WalletDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Balance      float64 `json:"balance"`
	ExpenseCount *int    `json:"expenseCount,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

type CreateWalletRequest struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

// UpdateWalletRequest only renames. Balances move through expenses.
type UpdateWalletRequest struct {
	Name *string `json:"name"`
}

type WalletTypeSummaryDTO struct {
	Count        int         `json:"count"`
	TotalBalance float64     `json:"totalBalance"`
	Wallets      []WalletDTO `json:"wallets"`
}

type WalletSummaryResponse struct {
	TotalBalance  float64                         `json:"totalBalance"`
	WalletsByType map[string]WalletTypeSummaryDTO `json:"walletsByType"`
}

// =============================================================================
// CATEGORIES
// =============================================================================

type CategoryDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Color        string `json:"color"`
	ExpenseCount *int   `json:"expenseCount,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

type CategoryUsageDTO struct {
	Category     CategoryDTO `json:"category"`
	ExpenseCount int         `json:"expenseCount"`
	TotalAmount  float64     `json:"totalAmount"`
}

type CategorySummaryResponse struct {
	TotalCategories           int                `json:"totalCategories"`
	CategoriesWithExpenses    int                `json:"categoriesWithExpenses"`
	CategoriesWithoutExpenses int                `json:"categoriesWithoutExpenses"`
	TopCategories             []CategoryUsageDTO `json:"topCategories"`
}

// =============================================================================
// EXPENSES
// =============================================================================

type ExpenseWalletDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type ExpenseCategoryDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type ExpenseDTO struct {
	ID          string             `json:"id"`
	Amount      float64            `json:"amount"`
	Description string             `json:"description"`
	Date        string             `json:"date"`
	WalletID    string             `json:"walletId"`
	CategoryID  string             `json:"categoryId"`
	Wallet      ExpenseWalletDTO   `json:"wallet"`
	Category    ExpenseCategoryDTO `json:"category"`
	CreatedAt   string             `json:"createdAt"`
	UpdatedAt   string             `json:"updatedAt"`
}

type CreateExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	WalletID    string          `json:"walletId"`
	CategoryID  string          `json:"categoryId"`
}

type UpdateExpenseRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
	WalletID    *string          `json:"walletId"`
	CategoryID  *string          `json:"categoryId"`
}

type PaginationDTO struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type ExpensePageResponse struct {
	Expenses   []ExpenseDTO  `json:"expenses"`
	Pagination PaginationDTO `json:"pagination"`
}

type WindowDTO struct {
	TotalExpenses int     `json:"totalExpenses"`
	TotalAmount   float64 `json:"totalAmount"`
}

type CategoryBreakdownDTO struct {
	CategoryID    string  `json:"categoryId"`
	CategoryName  string  `json:"categoryName"`
	CategoryColor string  `json:"categoryColor"`
	TotalAmount   float64 `json:"totalAmount"`
	ExpenseCount  int     `json:"expenseCount"`
	Percentage    float64 `json:"percentage"`
}

type WalletBreakdownDTO struct {
	WalletID     string  `json:"walletId"`
	WalletName   string  `json:"walletName"`
	WalletType   string  `json:"walletType"`
	TotalAmount  float64 `json:"totalAmount"`
	ExpenseCount int     `json:"expenseCount"`
	Percentage   float64 `json:"percentage"`
}

type ExpenseSummaryResponse struct {
	TotalExpenses  int                    `json:"totalExpenses"`
	TotalAmount    float64                `json:"totalAmount"`
	AverageExpense float64                `json:"averageExpense"`
	ThisMonth      WindowDTO              `json:"thisMonth"`
	ThisWeek       WindowDTO              `json:"thisWeek"`
	ByCategory     []CategoryBreakdownDTO `json:"byCategory"`
	ByWallet       []WalletBreakdownDTO   `json:"byWallet"`
}

// =============================================================================
// MISC
// =============================================================================

// MessageResponse is returned by deletes.
type MessageResponse struct {
	Message string `json:"message"`
}

type SeedResponse struct {
	Wallets    []WalletDTO   `json:"wallets"`
	Categories []CategoryDTO `json:"categories"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`

	// Set for insufficient_funds only.
	Available *float64 `json:"available,omitempty"`
	Required  *float64 `json:"required,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 {
	return d.Round(ledger.MinorUnits).InexactFloat64()
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toWalletDTO(w ledger.Wallet, withCount bool) WalletDTO {
	dto := WalletDTO{
		ID:        string(w.ID),
		Name:      w.Name,
		Type:      string(w.Type),
		Balance:   money(w.Balance),
		CreatedAt: timestamp(w.CreatedAt),
		UpdatedAt: timestamp(w.UpdatedAt),
	}
	if withCount {
		n := w.ExpenseCount
		dto.ExpenseCount = &n
	}
	return dto
}

func toWalletDTOs(wallets []ledger.Wallet, withCount bool) []WalletDTO {
	dtos := make([]WalletDTO, len(wallets))
	for i, w := range wallets {
		dtos[i] = toWalletDTO(w, withCount)
	}
	return dtos
}

func toCategoryDTO(c ledger.Category, withCount bool) CategoryDTO {
	dto := CategoryDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		CreatedAt:   timestamp(c.CreatedAt),
		UpdatedAt:   timestamp(c.UpdatedAt),
	}
	if withCount {
		n := c.ExpenseCount
		dto.ExpenseCount = &n
	}
	return dto
}

func toCategoryDTOs(cats []ledger.Category, withCount bool) []CategoryDTO {
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = toCategoryDTO(c, withCount)
	}
	return dtos
}

func toExpenseDTO(e ledger.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          string(e.ID),
		Amount:      money(e.Amount),
		Description: e.Description,
		Date:        e.Date.Format(ledger.DateLayout),
		WalletID:    string(e.WalletID),
		CategoryID:  string(e.CategoryID),
		Wallet: ExpenseWalletDTO{
			ID:   string(e.Wallet.ID),
			Name: e.Wallet.Name,
			Type: string(e.Wallet.Type),
		},
		Category: ExpenseCategoryDTO{
			ID:    string(e.Category.ID),
			Name:  e.Category.Name,
			Color: e.Category.Color,
		},
		CreatedAt: timestamp(e.CreatedAt),
		UpdatedAt: timestamp(e.UpdatedAt),
	}
}

func toExpensePage(p *ledger.ExpensePage) ExpensePageResponse {
	dtos := make([]ExpenseDTO, len(p.Expenses))
	for i, e := range p.Expenses {
		dtos[i] = toExpenseDTO(e)
	}
	return ExpensePageResponse{
		Expenses: dtos,
		Pagination: PaginationDTO{
			Total:      p.Pagination.Total,
			Page:       p.Pagination.Page,
			Limit:      p.Pagination.Limit,
			TotalPages: p.Pagination.TotalPages,
			HasNext:    p.Pagination.HasNext,
			HasPrev:    p.Pagination.HasPrev,
		},
	}
}

func toExpenseSummary(s *ledger.Summary) ExpenseSummaryResponse {
	resp := ExpenseSummaryResponse{
		TotalExpenses:  s.TotalExpenses,
		TotalAmount:    money(s.TotalAmount),
		AverageExpense: money(s.AverageExpense),
		ThisMonth:      WindowDTO{TotalExpenses: s.ThisMonth.Count, TotalAmount: money(s.ThisMonth.Total)},
		ThisWeek:       WindowDTO{TotalExpenses: s.ThisWeek.Count, TotalAmount: money(s.ThisWeek.Total)},
		ByCategory:     make([]CategoryBreakdownDTO, len(s.ByCategory)),
		ByWallet:       make([]WalletBreakdownDTO, len(s.ByWallet)),
	}
	for i, b := range s.ByCategory {
		resp.ByCategory[i] = CategoryBreakdownDTO{
			CategoryID: b.ID, CategoryName: b.Name, CategoryColor: b.Attr,
			TotalAmount: money(b.Total), ExpenseCount: b.Count, Percentage: b.Percentage,
		}
	}
	for i, b := range s.ByWallet {
		resp.ByWallet[i] = WalletBreakdownDTO{
			WalletID: b.ID, WalletName: b.Name, WalletType: b.Attr,
			TotalAmount: money(b.Total), ExpenseCount: b.Count, Percentage: b.Percentage,
		}
	}
	return resp
}

func toWalletSummary(s *ledger.WalletSummary) WalletSummaryResponse {
	resp := WalletSummaryResponse{
		TotalBalance:  money(s.TotalBalance),
		WalletsByType: make(map[string]WalletTypeSummaryDTO, len(s.ByType)),
	}
	for t, group := range s.ByType {
		resp.WalletsByType[string(t)] = WalletTypeSummaryDTO{
			Count:        group.Count,
			TotalBalance: money(group.TotalBalance),
			Wallets:      toWalletDTOs(group.Wallets, false),
		}
	}
	return resp
}

func toCategorySummary(s *ledger.CategorySummary) CategorySummaryResponse {
	resp := CategorySummaryResponse{
		TotalCategories:           s.TotalCategories,
		CategoriesWithExpenses:    s.CategoriesWithExpenses,
		CategoriesWithoutExpenses: s.CategoriesWithoutExpenses,
		TopCategories:             make([]CategoryUsageDTO, len(s.TopCategories)),
	}
	for i, u := range s.TopCategories {
		resp.TopCategories[i] = CategoryUsageDTO{
			Category:     toCategoryDTO(u.Category, false),
			ExpenseCount: u.ExpenseCount,
			TotalAmount:  money(u.TotalAmount),
		}
	}
	return resp
}
