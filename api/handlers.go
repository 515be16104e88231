/*
handlers.go - HTTP API handlers for the wallet ledger

PURPOSE:
  Exposes the ledger engine, catalog and aggregator via REST. Handles
  HTTP request/response and JSON, and delegates to the ledger package.

ENDPOINTS:
  Wallets:
    GET    /api/wallets              List wallets with expense counts
    POST   /api/wallets              Create wallet (opening balance)
    GET    /api/wallets/summary      Totals per wallet type
    GET    /api/wallets/{id}         Get wallet
    PATCH  /api/wallets/{id}         Rename wallet
    DELETE /api/wallets/{id}         Delete wallet without expenses

  Categories:
    GET    /api/categories           List categories with expense counts
    POST   /api/categories           Create category
    GET    /api/categories/summary   Usage summary
    GET    /api/categories/{id}      Get category
    PATCH  /api/categories/{id}      Update category
    DELETE /api/categories/{id}      Delete category without expenses

  Expenses:
    GET    /api/expenses             Filtered, sorted, paginated listing
    POST   /api/expenses             Post expense (debits wallet)
    GET    /api/expenses/summary     Totals, windows and breakdowns
    GET    /api/expenses/{id}        Get expense
    PATCH  /api/expenses/{id}        Revise expense (re-balances wallets)
    DELETE /api/expenses/{id}        Void expense (refunds wallet)

  Defaults:
    POST   /api/defaults             Create the default wallets/categories

REQUEST FLOW:
  1. Read the caller's user id from the auth middleware
  2. Parse and syntax-check input (ids must be UUIDs)
  3. Call the ledger
  4. Serialize response, or map the ledger error to a status

ERROR HANDLING:
  - 400: Validation errors, insufficient funds, delete of a used record
  - 401: Missing/invalid bearer token
  - 404: Not found, including records owned by someone else
  - 409: Duplicate name, concurrent modification (retry)
  - 500: Internal errors (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/wallet-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine     *ledger.Engine
	Catalog    *ledger.Catalog
	Aggregator *ledger.Aggregator
	Logger     *slog.Logger
}

// NewHandler wires handlers to a store. opts are passed to every ledger
// component (logger, metrics, clock, week start).
func NewHandler(store ledger.Store, logger *slog.Logger, opts ...ledger.Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Engine:     ledger.NewEngine(store, opts...),
		Catalog:    ledger.NewCatalog(store, opts...),
		Aggregator: ledger.NewAggregator(store, opts...),
		Logger:     logger,
	}
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// ListWallets returns the caller's wallets.
func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	wallets, err := h.Catalog.ListWallets(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTOs(wallets, true))
}

// CreateWallet creates a wallet with an opening balance.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req CreateWalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wallet, err := h.Catalog.CreateWallet(r.Context(), userID, ledger.NewWallet{
		Name:    req.Name,
		Type:    ledger.WalletType(req.Type),
		Balance: req.Balance,
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWalletDTO(*wallet, false))
}

// WalletSummary returns balances grouped by wallet type.
func (h *Handler) WalletSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	summary, err := h.Catalog.WalletSummary(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletSummary(summary))
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wallet, err := h.Catalog.GetWallet(r.Context(), userID, ledger.WalletID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(*wallet, true))
}

// UpdateWallet renames a wallet.
func (h *Handler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateWalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		wallet *ledger.Wallet
		err    error
	)
	if req.Name == nil {
		wallet, err = h.Catalog.GetWallet(r.Context(), userID, ledger.WalletID(id))
	} else {
		wallet, err = h.Catalog.RenameWallet(r.Context(), userID, ledger.WalletID(id), *req.Name)
	}
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(*wallet, false))
}

func (h *Handler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wallet, err := h.Catalog.DeleteWallet(r.Context(), userID, ledger.WalletID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Wallet %q has been deleted successfully", wallet.Name),
	})
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	cats, err := h.Catalog.ListCategories(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTOs(cats, true))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req CreateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, err := h.Catalog.CreateCategory(r.Context(), userID, ledger.NewCategory{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(*cat, false))
}

func (h *Handler) CategorySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	summary, err := h.Catalog.CategorySummary(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategorySummary(summary))
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cat, err := h.Catalog.GetCategory(r.Context(), userID, ledger.CategoryID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*cat, true))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, err := h.Catalog.UpdateCategory(r.Context(), userID, ledger.CategoryID(id), ledger.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*cat, false))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cat, err := h.Catalog.DeleteCategory(r.Context(), userID, ledger.CategoryID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Category %q has been deleted successfully", cat.Name),
	})
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpenses returns one page of the caller's expenses.
// GET /api/expenses?page=1&limit=20&startDate=2025-08-01&sortBy=amount
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	q, err := parseExpenseQuery(r.URL.Query())
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	page, err := h.Engine.ListExpenses(r.Context(), userID, q)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpensePage(page))
}

// CreateExpense posts an expense and debits its wallet.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req CreateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toPost()
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	exp, err := h.Engine.PostExpense(r.Context(), userID, in)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(*exp))
}

func (h *Handler) ExpenseSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	summary, err := h.Aggregator.Summarize(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseSummary(summary))
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	exp, err := h.Engine.GetExpense(r.Context(), userID, ledger.ExpenseID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(*exp))
}

// UpdateExpense revises an expense; moving it to another wallet refunds the
// old wallet and debits the new one atomically.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	exp, err := h.Engine.ReviseExpense(r.Context(), userID, ledger.ExpenseID(id), patch)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(*exp))
}

// DeleteExpense voids an expense and refunds its wallet.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.VoidExpense(r.Context(), userID, ledger.ExpenseID(id))
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: res.Message()})
}

// =============================================================================
// DEFAULTS
// =============================================================================

// SeedDefaults creates the default wallets and categories the caller is
// missing.
func (h *Handler) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	res, err := h.Catalog.SeedDefaults(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SeedResponse{
		Wallets:    toWalletDTOs(res.Wallets, false),
		Categories: toCategoryDTOs(res.Categories, false),
	})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func (req CreateExpenseRequest) toPost() (ledger.PostExpense, error) {
	in := ledger.PostExpense{
		Amount:      req.Amount,
		Description: req.Description,
	}
	if err := checkUUID("walletId", req.WalletID); err != nil {
		return in, err
	}
	if err := checkUUID("categoryId", req.CategoryID); err != nil {
		return in, err
	}
	in.WalletID = ledger.WalletID(req.WalletID)
	in.CategoryID = ledger.CategoryID(req.CategoryID)

	if strings.TrimSpace(req.Date) == "" {
		return in, &ledger.ValidationError{Field: "date", Message: "is required"}
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		return in, &ledger.ValidationError{Field: "date", Message: "must be a valid date (YYYY-MM-DD)"}
	}
	in.Date = date
	return in, nil
}

func (req UpdateExpenseRequest) toPatch() (ledger.ExpensePatch, error) {
	patch := ledger.ExpensePatch{
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.WalletID != nil {
		if err := checkUUID("walletId", *req.WalletID); err != nil {
			return patch, err
		}
		id := ledger.WalletID(*req.WalletID)
		patch.WalletID = &id
	}
	if req.CategoryID != nil {
		if err := checkUUID("categoryId", *req.CategoryID); err != nil {
			return patch, err
		}
		id := ledger.CategoryID(*req.CategoryID)
		patch.CategoryID = &id
	}
	if req.Date != nil {
		date, err := ledger.ParseDate(*req.Date)
		if err != nil {
			return patch, &ledger.ValidationError{Field: "date", Message: "must be a valid date (YYYY-MM-DD)"}
		}
		patch.Date = &date
	}
	return patch, nil
}

func checkUUID(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return &ledger.ValidationError{Field: field, Message: "is required"}
	}
	if _, err := uuid.Parse(s); err != nil {
		return &ledger.ValidationError{Field: field, Message: "must be a valid UUID"}
	}
	return nil
}

// pathID returns the {id} URL parameter after checking it is a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id: must be a valid UUID", nil)
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (ledger.UserID, bool) {
	userID, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
	}
	return userID, ok
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps a ledger error onto a status code and body.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *ledger.ValidationError
		insufficient *ledger.InsufficientFundsError
		notFound     *ledger.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   validation.Error(),
			Code:    "validation_failed",
			Details: map[string]string{"field": validation.Field},
		})
	case errors.As(err, &insufficient):
		available := money(insufficient.Available)
		required := money(insufficient.Required)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("Insufficient balance in %s. Available: %s, Required: %s",
				insufficient.WalletName,
				insufficient.Available.StringFixed(ledger.MinorUnits),
				insufficient.Required.StringFixed(ledger.MinorUnits)),
			Code:      "insufficient_funds",
			Available: &available,
			Required:  &required,
		})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: notFoundMessage(notFound.Kind), Code: "not_found"})
	case errors.Is(err, ledger.ErrInUse):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "in_use"})
	case errors.Is(err, ledger.ErrDuplicateName):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "duplicate_name"})
	case errors.Is(err, ledger.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "The record was modified concurrently, please retry",
			Code:  "conflict",
		})
	default:
		h.Logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "internal"})
	}
}

func notFoundMessage(kind string) string {
	switch kind {
	case ledger.KindWallet:
		return "Wallet not found"
	case ledger.KindCategory:
		return "Category not found"
	case ledger.KindExpense:
		return "Expense not found"
	}
	return "Not found"
}
