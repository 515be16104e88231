/*
store.go - Persistence interface for wallets, categories and expenses

PURPOSE:
  Defines the boundary between the ledger and the relational database.
  Implementations: store/sqlite, store/postgres (via store/sqldb) and the
  in-memory ledger/store used by tests.

TENANT SCOPING:
  Every method takes the caller's UserID and filters on it
  (WHERE id = ? AND user_id = ?). A row owned by another user is reported
  exactly like a missing row: (nil, nil).

TRANSACTIONS:
  All balance-affecting work happens inside Store.WithTx. Inside the callback,
  LockWallet returns the wallet with a write lock held until commit/rollback,
  so the invariant check and the balance write cannot interleave with another
  transaction touching the same wallet.

SEE ALSO:
  - engine.go: The only caller of AdjustWalletBalance
  - store/sqldb/sqldb.go: database/sql implementation
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Reader holds the read-only queries. Available both inside and outside a
// transaction.
type Reader interface {
	// GetWallet returns (nil, nil) when absent or owned by someone else.
	GetWallet(ctx context.Context, userID UserID, id WalletID) (*Wallet, error)
	FindWalletByName(ctx context.Context, userID UserID, name string) (*Wallet, error)
	ListWallets(ctx context.Context, userID UserID) ([]Wallet, error)

	GetCategory(ctx context.Context, userID UserID, id CategoryID) (*Category, error)
	FindCategoryByName(ctx context.Context, userID UserID, name string) (*Category, error)
	ListCategories(ctx context.Context, userID UserID) ([]Category, error)

	GetExpense(ctx context.Context, userID UserID, id ExpenseID) (*Expense, error)

	// ListExpenses returns one page of matching expenses and the total match
	// count. The query must already be normalized.
	ListExpenses(ctx context.Context, userID UserID, q ExpenseQuery) ([]Expense, int, error)

	// ExpenseTotals aggregates expenses with date >= since. A zero since
	// means all expenses.
	ExpenseTotals(ctx context.Context, userID UserID, since time.Time) (Totals, error)

	// ExpenseGroups groups all expenses by wallet or category. Groups whose
	// wallet/category row cannot be found have Resolved=false.
	ExpenseGroups(ctx context.Context, userID UserID, by GroupBy) ([]GroupTotal, error)
}

// Writer holds the mutations. Only available inside a transaction.
type Writer interface {
	// LockWallet is GetWallet with a write lock held until the transaction ends.
	LockWallet(ctx context.Context, userID UserID, id WalletID) (*Wallet, error)

	InsertWallet(ctx context.Context, w Wallet) error
	// UpdateWallet persists Name and UpdatedAt. Balance is untouched.
	UpdateWallet(ctx context.Context, w Wallet) error
	DeleteWallet(ctx context.Context, userID UserID, id WalletID) error
	// AdjustWalletBalance adds delta (negative for a debit) to the balance.
	AdjustWalletBalance(ctx context.Context, userID UserID, id WalletID, delta decimal.Decimal, at time.Time) error

	InsertCategory(ctx context.Context, c Category) error
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, userID UserID, id CategoryID) error

	// LockExpense is GetExpense with a write lock held until the transaction
	// ends. Only the expense's own columns are populated.
	LockExpense(ctx context.Context, userID UserID, id ExpenseID) (*Expense, error)
	InsertExpense(ctx context.Context, e Expense) error
	UpdateExpense(ctx context.Context, e Expense) error
	// DeleteExpense reports whether a row was removed.
	DeleteExpense(ctx context.Context, userID UserID, id ExpenseID) (bool, error)
}

// Tx is the transactional view handed to WithTx callbacks.
type Tx interface {
	Reader
	Writer
}

// Store is the Ledger Store.
type Store interface {
	Reader

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// =============================================================================
// AGGREGATE ROWS
// =============================================================================

type Totals struct {
	Count int
	Sum   decimal.Decimal
}

type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByWallet   GroupBy = "wallet"
)

// GroupTotal is one row of a per-wallet or per-category breakdown.
type GroupTotal struct {
	ID       string
	Name     string
	Attr     string // category color or wallet type
	Resolved bool
	Count    int
	Total    decimal.Decimal
}
