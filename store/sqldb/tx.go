package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-ledger/ledger"
)

// =============================================================================
// TRANSACTIONAL STORE (ledger.Tx)
// =============================================================================

type txStore struct {
	reader
}

var _ ledger.Tx = (*txStore)(nil)

func (ts *txStore) exec(ctx context.Context, op string, query string, args ...any) (sql.Result, error) {
	res, err := ts.q.ExecContext(ctx, ts.d.Rebind(query), args...)
	if err != nil {
		return nil, ts.wrap(op, err)
	}
	return res, nil
}

// execOne runs an UPDATE that must touch exactly one row.
func (ts *txStore) execOne(ctx context.Context, op string, query string, args ...any) error {
	res, err := ts.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ts.wrap(op, err)
	}
	if n != 1 {
		return fmt.Errorf("failed to %s: %d rows affected", op, n)
	}
	return nil
}

// LockWallet reads the wallet row and holds its lock until the transaction
// ends. ExpenseCount is not populated.
func (ts *txStore) LockWallet(ctx context.Context, userID ledger.UserID, id ledger.WalletID) (*ledger.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets w WHERE w.user_id = ? AND w.id = ?` + ts.d.ForUpdate()
	w, err := scanWallet(ts.queryRow(ctx, query, userID, id), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ts.wrap("lock wallet", err)
	}
	return &w, nil
}

// =============================================================================
// WALLETS
// =============================================================================

func (ts *txStore) InsertWallet(ctx context.Context, w ledger.Wallet) error {
	_, err := ts.q.ExecContext(ctx, ts.d.Rebind(`
		INSERT INTO wallets (id, user_id, name, type, balance_minor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.UserID, w.Name, w.Type, ledger.ToMinor(w.Balance),
		ts.d.TimeArg(w.CreatedAt), ts.d.TimeArg(w.UpdatedAt),
	)
	if err != nil && ts.d.IsUniqueViolation(err) {
		return &ledger.DuplicateNameError{Kind: ledger.KindWallet, Name: w.Name}
	}
	if err != nil {
		return ts.wrap("insert wallet", err)
	}
	return nil
}

// UpdateWallet writes name and updated_at. The balance is only ever moved
// by AdjustWalletBalance.
func (ts *txStore) UpdateWallet(ctx context.Context, w ledger.Wallet) error {
	err := ts.execOne(ctx, "update wallet",
		`UPDATE wallets SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		w.Name, ts.d.TimeArg(w.UpdatedAt), w.ID, w.UserID,
	)
	if err != nil && ts.d.IsUniqueViolation(err) {
		return &ledger.DuplicateNameError{Kind: ledger.KindWallet, Name: w.Name}
	}
	return err
}

func (ts *txStore) DeleteWallet(ctx context.Context, userID ledger.UserID, id ledger.WalletID) error {
	return ts.execDelete(ctx, "delete wallet", `DELETE FROM wallets WHERE id = ? AND user_id = ?`, id, userID)
}

// execDelete maps a foreign key violation (an expense still references the
// row) onto ledger.ErrInUse.
func (ts *txStore) execDelete(ctx context.Context, op string, query string, args ...any) error {
	_, err := ts.q.ExecContext(ctx, ts.d.Rebind(query), args...)
	if err != nil && ts.d.IsForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ledger.ErrInUse, err)
	}
	if err != nil {
		return ts.wrap(op, err)
	}
	return nil
}

// AdjustWalletBalance adds delta in the database rather than writing back a
// value computed in Go.
func (ts *txStore) AdjustWalletBalance(ctx context.Context, userID ledger.UserID, id ledger.WalletID, delta decimal.Decimal, at time.Time) error {
	return ts.execOne(ctx, "adjust wallet balance",
		`UPDATE wallets SET balance_minor = balance_minor + ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		ledger.ToMinor(delta), ts.d.TimeArg(at), id, userID,
	)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (ts *txStore) InsertCategory(ctx context.Context, c ledger.Category) error {
	_, err := ts.q.ExecContext(ctx, ts.d.Rebind(`
		INSERT INTO categories (id, user_id, name, description, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.UserID, c.Name, c.Description, c.Color,
		ts.d.TimeArg(c.CreatedAt), ts.d.TimeArg(c.UpdatedAt),
	)
	if err != nil && ts.d.IsUniqueViolation(err) {
		return &ledger.DuplicateNameError{Kind: ledger.KindCategory, Name: c.Name}
	}
	if err != nil {
		return ts.wrap("insert category", err)
	}
	return nil
}

func (ts *txStore) UpdateCategory(ctx context.Context, c ledger.Category) error {
	err := ts.execOne(ctx, "update category",
		`UPDATE categories SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Description, c.Color, ts.d.TimeArg(c.UpdatedAt), c.ID, c.UserID,
	)
	if err != nil && ts.d.IsUniqueViolation(err) {
		return &ledger.DuplicateNameError{Kind: ledger.KindCategory, Name: c.Name}
	}
	return err
}

func (ts *txStore) DeleteCategory(ctx context.Context, userID ledger.UserID, id ledger.CategoryID) error {
	return ts.execDelete(ctx, "delete category", `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
}

// =============================================================================
// EXPENSES
// =============================================================================

func (ts *txStore) InsertExpense(ctx context.Context, e ledger.Expense) error {
	_, err := ts.exec(ctx, "insert expense", `
		INSERT INTO expenses (id, user_id, amount_minor, description, date, wallet_id, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, ledger.ToMinor(e.Amount), e.Description, dateArg(e.Date),
		e.WalletID, e.CategoryID, ts.d.TimeArg(e.CreatedAt), ts.d.TimeArg(e.UpdatedAt),
	)
	return err
}

// LockExpense reads the expense row alone and holds its lock until the
// transaction ends. Wallet and Category refs are not populated, and the
// referenced rows are not locked.
func (ts *txStore) LockExpense(ctx context.Context, userID ledger.UserID, id ledger.ExpenseID) (*ledger.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses e WHERE e.user_id = ? AND e.id = ?` + ts.d.ForUpdate()
	var (
		e         ledger.Expense
		amount    int64
		date      dbTime
		createdAt dbTime
		updatedAt dbTime
	)
	err := ts.queryRow(ctx, query, userID, id).Scan(
		&e.ID, &e.UserID, &amount, &e.Description, &date,
		&e.WalletID, &e.CategoryID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ts.wrap("lock expense", err)
	}
	e.Amount = ledger.FromMinor(amount)
	e.Date = ledger.DateOf(date.Time)
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time
	return &e, nil
}

func (ts *txStore) UpdateExpense(ctx context.Context, e ledger.Expense) error {
	return ts.execOne(ctx, "update expense", `
		UPDATE expenses
		SET amount_minor = ?, description = ?, date = ?, wallet_id = ?, category_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		ledger.ToMinor(e.Amount), e.Description, dateArg(e.Date), e.WalletID, e.CategoryID,
		ts.d.TimeArg(e.UpdatedAt), e.ID, e.UserID,
	)
}

// DeleteExpense reports whether a row was removed.
func (ts *txStore) DeleteExpense(ctx context.Context, userID ledger.UserID, id ledger.ExpenseID) (bool, error) {
	res, err := ts.exec(ctx, "delete expense", `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ts.wrap("delete expense", err)
	}
	return n > 0, nil
}
