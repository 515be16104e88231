package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/wallet-ledger/ledger"
)

// reader implements ledger.Reader against either the pool or an open tx.
type reader struct {
	q querier
	d Dialect
}

func (r reader) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.d.Rebind(query), args...)
}

func (r reader) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.d.Rebind(query), args...)
}

// =============================================================================
// WALLETS
// =============================================================================

const walletColumns = `w.id, w.user_id, w.name, w.type, w.balance_minor, w.created_at, w.updated_at`

const walletSelect = `SELECT ` + walletColumns + `,
	(SELECT COUNT(*) FROM expenses e WHERE e.wallet_id = w.id) AS expense_count
	FROM wallets w`

func (r reader) GetWallet(ctx context.Context, userID ledger.UserID, id ledger.WalletID) (*ledger.Wallet, error) {
	row := r.queryRow(ctx, walletSelect+` WHERE w.user_id = ? AND w.id = ?`, userID, id)
	return r.oneWallet(row, "get wallet")
}

func (r reader) FindWalletByName(ctx context.Context, userID ledger.UserID, name string) (*ledger.Wallet, error) {
	row := r.queryRow(ctx, walletSelect+` WHERE w.user_id = ? AND LOWER(w.name) = LOWER(?)`, userID, name)
	return r.oneWallet(row, "find wallet")
}

func (r reader) ListWallets(ctx context.Context, userID ledger.UserID) ([]ledger.Wallet, error) {
	rows, err := r.query(ctx, walletSelect+` WHERE w.user_id = ? ORDER BY w.type, w.created_at, w.id`, userID)
	if err != nil {
		return nil, r.wrap("list wallets", err)
	}
	defer rows.Close()

	var wallets []ledger.Wallet
	for rows.Next() {
		w, err := scanWallet(rows, true)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (r reader) oneWallet(row *sql.Row, op string) (*ledger.Wallet, error) {
	w, err := scanWallet(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.wrap(op, err)
	}
	return &w, nil
}

// FloorViolations lists non-cash wallets of any user whose balance is below
// zero. Used by the background auditor; a healthy ledger returns none.
func (r reader) FloorViolations(ctx context.Context) ([]ledger.Wallet, error) {
	rows, err := r.query(ctx, `SELECT `+walletColumns+` FROM wallets w
		WHERE w.type <> ? AND w.balance_minor < 0 ORDER BY w.user_id, w.id`, ledger.WalletCash)
	if err != nil {
		return nil, r.wrap("scan balance floor", err)
	}
	defer rows.Close()

	var wallets []ledger.Wallet
	for rows.Next() {
		w, err := scanWallet(rows, false)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func scanWallet(s scanner, withCount bool) (ledger.Wallet, error) {
	var (
		w         ledger.Wallet
		balance   int64
		createdAt dbTime
		updatedAt dbTime
	)
	dest := []any{&w.ID, &w.UserID, &w.Name, &w.Type, &balance, &createdAt, &updatedAt}
	if withCount {
		dest = append(dest, &w.ExpenseCount)
	}
	if err := s.Scan(dest...); err != nil {
		return w, err
	}
	w.Balance = ledger.FromMinor(balance)
	w.CreatedAt = createdAt.Time
	w.UpdatedAt = updatedAt.Time
	return w, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

const categorySelect = `SELECT c.id, c.user_id, c.name, c.description, c.color, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM expenses e WHERE e.category_id = c.id) AS expense_count
	FROM categories c`

func (r reader) GetCategory(ctx context.Context, userID ledger.UserID, id ledger.CategoryID) (*ledger.Category, error) {
	row := r.queryRow(ctx, categorySelect+` WHERE c.user_id = ? AND c.id = ?`, userID, id)
	return r.oneCategory(row, "get category")
}

func (r reader) FindCategoryByName(ctx context.Context, userID ledger.UserID, name string) (*ledger.Category, error) {
	row := r.queryRow(ctx, categorySelect+` WHERE c.user_id = ? AND LOWER(c.name) = LOWER(?)`, userID, name)
	return r.oneCategory(row, "find category")
}

func (r reader) ListCategories(ctx context.Context, userID ledger.UserID) ([]ledger.Category, error) {
	rows, err := r.query(ctx, categorySelect+` WHERE c.user_id = ? ORDER BY LOWER(c.name), c.id`, userID)
	if err != nil {
		return nil, r.wrap("list categories", err)
	}
	defer rows.Close()

	var cats []ledger.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r reader) oneCategory(row *sql.Row, op string) (*ledger.Category, error) {
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.wrap(op, err)
	}
	return &c, nil
}

func scanCategory(s scanner) (ledger.Category, error) {
	var (
		c         ledger.Category
		createdAt dbTime
		updatedAt dbTime
	)
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.Color, &createdAt, &updatedAt, &c.ExpenseCount)
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	return c, err
}

// =============================================================================
// EXPENSES
// =============================================================================

const expenseColumns = `e.id, e.user_id, e.amount_minor, e.description, e.date,
	e.wallet_id, e.category_id, e.created_at, e.updated_at`

const expenseSelect = `SELECT ` + expenseColumns + `,
	w.name, w.type, c.name, c.color
	FROM expenses e
	JOIN wallets w ON w.id = e.wallet_id
	JOIN categories c ON c.id = e.category_id`

func (r reader) GetExpense(ctx context.Context, userID ledger.UserID, id ledger.ExpenseID) (*ledger.Expense, error) {
	row := r.queryRow(ctx, expenseSelect+` WHERE e.user_id = ? AND e.id = ?`, userID, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.wrap("get expense", err)
	}
	return &e, nil
}

// sortColumns whitelists ORDER BY targets; user input never reaches SQL text.
var sortColumns = map[ledger.SortField]string{
	ledger.SortByDate:        "e.date",
	ledger.SortByAmount:      "e.amount_minor",
	ledger.SortByDescription: "e.description",
	ledger.SortByCreatedAt:   "e.created_at",
}

// ListExpenses expects a normalized query.
func (r reader) ListExpenses(ctx context.Context, userID ledger.UserID, q ledger.ExpenseQuery) ([]ledger.Expense, int, error) {
	where, args := expenseFilter(userID, q)

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM expenses e WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, r.wrap("count expenses", err)
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns[ledger.SortByDate]
	}
	dir := "DESC"
	if q.SortOrder == ledger.SortAsc {
		dir = "ASC"
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s %s, e.id %s LIMIT ? OFFSET ?`, expenseSelect, where, col, dir, dir)

	rows, err := r.query(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, r.wrap("list expenses", err)
	}
	defer rows.Close()

	expenses := []ledger.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, e)
	}
	return expenses, total, rows.Err()
}

func expenseFilter(userID ledger.UserID, q ledger.ExpenseQuery) (string, []any) {
	clauses := []string{"e.user_id = ?"}
	args := []any{userID}
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	if q.StartDate != nil {
		add("e.date >= ?", dateArg(*q.StartDate))
	}
	if q.EndDate != nil {
		add("e.date <= ?", dateArg(*q.EndDate))
	}
	if q.CategoryID != nil {
		add("e.category_id = ?", *q.CategoryID)
	}
	if q.WalletID != nil {
		add("e.wallet_id = ?", *q.WalletID)
	}
	if q.MinAmount != nil {
		add("e.amount_minor >= ?", ledger.ToMinor(*q.MinAmount))
	}
	if q.MaxAmount != nil {
		add("e.amount_minor <= ?", ledger.ToMinor(*q.MaxAmount))
	}
	if q.Description != "" {
		add(`LOWER(e.description) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(q.Description))+"%")
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func scanExpense(s scanner) (ledger.Expense, error) {
	var (
		e         ledger.Expense
		amount    int64
		date      dbTime
		createdAt dbTime
		updatedAt dbTime
	)
	err := s.Scan(
		&e.ID, &e.UserID, &amount, &e.Description, &date,
		&e.WalletID, &e.CategoryID, &createdAt, &updatedAt,
		&e.Wallet.Name, &e.Wallet.Type, &e.Category.Name, &e.Category.Color,
	)
	if err != nil {
		return e, err
	}
	e.Amount = ledger.FromMinor(amount)
	e.Date = ledger.DateOf(date.Time)
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time
	e.Wallet.ID = e.WalletID
	e.Category.ID = e.CategoryID
	return e, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (r reader) ExpenseTotals(ctx context.Context, userID ledger.UserID, since time.Time) (ledger.Totals, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount_minor), 0) FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		query += ` AND date >= ?`
		args = append(args, dateArg(since))
	}

	var (
		t   ledger.Totals
		sum int64
	)
	if err := r.queryRow(ctx, query, args...).Scan(&t.Count, &sum); err != nil {
		return t, r.wrap("sum expenses", err)
	}
	t.Sum = ledger.FromMinor(sum)
	return t, nil
}

// LEFT JOIN so a group whose wallet/category row is missing still shows up
// (unresolved) instead of silently dropping its amount.
var groupQueries = map[ledger.GroupBy]string{
	ledger.GroupByCategory: `SELECT e.category_id, c.name, c.color, COUNT(*), COALESCE(SUM(e.amount_minor), 0)
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id AND c.user_id = e.user_id
		WHERE e.user_id = ?
		GROUP BY e.category_id, c.name, c.color`,
	ledger.GroupByWallet: `SELECT e.wallet_id, w.name, w.type, COUNT(*), COALESCE(SUM(e.amount_minor), 0)
		FROM expenses e
		LEFT JOIN wallets w ON w.id = e.wallet_id AND w.user_id = e.user_id
		WHERE e.user_id = ?
		GROUP BY e.wallet_id, w.name, w.type`,
}

func (r reader) ExpenseGroups(ctx context.Context, userID ledger.UserID, by ledger.GroupBy) ([]ledger.GroupTotal, error) {
	query, ok := groupQueries[by]
	if !ok {
		return nil, fmt.Errorf("unknown grouping %q", by)
	}
	rows, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, r.wrap("group expenses", err)
	}
	defer rows.Close()

	var groups []ledger.GroupTotal
	for rows.Next() {
		var (
			g     ledger.GroupTotal
			name  sql.NullString
			attr  sql.NullString
			total int64
		)
		if err := rows.Scan(&g.ID, &name, &attr, &g.Count, &total); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.Name = name.String
		g.Attr = attr.String
		g.Resolved = name.Valid
		g.Total = ledger.FromMinor(total)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
