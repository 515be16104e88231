/*
Package sqlite provides the SQLite-backed ledger store.

PURPOSE:
  Opens a SQLite database with the connection flags the ledger relies on and
  supplies the sqldb.Dialect for it. All queries live in store/sqldb.

CONNECTION FLAGS:
  _foreign_keys=on      expenses must reference existing wallets/categories
  _journal_mode=WAL     readers don't block the single writer
  _txlock=immediate     BEGIN takes the write lock up front, so the balance
                        read inside a transaction cannot go stale
  _busy_timeout=N       wait this long for the write lock before SQLITE_BUSY

CONCURRENCY:
  SQLite has no row locks. The dialect asks sqldb to serialize WithTx within
  the process; BEGIN IMMEDIATE covers other processes sharing the file.
  SQLITE_BUSY / SQLITE_LOCKED surface as ledger.ErrConflict.

USAGE:
  store, err := sqlite.New(ctx, "./data/ledger.db", sqlite.Options{})
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)

SEE ALSO:
  - store/sqldb: Queries and transaction handling
  - store/postgres: PostgreSQL dialect
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/wallet-ledger/store/sqldb"
)

// Options tune the connection.
type Options struct {
	// BusyTimeout bounds how long a writer waits for the lock. Default 5s.
	BusyTimeout time.Duration
}

// New opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func New(ctx context.Context, path string, opts Options) (*sqldb.Store, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=%d",
		path, opts.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := sqldb.New(db, Dialect{})
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect is the SQLite flavour of sqldb.Dialect.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Rebind(query string) string { return query }

// ForUpdate is empty: the immediate transaction already holds the database
// write lock.
func (Dialect) ForUpdate() string { return "" }

func (Dialect) TimeArg(t time.Time) any { return t.UTC().Format(sqldb.TimestampLayout) }

func (Dialect) SerializeWrites() bool { return true }

func (Dialect) IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func (Dialect) IsConflict(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

func (Dialect) Schema() string {
	return `
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('BANK', 'CASH', 'UPI', 'WALLET')),
		balance_minor INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Names are unique per user, case-insensitive
	CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_user_name
		ON wallets(user_id, LOWER(name));

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '#000000',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_user_name
		ON categories(user_id, LOWER(name));

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount_minor INTEGER NOT NULL CHECK (amount_minor > 0),
		description TEXT NOT NULL,
		date TEXT NOT NULL,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		category_id TEXT NOT NULL REFERENCES categories(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Listing and window totals (hot path)
	CREATE INDEX IF NOT EXISTS idx_expenses_user_date
		ON expenses(user_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_expenses_wallet
		ON expenses(wallet_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_category
		ON expenses(category_id);
	`
}
