// Package postgres provides the PostgreSQL-backed ledger store (lib/pq).
//
// Wallet rows are locked with SELECT ... FOR UPDATE inside the ledger
// transaction, so concurrent debits of one wallet queue behind each other.
// Serialization failures, deadlocks and lock timeouts map to
// ledger.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/warp/wallet-ledger/store/sqldb"
)

// Options tune the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New connects to dsn, verifies the connection and migrates the schema.
func New(ctx context.Context, dsn string, opts Options) (*sqldb.Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := sqldb.New(db, Dialect{})
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// SQLSTATE codes the ledger cares about.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// Dialect is the PostgreSQL flavour of sqldb.Dialect.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Rebind(query string) string { return sqldb.RebindDollar(query) }

func (Dialect) ForUpdate() string { return " FOR UPDATE" }

func (Dialect) TimeArg(t time.Time) any { return t.UTC() }

func (Dialect) SerializeWrites() bool { return false }

func (Dialect) IsUniqueViolation(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	return sqlState(err) == codeForeignKeyViolation
}

func (Dialect) IsConflict(err error) bool {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

func sqlState(err error) pq.ErrorCode {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func (Dialect) Schema() string {
	return `
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('BANK', 'CASH', 'UPI', 'WALLET')),
		balance_minor BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_user_name
		ON wallets(user_id, LOWER(name));

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '#000000',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_user_name
		ON categories(user_id, LOWER(name));

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
		description TEXT NOT NULL,
		date DATE NOT NULL,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		category_id TEXT NOT NULL REFERENCES categories(id),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_user_date
		ON expenses(user_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_expenses_wallet
		ON expenses(wallet_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_category
		ON expenses(category_id);
	`
}
