/*
Package sqldb provides a database/sql implementation of ledger.Store shared by
the SQLite and PostgreSQL backends.

PURPOSE:
  Holds every query the ledger needs, written once with '?' placeholders.
  A Dialect supplies the few places where the backends differ: placeholder
  syntax, row locking, timestamp encoding, DDL, and driver error codes.

KEY TABLES:
  wallets:    One row per wallet, balance_minor is the denormalized balance
  categories: User-defined expense labels
  expenses:   Posted debits, FK to wallets and categories

MONEY:
  Amounts are BIGINT minor units (cents/paise) so SUMs are exact in both
  backends. Dates are YYYY-MM-DD calendar dates.

INDEXES:
  - idx_wallets_user_name / idx_categories_user_name: case-insensitive
    uniqueness of names per user (UNIQUE on LOWER(name))
  - idx_expenses_user_date: listing and window totals (hot path)
  - idx_expenses_wallet / idx_expenses_category: breakdowns and in-use checks

CONCURRENCY:
  LockWallet reads the wallet with the dialect's row lock (SELECT ... FOR
  UPDATE on PostgreSQL). SQLite has no row locks: its dialect asks for
  serialized writes, so WithTx holds a process-wide mutex and the connection
  opens transactions with BEGIN IMMEDIATE. Lost races surface as
  ledger.ErrConflict.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/sqlite, store/postgres: Dialects and constructors
*/
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/warp/wallet-ledger/ledger"
)

// Dialect captures what differs between SQL backends.
type Dialect interface {
	// Name identifies the backend in logs ("sqlite", "postgres").
	Name() string
	// Rebind rewrites '?' placeholders into the backend's syntax.
	Rebind(query string) string
	// ForUpdate is appended to a single-row SELECT to lock that row.
	ForUpdate() string
	// TimeArg encodes a timestamp for a created_at/updated_at column.
	TimeArg(t time.Time) any
	// Schema is the idempotent DDL for all tables and indexes.
	Schema() string
	IsUniqueViolation(err error) bool
	// IsForeignKeyViolation reports a delete blocked by referencing rows.
	IsForeignKeyViolation(err error) bool
	// IsConflict reports lock timeouts, serialization failures and
	// deadlocks: errors after which the whole transaction may be retried.
	IsConflict(err error) bool
	// SerializeWrites makes WithTx take a process-wide lock.
	SerializeWrites() bool
}

// Store implements ledger.Store over a *sql.DB.
type Store struct {
	reader
	db *sql.DB
	mu sync.Mutex
}

var _ ledger.Store = (*Store)(nil)

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{reader: reader{q: db, d: dialect}, db: db}
}

// DB exposes the underlying pool (health checks, tests).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.d }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.Schema()); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", s.d.Name(), err)
	}
	return nil
}

// WithTx executes fn within a database transaction. The transaction is
// committed if fn returns nil and rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	if s.d.SerializeWrites() {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{reader: reader{q: sqlTx, d: s.d}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return s.wrap("commit transaction", err)
	}
	return nil
}

// Reset deletes every row. Intended for tests and local resets.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		ts := tx.(*txStore)
		for _, table := range []string{"expenses", "categories", "wallets"} {
			if _, err := ts.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// wrap annotates a driver error, mapping retryable failures onto
// ledger.ErrConflict.
func (r reader) wrap(op string, err error) error {
	if r.d.IsConflict(err) {
		return fmt.Errorf("%s: %w: %v", op, ledger.ErrConflict, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
