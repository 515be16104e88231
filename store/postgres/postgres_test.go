package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_ErrorClassification(t *testing.T) {
	d := Dialect{}
	wrapped := func(code pq.ErrorCode) error {
		return fmt.Errorf("failed to insert wallet: %w", &pq.Error{Code: code})
	}

	assert.True(t, d.IsUniqueViolation(wrapped("23505")))
	assert.False(t, d.IsUniqueViolation(wrapped("23503")))
	assert.True(t, d.IsForeignKeyViolation(wrapped("23503")))
	assert.False(t, d.IsForeignKeyViolation(wrapped("23505")))

	assert.True(t, d.IsConflict(wrapped("40001")))
	assert.True(t, d.IsConflict(wrapped("40P01")))
	assert.True(t, d.IsConflict(wrapped("55P03")))
	assert.False(t, d.IsConflict(wrapped("23505")))
	assert.False(t, d.IsConflict(fmt.Errorf("plain error")))
}

func TestDialect_Rebind(t *testing.T) {
	got := Dialect{}.Rebind(`SELECT id FROM wallets w WHERE w.user_id = ? AND w.id = ?` + Dialect{}.ForUpdate())

	assert.Equal(t, `SELECT id FROM wallets w WHERE w.user_id = $1 AND w.id = $2 FOR UPDATE`, got)
}

// TestNew_Live runs against a real server when LEDGER_TEST_POSTGRES_DSN is set.
func TestNew_Live(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	store, err := New(ctx, dsn, Options{MaxOpenConns: 4})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Reset(ctx))
	require.NoError(t, store.Ping(ctx))
}
