package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-ledger/ledger"
	"github.com/warp/wallet-ledger/ledger/store"
)

// =============================================================================
// STALE READS
// =============================================================================
//
// staleStore models a READ COMMITTED transaction whose plain reads were taken
// before a concurrent commit: GetExpense and GetWallet serve pinned copies,
// while the locking reads see the current rows.

type staleStore struct {
	*store.Memory
	expenses map[ledger.ExpenseID]ledger.Expense
	wallets  map[ledger.WalletID]ledger.Wallet
}

func newStaleStore(mem *store.Memory) *staleStore {
	return &staleStore{
		Memory:   mem,
		expenses: map[ledger.ExpenseID]ledger.Expense{},
		wallets:  map[ledger.WalletID]ledger.Wallet{},
	}
}

func (s *staleStore) pinExpense(e ledger.Expense) { s.expenses[e.ID] = e }
func (s *staleStore) pinWallet(w ledger.Wallet)   { s.wallets[w.ID] = w }

func (s *staleStore) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	return s.Memory.WithTx(ctx, func(tx ledger.Tx) error {
		return fn(staleTx{Tx: tx, s: s})
	})
}

type staleTx struct {
	ledger.Tx
	s *staleStore
}

func (t staleTx) GetExpense(ctx context.Context, userID ledger.UserID, id ledger.ExpenseID) (*ledger.Expense, error) {
	if e, ok := t.s.expenses[id]; ok {
		return &e, nil
	}
	return t.Tx.GetExpense(ctx, userID, id)
}

func (t staleTx) GetWallet(ctx context.Context, userID ledger.UserID, id ledger.WalletID) (*ledger.Wallet, error) {
	if w, ok := t.s.wallets[id]; ok {
		return &w, nil
	}
	return t.Tx.GetWallet(ctx, userID, id)
}

func TestReviseExpense_StaleRead_Transfer(t *testing.T) {
	// GIVEN: An expense of 100 on A, moved to B by one transaction
	// WHEN: A second transaction that read the expense while it was still
	//       on A moves it to C
	// THEN: A is refunded once; B is refunded; only C holds the debit

	tl := newTestLedger(t)
	ctx := context.Background()
	a := tl.wallet(t, "Account A", ledger.WalletBank, "1000")
	b := tl.wallet(t, "Account B", ledger.WalletBank, "1000")
	c := tl.wallet(t, "Account C", ledger.WalletBank, "1000")
	e := tl.post(t, a, tl.category(t, "Food"), "100")

	stale := newStaleStore(tl.store)
	stale.pinExpense(*e)
	late := ledger.NewEngine(stale)

	_, err := tl.engine.ReviseExpense(ctx, tl.user, e.ID, ledger.ExpensePatch{WalletID: &b.ID})
	require.NoError(t, err)
	_, err = late.ReviseExpense(ctx, tl.user, e.ID, ledger.ExpensePatch{WalletID: &c.ID})
	require.NoError(t, err)

	assertBalance(t, tl, a.ID, "1000")
	assertBalance(t, tl, b.ID, "1000")
	assertBalance(t, tl, c.ID, "900")
	stored, err := tl.store.GetExpense(ctx, tl.user, e.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.WalletID)
}

func TestReviseExpense_StaleRead_SameWallet(t *testing.T) {
	// GIVEN: An expense of 100 revised to 200
	// WHEN: A transaction that read the amount as 100 revises it to 300
	// THEN: The wallet carries exactly 300 of debits

	tl := newTestLedger(t)
	ctx := context.Background()
	bank := tl.wallet(t, "Bank", ledger.WalletBank, "1000")
	e := tl.post(t, bank, tl.category(t, "Food"), "100")

	stale := newStaleStore(tl.store)
	stale.pinExpense(*e)
	late := ledger.NewEngine(stale)

	first, second := dec("200"), dec("300")
	_, err := tl.engine.ReviseExpense(ctx, tl.user, e.ID, ledger.ExpensePatch{Amount: &first})
	require.NoError(t, err)
	_, err = late.ReviseExpense(ctx, tl.user, e.ID, ledger.ExpensePatch{Amount: &second})
	require.NoError(t, err)

	assertBalance(t, tl, bank.ID, "700")
}

func TestVoidExpense_StaleRead(t *testing.T) {
	// GIVEN: An expense of 100 moved from A to B
	// WHEN: A transaction that read it on A voids it
	// THEN: B gets the refund, A is untouched

	tl := newTestLedger(t)
	ctx := context.Background()
	a := tl.wallet(t, "Account A", ledger.WalletBank, "1000")
	b := tl.wallet(t, "Account B", ledger.WalletBank, "1000")
	e := tl.post(t, a, tl.category(t, "Food"), "100")

	stale := newStaleStore(tl.store)
	stale.pinExpense(*e)

	_, err := tl.engine.ReviseExpense(ctx, tl.user, e.ID, ledger.ExpensePatch{WalletID: &b.ID})
	require.NoError(t, err)
	res, err := ledger.NewEngine(stale).VoidExpense(ctx, tl.user, e.ID)
	require.NoError(t, err)

	assert.Equal(t, b.ID, res.WalletID)
	assertBalance(t, tl, a.ID, "1000")
	assertBalance(t, tl, b.ID, "1000")
}

func TestDeleteWallet_StaleCount_InUse(t *testing.T) {
	// GIVEN: A wallet whose expense count was read as zero before an
	//        expense was posted against it
	// WHEN: Deleting it
	// THEN: The store refuses and the caller gets an InUseError

	tl := newTestLedger(t)
	ctx := context.Background()
	bank := tl.wallet(t, "Bank", ledger.WalletBank, "1000")
	food := tl.category(t, "Food")

	stale := newStaleStore(tl.store)
	stale.pinWallet(*bank)
	tl.post(t, bank, food, "10")

	_, err := ledger.NewCatalog(stale).DeleteWallet(ctx, tl.user, bank.ID)

	var inUse *ledger.InUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "Bank", inUse.Name)
	w, err := tl.catalog.GetWallet(ctx, tl.user, bank.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, w.ExpenseCount)
}
