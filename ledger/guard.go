package ledger

import (
	"context"
	"fmt"
)

// findOwned is the single ownership-checked lookup. Stores return (nil, nil)
// for rows that are missing or belong to another user; both become a
// NotFoundError here.
func findOwned[T any](kind, id string, load func() (*T, error)) (*T, error) {
	v, err := load()
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", lower(kind), id, err)
	}
	if v == nil {
		return nil, &NotFoundError{Kind: kind, ID: id}
	}
	return v, nil
}

func findWallet(ctx context.Context, r Reader, userID UserID, id WalletID) (*Wallet, error) {
	return findOwned(KindWallet, string(id), func() (*Wallet, error) {
		return r.GetWallet(ctx, userID, id)
	})
}

func lockWallet(ctx context.Context, tx Tx, userID UserID, id WalletID) (*Wallet, error) {
	return findOwned(KindWallet, string(id), func() (*Wallet, error) {
		return tx.LockWallet(ctx, userID, id)
	})
}

func findCategory(ctx context.Context, r Reader, userID UserID, id CategoryID) (*Category, error) {
	return findOwned(KindCategory, string(id), func() (*Category, error) {
		return r.GetCategory(ctx, userID, id)
	})
}

func findExpense(ctx context.Context, r Reader, userID UserID, id ExpenseID) (*Expense, error) {
	return findOwned(KindExpense, string(id), func() (*Expense, error) {
		return r.GetExpense(ctx, userID, id)
	})
}

func lockExpense(ctx context.Context, tx Tx, userID UserID, id ExpenseID) (*Expense, error) {
	return findOwned(KindExpense, string(id), func() (*Expense, error) {
		return tx.LockExpense(ctx, userID, id)
	})
}
