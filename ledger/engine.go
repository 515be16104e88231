/*
engine.go - Ledger Engine: the only writer of wallet balances

OPERATIONS:
  PostExpense   absent  -> posted    debit amount from the wallet
  ReviseExpense posted  -> posted    re-amount and/or move between wallets
  VoidExpense   posted  -> absent    credit amount back, delete the row

ATOMICITY:
  Each operation is one Store.WithTx call. The wallet is loaded with
  LockWallet inside the transaction, checked with CheckDebit, and written in
  the same transaction, so a concurrent debit on the same wallet either waits
  for the lock or fails the transaction with ErrConflict. No expense row is
  ever visible without its balance adjustment, and vice versa.

TRANSFERS:
  Moving an expense to another wallet credits the old wallet with the old
  amount and debits the new wallet with the new amount. Both wallets are
  locked in ascending id order. If the new wallet cannot cover the debit the
  whole revision is rolled back; there is no fallback to the old wallet.

VOID IS SAFE TO RETRY:
  The credit and the row delete commit together, so voiding the same id twice
  yields NotFound the second time instead of a second refund.

SEE ALSO:
  - invariant.go: CheckDebit
  - guard.go: Ownership-checked lookups
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Engine orchestrates the balance-affecting expense operations.
type Engine struct {
	options
	store Store
}

func NewEngine(store Store, opts ...Option) *Engine {
	return &Engine{options: buildOptions(opts), store: store}
}

// PostExpense is the input of Engine.PostExpense.
type PostExpense struct {
	WalletID    WalletID
	CategoryID  CategoryID
	Amount      decimal.Decimal
	Description string
	Date        time.Time
}

// ExpensePatch lists the fields to change; nil means unchanged.
type ExpensePatch struct {
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
	WalletID    *WalletID
	CategoryID  *CategoryID
}

// VoidResult confirms a voided expense.
type VoidResult struct {
	ID          ExpenseID
	Description string
	WalletID    WalletID
	Refunded    decimal.Decimal
}

func (r VoidResult) Message() string {
	return fmt.Sprintf("Expense %q has been deleted and wallet balance has been restored", r.Description)
}

// =============================================================================
// POST
// =============================================================================

// PostExpense inserts an expense and debits its wallet in one transaction.
func (e *Engine) PostExpense(ctx context.Context, userID UserID, in PostExpense) (exp *Expense, err error) {
	start := time.Now()
	defer func() { e.metrics.observe("post", start, err) }()

	in.Description = strings.TrimSpace(in.Description)
	if err := validatePost(userID, in); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	row := Expense{
		ID:          ExpenseID(e.newID()),
		UserID:      userID,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        DateOf(in.Date),
		WalletID:    in.WalletID,
		CategoryID:  in.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = e.store.WithTx(ctx, func(tx Tx) error {
		wallet, err := lockWallet(ctx, tx, userID, in.WalletID)
		if err != nil {
			return err
		}
		if _, err := findCategory(ctx, tx, userID, in.CategoryID); err != nil {
			return err
		}
		if err := CheckDebit(*wallet, in.Amount); err != nil {
			return err
		}
		if err := tx.InsertExpense(ctx, row); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		if err := tx.AdjustWalletBalance(ctx, userID, wallet.ID, in.Amount.Neg(), now); err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		exp, err = findExpense(ctx, tx, userID, row.ID)
		return err
	})
	if err != nil {
		e.logFailure(ctx, "post", userID, err)
		return nil, err
	}

	e.logger.DebugContext(ctx, "expense posted",
		"user_id", userID, "expense_id", exp.ID, "wallet_id", exp.WalletID,
		"amount", exp.Amount.StringFixed(MinorUnits))
	return exp, nil
}

func validatePost(userID UserID, in PostExpense) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := validateRef("walletId", string(in.WalletID)); err != nil {
		return err
	}
	if err := validateRef("categoryId", string(in.CategoryID)); err != nil {
		return err
	}
	if err := validateAmount(in.Amount); err != nil {
		return err
	}
	if err := validateLength("description", in.Description, DescriptionMinLen, DescriptionMaxLen); err != nil {
		return err
	}
	return validateDate(in.Date)
}

// =============================================================================
// REVISE
// =============================================================================

// ReviseExpense applies patch to an expense and re-balances the affected
// wallet(s) in one transaction.
func (e *Engine) ReviseExpense(ctx context.Context, userID UserID, id ExpenseID, patch ExpensePatch) (exp *Expense, err error) {
	start := time.Now()
	defer func() { e.metrics.observe("revise", start, err) }()

	if patch.Description != nil {
		d := strings.TrimSpace(*patch.Description)
		patch.Description = &d
	}
	if err := validatePatch(userID, id, patch); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	err = e.store.WithTx(ctx, func(tx Tx) error {
		existing, err := lockExpense(ctx, tx, userID, id)
		if err != nil {
			return err
		}

		updated := *existing
		if patch.CategoryID != nil && *patch.CategoryID != existing.CategoryID {
			if _, err := findCategory(ctx, tx, userID, *patch.CategoryID); err != nil {
				return err
			}
			updated.CategoryID = *patch.CategoryID
		}
		if patch.WalletID != nil {
			updated.WalletID = *patch.WalletID
		}
		if patch.Amount != nil {
			updated.Amount = *patch.Amount
		}
		if patch.Description != nil {
			updated.Description = *patch.Description
		}
		if patch.Date != nil {
			updated.Date = DateOf(*patch.Date)
		}
		updated.UpdatedAt = now

		if updated.WalletID == existing.WalletID {
			err = e.rebalance(ctx, tx, userID, existing.WalletID, existing.Amount, updated.Amount, now)
		} else {
			err = e.transfer(ctx, tx, userID, *existing, updated, now)
		}
		if err != nil {
			return err
		}

		if err := tx.UpdateExpense(ctx, updated); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		exp, err = findExpense(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		e.logFailure(ctx, "revise", userID, err)
		return nil, err
	}

	e.logger.DebugContext(ctx, "expense revised",
		"user_id", userID, "expense_id", exp.ID, "wallet_id", exp.WalletID,
		"amount", exp.Amount.StringFixed(MinorUnits))
	return exp, nil
}

// rebalance debits the net difference from a single wallet. A negative
// difference is a credit and is never checked.
func (e *Engine) rebalance(ctx context.Context, tx Tx, userID UserID, walletID WalletID, oldAmount, newAmount decimal.Decimal, now time.Time) error {
	delta := newAmount.Sub(oldAmount)
	if delta.IsZero() {
		return nil
	}
	wallet, err := lockWallet(ctx, tx, userID, walletID)
	if err != nil {
		return err
	}
	if delta.IsPositive() {
		if err := CheckDebit(*wallet, delta); err != nil {
			return err
		}
	}
	if err := tx.AdjustWalletBalance(ctx, userID, walletID, delta.Neg(), now); err != nil {
		return fmt.Errorf("adjust wallet: %w", err)
	}
	return nil
}

// transfer credits the old wallet and debits the new one.
func (e *Engine) transfer(ctx context.Context, tx Tx, userID UserID, before, after Expense, now time.Time) error {
	from, to, err := lockPair(ctx, tx, userID, before.WalletID, after.WalletID)
	if err != nil {
		return err
	}
	if err := CheckDebit(*to, after.Amount); err != nil {
		return err
	}
	if err := tx.AdjustWalletBalance(ctx, userID, from.ID, before.Amount, now); err != nil {
		return fmt.Errorf("credit old wallet: %w", err)
	}
	if err := tx.AdjustWalletBalance(ctx, userID, to.ID, after.Amount.Neg(), now); err != nil {
		return fmt.Errorf("debit new wallet: %w", err)
	}
	return nil
}

// lockPair locks two distinct wallets in ascending id order so two opposite
// transfers cannot deadlock. It returns them in argument order.
func lockPair(ctx context.Context, tx Tx, userID UserID, a, b WalletID) (*Wallet, *Wallet, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	w1, err := lockWallet(ctx, tx, userID, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := lockWallet(ctx, tx, userID, second)
	if err != nil {
		return nil, nil, err
	}
	if w1.ID == a {
		return w1, w2, nil
	}
	return w2, w1, nil
}

func validatePatch(userID UserID, id ExpenseID, p ExpensePatch) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := validateRef("id", string(id)); err != nil {
		return err
	}
	if p.Amount != nil {
		if err := validateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateLength("description", *p.Description, DescriptionMinLen, DescriptionMaxLen); err != nil {
			return err
		}
	}
	if p.Date != nil {
		if err := validateDate(*p.Date); err != nil {
			return err
		}
	}
	if p.WalletID != nil {
		if err := validateRef("walletId", string(*p.WalletID)); err != nil {
			return err
		}
	}
	if p.CategoryID != nil {
		if err := validateRef("categoryId", string(*p.CategoryID)); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// VOID
// =============================================================================

// VoidExpense credits the expense amount back to its wallet and deletes the
// expense in one transaction.
func (e *Engine) VoidExpense(ctx context.Context, userID UserID, id ExpenseID) (res *VoidResult, err error) {
	start := time.Now()
	defer func() { e.metrics.observe("void", start, err) }()

	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if err := validateRef("id", string(id)); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	err = e.store.WithTx(ctx, func(tx Tx) error {
		existing, err := lockExpense(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		wallet, err := lockWallet(ctx, tx, userID, existing.WalletID)
		if err != nil {
			return err
		}
		if err := tx.AdjustWalletBalance(ctx, userID, wallet.ID, existing.Amount, now); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		deleted, err := tx.DeleteExpense(ctx, userID, id)
		if err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		if !deleted {
			return &NotFoundError{Kind: KindExpense, ID: string(id)}
		}
		res = &VoidResult{
			ID:          existing.ID,
			Description: existing.Description,
			WalletID:    existing.WalletID,
			Refunded:    existing.Amount,
		}
		return nil
	})
	if err != nil {
		e.logFailure(ctx, "void", userID, err)
		return nil, err
	}

	e.logger.DebugContext(ctx, "expense voided",
		"user_id", userID, "expense_id", res.ID, "wallet_id", res.WalletID,
		"refunded", res.Refunded.StringFixed(MinorUnits))
	return res, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) GetExpense(ctx context.Context, userID UserID, id ExpenseID) (*Expense, error) {
	return findExpense(ctx, e.store, userID, id)
}

// ListExpenses returns one page of the user's expenses matching q.
func (e *Engine) ListExpenses(ctx context.Context, userID UserID, q ExpenseQuery) (*ExpensePage, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	rows, total, err := e.store.ListExpenses(ctx, userID, q)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if rows == nil {
		rows = []Expense{}
	}
	return &ExpensePage{Expenses: rows, Pagination: NewPagination(total, q.Page, q.Limit)}, nil
}

// =============================================================================
// LOGGING
// =============================================================================

func (e *Engine) logFailure(ctx context.Context, op string, userID UserID, err error) {
	var insufficient *InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		e.logger.InfoContext(ctx, "expense rejected",
			"op", op, "user_id", userID, "wallet", insufficient.WalletName,
			"available", insufficient.Available.StringFixed(MinorUnits),
			"required", insufficient.Required.StringFixed(MinorUnits))
	case IsRetryable(err):
		e.logger.WarnContext(ctx, "expense transaction conflict", "op", op, "user_id", userID, "error", err)
	case IsNotFound(err), IsClientError(err):
		e.logger.DebugContext(ctx, "expense rejected", "op", op, "user_id", userID, "error", err)
	default:
		e.logger.ErrorContext(ctx, "expense operation failed", "op", op, "user_id", userID, "error", err)
	}
}
