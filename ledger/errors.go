/*
errors.go - Centralized error types for the ledger

ERROR CATEGORIES:
  1. Lookup errors     - NotFound (missing or owned by another user)
  2. Invariant errors  - InsufficientFunds (non-cash balance floor)
  3. Concurrency       - Conflict (transaction lost a race, safe to retry)
  4. Input errors      - Validation, DuplicateName, InUse

USAGE:
  Callers branch with errors.Is on the sentinels, or errors.As on the
  structured types when they need the figures:

    var insufficient *ledger.InsufficientFundsError
    if errors.As(err, &insufficient) {
        render(insufficient.Available, insufficient.Required)
    }

SEE ALSO:
  - invariant.go: Produces InsufficientFundsError
  - guard.go: Produces NotFoundError
  - store/sqldb: Maps driver errors onto ErrConflict / DuplicateNameError
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a wallet, category or expense does not
	// exist or belongs to a different user.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds is returned when a debit would take a non-cash
	// wallet below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict is returned when a concurrent mutation made the transaction
	// fail at commit time. The whole operation may be retried.
	ErrConflict = errors.New("concurrent modification")

	// ErrValidation is returned for malformed input that reached the engine.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateName is returned when a wallet or category name is already
	// used by the same user (case-insensitive).
	ErrDuplicateName = errors.New("duplicate name")

	// ErrInUse is returned when deleting a wallet or category that still owns
	// expenses.
	ErrInUse = errors.New("still referenced by expenses")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Entity kinds used in error messages.
const (
	KindWallet   = "Wallet"
	KindCategory = "Category"
	KindExpense  = "Expense"
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Kind)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientFundsError carries both figures so callers can render a
// precise message without re-reading the wallet.
type InsufficientFundsError struct {
	WalletID   WalletID
	WalletName string
	Available  decimal.Decimal
	Required   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance in %s: available %s, required %s",
		e.WalletName, e.Available.StringFixed(MinorUnits), e.Required.StringFixed(MinorUnits))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type DuplicateNameError struct {
	Kind string
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("you already have a %s named %q", lower(e.Kind), e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

type InUseError struct {
	Kind     string
	Name     string
	Expenses int
}

func (e *InUseError) Error() string {
	if e.Expenses <= 0 {
		return fmt.Sprintf("cannot delete %s %q because it has expenses; delete the expenses first",
			lower(e.Kind), e.Name)
	}
	return fmt.Sprintf("cannot delete %s %q because it has %d expense(s); delete the expenses first",
		lower(e.Kind), e.Name, e.Expenses)
}

func (e *InUseError) Unwrap() error { return ErrInUse }

func lower(kind string) string {
	switch kind {
	case KindWallet:
		return "wallet"
	case KindCategory:
		return "category"
	case KindExpense:
		return "expense"
	}
	return kind
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to the caller's input or the
// current state of their data.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrInUse)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
