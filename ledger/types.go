/*
Package ledger provides the expense/wallet bookkeeping engine.

PURPOSE:
  Keeps every wallet's balance an accurate reflection of the expenses posted
  against it. Wallet.Balance is a denormalized aggregate: it is only ever
  changed by the three ledger operations (post, revise, void), each of which
  runs as one store transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Wallet: a named money container with a type-specific balance floor
  - Category: a user-defined label for expenses
  - Expense: a posted debit against exactly one wallet and one category
  - Money helpers: decimal <-> minor unit conversion

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, persisted as integer minor units
  2. Tenant scoping: every entity carries its UserID and every lookup filters on it
  3. Derived balance: Wallet.Balance = opening balance - sum(posted expenses)

SEE ALSO:
  - invariant.go: Balance floor policy
  - engine.go: Post/Revise/Void operations
  - aggregate.go: Read-only summary statistics
  - store.go: Persistence interface
*/
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type WalletID string
type CategoryID string
type ExpenseID string

// =============================================================================
// WALLET
// =============================================================================

type WalletType string

const (
	WalletBank   WalletType = "BANK"
	WalletCash   WalletType = "CASH"
	WalletUPI    WalletType = "UPI"
	WalletWallet WalletType = "WALLET"
)

// WalletTypes lists the supported wallet types in display order.
var WalletTypes = []WalletType{WalletBank, WalletCash, WalletUPI, WalletWallet}

// ParseWalletType accepts a wallet type in any letter case.
func ParseWalletType(s string) (WalletType, bool) {
	t := WalletType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range WalletTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// HasFloor reports whether balances of this type must stay non-negative.
// Cash wallets may go negative (an IOU / float).
func (t WalletType) HasFloor() bool { return t != WalletCash }

type Wallet struct {
	ID        WalletID
	UserID    UserID
	Name      string
	Type      WalletType
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time

	// ExpenseCount is populated by reads; it is never written.
	ExpenseCount int
}

// WalletRef is the wallet summary joined onto an expense.
type WalletRef struct {
	ID   WalletID
	Name string
	Type WalletType
}

// =============================================================================
// CATEGORY
// =============================================================================

const DefaultCategoryColor = "#000000"

type Category struct {
	ID          CategoryID
	UserID      UserID
	Name        string
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	ExpenseCount int
}

// CategoryRef is the category summary joined onto an expense.
type CategoryRef struct {
	ID    CategoryID
	Name  string
	Color string
}

// =============================================================================
// EXPENSE
// =============================================================================

type Expense struct {
	ID          ExpenseID
	UserID      UserID
	Amount      decimal.Decimal
	Description string
	Date        time.Time // calendar date, UTC midnight
	WalletID    WalletID
	CategoryID  CategoryID
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Joined on read.
	Wallet   WalletRef
	Category CategoryRef
}

// =============================================================================
// MONEY
// =============================================================================

// MinorUnits is the number of decimal places persisted for money.
const MinorUnits = 2

// ToMinor converts a decimal amount into integer minor units.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(MinorUnits).Round(0).IntPart()
}

// FromMinor converts integer minor units back into a decimal amount.
func FromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -MinorUnits)
}

// HasMinorPrecision reports whether d can be stored without rounding.
func HasMinorPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(MinorUnits))
}

// =============================================================================
// DATES
// =============================================================================

const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date (UTC midnight), keeping the
// year/month/day as seen in t's own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}
