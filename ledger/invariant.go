package ledger

import "github.com/shopspring/decimal"

// CheckDebit decides whether debiting amount from w is permitted.
//
// Cash wallets have no floor. Every other type must keep balance >= 0, so the
// debit is allowed iff w.Balance >= amount. The caller must pass the balance
// it read inside the same transaction that will write the new balance.
func CheckDebit(w Wallet, amount decimal.Decimal) error {
	if !w.Type.HasFloor() {
		return nil
	}
	if w.Balance.GreaterThanOrEqual(amount) {
		return nil
	}
	return &InsufficientFundsError{
		WalletID:   w.ID,
		WalletName: w.Name,
		Available:  w.Balance,
		Required:   amount,
	}
}
