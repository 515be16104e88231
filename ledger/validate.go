package ledger

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Length bounds shared with the HTTP input validator.
const (
	DescriptionMinLen         = 2
	DescriptionMaxLen         = 100
	WalletNameMinLen          = 2
	WalletNameMaxLen          = 50
	CategoryNameMinLen        = 2
	CategoryNameMaxLen        = 30
	CategoryDescriptionMaxLen = 100
)

var hexColor = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

func validateUser(userID UserID) error {
	if strings.TrimSpace(string(userID)) == "" {
		return invalid("userId", "is required")
	}
	return nil
}

func validateRef(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid(field, "is required")
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than 0")
	}
	if !HasMinorPrecision(amount) {
		return invalid("amount", "must have at most %d decimal places", MinorUnits)
	}
	return nil
}

func validateDate(d time.Time) error {
	if d.IsZero() {
		return invalid("date", "is required")
	}
	return nil
}

func validateLength(field, s string, min, max int) error {
	n := utf8.RuneCountInString(s)
	if n < min {
		return invalid(field, "must be at least %d characters long", min)
	}
	if n > max {
		return invalid(field, "must not exceed %d characters", max)
	}
	return nil
}

// normalizeColor upper-cases a hex color, defaulting to black.
func normalizeColor(c string) (string, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultCategoryColor, nil
	}
	if !hexColor.MatchString(c) {
		return "", invalid("color", "must be a valid hex color code (e.g. #FF6B35 or #F63)")
	}
	return strings.ToUpper(c), nil
}
