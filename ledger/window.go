package ledger

import (
	"fmt"
	"strings"
	"time"
)

// StartOfMonth returns the first calendar day of now's month.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns the most recent occurrence of weekStart on or before
// now's calendar date.
func StartOfWeek(now time.Time, weekStart time.Weekday) time.Time {
	today := DateOf(now)
	back := (int(today.Weekday()) - int(weekStart) + 7) % 7
	return today.AddDate(0, 0, -back)
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
