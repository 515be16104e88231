package sqldb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warp/wallet-ledger/ledger"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// TimestampLayout is the fixed-width UTC layout used for timestamps stored
// as text, so lexical order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// dbTime scans DATE/TIMESTAMP columns whether the driver hands back a
// time.Time (PostgreSQL) or text (SQLite).
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into a time", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, ledger.DateLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

// dateArg encodes a calendar date. Both backends accept YYYY-MM-DD.
func dateArg(t time.Time) string {
	return ledger.DateOf(t).Format(ledger.DateLayout)
}

// RebindDollar rewrites '?' placeholders as $1, $2, ... skipping quoted
// literals.
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
