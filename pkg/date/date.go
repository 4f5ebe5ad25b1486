package date

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Layout is the layout timestamps are rendered with when they are handed to SQL templates.
const Layout = "2006-01-02 15:04:05.000000"

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"02 Jan 2006 15:04:05Z07:00",
	"02 Jan 2006",
}

// ParseTime parses the textual timestamp forms warehouses and users produce: ISO-8601 with or without a zone, the
// Postgres/Redshift text output with a short "+00" offset, and plain dates.
func ParseTime(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.Errorf("invalid datetime format: '%s'", input)
}

// Format renders a timestamp in UTC with microsecond precision.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}
