package xbrl

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateFormat selects how Record.Period renders the period end.
type DateFormat uint8

const (
	// DateOriginal renders M/D/YYYY without zero padding, the services' own
	// format.
	DateOriginal DateFormat = iota
	// DateCompact renders YYYYMMDD.
	DateCompact
	// DateStructured leaves Period empty; use Record.PeriodEnd.
	DateStructured
)

const (
	layoutOriginal = "1/2/2006"
	layoutCompact  = "20060102"
)

var isoDateRe = regexp.MustCompile(`[0-9]{4}-[0-9]{2}-[0-9]{2}`)

// ParseDateFormat accepts the names used by the surrounding client
// configuration.
func ParseDateFormat(s string) (DateFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string_original", "original":
		return DateOriginal, nil
	case "string_yyyymmdd", "yyyymmdd", "compact":
		return DateCompact, nil
	case "python_format", "structured", "time":
		return DateStructured, nil
	}
	return 0, fmt.Errorf("unknown date format %q", s)
}

func (f DateFormat) String() string {
	switch f {
	case DateOriginal:
		return "string_original"
	case DateCompact:
		return "string_yyyymmdd"
	case DateStructured:
		return "structured"
	default:
		return fmt.Sprintf("DateFormat(%d)", uint8(f))
	}
}

func (f DateFormat) render(t time.Time) string {
	switch f {
	case DateCompact:
		return t.Format(layoutCompact)
	case DateStructured:
		return ""
	default:
		return t.Format(layoutOriginal)
	}
}
