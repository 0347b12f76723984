package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Coercion rewrites one REST value into its legacy representation. Every
// coercion returns a string and is idempotent on its own output.
type Coercion func(v any) string

// DateTimeLayout is the legacy timestamp form, e.g. "12/31/2023 11:59:59 PM".
const DateTimeLayout = "1/2/2006 3:04:05 PM"

const postalCodeLen = 5

// number matches both json.Number flavours a REST body may be decoded with.
type number interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// numeric renders v as a plain decimal string. ok is false for non-numeric v.
func numeric(v any) (s string, zero bool, ok bool) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), n == 0, true
	case int8:
		return strconv.FormatInt(int64(n), 10), n == 0, true
	case int16:
		return strconv.FormatInt(int64(n), 10), n == 0, true
	case int32:
		return strconv.FormatInt(int64(n), 10), n == 0, true
	case int64:
		return strconv.FormatInt(n, 10), n == 0, true
	case uint:
		return strconv.FormatUint(uint64(n), 10), n == 0, true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), n == 0, true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), n == 0, true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), n == 0, true
	case uint64:
		return strconv.FormatUint(n, 10), n == 0, true
	case float32:
		return formatFloat(float64(n)), n == 0, true
	case float64:
		return formatFloat(n), n == 0, true
	case number:
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), i == 0, true
		}
		if f, err := n.Float64(); err == nil {
			return formatFloat(f), f == 0, true
		}
		return n.String(), false, true
	}
	return "", false, false
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Identifier renders ids, certificate and routing numbers as digit strings.
// Absent and zero numeric values become "".
func Identifier(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if s, zero, ok := numeric(v); ok {
		if zero {
			return ""
		}
		return s
	}
	return fmt.Sprint(v)
}

// PostalCode left-pads numeric codes shorter than five digits with zeros.
// Non-numeric strings pass through trimmed.
func PostalCode(v any) string {
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		if s, _, ok = numeric(v); !ok {
			return fmt.Sprint(v)
		}
	}
	s = strings.TrimSpace(s)
	if isDigits(s) && len(s) < postalCodeLen {
		return strings.Repeat("0", postalCodeLen-len(s)) + s
	}
	return s
}

// Bool renders flags as "true" or "false". Absent values are "false".
func Bool(v any) string {
	switch b := v.(type) {
	case nil:
		return "false"
	case bool:
		return strconv.FormatBool(b)
	case string:
		s := strings.TrimSpace(b)
		if parsed, err := strconv.ParseBool(s); err == nil {
			return strconv.FormatBool(parsed)
		}
		return strings.ToLower(s)
	}
	if _, zero, ok := numeric(v); ok {
		return strconv.FormatBool(!zero)
	}
	return strings.ToLower(fmt.Sprint(v))
}

// DateTime renders timestamps as M/D/YYYY h:mm:ss AM|PM. Strings pass
// through trimmed.
func DateTime(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(DateTimeLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(DateTimeLayout)
	}
	return fmt.Sprint(v)
}

// Text renders free-text fields, with absent values as "".
func Text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, _, ok := numeric(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

// DateString renders reporting period dates. Strings pass through trimmed;
// anything not shaped M/D/YYYY is reported by validation.
func DateString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format("1/2/2006")
	}
	return fmt.Sprint(v)
}
