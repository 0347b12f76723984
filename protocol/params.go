package protocol

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// PeriodLayout is the M/D/YYYY form both services use for dates.
	PeriodLayout = "1/2/2006"

	maxInstitutionID = 99999999
)

var quarterRe = regexp.MustCompile(`^([1-4])Q(\d{4})$`)

// ValidateInstitutionID returns the trimmed RSSD id, which must be a positive
// integer of at most eight digits.
func ValidateInstitutionID(id string) (string, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return "", &ValidationError{Field: "institution_id", Value: id, Expected: "non-empty numeric RSSD id"}
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", &ValidationError{Field: "institution_id", Value: id, Expected: "numeric RSSD id"}
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n < 1 || n > maxInstitutionID {
		return "", &ValidationError{Field: "institution_id", Value: id, Expected: "RSSD id between 1 and 99999999"}
	}
	return strconv.FormatUint(n, 10), nil
}

// ParseDate accepts YYYY-MM-DD, YYYYMMDD or M/D/YYYY.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var layout string
	switch {
	case strings.Count(s, "-") == 2:
		layout = "2006-01-02"
	case strings.Count(s, "/") == 2:
		layout = PeriodLayout
	case len(s) == 8:
		layout = "20060102"
	default:
		return time.Time{}, &ValidationError{Field: "date", Value: s, Expected: "YYYY-MM-DD, YYYYMMDD or M/D/YYYY"}
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Value: s, Expected: "a calendar date as " + layout}
	}
	return t, nil
}

// ParsePeriod accepts the ParseDate forms or #QYYYY and requires a quarter
// end date.
func ParsePeriod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if m := quarterRe.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		// Day 0 of the month after the quarter is its last day.
		return time.Date(year, time.Month(q*3+1), 0, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "reporting_period", Value: s, Expected: "#QYYYY, YYYY-MM-DD, YYYYMMDD or M/D/YYYY"}
	}
	if !IsQuarterEnd(t) {
		return time.Time{}, &ValidationError{Field: "reporting_period", Value: s, Expected: "a quarter end date (3/31, 6/30, 9/30 or 12/31)"}
	}
	return t, nil
}

// FormatPeriod renders a period the way both services expect it.
func FormatPeriod(s string) (string, error) {
	t, err := ParsePeriod(s)
	if err != nil {
		return "", err
	}
	return t.Format(PeriodLayout), nil
}

// FormatDate renders any accepted date as M/D/YYYY.
func FormatDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(PeriodLayout), nil
}

func IsQuarterEnd(t time.Time) bool {
	switch t.Month() {
	case time.March, time.December:
		return t.Day() == 31
	case time.June, time.September:
		return t.Day() == 30
	}
	return false
}

// QuarterStart returns the first day of the quarter containing t, as
// MM/DD/YYYY.
func QuarterStart(t time.Time) string {
	month := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC).Format("01/02/2006")
}
