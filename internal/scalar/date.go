package scalar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Dates accepted by ParseDate and the date part of ParseTimestamp.
var datePattern = regexp.MustCompile(`^([-+]?\d*\d{4})-(\d+)-(\d+)$`)

// Date is a calendar date with an unrestricted signed year.
type Date struct {
	Year  int64
	Month int
	Day   int
}

// NewDate validates and builds a Date.
func NewDate(year int64, month, day int) (Date, error) {
	if reason := validateDate(year, month, day); reason != "" {
		return Date{}, &ParseError{Kind: KindDate, Reason: reason}
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

func validateDate(year int64, month, day int) string {
	if month < 1 || month > 12 {
		return "illegal month"
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return "illegal monthday for the given month and year"
	}
	return ""
}

// parseYear applies the sign rules shared by dates and timestamps: a '+'
// only in front of more than four digits, a sign required in front of more
// than four characters, and no negative zero.
func parseYear(kind Kind, input, yearStr string) (int64, error) {
	if yearStr[0] == '+' && len(yearStr)-1 <= 4 {
		return 0, parseErr(kind, input, "four-digit positive year should bear no plus sign")
	}
	if len(yearStr) > 4 && yearStr[0] != '+' && yearStr[0] != '-' {
		return 0, parseErr(kind, input, "years with more than four digits should bear a leading sign")
	}
	year, err := strconv.ParseInt(yearStr, 10, 64)
	if err != nil {
		return 0, parseErr(kind, input, "year out of range")
	}
	if year == 0 && yearStr[0] == '-' {
		return 0, parseErr(kind, input, "year zero should be provided as '0000' without leading sign")
	}
	return year, nil
}

func atoiField(kind Kind, input, field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, parseErr(kind, input, "%s out of range", field)
	}
	return n, nil
}

// ParseDate parses "[+-]YYYY-MM-DD" with the year sign rules described on
// parseYear.
func ParseDate(s string) (Date, error) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return Date{}, parseErr(KindDate, s, "dates must be '[+-]YYYY-MM-DD'")
	}
	year, err := parseYear(KindDate, s, m[1])
	if err != nil {
		return Date{}, err
	}
	month, err := atoiField(KindDate, s, "month", m[2])
	if err != nil {
		return Date{}, err
	}
	day, err := atoiField(KindDate, s, "day", m[3])
	if err != nil {
		return Date{}, err
	}
	if reason := validateDate(year, month, day); reason != "" {
		return Date{}, parseErr(KindDate, s, "%s", reason)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// MustParseDate is like ParseDate but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func formatYear(year int64) string {
	switch {
	case year > 9999:
		return "+" + strconv.FormatInt(year, 10)
	case year >= 0:
		return fmt.Sprintf("%04d", year)
	default:
		abs := strconv.FormatUint(uint64(-(year+1))+1, 10)
		for len(abs) < 4 {
			abs = "0" + abs
		}
		return "-" + abs
	}
}

// String returns the canonical form accepted back by ParseDate.
func (d Date) String() string {
	return fmt.Sprintf("%s-%02d-%02d", formatYear(d.Year), d.Month, d.Day)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int64(d.Month), int64(o.Month))
	default:
		return cmpInt(int64(d.Day), int64(o.Day))
	}
}

// UnixDays returns the days elapsed since 1970-01-01 (negative before).
func (d Date) UnixDays() int64 {
	return civilToDays(d.Year, d.Month, d.Day)
}

// ToTime converts to midnight UTC. Years outside [1, 9999] cannot be
// rendered as RFC 3339 and fail with ErrOutOfRange instead of clamping.
func (d Date) ToTime() (time.Time, error) {
	if d.Year < 1 || d.Year > 9999 {
		return time.Time{}, fmt.Errorf("date %s: %w", d, ErrOutOfRange)
	}
	return time.Date(int(d.Year), time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC), nil
}

// DateFromTime takes the calendar date of t in its own location.
func DateFromTime(t time.Time) Date {
	return Date{Year: int64(t.Year()), Month: int(t.Month()), Day: t.Day()}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
