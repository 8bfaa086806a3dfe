package scalar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timePattern = regexp.MustCompile(`^(\d+):(\d+):(\d+)(\.\d+)?$`)

// Time is a wall-clock time of day with nanosecond precision.
type Time struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// NewTime validates each field on its own; no carry is performed.
func NewTime(hour, minute, second, nanosecond int) (Time, error) {
	if reason := validateTime(hour, minute, second, nanosecond); reason != "" {
		return Time{}, &ParseError{Kind: KindTime, Reason: reason}
	}
	return Time{Hour: hour, Minute: minute, Second: second, Nanosecond: nanosecond}, nil
}

func validateTime(hour, minute, second, nanosecond int) string {
	switch {
	case hour < 0 || hour > 23:
		return "illegal hour"
	case minute < 0 || minute > 59:
		return "illegal minute"
	case second < 0 || second > 59:
		return "illegal second"
	case nanosecond < 0 || nanosecond >= 1_000_000_000:
		return "illegal fractional second"
	}
	return ""
}

// parseFraction turns ".5" into 500000000. The fraction carries 1 to 9 digits.
func parseFraction(kind Kind, input, frac string) (int, error) {
	if frac == "" {
		return 0, nil
	}
	digits := frac[1:]
	if len(digits) > 9 {
		return 0, parseErr(kind, input, "fractional seconds take at most nine digits")
	}
	ns, err := strconv.Atoi(digits + strings.Repeat("0", 9-len(digits)))
	if err != nil {
		return 0, parseErr(kind, input, "illegal fractional second")
	}
	return ns, nil
}

// ParseTime parses "hh:mm:ss[.fffffffff]".
func ParseTime(s string) (Time, error) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return Time{}, parseErr(KindTime, s, "times must be '<hour>:<minute>:<second>[.<fractional-seconds>]'")
	}
	var fields [3]int
	for i, name := range []string{"hour", "minute", "second"} {
		n, err := atoiField(KindTime, s, name, m[i+1])
		if err != nil {
			return Time{}, err
		}
		fields[i] = n
	}
	ns, err := parseFraction(KindTime, s, m[4])
	if err != nil {
		return Time{}, err
	}
	if reason := validateTime(fields[0], fields[1], fields[2], ns); reason != "" {
		return Time{}, parseErr(KindTime, s, "%s", reason)
	}
	return Time{Hour: fields[0], Minute: fields[1], Second: fields[2], Nanosecond: ns}, nil
}

// MustParseTime is like ParseTime but panics on error.
func MustParseTime(s string) Time {
	t, err := ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders the fraction with 3, 6 or 9 digits, or none when zero.
func (t Time) String() string {
	base := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	switch {
	case t.Nanosecond == 0:
		return base
	case t.Nanosecond%1_000_000 == 0:
		return fmt.Sprintf("%s.%03d", base, t.Nanosecond/1_000_000)
	case t.Nanosecond%1_000 == 0:
		return fmt.Sprintf("%s.%06d", base, t.Nanosecond/1_000)
	default:
		return fmt.Sprintf("%s.%09d", base, t.Nanosecond)
	}
}

// SinceMidnight returns the elapsed time since 00:00:00.
func (t Time) SinceMidnight() time.Duration {
	return time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Nanosecond)
}

// TimeFromTime takes the wall-clock part of t in its own location.
func TimeFromTime(t time.Time) Time {
	return Time{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanosecond: t.Nanosecond()}
}

// Compare returns -1, 0 or +1.
func (t Time) Compare(o Time) int {
	return cmpInt(int64(t.SinceMidnight()), int64(o.SinceMidnight()))
}
