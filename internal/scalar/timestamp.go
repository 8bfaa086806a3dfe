package scalar

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var timestampPattern = regexp.MustCompile(
	`^([-+]?\d*\d{4})-(\d+)-(\d+)T(\d+):(\d+):(\d+)(\.\d+)?([-+])(\d+):(\d+)$`,
)

// Timestamp is an instant in signed milliseconds since 1970-01-01T00:00:00Z.
// Calendar fields are derived on demand and are valid far beyond the years
// time.Time can format.
type Timestamp int64

// ParseTimestamp parses "Y-M-DTh:m:s[.f](Z|+hh:mm|-hh:mm)". The fraction is
// truncated to milliseconds.
func ParseTimestamp(s string) (Timestamp, error) {
	norm := strings.ToUpper(s)
	if strings.HasSuffix(norm, "Z") {
		norm = strings.TrimSuffix(norm, "Z") + "+00:00"
	}
	m := timestampPattern.FindStringSubmatch(norm)
	if m == nil {
		return 0, parseErr(KindTimestamp, s,
			"timestamps must be '<date>T<hh>:<mm>:<ss>[.<fraction>]' followed by 'Z' or an offset '+hh:mm'")
	}
	year, err := parseYear(KindTimestamp, s, m[1])
	if err != nil {
		return 0, err
	}
	var f [5]int
	for i, name := range []string{"month", "day", "hour", "minute", "second"} {
		n, err := atoiField(KindTimestamp, s, name, m[i+2])
		if err != nil {
			return 0, err
		}
		f[i] = n
	}
	ns, err := parseFraction(KindTimestamp, s, m[7])
	if err != nil {
		return 0, err
	}
	if reason := validateDate(year, f[0], f[1]); reason != "" {
		return 0, parseErr(KindTimestamp, s, "%s", reason)
	}
	if reason := validateTime(f[2], f[3], f[4], ns); reason != "" {
		return 0, parseErr(KindTimestamp, s, "%s", reason)
	}
	offHour, err := atoiField(KindTimestamp, s, "offset hour", m[9])
	if err != nil {
		return 0, err
	}
	offMinute, err := atoiField(KindTimestamp, s, "offset minute", m[10])
	if err != nil {
		return 0, err
	}
	if offHour > 23 {
		return 0, parseErr(KindTimestamp, s, "illegal offset hours")
	}
	if offMinute > 59 {
		return 0, parseErr(KindTimestamp, s, "illegal offset minutes")
	}
	if year > maxTimestampYear || year < -maxTimestampYear {
		return 0, parseErr(KindTimestamp, s, "year out of range")
	}
	offset := int64(offHour)*msPerHour + int64(offMinute)*msPerMinute
	if m[8] == "-" {
		offset = -offset
	}
	t, _ := NewTime(f[2], f[3], f[4], ns)
	return TimestampFromParts(Date{Year: year, Month: f[0], Day: f[1]}, t, offset), nil
}

// MustParseTimestamp is like ParseTimestamp but panics on error.
func MustParseTimestamp(s string) Timestamp {
	ts, err := ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return ts
}

// TimestampFromParts combines a validated date and time with an offset from
// UTC in milliseconds. Sub-millisecond precision is truncated.
func TimestampFromParts(d Date, t Time, offsetMs int64) Timestamp {
	ms := yearStartDays(d.Year)*msPerDay +
		dayOfYear(d.Year, d.Month, d.Day)*msPerDay +
		int64(t.Hour)*msPerHour +
		int64(t.Minute)*msPerMinute +
		int64(t.Second)*msPerSecond +
		int64(t.Nanosecond/1_000_000)
	return Timestamp(ms - offsetMs)
}

// Components returns the UTC calendar date and wall time of the instant.
func (ts Timestamp) Components() (Date, Time) {
	days := floorDiv(int64(ts), msPerDay)
	rem := int64(ts) - days*msPerDay
	y, mo, d := daysToCivil(days)
	t := Time{
		Hour:       int(rem / msPerHour),
		Minute:     int(rem % msPerHour / msPerMinute),
		Second:     int(rem % msPerMinute / msPerSecond),
		Nanosecond: int(rem%msPerSecond) * 1_000_000,
	}
	return Date{Year: y, Month: mo, Day: d}, t
}

// String renders "<date>Thh:mm:ss.mmmZ".
func (ts Timestamp) String() string {
	d, t := ts.Components()
	return fmt.Sprintf("%sT%02d:%02d:%02d.%03dZ", d, t.Hour, t.Minute, t.Second, t.Nanosecond/1_000_000)
}

// UnixMilli returns the raw millisecond count.
func (ts Timestamp) UnixMilli() int64 {
	return int64(ts)
}

// ToTime converts to a UTC time.Time. Instants whose year is outside
// [1, 9999] fail with ErrOutOfRange.
func (ts Timestamp) ToTime() (time.Time, error) {
	d, _ := ts.Components()
	if d.Year < 1 || d.Year > 9999 {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", ts, ErrOutOfRange)
	}
	return time.UnixMilli(int64(ts)).UTC(), nil
}

// TimestampFromTime truncates t to milliseconds.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}
