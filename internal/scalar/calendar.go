package scalar

// Proleptic Gregorian calendar arithmetic on signed years. Everything here is
// closed-form so it works far outside the range time.Time formats cleanly.

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour

	// maxTimestampYear bounds years whose millisecond offset fits in int64.
	maxTimestampYear = 292_000_000
)

var daysPerMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// cumulativeDays[m] is the number of days before month m in a non-leap year.
var cumulativeDays = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int64) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInMonth returns the number of days of month (1-12) in year.
func DaysInMonth(year int64, month int) int {
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return daysPerMonth[month]
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// leapCount returns the number of leap years in (0, y] for y >= 0, and the
// negated count in (y, 0] otherwise, so leapCount(b)-leapCount(a) counts the
// leap years in (a, b] for any a <= b.
func leapCount(y int64) int64 {
	return floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400)
}

// yearStartDays returns the days from 1970-01-01 to January 1 of year.
// Negative for years before 1970.
func yearStartDays(year int64) int64 {
	return 365*(year-1970) + leapCount(year-1) - leapCount(1969)
}

// dayOfYear returns the zero-based day index of (month, day) within year.
// The month table is that of 1972 for leap years and 1971 otherwise.
func dayOfYear(year int64, month, day int) int64 {
	ref := int64(1971)
	if IsLeapYear(year) {
		ref = 1972
	}
	doy := cumulativeDays[month] + day - 1
	if month > 2 && IsLeapYear(ref) {
		doy++
	}
	return int64(doy)
}

// civilToDays converts a calendar date to days since the Unix epoch.
func civilToDays(year int64, month, day int) int64 {
	return yearStartDays(year) + dayOfYear(year, month, day)
}

// daysToCivil is the inverse of civilToDays.
func daysToCivil(days int64) (year int64, month, day int) {
	year = 1970 + floorDiv(days*400, 146097)
	for yearStartDays(year) > days {
		year--
	}
	for yearStartDays(year+1) <= days {
		year++
	}
	rem := int(days - yearStartDays(year))
	for month = 1; month < 12; month++ {
		n := DaysInMonth(year, month)
		if rem < n {
			break
		}
		rem -= n
	}
	return year, month, rem + 1
}
