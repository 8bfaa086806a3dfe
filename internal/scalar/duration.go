package scalar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	nsPerMicro  = int64(1_000)
	nsPerMilli  = int64(1_000_000)
	nsPerSecond = int64(1_000_000_000)
	nsPerMinute = 60 * nsPerSecond
	nsPerHour   = 60 * nsPerMinute
)

// Duration is a signed (months, days, nanoseconds) triple. The magnitudes are
// never negative; an all-zero duration always has Sign +1.
type Duration struct {
	Sign        int
	Months      int64
	Days        int64
	Nanoseconds int64
}

// NewDuration normalises the sign of a zero duration.
func NewDuration(sign int, months, days, nanoseconds int64) (Duration, error) {
	if months < 0 || days < 0 || nanoseconds < 0 {
		return Duration{}, &ParseError{Kind: KindDuration, Reason: "magnitudes must be non-negative"}
	}
	if sign != 1 && sign != -1 {
		return Duration{}, &ParseError{Kind: KindDuration, Reason: "sign must be +1 or -1"}
	}
	d := Duration{Sign: sign, Months: months, Days: days, Nanoseconds: nanoseconds}
	if d.IsZero() {
		d.Sign = 1
	}
	return d, nil
}

// IsZero reports whether all magnitudes are zero.
func (d Duration) IsZero() bool {
	return d.Months == 0 && d.Days == 0 && d.Nanoseconds == 0
}

// Equal compares after sign normalisation.
func (d Duration) Equal(o Duration) bool {
	return d.normalized() == o.normalized()
}

func (d Duration) normalized() Duration {
	if d.IsZero() || d.Sign == 0 {
		d.Sign = 1
	}
	return d
}

// accumulator adds unit quantities with overflow detection.
type accumulator struct {
	kind   Kind
	input  string
	months int64
	days   int64
	nanos  int64
}

func (a *accumulator) add(field *int64, qty, mult int64) error {
	if qty > (math.MaxInt64-*field)/mult {
		return parseErr(a.kind, a.input, "quantity overflows")
	}
	*field += qty * mult
	return nil
}

func (a *accumulator) result(sign int) Duration {
	d := Duration{Sign: sign, Months: a.months, Days: a.days, Nanoseconds: a.nanos}
	return d.normalized()
}

// ParseDuration accepts both the ISO-8601 form ("P1Y2M3DT4H5M6.5S", "P3W")
// and the compact form ("1y2mo3d4h5m6s500ms"). The grammar the literal looks
// like is tried first; if it fails the other one is tried, and the first
// error is reported when both fail.
func ParseDuration(s string) (Duration, error) {
	first, second := ParseCompactDuration, ParseISODuration
	if looksISO(s) {
		first, second = ParseISODuration, ParseCompactDuration
	}
	d, err := first(s)
	if err == nil {
		return d, nil
	}
	if d2, err2 := second(s); err2 == nil {
		return d2, nil
	}
	return Duration{}, err
}

// MustParseDuration is like ParseDuration but panics on error.
func MustParseDuration(s string) Duration {
	d, err := ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

func looksISO(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return strings.HasPrefix(s, "P") || strings.HasPrefix(s, "p")
}

func splitSign(s string) (int, string) {
	if strings.HasPrefix(s, "-") {
		return -1, s[1:]
	}
	return 1, s
}

func scanDigits(s string) (string, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}

// ParseISODuration parses "[-]P[nY][nM][nD][T[nH][nM][n[.f]S]]" or "[-]PnW".
func ParseISODuration(s string) (Duration, error) {
	acc := &accumulator{kind: KindDuration, input: s}
	sign, rest := splitSign(strings.ToUpper(s))
	if !strings.HasPrefix(rest, "P") || len(rest) == 1 {
		return Duration{}, parseErr(KindDuration, s, "ISO durations start with 'P' and carry at least one unit")
	}
	rest = rest[1:]

	if strings.HasSuffix(rest, "W") {
		digits, tail := scanDigits(rest)
		if digits == "" || tail != "W" {
			return Duration{}, parseErr(KindDuration, s, "weeks cannot be combined with other units")
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return Duration{}, parseErr(KindDuration, s, "quantity overflows")
		}
		if err := acc.add(&acc.days, n, 7); err != nil {
			return Duration{}, err
		}
		return acc.result(sign), nil
	}

	datePart, timePart, hasT := strings.Cut(rest, "T")
	if hasT && (timePart == "" || strings.Contains(timePart, "T")) {
		return Duration{}, parseErr(KindDuration, s, "a single 'T' must be followed by time units")
	}

	dateUnits := []struct {
		unit  byte
		field *int64
		mult  int64
	}{
		{'Y', &acc.months, 12},
		{'M', &acc.months, 1},
		{'D', &acc.days, 1},
	}
	next := 0
	for datePart != "" {
		digits, tail := scanDigits(datePart)
		if digits == "" || tail == "" {
			return Duration{}, parseErr(KindDuration, s, "expected '<quantity><unit>' in the date block")
		}
		idx := -1
		for i := next; i < len(dateUnits); i++ {
			if dateUnits[i].unit == tail[0] {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Duration{}, parseErr(KindDuration, s, "unit %q repeated, out of order or unknown", tail[:1])
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return Duration{}, parseErr(KindDuration, s, "quantity overflows")
		}
		if err := acc.add(dateUnits[idx].field, n, dateUnits[idx].mult); err != nil {
			return Duration{}, err
		}
		next = idx + 1
		datePart = tail[1:]
	}

	timeUnits := []struct {
		unit byte
		mult int64
	}{
		{'H', nsPerHour},
		{'M', nsPerMinute},
		{'S', nsPerSecond},
	}
	next = 0
	for timePart != "" {
		digits, tail := scanDigits(timePart)
		if digits == "" || tail == "" {
			return Duration{}, parseErr(KindDuration, s, "expected '<quantity><unit>' in the time block")
		}
		frac := ""
		if tail[0] == '.' {
			frac, tail = scanDigits(tail[1:])
			if frac == "" || tail == "" || tail[0] != 'S' {
				return Duration{}, parseErr(KindDuration, s, "only seconds may carry a fraction")
			}
			if len(frac) > 9 {
				return Duration{}, parseErr(KindDuration, s, "fractional seconds take at most nine digits")
			}
		}
		idx := -1
		for i := next; i < len(timeUnits); i++ {
			if timeUnits[i].unit == tail[0] {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Duration{}, parseErr(KindDuration, s, "unit %q repeated, out of order or unknown", tail[:1])
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return Duration{}, parseErr(KindDuration, s, "quantity overflows")
		}
		if err := acc.add(&acc.nanos, n, timeUnits[idx].mult); err != nil {
			return Duration{}, err
		}
		if frac != "" {
			fracNs, _ := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
			if err := acc.add(&acc.nanos, fracNs, 1); err != nil {
				return Duration{}, err
			}
		}
		next = idx + 1
		timePart = tail[1:]
	}
	return acc.result(sign), nil
}

// compactUnits is ordered from the largest unit to the smallest; a literal
// must use them in this order without repeats.
var compactUnits = []struct {
	name  string
	field int // 0 months, 1 days, 2 nanoseconds
	mult  int64
}{
	{"y", 0, 12},
	{"mo", 0, 1},
	{"w", 1, 7},
	{"d", 1, 1},
	{"h", 2, nsPerHour},
	{"m", 2, nsPerMinute},
	{"s", 2, nsPerSecond},
	{"ms", 2, nsPerMilli},
	{"us", 2, nsPerMicro},
	{"ns", 2, 1},
}

// readCompactUnit picks the longest unit name at the start of s.
func readCompactUnit(s string) (int, string) {
	best, bestLen := -1, 0
	for i, u := range compactUnits {
		if strings.HasPrefix(s, u.name) && len(u.name) > bestLen {
			best, bestLen = i, len(u.name)
		}
	}
	if best < 0 {
		return -1, s
	}
	return best, s[bestLen:]
}

// microReplacer accepts both the micro sign and the Greek mu for "us".
var microReplacer = strings.NewReplacer("\u00b5", "u", "\u03bc", "u")

// ParseCompactDuration parses "[-]<n><unit>..." with units
// y, mo, w, d, h, m, s, ms, us (or µs), ns, case-insensitively.
func ParseCompactDuration(s string) (Duration, error) {
	acc := &accumulator{kind: KindDuration, input: s}
	norm := microReplacer.Replace(strings.ToLower(s))
	sign, rest := splitSign(norm)
	if rest == "" {
		return Duration{}, parseErr(KindDuration, s, "durations are a non-empty sequence of '<quantity><unit>'")
	}
	fields := []*int64{&acc.months, &acc.days, &acc.nanos}
	next := 0
	for rest != "" {
		digits, tail := scanDigits(rest)
		if digits == "" {
			return Duration{}, parseErr(KindDuration, s, "expected a quantity at %q", rest)
		}
		idx, after := readCompactUnit(tail)
		if idx < 0 {
			return Duration{}, parseErr(KindDuration, s, "unknown unit at %q", tail)
		}
		if idx < next {
			return Duration{}, parseErr(KindDuration, s, "unit %q repeated or out of order", compactUnits[idx].name)
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return Duration{}, parseErr(KindDuration, s, "quantity overflows")
		}
		u := compactUnits[idx]
		if err := acc.add(fields[u.field], n, u.mult); err != nil {
			return Duration{}, err
		}
		next = idx + 1
		rest = after
	}
	return acc.result(sign), nil
}

func formatSeconds(ns int64) string {
	whole, frac := ns/nsPerSecond, ns%nsPerSecond
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return strconv.FormatInt(whole, 10) + "." + strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
}

// String returns the canonical ISO-8601 form ("PT0S" for zero).
func (d Duration) String() string {
	d = d.normalized()
	if d.IsZero() {
		return "PT0S"
	}
	var b strings.Builder
	if d.Sign < 0 {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if y := d.Months / 12; y > 0 {
		fmt.Fprintf(&b, "%dY", y)
	}
	if mo := d.Months % 12; mo > 0 {
		fmt.Fprintf(&b, "%dM", mo)
	}
	if d.Days > 0 {
		fmt.Fprintf(&b, "%dD", d.Days)
	}
	if d.Nanoseconds > 0 {
		b.WriteByte('T')
		ns := d.Nanoseconds
		if h := ns / nsPerHour; h > 0 {
			fmt.Fprintf(&b, "%dH", h)
		}
		if m := ns % nsPerHour / nsPerMinute; m > 0 {
			fmt.Fprintf(&b, "%dM", m)
		}
		if sec := ns % nsPerMinute; sec > 0 {
			b.WriteString(formatSeconds(sec))
			b.WriteByte('S')
		}
	}
	return b.String()
}

// CompactString returns the canonical compact form ("0s" for zero). Weeks
// are never used.
func (d Duration) CompactString() string {
	d = d.normalized()
	if d.IsZero() {
		return "0s"
	}
	var b strings.Builder
	if d.Sign < 0 {
		b.WriteByte('-')
	}
	write := func(n int64, unit string) {
		if n > 0 {
			fmt.Fprintf(&b, "%d%s", n, unit)
		}
	}
	write(d.Months/12, "y")
	write(d.Months%12, "mo")
	write(d.Days, "d")
	ns := d.Nanoseconds
	write(ns/nsPerHour, "h")
	write(ns%nsPerHour/nsPerMinute, "m")
	write(ns%nsPerMinute/nsPerSecond, "s")
	write(ns%nsPerSecond/nsPerMilli, "ms")
	write(ns%nsPerMilli/nsPerMicro, "us")
	write(ns%nsPerMicro, "ns")
	return b.String()
}

// DurationFromTimeDuration expresses td as nanoseconds only.
func DurationFromTimeDuration(td time.Duration) Duration {
	sign := 1
	ns := int64(td)
	if ns < 0 {
		sign = -1
		ns = -ns
	}
	return Duration{Sign: sign, Nanoseconds: ns}.normalized()
}

// ToTimeDuration fails for durations with months, whose length depends on
// the calendar, and for totals that overflow time.Duration.
func (d Duration) ToTimeDuration() (time.Duration, error) {
	if d.Months != 0 {
		return 0, fmt.Errorf("duration %s has months: %w", d, ErrOutOfRange)
	}
	dayNs := 24 * nsPerHour
	if d.Days > (math.MaxInt64-d.Nanoseconds)/dayNs {
		return 0, fmt.Errorf("duration %s: %w", d, ErrOutOfRange)
	}
	total := d.Days*dayNs + d.Nanoseconds
	if d.Sign < 0 {
		total = -total
	}
	return time.Duration(total), nil
}
