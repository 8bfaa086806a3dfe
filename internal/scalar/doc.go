// Package scalar converts single domain values to and from their wire text.
//
// Dates carry an unrestricted signed year, times and timestamps are exact to
// the nanosecond and millisecond respectively, and durations are kept as a
// (months, days, nanoseconds) triple with a separate sign. All calendar math
// is closed-form on int64 so years far outside [1, 9999] round-trip through
// their string forms; only conversion to time.Time is range-checked.
//
// Every malformed literal is reported as a *ParseError; nothing is coerced.
package scalar
