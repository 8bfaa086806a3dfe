package scalar

import (
	"errors"
	"fmt"
)

// ErrInvalidLiteral is matched (via errors.Is) by every ParseError.
var ErrInvalidLiteral = errors.New("invalid literal")

// ErrOutOfRange is returned when a value cannot be represented as a
// time.Time without losing information.
var ErrOutOfRange = errors.New("value outside representable range")

// Kind names the scalar type a literal failed to parse as.
type Kind string

const (
	KindDate      Kind = "date"
	KindTime      Kind = "time"
	KindTimestamp Kind = "timestamp"
	KindDuration  Kind = "duration"
	KindObjectID  Kind = "objectid"
	KindVector    Kind = "vector"
	KindBinary    Kind = "binary"
	KindUUID      Kind = "uuid"
)

// ParseError reports a malformed or out-of-range scalar literal.
type ParseError struct {
	Kind   Kind
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("cannot parse %q as %s: %s", e.Input, e.Kind, e.Reason)
}

// Is makes every ParseError match ErrInvalidLiteral.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidLiteral
}

func parseErr(kind Kind, input, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Input: input, Reason: fmt.Sprintf(format, args...)}
}

// IsParseError reports whether err is (or wraps) a ParseError of the given kind.
// An empty kind matches any ParseError.
func IsParseError(err error, kind Kind) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return kind == "" || pe.Kind == kind
	}
	return false
}
