package command

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeoutKind tells which bound fired.
type TimeoutKind string

const (
	// TimeoutRequest is the per-request bound of a single Send.
	TimeoutRequest TimeoutKind = "request"

	// TimeoutOverall is the bound spanning a whole multi-request operation.
	TimeoutOverall TimeoutKind = "overall"
)

// TimeoutError reports an expired bound. For TimeoutOverall the request in
// Payload was never sent.
type TimeoutError struct {
	Kind     TimeoutKind
	Endpoint string
	Payload  map[string]any
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s timeout of %s expired", e.Kind, e.Timeout)
	if name := Name(e.Payload); name != "" {
		fmt.Fprintf(&b, " (command=%s", name)
		if e.Endpoint != "" {
			fmt.Fprintf(&b, ", endpoint=%s", e.Endpoint)
		}
		b.WriteByte(')')
	} else if e.Endpoint != "" {
		fmt.Fprintf(&b, " (endpoint=%s)", e.Endpoint)
	}
	return b.String()
}

// TransportError reports a failure to deliver a command or read its
// response. StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: status %d from %s: %v", e.StatusCode, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("transport error: %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FaultyResponseError reports a response lacking a field the protocol
// requires. It is never retried.
type FaultyResponseError struct {
	Message  string
	Response map[string]any
}

func (e *FaultyResponseError) Error() string {
	return "faulty response: " + e.Message
}

// ErrorDescriptor is one entry of a response's "errors" array.
type ErrorDescriptor struct {
	ErrorCode  string
	Message    string
	Family     string
	Scope      string
	Title      string
	Attributes map[string]any
}

func (d ErrorDescriptor) String() string {
	switch {
	case d.ErrorCode != "" && d.Message != "":
		return fmt.Sprintf("%s (%s)", d.Message, d.ErrorCode)
	case d.Message != "":
		return d.Message
	case d.ErrorCode != "":
		return d.ErrorCode
	}
	return "unknown error"
}

// ResponseError reports errors returned by the server inside an otherwise
// well-formed response. Response keeps the whole body so callers can read
// partial results (e.g. inserted ids) from it.
type ResponseError struct {
	Command     string
	Descriptors []ErrorDescriptor
	Response    map[string]any
}

func (e *ResponseError) Error() string {
	msgs := make([]string, len(e.Descriptors))
	for i, d := range e.Descriptors {
		msgs[i] = d.String()
	}
	return fmt.Sprintf("%s: %s", e.Command, strings.Join(msgs, "; "))
}

// IsTimeoutError reports whether err is (or wraps) a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsOverallTimeout reports whether err is an overall-deadline TimeoutError.
func IsOverallTimeout(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.Kind == TimeoutOverall
	}
	return false
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsFaultyResponseError reports whether err is (or wraps) a FaultyResponseError.
func IsFaultyResponseError(err error) bool {
	var fe *FaultyResponseError
	return errors.As(err, &fe)
}

// IsResponseError reports whether err is (or wraps) a ResponseError.
func IsResponseError(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}
