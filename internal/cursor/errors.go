package cursor

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by Next once no documents remain.
var ErrExhausted = errors.New("cursor exhausted")

// StateError reports an operation that the cursor's current state forbids.
type StateError struct {
	Op     string
	State  State
	Reason string
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: cursor already %s", e.Op, e.State)
}

// IsStateError reports whether err is (or wraps) a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
