// Package command defines the boundary between the client core and the
// component that delivers JSON commands to the server.
//
// Everything above this package (cursor, bulk, collection) talks to the
// server only through Sender. Transport, authentication and retries live
// behind it.
package command

import (
	"context"
	"time"
)

// Sender delivers one command payload and returns the decoded response.
//
// A zero timeout means the request is bounded only by ctx. Implementations
// report deadline expiry as *TimeoutError and other delivery failures as
// *TransportError.
type Sender interface {
	Send(ctx context.Context, payload map[string]any, timeout time.Duration) (map[string]any, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, payload map[string]any, timeout time.Duration) (map[string]any, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	return f(ctx, payload, timeout)
}

// Command is a single-key payload {Name: Body}.
type Command struct {
	Name string
	Body map[string]any
}

// New builds a command with an empty body.
func New(name string) Command {
	return Command{Name: name, Body: map[string]any{}}
}

// With sets a body field unless value is nil, and returns the command.
func (c Command) With(key string, value any) Command {
	if value == nil {
		return c
	}
	if c.Body == nil {
		c.Body = map[string]any{}
	}
	c.Body[key] = value
	return c
}

// Payload returns the wire payload.
func (c Command) Payload() map[string]any {
	body := c.Body
	if body == nil {
		body = map[string]any{}
	}
	return map[string]any{c.Name: body}
}

// Name returns the operation name of a single-key payload, or "" when the
// payload does not have exactly one key.
func Name(payload map[string]any) string {
	if len(payload) != 1 {
		return ""
	}
	for k := range payload {
		return k
	}
	return ""
}
