package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Call records one Send on a ScriptedSender.
type Call struct {
	Payload map[string]any
	Timeout time.Duration
}

// Reply is one scripted outcome.
type Reply struct {
	Response map[string]any
	Err      error
}

// ScriptedSender is a command.Sender that records payloads and answers
// from a queue of replies, or from a handler when one is set.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// The handler runs outside the lock.
type ScriptedSender struct {
	mu      sync.Mutex
	calls   []Call
	replies []Reply
	handler func(payload map[string]any) (map[string]any, error)
}

// NewScriptedSender creates a sender answering with replies in order.
func NewScriptedSender(replies ...Reply) *ScriptedSender {
	return &ScriptedSender{replies: replies}
}

// NewHandlerSender creates a sender answering every call with fn.
func NewHandlerSender(fn func(payload map[string]any) (map[string]any, error)) *ScriptedSender {
	return &ScriptedSender{handler: fn}
}

// Send records the call and returns the next reply.
func (s *ScriptedSender) Send(ctx context.Context, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Payload: payload, Timeout: timeout})
	handler := s.handler
	if handler != nil {
		s.mu.Unlock()
		return handler(payload)
	}
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("scripted sender: no reply left for call %d", len(s.calls))
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()
	return r.Response, r.Err
}

// Calls returns a copy of the recorded calls.
func (s *ScriptedSender) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns the number of recorded calls.
func (s *ScriptedSender) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Body returns the command body of recorded call i.
func (s *ScriptedSender) Body(i int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.calls[i].Payload {
		body, _ := v.(map[string]any)
		return body
	}
	return nil
}

// PageResponse builds a read response. A nil nextPageState ends the cursor.
func PageResponse(nextPageState any, docs ...map[string]any) map[string]any {
	items := make([]any, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	return map[string]any{
		"data": map[string]any{"documents": items, "nextPageState": nextPageState},
	}
}

// Page wraps PageResponse as a Reply.
func Page(nextPageState any, docs ...map[string]any) Reply {
	return Reply{Response: PageResponse(nextPageState, docs...)}
}
