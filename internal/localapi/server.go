package localapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/store"
)

const (
	// DefaultPageSize is the number of documents per find page and per
	// updateMany/deleteMany round.
	DefaultPageSize = 20

	// DefaultMaxCount is where countDocuments stops counting.
	DefaultMaxCount = 1000
)

// Server executes commands against a document store.
//
// Thread-safety: Server is safe for concurrent use. Commands are serialized
// by an internal mutex so read-modify-write commands are atomic.
type Server struct {
	mu       sync.Mutex
	store    *store.Store
	pageSize int
	maxCount int64
	newID    func() any
}

// Option configures a Server.
type Option func(*Server)

// WithPageSize sets the page and round size.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithMaxCount sets the countDocuments limit.
func WithMaxCount(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxCount = n
		}
	}
}

// WithIDGenerator sets the function producing _id values for documents
// inserted without one. The result must be a wire value.
func WithIDGenerator(fn func() any) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates a Server over st.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store:    st,
		pageSize: DefaultPageSize,
		maxCount: DefaultMaxCount,
		newID:    func() any { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns a sender whose commands act on the named collection.
func (s *Server) Collection(name string) *Sender {
	return &Sender{server: s, collection: name}
}

// Sender is the command.Sender of one collection.
type Sender struct {
	server     *Server
	collection string
}

var _ command.Sender = (*Sender)(nil)

// Endpoint names the collection the way errors report it.
func (e *Sender) Endpoint() string {
	return "local:" + e.collection
}

// Send executes one command. API-level failures come back as an "errors"
// array in the response; store failures are *command.TransportError and an
// expired timeout is a *command.TimeoutError.
func (e *Sender) Send(ctx context.Context, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	name := command.Name(payload)
	body, _ := payload[name].(map[string]any)
	if body == nil {
		body = map[string]any{}
	}

	start := time.Now()
	resp, err := e.server.dispatch(ctx, e.collection, name, body)
	slog.Debug("local command",
		"collection", e.collection,
		"command", name,
		"duration", time.Since(start),
		"error", err)

	if err == nil {
		return resp, nil
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.response(), nil
	}
	if parent.Err() != nil {
		return nil, parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &command.TimeoutError{
			Kind:     command.TimeoutRequest,
			Endpoint: e.Endpoint(),
			Payload:  payload,
			Timeout:  timeout,
		}
	}
	return nil, &command.TransportError{Endpoint: e.Endpoint(), Err: err}
}

type handler func(ctx context.Context, collection string, body map[string]any) (map[string]any, error)

func (s *Server) dispatch(ctx context.Context, collection, name string, body map[string]any) (map[string]any, error) {
	handlers := map[string]handler{
		"find":              s.find,
		"findOne":           s.findOne,
		"countDocuments":    s.countDocuments,
		"insertOne":         s.insertOne,
		"insertMany":        s.insertMany,
		"updateOne":         s.updateOne,
		"updateMany":        s.updateMany,
		"findOneAndReplace": s.findOneAndReplace,
		"deleteOne":         s.deleteOne,
		"deleteMany":        s.deleteMany,
	}
	h, ok := handlers[name]
	if !ok {
		return nil, apiErrorf(codeUnknownCommand, "no command matched %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h(ctx, collection, body)
}

// Error codes reported in the "errors" array.
const (
	codeUnknownCommand   = "NO_COMMAND_MATCHED"
	codeInvalidFilter    = "INVALID_FILTER_EXPRESSION"
	codeInvalidSort      = "INVALID_SORT_CLAUSE"
	codeInvalidProject   = "UNSUPPORTED_PROJECTION_PARAM"
	codeInvalidUpdate    = "UNSUPPORTED_UPDATE_OPERATION"
	codeInvalidOption    = "INVALID_REQUEST"
	codeInvalidDocument  = "SHRED_BAD_DOCUMENT_TYPE"
	codeDuplicateID      = "DOCUMENT_ALREADY_EXISTS"
	codeChangedID        = "DOCUMENT_REPLACE_DIFFERENT_DOCID"
	codeInvalidPageState = "INVALID_PAGE_STATE"
)

// apiError is a failure the client should see as an "errors" entry.
type apiError struct {
	Code    string
	Message string
	Attrs   map[string]any
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func apiErrorf(code, format string, args ...any) *apiError {
	return &apiError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *apiError) descriptor() map[string]any {
	d := map[string]any{"errorCode": e.Code, "message": e.Message}
	for k, v := range e.Attrs {
		d[k] = v
	}
	return d
}

func (e *apiError) response() map[string]any {
	return map[string]any{"errors": []any{e.descriptor()}}
}
