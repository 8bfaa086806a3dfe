// Package collection binds the command boundary to the document codec, the
// cursor engine and the bulk coordinator. A Collection translates method
// calls into single-key command payloads and interprets their responses.
package collection

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/docwire/internal/bulk"
	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/cursor"
	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
)

const (
	// DefaultChunkSize is the number of documents per insertMany request.
	DefaultChunkSize = 50
	// MaxChunkSize is the largest insertMany request the server accepts.
	MaxChunkSize = 100
	// DefaultInsertConcurrency bounds in-flight chunks of an unordered
	// InsertMany.
	DefaultInsertConcurrency = 20
)

// Collection issues commands against one named collection or table.
//
// Sender is expected to route payloads to this collection. A Collection is
// safe for concurrent use; the cursors it returns are not.
type Collection struct {
	sender command.Sender
	name   string
	codec  doccodec.Options

	requestTimeout  time.Duration
	methodTimeout   time.Duration
	chunkSize       int
	concurrency     int
	bulkConcurrency int
	clock           command.Clock
	observer        cursor.PageObserver
}

// Option configures a Collection.
type Option func(*Collection)

// WithCodec sets the document codec options for payloads and responses.
func WithCodec(opts doccodec.Options) Option {
	return func(c *Collection) { c.codec = opts }
}

// WithRequestTimeout bounds every single request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Collection) { c.requestTimeout = d }
}

// WithMethodTimeout bounds a whole method call, across all the requests it
// makes. Cursors use it as their overall timeout.
func WithMethodTimeout(d time.Duration) Option {
	return func(c *Collection) { c.methodTimeout = d }
}

// WithChunkSize sets the number of documents per insertMany request.
func WithChunkSize(n int) Option {
	return func(c *Collection) { c.chunkSize = n }
}

// WithConcurrency sets the number of in-flight chunks of an unordered
// InsertMany.
func WithConcurrency(n int) Option {
	return func(c *Collection) { c.concurrency = n }
}

// WithBulkConcurrency sets the default concurrency of unordered BulkWrite.
func WithBulkConcurrency(n int) Option {
	return func(c *Collection) { c.bulkConcurrency = n }
}

// WithClock sets the clock behind method and cursor timeouts.
func WithClock(clock command.Clock) Option {
	return func(c *Collection) { c.clock = clock }
}

// WithObserver reports pages fetched by this collection's cursors.
func WithObserver(o cursor.PageObserver) Option {
	return func(c *Collection) { c.observer = o }
}

// New returns a Collection named name that sends commands through sender.
func New(sender command.Sender, name string, opts ...Option) *Collection {
	c := &Collection{
		sender:          sender,
		name:            name,
		chunkSize:       DefaultChunkSize,
		concurrency:     DefaultInsertConcurrency,
		bulkConcurrency: bulk.DefaultConcurrency,
		clock:           command.SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// deadline starts the overall bound of one method call.
func (c *Collection) deadline() *command.Deadline {
	return command.NewDeadline(c.methodTimeout, c.clock)
}

// send encodes cmd and delivers it within what is left of dl. It does not
// inspect the response.
func (c *Collection) send(ctx context.Context, cmd command.Command, dl *command.Deadline) (map[string]any, error) {
	payload, err := doccodec.PreprocessPayload(cmd.Payload(), c.codec)
	if err != nil {
		return nil, err
	}
	timeout, err := dl.Remaining(c.requestTimeout, payload)
	if err != nil {
		return nil, err
	}
	slog.Debug("sending command", "collection", c.name, "command", cmd.Name, "timeout", timeout)
	return c.sender.Send(ctx, payload, timeout)
}

// run sends cmd and fails on any API error in the response.
func (c *Collection) run(ctx context.Context, cmd command.Command, dl *command.Deadline) (map[string]any, error) {
	resp, err := c.send(ctx, cmd, dl)
	if err != nil {
		return nil, err
	}
	if err := command.CheckResponse(cmd.Name, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// decodeValue decodes a single wire value such as an inserted id.
func (c *Collection) decodeValue(raw any) (ir.Value, error) {
	return doccodec.Postprocess(raw, doccodec.Options{Mode: c.codec.Mode})
}

// plainDocuments widens documents so the payload converter accepts them.
func plainDocuments(docs []map[string]any) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
