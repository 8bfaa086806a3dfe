package cursor

import (
	"time"

	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
)

// Mapper transforms each document before Next returns it.
type Mapper func(ir.Document) (ir.Document, error)

// PageObserver is told about every page a cursor fetches.
type PageObserver interface {
	ObservePage(collection string, documents int)
}

// Option configures a Cursor at construction.
type Option func(*Cursor)

// WithFilter sets the filter clause.
func WithFilter(filter map[string]any) Option {
	return func(c *Cursor) { c.filter = filter }
}

// WithProjection sets the projection clause.
func WithProjection(projection map[string]any) Option {
	return func(c *Cursor) { c.projection = projection }
}

// WithSort sets the sort clause.
func WithSort(sort map[string]any) Option {
	return func(c *Cursor) { c.sort = sort }
}

// WithLimit caps the number of documents the server returns. Zero means
// no limit.
func WithLimit(limit int) Option {
	return func(c *Cursor) { c.limit = limit }
}

// WithSkip skips the first documents of a sorted result.
func WithSkip(skip int) Option {
	return func(c *Cursor) { c.skip = skip }
}

// WithIncludeSimilarity asks for a $similarity field on vector searches.
func WithIncludeSimilarity(include bool) Option {
	return func(c *Cursor) { c.includeSimilarity = include }
}

// WithIncludeSortVector asks the server to return the query vector.
func WithIncludeSortVector(include bool) Option {
	return func(c *Cursor) { c.includeSortVector = include }
}

// WithMapper sets a per-document transformation.
func WithMapper(m Mapper) Option {
	return func(c *Cursor) { c.mapper = m }
}

// WithCodec sets the document codec options used for payloads and results.
func WithCodec(opts doccodec.Options) Option {
	return func(c *Cursor) { c.codec = opts }
}

// WithRequestTimeout bounds each page fetch.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Cursor) { c.requestTimeout = d }
}

// WithOverallTimeout bounds the total time spent fetching, measured from
// the first fetch.
func WithOverallTimeout(d time.Duration) Option {
	return func(c *Cursor) { c.overallTimeout = d }
}

// WithClock sets the clock used by the overall timeout.
func WithClock(clock command.Clock) Option {
	return func(c *Cursor) { c.clock = clock }
}

// WithCommandName overrides the read command name ("find").
func WithCommandName(name string) Option {
	return func(c *Cursor) { c.commandName = name }
}

// WithObserver reports fetched pages to o.
func WithObserver(o PageObserver) Option {
	return func(c *Cursor) { c.observer = o }
}
