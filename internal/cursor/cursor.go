// Package cursor implements a buffered, lazily paginating iterator over the
// documents returned by a read command.
//
// A Cursor is a single-owner object and is not safe for concurrent use. Its
// only blocking calls are page fetches through the command.Sender.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/looplab/fsm"
	"github.com/tiendc/go-deepcopy"

	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
)

// State is the lifecycle state of a Cursor.
type State string

const (
	StateIdle    State = "idle"
	StateStarted State = "started"
	StateClosed  State = "closed"
)

const (
	eventStart  = "start"
	eventClose  = "close"
	eventRewind = "rewind"
)

// Cursor iterates the results of a find command page by page.
type Cursor struct {
	sender      command.Sender
	collection  string
	commandName string

	filter            map[string]any
	projection        map[string]any
	sort              map[string]any
	limit             int
	skip              int
	includeSimilarity bool
	includeSortVector bool
	mapper            Mapper
	codec             doccodec.Options

	requestTimeout time.Duration
	overallTimeout time.Duration
	clock          command.Clock
	deadline       *command.Deadline
	observer       PageObserver

	machine    *fsm.FSM
	buffer     []ir.Document
	pageState  *string
	consumed   int
	pages      int
	sortVector ir.Vector
	columns    map[string]doccodec.Column
}

// New creates an Idle cursor over collection. No request is made until the
// cursor is iterated.
func New(sender command.Sender, collection string, opts ...Option) *Cursor {
	c := &Cursor{
		sender:      sender,
		collection:  collection,
		commandName: "find",
		clock:       command.SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.deadline = command.NewDeadline(c.overallTimeout, c.clock)
	c.machine = c.newMachine()
	return c
}

func (c *Cursor) newMachine() *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StateIdle)}, Dst: string(StateStarted)},
			{Name: eventClose, Src: []string{string(StateIdle), string(StateStarted)}, Dst: string(StateClosed)},
			{Name: eventRewind, Src: []string{string(StateStarted), string(StateClosed)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				slog.Debug("cursor state change",
					"collection", c.collection,
					"from", e.Src,
					"to", e.Dst,
					"consumed", c.consumed,
					"pages", c.pages)
			},
		},
	)
}

// State returns the lifecycle state.
func (c *Cursor) State() State {
	return State(c.machine.Current())
}

func (c *Cursor) transition(event string) {
	if !c.machine.Can(event) {
		return
	}
	// Can has already checked the source state, so the only possible error
	// is NoTransitionError, which cannot happen for these events.
	_ = c.machine.Event(context.Background(), event)
}

func (c *Cursor) ensureIdle(op string) error {
	if s := c.State(); s != StateIdle {
		return &StateError{Op: op, State: s}
	}
	return nil
}

// reconfigure checks the cursor is Idle and drops anything prefetched by
// HasNext or SortVector, which belongs to the previous configuration.
func (c *Cursor) reconfigure(op string) error {
	if err := c.ensureIdle(op); err != nil {
		return err
	}
	if c.pages > 0 {
		slog.Debug("cursor prefetch discarded",
			"collection", c.collection,
			"op", op,
			"buffered", len(c.buffer))
		c.buffer = nil
		c.pageState = nil
		c.consumed = 0
		c.pages = 0
		c.sortVector = nil
		c.columns = nil
		c.deadline.Reset()
	}
	return nil
}

// SetFilter replaces the filter. Only legal while Idle; a page prefetched
// by HasNext or SortVector is discarded.
func (c *Cursor) SetFilter(filter map[string]any) error {
	if err := c.reconfigure("set filter"); err != nil {
		return err
	}
	c.filter = filter
	return nil
}

// SetProjection replaces the projection. Only legal while Idle.
func (c *Cursor) SetProjection(projection map[string]any) error {
	if err := c.reconfigure("set projection"); err != nil {
		return err
	}
	c.projection = projection
	return nil
}

// SetSort replaces the sort clause. Only legal while Idle.
func (c *Cursor) SetSort(sort map[string]any) error {
	if err := c.reconfigure("set sort"); err != nil {
		return err
	}
	c.sort = sort
	return nil
}

// SetLimit sets the limit. Only legal while Idle.
func (c *Cursor) SetLimit(limit int) error {
	if err := c.reconfigure("set limit"); err != nil {
		return err
	}
	if limit < 0 {
		return fmt.Errorf("set limit: negative limit %d", limit)
	}
	c.limit = limit
	return nil
}

// SetSkip sets the skip. Only legal while Idle.
func (c *Cursor) SetSkip(skip int) error {
	if err := c.reconfigure("set skip"); err != nil {
		return err
	}
	if skip < 0 {
		return fmt.Errorf("set skip: negative skip %d", skip)
	}
	c.skip = skip
	return nil
}

// SetIncludeSimilarity toggles similarity scores. Only legal while Idle.
func (c *Cursor) SetIncludeSimilarity(include bool) error {
	if err := c.reconfigure("set include similarity"); err != nil {
		return err
	}
	c.includeSimilarity = include
	return nil
}

// SetIncludeSortVector toggles returning the sort vector. Only legal while Idle.
func (c *Cursor) SetIncludeSortVector(include bool) error {
	if err := c.reconfigure("set include sort vector"); err != nil {
		return err
	}
	c.includeSortVector = include
	return nil
}

// SetMapper sets the per-document transformation. Only legal while Idle.
func (c *Cursor) SetMapper(m Mapper) error {
	if err := c.reconfigure("set mapper"); err != nil {
		return err
	}
	c.mapper = m
	return nil
}

// Buffered returns the number of fetched documents not yet consumed.
func (c *Cursor) Buffered() int {
	return len(c.buffer)
}

// Consumed returns the number of documents returned so far.
func (c *Cursor) Consumed() int {
	return c.consumed
}

// PagesRetrieved returns the number of pages fetched since the last rewind.
func (c *Cursor) PagesRetrieved() int {
	return c.pages
}

// ConsumeBuffer removes and returns up to n buffered documents without
// fetching. The mapper is not applied.
func (c *Cursor) ConsumeBuffer(n int) []ir.Document {
	n = max(0, min(n, len(c.buffer)))
	out := c.buffer[:n:n]
	c.buffer = c.buffer[n:]
	c.consumed += n
	return out
}

// Next returns the next document, fetching a page when the buffer is empty
// and more pages exist. It returns ErrExhausted once the results run out,
// after which the cursor is Closed.
func (c *Cursor) Next(ctx context.Context) (ir.Document, error) {
	if c.State() == StateClosed {
		return nil, ErrExhausted
	}
	c.transition(eventStart)

	if len(c.buffer) == 0 && c.morePages() {
		if err := c.fill(ctx); err != nil {
			return nil, err
		}
	}
	if len(c.buffer) == 0 {
		c.transition(eventClose)
		return nil, ErrExhausted
	}

	doc := c.buffer[0]
	c.buffer = c.buffer[1:]
	c.consumed++
	if c.mapper != nil {
		return c.mapper(doc)
	}
	return doc, nil
}

// HasNext reports whether Next would return a document. It may fetch a
// page but never changes the lifecycle state.
func (c *Cursor) HasNext(ctx context.Context) (bool, error) {
	if c.State() == StateClosed {
		return false, nil
	}
	if len(c.buffer) == 0 && c.morePages() {
		if err := c.fill(ctx); err != nil {
			return false, err
		}
	}
	return len(c.buffer) > 0, nil
}

// morePages reports whether a fetch may still return documents.
func (c *Cursor) morePages() bool {
	return c.pages == 0 || c.pageState != nil
}

// Rewind returns the cursor to Idle, dropping the buffer, the page state
// and the counters. Iterating again re-fetches from the first page.
func (c *Cursor) Rewind() {
	c.transition(eventRewind)
	c.buffer = nil
	c.pageState = nil
	c.consumed = 0
	c.pages = 0
	c.sortVector = nil
	c.columns = nil
	c.deadline.Reset()
}

// Close moves the cursor to Closed and drops the buffer.
func (c *Cursor) Close() {
	c.transition(eventClose)
	c.buffer = nil
}

// Clone returns an Idle cursor with the same configuration. Filter, sort
// and projection are deep copies.
func (c *Cursor) Clone() (*Cursor, error) {
	clone := &Cursor{
		sender:            c.sender,
		collection:        c.collection,
		commandName:       c.commandName,
		limit:             c.limit,
		skip:              c.skip,
		includeSimilarity: c.includeSimilarity,
		includeSortVector: c.includeSortVector,
		mapper:            c.mapper,
		codec:             c.codec,
		requestTimeout:    c.requestTimeout,
		overallTimeout:    c.overallTimeout,
		clock:             c.clock,
		observer:          c.observer,
	}
	for _, pair := range []struct{ dst, src *map[string]any }{
		{&clone.filter, &c.filter},
		{&clone.projection, &c.projection},
		{&clone.sort, &c.sort},
	} {
		if *pair.src == nil {
			continue
		}
		if err := deepcopy.Copy(pair.dst, pair.src); err != nil {
			return nil, fmt.Errorf("clone cursor: %w", err)
		}
	}
	clone.deadline = command.NewDeadline(clone.overallTimeout, clone.clock)
	clone.machine = clone.newMachine()
	return clone, nil
}

// All iterates the remaining documents. Iteration stops at the first error,
// which is yielded with a nil document.
func (c *Cursor) All(ctx context.Context) iter.Seq2[ir.Document, error] {
	return func(yield func(ir.Document, error) bool) {
		for {
			doc, err := c.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// ToList consumes the remaining documents.
func (c *Cursor) ToList(ctx context.Context) ([]ir.Document, error) {
	var out []ir.Document
	for doc, err := range c.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// ForEach calls fn on each remaining document until fn returns false.
func (c *Cursor) ForEach(ctx context.Context, fn func(ir.Document) bool) error {
	for doc, err := range c.All(ctx) {
		if err != nil {
			return err
		}
		if !fn(doc) {
			return nil
		}
	}
	return nil
}

// SortVector returns the query vector reported by the server, fetching the
// first page if the cursor is Idle and sort vectors were requested. It
// returns nil when the server sent none.
func (c *Cursor) SortVector(ctx context.Context) (ir.Vector, error) {
	if c.pages == 0 && c.includeSortVector && c.State() == StateIdle {
		if err := c.fill(ctx); err != nil {
			return nil, err
		}
	}
	return c.sortVector, nil
}

// Page is one page of results as returned by FetchNextPage.
type Page struct {
	Documents     []ir.Document
	NextPageState *string
	SortVector    ir.Vector
}

// FetchNextPage fetches one page and returns it directly, bypassing the
// buffer. It fails while buffered documents remain.
func (c *Cursor) FetchNextPage(ctx context.Context) (Page, error) {
	if n := len(c.buffer); n > 0 {
		return Page{}, &StateError{
			Op:     "fetch next page",
			State:  c.State(),
			Reason: fmt.Sprintf("%d buffered documents must be consumed first", n),
		}
	}
	if c.State() == StateClosed || !c.morePages() {
		c.transition(eventClose)
		return Page{}, ErrExhausted
	}
	c.transition(eventStart)

	docs, err := c.fetchPage(ctx)
	if err != nil {
		return Page{}, err
	}
	c.consumed += len(docs)
	if c.pageState == nil {
		c.transition(eventClose)
	}
	if c.mapper != nil {
		for i, d := range docs {
			if docs[i], err = c.mapper(d); err != nil {
				return Page{}, err
			}
		}
	}
	return Page{Documents: docs, NextPageState: c.pageState, SortVector: c.sortVector}, nil
}

func (c *Cursor) fill(ctx context.Context) error {
	docs, err := c.fetchPage(ctx)
	if err != nil {
		return err
	}
	c.buffer = append(c.buffer, docs...)
	return nil
}

// payload builds the read command for the next page.
func (c *Cursor) payload() map[string]any {
	options := map[string]any{}
	if c.limit > 0 {
		options["limit"] = c.limit
	}
	if c.skip > 0 {
		options["skip"] = c.skip
	}
	if c.includeSimilarity {
		options["includeSimilarity"] = true
	}
	if c.includeSortVector {
		options["includeSortVector"] = true
	}
	if c.pageState != nil {
		options["pageState"] = *c.pageState
	}

	cmd := command.New(c.commandName)
	if len(c.filter) > 0 {
		cmd = cmd.With("filter", c.filter)
	}
	if len(c.projection) > 0 {
		cmd = cmd.With("projection", c.projection)
	}
	if len(c.sort) > 0 {
		cmd = cmd.With("sort", c.sort)
	}
	if len(options) > 0 {
		cmd = cmd.With("options", options)
	}
	return cmd.Payload()
}

// fetchPage performs exactly one request and records the page state and
// side-channel metadata.
func (c *Cursor) fetchPage(ctx context.Context) ([]ir.Document, error) {
	wire, err := doccodec.PreprocessPayload(c.payload(), c.codec)
	if err != nil {
		return nil, err
	}
	timeout, err := c.deadline.Remaining(c.requestTimeout, wire)
	if err != nil {
		slog.Warn("cursor overall timeout expired",
			"collection", c.collection,
			"pages", c.pages,
			"timeout", c.overallTimeout)
		return nil, err
	}

	resp, err := c.sender.Send(ctx, wire, timeout)
	if err != nil {
		return nil, err
	}
	if err := command.CheckResponse(c.commandName, resp); err != nil {
		return nil, err
	}
	page, err := command.ReadPage(resp)
	if err != nil {
		return nil, err
	}

	opts := c.codec
	if opts.Mode == doccodec.ModeTable {
		if cols, err := doccodec.ColumnsFromSchema(page.Status["projectionSchema"]); err != nil {
			return nil, &command.FaultyResponseError{Message: err.Error(), Response: resp}
		} else if cols != nil {
			c.columns = cols
		}
		opts.Columns = c.columns
	}

	docs := make([]ir.Document, 0, len(page.Documents))
	for _, raw := range page.Documents {
		v, err := doccodec.Postprocess(raw, opts)
		if err != nil {
			return nil, err
		}
		doc, ok := v.(ir.Document)
		if !ok {
			return nil, &command.FaultyResponseError{
				Message:  fmt.Sprintf("data.documents holds a %s, not a document", ir.TypeName(v)),
				Response: resp,
			}
		}
		docs = append(docs, doc)
	}

	if raw, ok := page.Status["sortVector"]; ok && raw != nil {
		v, err := doccodec.Postprocess(map[string]any{doccodec.KeyVector: raw}, doccodec.Options{})
		if err != nil {
			return nil, err
		}
		if vec, ok := v.(ir.Document)[doccodec.KeyVector].(ir.Vector); ok {
			c.sortVector = vec
		}
	}

	c.pageState = page.NextPageState
	c.pages++
	slog.Debug("cursor page fetched",
		"collection", c.collection,
		"page", c.pages,
		"documents", len(docs),
		"has_more", c.pageState != nil)
	if c.observer != nil {
		c.observer.ObservePage(c.collection, len(docs))
	}
	return docs, nil
}
