package collection

import (
	"context"
	"fmt"

	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/cursor"
	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
)

// Find returns an Idle cursor over the documents matching filter. opts are
// applied after the collection defaults.
func (c *Collection) Find(filter map[string]any, opts ...cursor.Option) *cursor.Cursor {
	base := []cursor.Option{
		cursor.WithCodec(c.codec),
		cursor.WithRequestTimeout(c.requestTimeout),
		cursor.WithOverallTimeout(c.methodTimeout),
		cursor.WithClock(c.clock),
		cursor.WithFilter(filter),
	}
	if c.observer != nil {
		base = append(base, cursor.WithObserver(c.observer))
	}
	return cursor.New(c.sender, c.name, append(base, opts...)...)
}

// FindOneOptions shape a FindOne request.
type FindOneOptions struct {
	Projection        map[string]any
	Sort              map[string]any
	IncludeSimilarity bool
}

// FindOne returns the first document matching filter, or nil when nothing
// matches.
func (c *Collection) FindOne(ctx context.Context, filter map[string]any, opts FindOneOptions) (ir.Document, error) {
	cmd := command.New("findOne").With("filter", filter)
	if len(opts.Projection) > 0 {
		cmd = cmd.With("projection", opts.Projection)
	}
	if len(opts.Sort) > 0 {
		cmd = cmd.With("sort", opts.Sort)
	}
	if opts.IncludeSimilarity {
		cmd = cmd.With("options", map[string]any{"includeSimilarity": true})
	}

	resp, err := c.run(ctx, cmd, c.deadline())
	if err != nil {
		return nil, err
	}
	data := command.Data(resp)
	raw, ok := data["document"]
	if !ok {
		return nil, &command.FaultyResponseError{Message: "findOne response has no data.document", Response: resp}
	}
	if raw == nil {
		return nil, nil
	}

	codec := c.codec
	if codec.Mode == doccodec.ModeTable {
		cols, err := doccodec.ColumnsFromSchema(command.Status(resp)["projectionSchema"])
		if err != nil {
			return nil, &command.FaultyResponseError{Message: err.Error(), Response: resp}
		}
		codec.Columns = cols
	}
	v, err := doccodec.Postprocess(raw, codec)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(ir.Document)
	if !ok {
		return nil, &command.FaultyResponseError{
			Message:  fmt.Sprintf("data.document is a %s, not a document", ir.TypeName(v)),
			Response: resp,
		}
	}
	return doc, nil
}

// Distinct returns the distinct values found at key across the documents
// matching filter, in order of first appearance.
func (c *Collection) Distinct(ctx context.Context, key string, filter map[string]any) ([]ir.Value, error) {
	return c.Find(filter).Distinct(ctx, key)
}

// CountDocuments counts the documents matching filter. It fails with a
// *TooManyDocumentsError when the count exceeds upperBound or the server
// stops counting before the end.
func (c *Collection) CountDocuments(ctx context.Context, filter map[string]any, upperBound int64) (int64, error) {
	resp, err := c.run(ctx, command.New("countDocuments").With("filter", filter), c.deadline())
	if err != nil {
		return 0, err
	}
	status := command.Status(resp)
	if _, ok := status["count"]; !ok {
		return 0, &command.FaultyResponseError{Message: "countDocuments response has no status.count", Response: resp}
	}
	count, err := command.StatusInt(resp, "count")
	if err != nil {
		return 0, err
	}
	if more, _ := status["moreData"].(bool); more {
		return 0, &TooManyDocumentsError{Count: count, UpperBound: upperBound, ServerMaxExceeded: true}
	}
	if count > upperBound {
		return 0, &TooManyDocumentsError{Count: count, UpperBound: upperBound}
	}
	return count, nil
}
