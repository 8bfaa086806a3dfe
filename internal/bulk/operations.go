package bulk

import (
	"context"

	"github.com/roach88/docwire/internal/results"
)

// Target is the collection surface bulk operations run against.
//
// InsertMany returns the ids inserted so far together with any error, so
// partial insertions are still counted.
type Target interface {
	InsertOne(ctx context.Context, document map[string]any) (results.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []map[string]any, ordered bool) (results.InsertManyResult, error)
	UpdateOne(ctx context.Context, filter, update map[string]any, upsert bool) (results.UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update map[string]any, upsert bool) (results.UpdateResult, error)
	ReplaceOne(ctx context.Context, filter, replacement map[string]any, upsert bool) (results.UpdateResult, error)
	DeleteOne(ctx context.Context, filter map[string]any) (results.DeleteResult, error)
	DeleteMany(ctx context.Context, filter map[string]any) (results.DeleteResult, error)
}

// Operation is one write of a bulk request. index is the operation's
// position in the request and keys its entries in the result.
type Operation interface {
	Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error)
}

// InsertOne inserts a single document.
type InsertOne struct {
	Document map[string]any
}

func (op InsertOne) Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error) {
	res, err := target.InsertOne(ctx, op.Document)
	if err != nil {
		return results.Zero(), err
	}
	return res.ToBulkWriteResult(index), nil
}

// InsertMany inserts several documents. A failed insertion still reports
// the documents inserted before (ordered) or besides (unordered) the failure.
type InsertMany struct {
	Documents []map[string]any
	Ordered   bool
}

func (op InsertMany) Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error) {
	res, err := target.InsertMany(ctx, op.Documents, op.Ordered)
	return res.ToBulkWriteResult(index), err
}

// UpdateOne updates the first matching document.
type UpdateOne struct {
	Filter map[string]any
	Update map[string]any
	Upsert bool
}

func (op UpdateOne) Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error) {
	res, err := target.UpdateOne(ctx, op.Filter, op.Update, op.Upsert)
	if err != nil {
		return results.Zero(), err
	}
	return res.ToBulkWriteResult(index), nil
}

// UpdateMany updates every matching document.
type UpdateMany struct {
	Filter map[string]any
	Update map[string]any
	Upsert bool
}

func (op UpdateMany) Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error) {
	res, err := target.UpdateMany(ctx, op.Filter, op.Update, op.Upsert)
	if err != nil {
		return results.Zero(), err
	}
	return res.ToBulkWriteResult(index), nil
}

// ReplaceOne replaces the first matching document.
type ReplaceOne struct {
	Filter      map[string]any
	Replacement map[string]any
	Upsert      bool
}

func (op ReplaceOne) Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error) {
	res, err := target.ReplaceOne(ctx, op.Filter, op.Replacement, op.Upsert)
	if err != nil {
		return results.Zero(), err
	}
	return res.ToBulkWriteResult(index), nil
}

// DeleteOne deletes the first matching document.
type DeleteOne struct {
	Filter map[string]any
}

func (op DeleteOne) Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error) {
	res, err := target.DeleteOne(ctx, op.Filter)
	if err != nil {
		return results.Zero(), err
	}
	return res.ToBulkWriteResult(index), nil
}

// DeleteMany deletes every matching document.
type DeleteMany struct {
	Filter map[string]any
}

func (op DeleteMany) Execute(ctx context.Context, target Target, index int) (results.BulkWriteResult, error) {
	res, err := target.DeleteMany(ctx, op.Filter)
	if err != nil {
		return results.Zero(), err
	}
	return res.ToBulkWriteResult(index), nil
}
