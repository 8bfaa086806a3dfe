// Package results holds the outcomes of write commands and the reduction
// of many outcomes into one bulk summary.
package results

import (
	"maps"

	"github.com/roach88/docwire/internal/ir"
)

// UnknownCount marks a count the server did not report. It absorbs every
// other value when results are merged.
const UnknownCount int64 = -1

// InsertOneResult is the outcome of a single insertion.
type InsertOneResult struct {
	InsertedID ir.Value
	RawResults []map[string]any
}

// ToBulkWriteResult expresses r as the outcome of operation index.
func (r InsertOneResult) ToBulkWriteResult(index int) BulkWriteResult {
	return BulkWriteResult{
		BulkAPIResults: map[int][]map[string]any{index: r.RawResults},
		InsertedCount:  1,
		UpsertedIDs:    map[int]ir.Value{},
	}
}

// InsertManyResult lists the ids inserted so far, in request order.
type InsertManyResult struct {
	InsertedIDs []ir.Value
	RawResults  []map[string]any
}

// ToBulkWriteResult expresses r as the outcome of operation index.
func (r InsertManyResult) ToBulkWriteResult(index int) BulkWriteResult {
	return BulkWriteResult{
		BulkAPIResults: map[int][]map[string]any{index: r.RawResults},
		InsertedCount:  int64(len(r.InsertedIDs)),
		UpsertedIDs:    map[int]ir.Value{},
	}
}

// UpdateInfo summarises an update or replace command. Upserted is nil unless
// a document was inserted.
type UpdateInfo struct {
	N               int64
	UpdatedExisting bool
	NModified       int64
	Upserted        ir.Value
}

// UpdateResult is the outcome of an update or replace.
type UpdateResult struct {
	Info       UpdateInfo
	RawResults []map[string]any
}

// ToBulkWriteResult expresses r as the outcome of operation index. An
// upsert counts as an insertion, not a match.
func (r UpdateResult) ToBulkWriteResult(index int) BulkWriteResult {
	out := BulkWriteResult{
		BulkAPIResults: map[int][]map[string]any{index: r.RawResults},
		MatchedCount:   r.Info.N,
		ModifiedCount:  r.Info.NModified,
		UpsertedIDs:    map[int]ir.Value{},
	}
	if r.Info.Upserted != nil {
		out.InsertedCount = 1
		out.MatchedCount = r.Info.N - 1
		out.UpsertedCount = 1
		out.UpsertedIDs[index] = r.Info.Upserted
	}
	return out
}

// DeleteResult is the outcome of a delete. DeletedCount is UnknownCount when
// the server did not report it.
type DeleteResult struct {
	DeletedCount int64
	RawResults   []map[string]any
}

// ToBulkWriteResult expresses r as the outcome of operation index.
func (r DeleteResult) ToBulkWriteResult(index int) BulkWriteResult {
	return BulkWriteResult{
		BulkAPIResults: map[int][]map[string]any{index: r.RawResults},
		DeletedCount:   r.DeletedCount,
		UpsertedIDs:    map[int]ir.Value{},
	}
}

// BulkWriteResult aggregates operation outcomes. BulkAPIResults and
// UpsertedIDs are keyed by the operation's index in the bulk request.
type BulkWriteResult struct {
	BulkAPIResults map[int][]map[string]any
	DeletedCount   int64
	InsertedCount  int64
	MatchedCount   int64
	ModifiedCount  int64
	UpsertedCount  int64
	UpsertedIDs    map[int]ir.Value
}

// Zero returns the identity of Merge.
func Zero() BulkWriteResult {
	return BulkWriteResult{
		BulkAPIResults: map[int][]map[string]any{},
		UpsertedIDs:    map[int]ir.Value{},
	}
}

// Merge combines two results. Counters add, except that an UnknownCount
// deletion count stays unknown. Map entries of o overwrite those of r on
// the same index. Neither input is modified.
func (r BulkWriteResult) Merge(o BulkWriteResult) BulkWriteResult {
	out := BulkWriteResult{
		BulkAPIResults: make(map[int][]map[string]any, len(r.BulkAPIResults)+len(o.BulkAPIResults)),
		InsertedCount:  r.InsertedCount + o.InsertedCount,
		MatchedCount:   r.MatchedCount + o.MatchedCount,
		ModifiedCount:  r.ModifiedCount + o.ModifiedCount,
		UpsertedCount:  r.UpsertedCount + o.UpsertedCount,
		UpsertedIDs:    make(map[int]ir.Value, len(r.UpsertedIDs)+len(o.UpsertedIDs)),
	}
	if r.DeletedCount == UnknownCount || o.DeletedCount == UnknownCount {
		out.DeletedCount = UnknownCount
	} else {
		out.DeletedCount = r.DeletedCount + o.DeletedCount
	}
	maps.Copy(out.BulkAPIResults, r.BulkAPIResults)
	maps.Copy(out.BulkAPIResults, o.BulkAPIResults)
	maps.Copy(out.UpsertedIDs, r.UpsertedIDs)
	maps.Copy(out.UpsertedIDs, o.UpsertedIDs)
	return out
}

// Reduce folds rs from Zero in slice order.
func Reduce(rs []BulkWriteResult) BulkWriteResult {
	acc := Zero()
	for _, r := range rs {
		acc = acc.Merge(r)
	}
	return acc
}
