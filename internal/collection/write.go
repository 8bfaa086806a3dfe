package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/docwire/internal/bulk"
	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/results"
)

// InsertOne inserts document and returns its id, generated by the server
// when the document has no _id.
func (c *Collection) InsertOne(ctx context.Context, document map[string]any) (results.InsertOneResult, error) {
	resp, err := c.run(ctx, command.New("insertOne").With("document", document), c.deadline())
	if err != nil {
		return results.InsertOneResult{}, err
	}
	ids, err := c.insertedIDs(resp)
	if err != nil {
		return results.InsertOneResult{}, err
	}
	if len(ids) == 0 {
		return results.InsertOneResult{}, &command.FaultyResponseError{
			Message:  "insertOne response has no status.insertedIds",
			Response: resp,
		}
	}
	return results.InsertOneResult{InsertedID: ids[0], RawResults: []map[string]any{resp}}, nil
}

// InsertManyOptions tune a single InsertMany call. Zero values fall back to
// the collection settings; an ordered insertion defaults to one chunk at a
// time.
type InsertManyOptions struct {
	Ordered     bool
	ChunkSize   int
	Concurrency int
}

// InsertMany inserts documents in chunks with the collection defaults. See
// InsertManyWith.
func (c *Collection) InsertMany(ctx context.Context, documents []map[string]any, ordered bool) (results.InsertManyResult, error) {
	return c.InsertManyWith(ctx, documents, InsertManyOptions{Ordered: ordered})
}

// InsertManyWith splits documents into chunks and sends one insertMany per
// chunk.
//
// An ordered insertion sends chunks one after another and stops at the
// first chunk that reports an error. An unordered insertion attempts every
// chunk, with at most Concurrency in flight, and reports failures once all
// of them are done. In both cases the returned result lists every id that
// was inserted, in chunk order, and a failure is an *InsertManyError
// carrying that same result.
func (c *Collection) InsertManyWith(ctx context.Context, documents []map[string]any, opts InsertManyOptions) (results.InsertManyResult, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = c.chunkSize
	}
	if chunkSize < 1 || chunkSize > MaxChunkSize {
		return results.InsertManyResult{}, fmt.Errorf("insert many: chunk size %d outside [1, %d]", chunkSize, MaxChunkSize)
	}
	concurrency := opts.Concurrency
	if opts.Ordered {
		if concurrency > 1 {
			return results.InsertManyResult{}, bulk.ErrOrderedConcurrency
		}
		concurrency = 1
	} else if concurrency == 0 {
		concurrency = c.concurrency
	}
	if concurrency < 1 {
		return results.InsertManyResult{}, fmt.Errorf("insert many: concurrency %d must be positive", concurrency)
	}

	var chunks [][]map[string]any
	for i := 0; i < len(documents); i += chunkSize {
		chunks = append(chunks, documents[i:min(i+chunkSize, len(documents))])
	}
	slog.Info("inserting documents",
		"collection", c.name,
		"documents", len(documents),
		"chunks", len(chunks),
		"ordered", opts.Ordered,
		"concurrency", concurrency)

	dl := c.deadline()
	if opts.Ordered {
		return c.insertOrdered(ctx, chunks, dl)
	}
	return c.insertUnordered(ctx, chunks, concurrency, dl)
}

func (c *Collection) insertChunk(ctx context.Context, chunk []map[string]any, ordered bool, dl *command.Deadline) (map[string]any, error) {
	cmd := command.New("insertMany").
		With("documents", plainDocuments(chunk)).
		With("options", map[string]any{"ordered": ordered})
	return c.send(ctx, cmd, dl)
}

func (c *Collection) insertOrdered(ctx context.Context, chunks [][]map[string]any, dl *command.Deadline) (results.InsertManyResult, error) {
	var res results.InsertManyResult
	for i, chunk := range chunks {
		resp, err := c.insertChunk(ctx, chunk, true, dl)
		if err != nil {
			return res, &InsertManyError{Partial: res, Errs: []error{err}}
		}
		ids, err := c.insertedIDs(resp)
		if err != nil {
			return res, &InsertManyError{Partial: res, Errs: []error{err}}
		}
		res.InsertedIDs = append(res.InsertedIDs, ids...)
		res.RawResults = append(res.RawResults, resp)
		if err := command.CheckResponse("insertMany", resp); err != nil {
			slog.Warn("ordered insert stopped",
				"collection", c.name,
				"chunk", i,
				"inserted", len(res.InsertedIDs),
				"error", err)
			return res, &InsertManyError{Partial: res, Errs: []error{err}}
		}
	}
	return res, nil
}

func (c *Collection) insertUnordered(ctx context.Context, chunks [][]map[string]any, concurrency int, dl *command.Deadline) (results.InsertManyResult, error) {
	responses := make([]map[string]any, len(chunks))
	errs := make([]error, len(chunks))

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(chunks); j++ {
				errs[j] = err
			}
			break
		}
		wg.Go(func() {
			defer sem.Release(1)
			responses[i], errs[i] = c.insertChunk(ctx, chunk, false, dl)
		})
	}
	wg.Wait()

	var (
		res    results.InsertManyResult
		failed []error
	)
	for i, resp := range responses {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("chunk %d: %w", i, errs[i]))
			continue
		}
		ids, err := c.insertedIDs(resp)
		if err != nil {
			failed = append(failed, fmt.Errorf("chunk %d: %w", i, err))
			continue
		}
		res.InsertedIDs = append(res.InsertedIDs, ids...)
		res.RawResults = append(res.RawResults, resp)
		if err := command.CheckResponse("insertMany", resp); err != nil {
			failed = append(failed, fmt.Errorf("chunk %d: %w", i, err))
		}
	}
	if len(failed) > 0 {
		slog.Warn("unordered insert had failures",
			"collection", c.name,
			"chunks", len(chunks),
			"failed", len(failed),
			"inserted", len(res.InsertedIDs))
		return res, &InsertManyError{Partial: res, Errs: failed}
	}
	return res, nil
}

// insertedIDs decodes status.insertedIds. A missing list reads as empty.
func (c *Collection) insertedIDs(resp map[string]any) ([]ir.Value, error) {
	raw, ok := command.Status(resp)["insertedIds"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &command.FaultyResponseError{
			Message:  fmt.Sprintf("status.insertedIds is %T, not an array", raw),
			Response: resp,
		}
	}
	ids := make([]ir.Value, len(list))
	for i, item := range list {
		id, err := c.decodeValue(item)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// UpdateOne applies update to the first document matching filter.
func (c *Collection) UpdateOne(ctx context.Context, filter, update map[string]any, upsert bool) (results.UpdateResult, error) {
	cmd := command.New("updateOne").
		With("filter", filter).
		With("update", update).
		With("options", map[string]any{"upsert": upsert})
	resp, err := c.run(ctx, cmd, c.deadline())
	if err != nil {
		return results.UpdateResult{}, err
	}
	status := command.Status(resp)
	if status == nil {
		return results.UpdateResult{}, &command.FaultyResponseError{Message: "updateOne response has no status", Response: resp}
	}
	info, err := c.updateInfo([]map[string]any{status})
	if err != nil {
		return results.UpdateResult{}, err
	}
	return results.UpdateResult{Info: info, RawResults: []map[string]any{resp}}, nil
}

// UpdateMany applies update to every document matching filter. The server
// may process the update in several rounds; UpdateMany follows
// status.nextPageState until it is absent.
func (c *Collection) UpdateMany(ctx context.Context, filter, update map[string]any, upsert bool) (results.UpdateResult, error) {
	dl := c.deadline()
	var (
		raws     []map[string]any
		statuses []map[string]any
		options  = map[string]any{"upsert": upsert}
	)
	partial := func(err error) (results.UpdateResult, error) {
		info, ierr := c.updateInfo(statuses)
		if ierr != nil {
			err = errors.Join(err, ierr)
		}
		res := results.UpdateResult{Info: info, RawResults: raws}
		return res, &UpdateManyError{Partial: res, Err: err}
	}

	for {
		cmd := command.New("updateMany").
			With("filter", filter).
			With("update", update).
			With("options", options)
		resp, err := c.run(ctx, cmd, dl)
		if err != nil {
			return partial(err)
		}
		status := command.Status(resp)
		if status == nil {
			return partial(&command.FaultyResponseError{Message: "updateMany response has no status", Response: resp})
		}
		raws = append(raws, resp)
		statuses = append(statuses, status)

		next, _ := status["nextPageState"].(string)
		if next == "" {
			break
		}
		options = map[string]any{"upsert": upsert, "pageState": next}
	}

	info, err := c.updateInfo(statuses)
	if err != nil {
		return results.UpdateResult{}, err
	}
	slog.Debug("update many complete", "collection", c.name, "rounds", len(raws), "matched", info.N)
	return results.UpdateResult{Info: info, RawResults: raws}, nil
}

// ReplaceOne replaces the first document matching filter.
func (c *Collection) ReplaceOne(ctx context.Context, filter, replacement map[string]any, upsert bool) (results.UpdateResult, error) {
	cmd := command.New("findOneAndReplace").
		With("filter", filter).
		With("replacement", replacement).
		With("options", map[string]any{"upsert": upsert})
	resp, err := c.run(ctx, cmd, c.deadline())
	if err != nil {
		return results.UpdateResult{}, err
	}
	if _, ok := command.Data(resp)["document"]; !ok {
		return results.UpdateResult{}, &command.FaultyResponseError{
			Message:  "findOneAndReplace response has no data.document",
			Response: resp,
		}
	}
	status := command.Status(resp)
	if status == nil {
		status = map[string]any{}
	}
	info, err := c.updateInfo([]map[string]any{status})
	if err != nil {
		return results.UpdateResult{}, err
	}
	return results.UpdateResult{Info: info, RawResults: []map[string]any{resp}}, nil
}

// updateInfo sums matched and modified counts over statuses and collects
// upserted ids. Several upserted ids are reported as a List.
func (c *Collection) updateInfo(statuses []map[string]any) (results.UpdateInfo, error) {
	var (
		info     results.UpdateInfo
		upserted ir.List
	)
	for _, status := range statuses {
		wrapped := map[string]any{"status": status}
		matched, err := command.StatusInt(wrapped, "matchedCount")
		if err != nil {
			return info, err
		}
		modified, err := command.StatusInt(wrapped, "modifiedCount")
		if err != nil {
			return info, err
		}
		info.N += matched
		info.NModified += modified
		if raw, ok := status["upsertedId"]; ok {
			id, err := c.decodeValue(raw)
			if err != nil {
				return info, err
			}
			upserted = append(upserted, id)
		}
	}
	info.N += int64(len(upserted))
	info.UpdatedExisting = info.NModified > 0
	switch len(upserted) {
	case 0:
	case 1:
		info.Upserted = upserted[0]
	default:
		info.Upserted = upserted
	}
	return info, nil
}

// DeleteOne deletes the first document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter map[string]any) (results.DeleteResult, error) {
	resp, err := c.run(ctx, command.New("deleteOne").With("filter", filter), c.deadline())
	if err != nil {
		return results.DeleteResult{}, err
	}
	n, err := deletedCount(resp)
	if err != nil {
		return results.DeleteResult{}, err
	}
	return results.DeleteResult{DeletedCount: n, RawResults: []map[string]any{resp}}, nil
}

// DeleteMany deletes every document matching filter, repeating the command
// while the server reports status.moreData. A server that does not count
// deletions yields results.UnknownCount.
func (c *Collection) DeleteMany(ctx context.Context, filter map[string]any) (results.DeleteResult, error) {
	dl := c.deadline()
	res := results.DeleteResult{}
	cmd := command.New("deleteMany").With("filter", filter)
	for {
		resp, err := c.run(ctx, cmd, dl)
		if err != nil {
			return res, &DeleteManyError{Partial: res, Err: err}
		}
		n, err := deletedCount(resp)
		if err != nil {
			return res, &DeleteManyError{Partial: res, Err: err}
		}
		res.RawResults = append(res.RawResults, resp)
		if n == results.UnknownCount || res.DeletedCount == results.UnknownCount {
			res.DeletedCount = results.UnknownCount
		} else {
			res.DeletedCount += n
		}
		if more, _ := command.Status(resp)["moreData"].(bool); !more {
			break
		}
	}
	slog.Debug("delete many complete", "collection", c.name, "rounds", len(res.RawResults), "deleted", res.DeletedCount)
	return res, nil
}

func deletedCount(resp map[string]any) (int64, error) {
	if _, ok := command.Status(resp)["deletedCount"]; !ok {
		return 0, &command.FaultyResponseError{Message: "response has no status.deletedCount", Response: resp}
	}
	return command.StatusInt(resp, "deletedCount")
}

// BulkWrite runs ops against the collection. An unordered write with no
// concurrency set uses the collection's bulk concurrency.
func (c *Collection) BulkWrite(ctx context.Context, ops []bulk.Operation, opts bulk.Options) (results.BulkWriteResult, error) {
	if !opts.Ordered && opts.Concurrency == 0 {
		opts.Concurrency = c.bulkConcurrency
	}
	slog.Info("bulk write",
		"collection", c.name,
		"operations", len(ops),
		"ordered", opts.Ordered,
		"concurrency", opts.Concurrency)
	return bulk.Execute(ctx, c, ops, opts)
}

var _ bulk.Target = (*Collection)(nil)
