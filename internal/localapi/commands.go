package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tiendc/go-deepcopy"

	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/store"
)

// load decodes every document of collection in insertion order.
func (s *Server) load(ctx context.Context, collection string) ([]*entry, error) {
	recs, err := s.store.Scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	entries := make([]*entry, 0, len(recs))
	for _, rec := range recs {
		v, err := doccodec.Postprocess(rec.Body, doccodec.Options{})
		if err != nil {
			return nil, fmt.Errorf("stored document %s: %w", rec.IDKey, err)
		}
		doc, ok := v.(ir.Document)
		if !ok {
			return nil, fmt.Errorf("stored document %s is a %s", rec.IDKey, ir.TypeName(v))
		}
		entries = append(entries, &entry{rec: rec, doc: doc})
	}
	return entries, nil
}

// matching returns the documents selected by the filter of body, ordered by
// its sort clause.
func (s *Server) matching(ctx context.Context, collection string, body map[string]any) ([]*entry, sortSpec, error) {
	filter, err := objectOf(body, "filter")
	if err != nil {
		return nil, sortSpec{}, err
	}
	match, err := compileFilter(filter)
	if err != nil {
		return nil, sortSpec{}, err
	}
	sortRaw, err := objectOf(body, "sort")
	if err != nil {
		return nil, sortSpec{}, err
	}
	spec, err := parseSort(sortRaw)
	if err != nil {
		return nil, sortSpec{}, err
	}

	all, err := s.load(ctx, collection)
	if err != nil {
		return nil, sortSpec{}, err
	}
	selected := all[:0]
	for _, e := range all {
		if match(e.doc) {
			selected = append(selected, e)
		}
	}
	return spec.apply(selected), spec, nil
}

func (s *Server) find(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	options, err := objectOf(body, "options")
	if err != nil {
		return nil, err
	}
	projRaw, err := objectOf(body, "projection")
	if err != nil {
		return nil, err
	}
	proj, err := parseProjection(projRaw)
	if err != nil {
		return nil, err
	}
	skip, err := optionInt(options, "skip")
	if err != nil {
		return nil, err
	}
	limit, err := optionInt(options, "limit")
	if err != nil {
		return nil, err
	}

	entries, spec, err := s.matching(ctx, collection, body)
	if err != nil {
		return nil, err
	}
	entries = entries[min(skip, len(entries)):]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	checksum, err := queryChecksum(collection, body)
	if err != nil {
		return nil, err
	}
	offset := 0
	if token, _ := options["pageState"].(string); token != "" {
		if offset, err = parsePageToken(token, checksum); err != nil {
			return nil, err
		}
	}
	offset = min(offset, len(entries))
	end := min(offset+s.pageSize, len(entries))

	includeSimilarity, _ := options["includeSimilarity"].(bool)
	docs := make([]any, 0, end-offset)
	for _, e := range entries[offset:end] {
		out, err := render(e, proj, includeSimilarity)
		if err != nil {
			return nil, err
		}
		docs = append(docs, out)
	}

	var next any
	if end < len(entries) {
		next = pageToken(end, checksum)
	}
	resp := map[string]any{
		"data": map[string]any{"documents": docs, "nextPageState": next},
	}
	if include, _ := options["includeSortVector"].(bool); include {
		var vec any
		if spec.vector != nil {
			vec = wireFloats(spec.vector.Float64s())
		}
		resp["status"] = map[string]any{"sortVector": vec}
	}
	return resp, nil
}

func (s *Server) findOne(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	options, err := objectOf(body, "options")
	if err != nil {
		return nil, err
	}
	projRaw, err := objectOf(body, "projection")
	if err != nil {
		return nil, err
	}
	proj, err := parseProjection(projRaw)
	if err != nil {
		return nil, err
	}
	entries, _, err := s.matching(ctx, collection, body)
	if err != nil {
		return nil, err
	}
	var doc any
	if len(entries) > 0 {
		includeSimilarity, _ := options["includeSimilarity"].(bool)
		if doc, err = render(entries[0], proj, includeSimilarity); err != nil {
			return nil, err
		}
	}
	return map[string]any{"data": map[string]any{"document": doc}}, nil
}

func render(e *entry, proj projection, includeSimilarity bool) (map[string]any, error) {
	out, err := proj.apply(e.rec.Body)
	if err != nil {
		return nil, err
	}
	if includeSimilarity && e.similarity != nil {
		out["$similarity"] = *e.similarity
	}
	return out, nil
}

func (s *Server) countDocuments(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	entries, _, err := s.matching(ctx, collection, body)
	if err != nil {
		return nil, err
	}
	n := int64(len(entries))
	if n > s.maxCount {
		return map[string]any{"status": map[string]any{"count": s.maxCount, "moreData": true}}, nil
	}
	return map[string]any{"status": map[string]any{"count": n}}, nil
}

// prepare copies a document to insert and gives it an _id when it has none.
func (s *Server) prepare(raw any) (map[string]any, error) {
	src, ok := raw.(map[string]any)
	if !ok {
		return nil, apiErrorf(codeInvalidDocument, "document must be an object, got %T", raw)
	}
	var doc map[string]any
	if err := deepcopy.Copy(&doc, &src); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = s.newID()
	}
	if _, err := doccodec.Postprocess(doc, doccodec.Options{}); err != nil {
		return nil, apiErrorf(codeInvalidDocument, "%v", err)
	}
	return doc, nil
}

// insert stores doc, reporting a duplicate _id as an API error.
func (s *Server) insert(ctx context.Context, collection string, doc map[string]any) error {
	_, err := s.store.Insert(ctx, collection, doc)
	if errors.Is(err, store.ErrDuplicateID) {
		return &apiError{
			Code:    codeDuplicateID,
			Message: "document already exists with the given _id",
			Attrs:   map[string]any{"documentId": doc["_id"]},
		}
	}
	return err
}

func (s *Server) insertOne(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	doc, err := s.prepare(body["document"])
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, collection, doc); err != nil {
		return nil, err
	}
	return map[string]any{"status": map[string]any{"insertedIds": []any{doc["_id"]}}}, nil
}

// insertMany stores documents one by one. An ordered insertion stops at the
// first failure; an unordered one attempts every document. Failures are
// reported next to the ids that were inserted.
func (s *Server) insertMany(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	raw, ok := body["documents"].([]any)
	if !ok {
		return nil, apiErrorf(codeInvalidDocument, "documents must be an array")
	}
	options, err := objectOf(body, "options")
	if err != nil {
		return nil, err
	}
	ordered, _ := options["ordered"].(bool)

	ids := []any{}
	var failures []any
	for _, item := range raw {
		doc, err := s.prepare(item)
		if err == nil {
			err = s.insert(ctx, collection, doc)
		}
		var apiErr *apiError
		switch {
		case err == nil:
			ids = append(ids, doc["_id"])
			continue
		case errors.As(err, &apiErr):
			failures = append(failures, apiErr.descriptor())
		default:
			return nil, err
		}
		if ordered {
			break
		}
	}

	resp := map[string]any{"status": map[string]any{"insertedIds": ids}}
	if len(failures) > 0 {
		resp["errors"] = failures
	}
	return resp, nil
}

// upsert inserts the document an update with no match creates.
func (s *Server) upsert(ctx context.Context, collection string, filter map[string]any, ops updateOps) (any, error) {
	doc, err := seedFromFilter(filter)
	if err != nil {
		return nil, err
	}
	if err := ops.apply(doc, true); err != nil {
		return nil, err
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = s.newID()
	}
	if err := s.insert(ctx, collection, doc); err != nil {
		return nil, err
	}
	return doc["_id"], nil
}

// modify applies ops to a copy of the stored document and writes it back
// when it changed.
func (s *Server) modify(ctx context.Context, collection string, e *entry, ops updateOps) (bool, error) {
	var doc map[string]any
	if err := deepcopy.Copy(&doc, &e.rec.Body); err != nil {
		return false, err
	}
	if err := ops.apply(doc, false); err != nil {
		return false, err
	}
	return s.store.Replace(ctx, collection, e.rec, doc)
}

func (s *Server) updateOne(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	filter, ops, upsert, err := updateArgs(body)
	if err != nil {
		return nil, err
	}
	entries, _, err := s.matching(ctx, collection, body)
	if err != nil {
		return nil, err
	}

	status := map[string]any{"matchedCount": int64(0), "modifiedCount": int64(0)}
	switch {
	case len(entries) > 0:
		changed, err := s.modify(ctx, collection, entries[0], ops)
		if err != nil {
			return nil, err
		}
		status["matchedCount"] = int64(1)
		if changed {
			status["modifiedCount"] = int64(1)
		}
	case upsert:
		id, err := s.upsert(ctx, collection, filter, ops)
		if err != nil {
			return nil, err
		}
		status["upsertedId"] = id
	}
	return map[string]any{"status": status}, nil
}

// updateMany updates at most one round of matching documents. The page
// state is the insertion sequence of the last document processed.
func (s *Server) updateMany(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	filter, ops, upsert, err := updateArgs(body)
	if err != nil {
		return nil, err
	}
	options, err := objectOf(body, "options")
	if err != nil {
		return nil, err
	}
	var after int64
	token, _ := options["pageState"].(string)
	if token != "" {
		if after, err = strconv.ParseInt(token, 10, 64); err != nil {
			return nil, apiErrorf(codeInvalidPageState, "malformed page state")
		}
	}

	entries, _, err := s.matching(ctx, collection, map[string]any{"filter": filter})
	if err != nil {
		return nil, err
	}
	pending := entries[:0]
	for _, e := range entries {
		if e.rec.Seq > after {
			pending = append(pending, e)
		}
	}

	var matched, modified int64
	status := map[string]any{}
	for i, e := range pending {
		if i == s.pageSize {
			status["moreData"] = true
			status["nextPageState"] = strconv.FormatInt(pending[i-1].rec.Seq, 10)
			break
		}
		changed, err := s.modify(ctx, collection, e, ops)
		if err != nil {
			return nil, err
		}
		matched++
		if changed {
			modified++
		}
	}
	status["matchedCount"] = matched
	status["modifiedCount"] = modified

	if len(entries) == 0 && token == "" && upsert {
		id, err := s.upsert(ctx, collection, filter, ops)
		if err != nil {
			return nil, err
		}
		status["upsertedId"] = id
	}
	return map[string]any{"status": status}, nil
}

func updateArgs(body map[string]any) (map[string]any, updateOps, bool, error) {
	filter, err := objectOf(body, "filter")
	if err != nil {
		return nil, nil, false, err
	}
	rawUpdate, err := objectOf(body, "update")
	if err != nil {
		return nil, nil, false, err
	}
	ops, err := parseUpdate(rawUpdate)
	if err != nil {
		return nil, nil, false, err
	}
	options, err := objectOf(body, "options")
	if err != nil {
		return nil, nil, false, err
	}
	upsert, _ := options["upsert"].(bool)
	return filter, ops, upsert, nil
}

// findOneAndReplace replaces the first matching document, keeping its _id,
// and returns it as it was before (or after, with returnDocument "after").
func (s *Server) findOneAndReplace(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	options, err := objectOf(body, "options")
	if err != nil {
		return nil, err
	}
	upsert, _ := options["upsert"].(bool)
	returnAfter := options["returnDocument"] == "after"

	src, ok := body["replacement"].(map[string]any)
	if !ok {
		return nil, apiErrorf(codeInvalidDocument, "replacement must be an object")
	}
	var replacement map[string]any
	if err := deepcopy.Copy(&replacement, &src); err != nil {
		return nil, err
	}
	if replacement == nil {
		replacement = map[string]any{}
	}

	entries, _, err := s.matching(ctx, collection, body)
	if err != nil {
		return nil, err
	}
	status := map[string]any{"matchedCount": int64(0), "modifiedCount": int64(0)}
	var document any

	switch {
	case len(entries) > 0:
		e := entries[0]
		if id, ok := replacement["_id"]; ok && !sameID(id, e.rec.Body["_id"]) {
			return nil, apiErrorf(codeChangedID, "replacement cannot change _id")
		}
		replacement["_id"] = e.rec.Body["_id"]
		changed, err := s.store.Replace(ctx, collection, e.rec, replacement)
		if err != nil {
			return nil, err
		}
		status["matchedCount"] = int64(1)
		if changed {
			status["modifiedCount"] = int64(1)
		}
		document = e.rec.Body
		if returnAfter {
			document = replacement
		}
	case upsert:
		if _, ok := replacement["_id"]; !ok {
			filter, _ := objectOf(body, "filter")
			seed, err := seedFromFilter(filter)
			if err != nil {
				return nil, err
			}
			if id, ok := seed["_id"]; ok {
				replacement["_id"] = id
			} else {
				replacement["_id"] = s.newID()
			}
		}
		if err := s.insert(ctx, collection, replacement); err != nil {
			return nil, err
		}
		status["upsertedId"] = replacement["_id"]
		if returnAfter {
			document = replacement
		}
	}
	return map[string]any{"data": map[string]any{"document": document}, "status": status}, nil
}

func sameID(a, b any) bool {
	ka, errA := store.IDKey(a)
	kb, errB := store.IDKey(b)
	return errA == nil && errB == nil && ka == kb
}

func (s *Server) deleteOne(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	entries, _, err := s.matching(ctx, collection, body)
	if err != nil {
		return nil, err
	}
	var n int64
	if len(entries) > 0 {
		if n, err = s.store.Delete(ctx, collection, entries[0].rec.IDKey); err != nil {
			return nil, err
		}
	}
	return map[string]any{"status": map[string]any{"deletedCount": n}}, nil
}

// deleteMany deletes one round of matching documents. An empty filter
// clears the collection without counting and reports -1.
func (s *Server) deleteMany(ctx context.Context, collection string, body map[string]any) (map[string]any, error) {
	filter, err := objectOf(body, "filter")
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		if _, err := s.store.Truncate(ctx, collection); err != nil {
			return nil, err
		}
		return map[string]any{"status": map[string]any{"deletedCount": int64(-1)}}, nil
	}

	entries, _, err := s.matching(ctx, collection, map[string]any{"filter": filter})
	if err != nil {
		return nil, err
	}
	batch := entries[:min(s.pageSize, len(entries))]
	keys := make([]string, len(batch))
	for i, e := range batch {
		keys[i] = e.rec.IDKey
	}
	n, err := s.store.Delete(ctx, collection, keys...)
	if err != nil {
		return nil, err
	}
	status := map[string]any{"deletedCount": n}
	if len(entries) > len(batch) {
		status["moreData"] = true
	}
	return map[string]any{"status": status}, nil
}

// objectOf returns body[key] as an object. A missing or null key is nil.
func objectOf(body map[string]any, key string) (map[string]any, error) {
	raw, ok := body[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, apiErrorf(codeInvalidOption, "%s must be an object, got %T", key, raw)
	}
	return m, nil
}

func optionInt(options map[string]any, key string) (int, error) {
	raw, ok := options[key]
	if !ok || raw == nil {
		return 0, nil
	}
	n, err := intOf(raw)
	if err != nil || n < 0 {
		return 0, apiErrorf(codeInvalidOption, "options.%s must be a non-negative integer", key)
	}
	return n, nil
}

func intOf(raw any) (int, error) {
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	}
	return 0, fmt.Errorf("expected integer, got %T", raw)
}

func wireFloats(fs []float64) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}
