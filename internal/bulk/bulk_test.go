package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/results"
)

var errRejected = errors.New("rejected")

// memTarget keeps documents in memory. Documents whose "fail" field is true
// are rejected.
type memTarget struct {
	mu       sync.Mutex
	docs     []map[string]any
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (m *memTarget) enter() func() {
	n := m.inFlight.Add(1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return func() { m.inFlight.Add(-1) }
}

func matches(doc, filter map[string]any) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func (m *memTarget) InsertOne(ctx context.Context, document map[string]any) (results.InsertOneResult, error) {
	res, err := m.InsertMany(ctx, []map[string]any{document}, true)
	if err != nil {
		return results.InsertOneResult{}, err
	}
	return results.InsertOneResult{InsertedID: res.InsertedIDs[0], RawResults: res.RawResults}, nil
}

func (m *memTarget) InsertMany(_ context.Context, documents []map[string]any, ordered bool) (results.InsertManyResult, error) {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		res    results.InsertManyResult
		failed bool
	)
	for _, d := range documents {
		if d["fail"] == true {
			failed = true
			if ordered {
				break
			}
			continue
		}
		m.docs = append(m.docs, d)
		res.InsertedIDs = append(res.InsertedIDs, ir.MustFrom(d["_id"]))
	}
	res.RawResults = []map[string]any{{"status": map[string]any{"insertedIds": len(res.InsertedIDs)}}}
	if failed {
		return res, errRejected
	}
	return res, nil
}

func (m *memTarget) update(filter map[string]any, many bool) results.UpdateResult {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.docs {
		if matches(d, filter) {
			n++
			if !many {
				break
			}
		}
	}
	return results.UpdateResult{Info: results.UpdateInfo{N: n, NModified: n, UpdatedExisting: n > 0}}
}

func (m *memTarget) UpdateOne(_ context.Context, filter, _ map[string]any, _ bool) (results.UpdateResult, error) {
	return m.update(filter, false), nil
}

func (m *memTarget) UpdateMany(_ context.Context, filter, _ map[string]any, _ bool) (results.UpdateResult, error) {
	return m.update(filter, true), nil
}

func (m *memTarget) ReplaceOne(_ context.Context, filter, _ map[string]any, upsert bool) (results.UpdateResult, error) {
	res := m.update(filter, false)
	if res.Info.N == 0 && upsert {
		res.Info = results.UpdateInfo{N: 1, Upserted: ir.Text("upserted")}
	}
	return res, nil
}

func (m *memTarget) delete(filter map[string]any, many bool) results.DeleteResult {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		kept    []map[string]any
		deleted int64
	)
	for _, d := range m.docs {
		if matches(d, filter) && (many || deleted == 0) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	m.docs = kept
	return results.DeleteResult{DeletedCount: deleted}
}

func (m *memTarget) DeleteOne(_ context.Context, filter map[string]any) (results.DeleteResult, error) {
	return m.delete(filter, false), nil
}

func (m *memTarget) DeleteMany(_ context.Context, filter map[string]any) (results.DeleteResult, error) {
	return m.delete(filter, true), nil
}

func seeded(n int) *memTarget {
	m := &memTarget{}
	for i := 0; i < n; i++ {
		m.docs = append(m.docs, map[string]any{"_id": fmt.Sprintf("old-%d", i), "tag": "old"})
	}
	return m
}

func docRange(from, to int) []map[string]any {
	docs := make([]map[string]any, 0, to-from+1)
	for i := from; i <= to; i++ {
		docs = append(docs, map[string]any{"_id": fmt.Sprintf("d%d", i), "tag": "new"})
	}
	return docs
}

func TestExecute_UnorderedSameAggregateAtAnyConcurrency(t *testing.T) {
	ops := []Operation{
		InsertMany{Documents: docRange(1, 50)},
		InsertMany{Documents: docRange(51, 100)},
		DeleteMany{Filter: map[string]any{"tag": "old"}},
	}

	run := func(concurrency int) results.BulkWriteResult {
		res, err := Execute(context.Background(), seeded(7), ops, Options{Concurrency: concurrency})
		require.NoError(t, err)
		return res
	}
	one, eight := run(1), run(8)

	assert.Equal(t, one, eight)
	assert.Equal(t, int64(100), one.InsertedCount)
	assert.Equal(t, int64(7), one.DeletedCount)
	assert.Len(t, one.BulkAPIResults, 3)
}

func TestExecute_Ordered(t *testing.T) {
	target := seeded(2)
	res, err := Execute(context.Background(), target, []Operation{
		InsertOne{Document: map[string]any{"_id": "a", "tag": "new"}},
		UpdateMany{Filter: map[string]any{"tag": "old"}, Update: map[string]any{"$set": map[string]any{"x": 1}}},
		ReplaceOne{Filter: map[string]any{"_id": "zzz"}, Replacement: map[string]any{"y": 1}, Upsert: true},
		DeleteOne{Filter: map[string]any{"tag": "old"}},
	}, Options{Ordered: true})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.InsertedCount)
	assert.Equal(t, int64(2), res.MatchedCount)
	assert.Equal(t, int64(1), res.UpsertedCount)
	assert.Equal(t, map[int]ir.Value{2: ir.Text("upserted")}, res.UpsertedIDs)
	assert.Equal(t, int64(1), res.DeletedCount)
}

func TestExecute_OrderedStopsAtFirstFailure(t *testing.T) {
	target := seeded(0)
	res, err := Execute(context.Background(), target, []Operation{
		InsertOne{Document: map[string]any{"_id": "a"}},
		InsertMany{Documents: []map[string]any{{"_id": "b"}, {"_id": "c", "fail": true}, {"_id": "d"}}, Ordered: true},
		InsertOne{Document: map[string]any{"_id": "e"}},
	}, Options{Ordered: true})
	require.Error(t, err)

	var be *BulkWriteError
	require.ErrorAs(t, err, &be)
	require.Len(t, be.Errors, 1)
	assert.Equal(t, 1, be.Errors[0].Index)
	assert.ErrorIs(t, err, errRejected)

	// "a" and the partial "b" stand; "e" never ran.
	assert.Equal(t, int64(2), res.InsertedCount)
	assert.Equal(t, res, be.Partial)
	assert.Len(t, target.docs, 2)
}

func TestExecute_UnorderedAttemptsEverything(t *testing.T) {
	target := seeded(0)
	res, err := Execute(context.Background(), target, []Operation{
		InsertOne{Document: map[string]any{"_id": "a", "fail": true}},
		InsertOne{Document: map[string]any{"_id": "b"}},
		InsertOne{Document: map[string]any{"_id": "c", "fail": true}},
		InsertOne{Document: map[string]any{"_id": "d"}},
	}, Options{Concurrency: 2})
	require.Error(t, err)

	var be *BulkWriteError
	require.ErrorAs(t, err, &be)
	require.Len(t, be.Errors, 2)
	assert.Equal(t, 0, be.Errors[0].Index)
	assert.Equal(t, 2, be.Errors[1].Index)
	assert.Equal(t, int64(2), res.InsertedCount)
}

func TestExecute_UnorderedRespectsConcurrency(t *testing.T) {
	target := seeded(0)
	target.delay = 5 * time.Millisecond
	ops := make([]Operation, 12)
	for i := range ops {
		ops[i] = InsertOne{Document: map[string]any{"_id": fmt.Sprint(i)}}
	}
	_, err := Execute(context.Background(), target, ops, Options{Concurrency: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, target.peak.Load(), int32(3))
	assert.Len(t, target.docs, 12)
}

func TestExecute_CancelledSkipsUnstarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := seeded(0)
	res, err := Execute(ctx, target, []Operation{
		InsertOne{Document: map[string]any{"_id": "a"}},
		InsertOne{Document: map[string]any{"_id": "b"}},
	}, Options{Concurrency: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.InsertedCount)
	assert.Empty(t, target.docs)
}

func TestExecute_OrderedRejectsConcurrency(t *testing.T) {
	_, err := Execute(context.Background(), seeded(0), nil, Options{Ordered: true, Concurrency: 4})
	assert.ErrorIs(t, err, ErrOrderedConcurrency)
}

func TestExecute_Empty(t *testing.T) {
	res, err := Execute(context.Background(), seeded(0), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, results.Zero(), res)
}
