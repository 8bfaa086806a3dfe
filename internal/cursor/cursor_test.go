package cursor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/testutil"
)

func doc(kv ...any) map[string]any {
	m := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func threePages() *testutil.ScriptedSender {
	return testutil.NewScriptedSender(
		testutil.Page("A", doc("n", 1), doc("n", 2)),
		testutil.Page("B", doc("n", 3), doc("n", 4)),
		testutil.Page(nil),
	)
}

func TestCursor_PaginatesUntilNullPageState(t *testing.T) {
	sender := threePages()
	c := New(sender, "things")
	ctx := context.Background()
	assert.Equal(t, StateIdle, c.State())

	docs, err := c.ToList(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
	assert.Equal(t, ir.Int(4), docs[3]["n"])
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 4, c.Consumed())
	assert.Equal(t, 3, c.PagesRetrieved())
	require.Equal(t, 3, sender.CallCount())

	assert.Nil(t, sender.Body(0)["options"])
	assert.Equal(t, map[string]any{"pageState": "A"}, sender.Body(1)["options"])
	assert.Equal(t, map[string]any{"pageState": "B"}, sender.Body(2)["options"])

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, sender.CallCount())
}

func TestCursor_SettersOnlyWhileIdle(t *testing.T) {
	c := New(threePages(), "things")
	require.NoError(t, c.SetFilter(map[string]any{"a": 1}))
	require.NoError(t, c.SetLimit(10))

	_, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStarted, c.State())

	setters := map[string]func() error{
		"filter":      func() error { return c.SetFilter(nil) },
		"projection":  func() error { return c.SetProjection(nil) },
		"sort":        func() error { return c.SetSort(nil) },
		"limit":       func() error { return c.SetLimit(1) },
		"skip":        func() error { return c.SetSkip(1) },
		"similarity":  func() error { return c.SetIncludeSimilarity(true) },
		"sort vector": func() error { return c.SetIncludeSortVector(true) },
		"mapper":      func() error { return c.SetMapper(nil) },
	}
	for name, set := range setters {
		err := set()
		assert.True(t, IsStateError(err), name)
		assert.Contains(t, err.Error(), "cursor already started", name)
	}
}

func TestCursor_PayloadCarriesConfiguration(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Page(nil))
	c := New(sender, "things",
		WithFilter(map[string]any{"a": 1}),
		WithProjection(map[string]any{"a": true}),
		WithSort(map[string]any{"$vector": []float64{0.5, 1}}),
		WithLimit(5),
		WithSkip(2),
		WithIncludeSimilarity(true),
		WithIncludeSortVector(true),
		WithCodec(doccodec.Options{BinaryEncodeVectors: true}),
	)
	_, err := c.ToList(context.Background())
	require.NoError(t, err)

	body := sender.Body(0)
	assert.Equal(t, map[string]any{"a": int64(1)}, body["filter"])
	assert.Equal(t, map[string]any{"a": true}, body["projection"])
	assert.Equal(t, map[string]any{"$vector": map[string]any{"$binary": "PwAAAD+AAAA="}}, body["sort"])
	assert.Equal(t, map[string]any{
		"limit":             int64(5),
		"skip":              int64(2),
		"includeSimilarity": true,
		"includeSortVector": true,
	}, body["options"])
}

func TestCursor_RewindRefetchesFromScratch(t *testing.T) {
	sender := testutil.NewScriptedSender(
		testutil.Page("A", doc("n", 1)),
		testutil.Page(nil, doc("n", 2)),
		testutil.Page("A", doc("n", 1)),
	)
	c := New(sender, "things")
	ctx := context.Background()

	first, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), first["n"])
	_, err = c.Next(ctx)
	require.NoError(t, err)

	c.Rewind()
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, c.Consumed())
	assert.Zero(t, c.Buffered())
	require.NoError(t, c.SetLimit(1))

	again, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), again["n"])
	assert.Nil(t, sender.Body(2)["options"].(map[string]any)["pageState"])
	assert.Equal(t, 1, c.PagesRetrieved())
}

func TestCursor_HasNextKeepsIdle(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Page(nil, doc("n", 1)))
	c := New(sender, "things")
	ctx := context.Background()

	ok, err := c.HasNext(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, c.Buffered())

	_, err = c.Next(ctx)
	require.NoError(t, err)
	ok, err = c.HasNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, sender.CallCount())
}

func TestCursor_SetterAfterHasNextRefetches(t *testing.T) {
	sender := testutil.NewScriptedSender(
		testutil.Page("A", doc("n", 1), doc("n", 2)),
		testutil.Page(nil, doc("n", 99)),
	)
	c := New(sender, "things")
	ctx := context.Background()

	ok, err := c.HasNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, c.PagesRetrieved())

	require.NoError(t, c.SetFilter(map[string]any{"n": 99}))
	assert.Zero(t, c.Buffered())
	assert.Zero(t, c.PagesRetrieved())

	docs, err := c.ToList(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, ir.Int(99), docs[0]["n"])

	require.Equal(t, 2, sender.CallCount())
	body := sender.Body(1)
	assert.Equal(t, map[string]any{"n": int64(99)}, body["filter"])
	assert.Nil(t, body["options"])
}

func TestCursor_SetterAfterSortVectorDropsVector(t *testing.T) {
	resp := testutil.PageResponse(nil, doc("n", 1))
	resp["status"] = map[string]any{"sortVector": map[string]any{"$binary": "P4AAAMAAAAA="}}
	sender := testutil.NewScriptedSender(testutil.Reply{Response: resp}, testutil.Page(nil, doc("n", 2)))
	c := New(sender, "things", WithIncludeSortVector(true))
	ctx := context.Background()

	vec, err := c.SortVector(ctx)
	require.NoError(t, err)
	require.NotNil(t, vec)

	require.NoError(t, c.SetLimit(1))
	assert.Zero(t, c.Buffered())

	first, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2), first["n"])
	assert.Equal(t, map[string]any{"limit": int64(1), "includeSortVector": true}, sender.Body(1)["options"])

	vec, err = c.SortVector(ctx)
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestCursor_EmptyFirstPageFetchedOnce(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Page(nil))
	c := New(sender, "things")
	ctx := context.Background()

	ok, err := c.HasNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, sender.CallCount())
	assert.Equal(t, StateClosed, c.State())
}

func TestCursor_ConsumeBuffer(t *testing.T) {
	c := New(threePages(), "things")
	ctx := context.Background()
	_, err := c.Next(ctx)
	require.NoError(t, err)

	got := c.ConsumeBuffer(5)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, c.Consumed())
	assert.Zero(t, c.Buffered())
}

func TestCursor_Close(t *testing.T) {
	sender := threePages()
	c := New(sender, "things")
	c.Close()
	assert.Equal(t, StateClosed, c.State())

	_, err := c.Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Zero(t, sender.CallCount())
}

func TestCursor_Mapper(t *testing.T) {
	c := New(threePages(), "things", WithMapper(func(d ir.Document) (ir.Document, error) {
		return ir.Document{"doubled": ir.Int(int64(d["n"].(ir.Int)) * 2)}, nil
	}))
	first, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2), first["doubled"])
}

func TestCursor_ForEachStops(t *testing.T) {
	sender := threePages()
	c := New(sender, "things")
	var seen int
	require.NoError(t, c.ForEach(context.Background(), func(ir.Document) bool {
		seen++
		return seen < 2
	}))
	assert.Equal(t, 2, seen)
	assert.Equal(t, 1, sender.CallCount())
	assert.Equal(t, StateStarted, c.State())
}

func TestCursor_FetchNextPage(t *testing.T) {
	c := New(threePages(), "things")
	ctx := context.Background()

	page, err := c.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.Len(t, page.Documents, 2)
	assert.Equal(t, "A", *page.NextPageState)

	page, err = c.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", *page.NextPageState)

	page, err = c.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, page.Documents)
	assert.Nil(t, page.NextPageState)
	assert.Equal(t, StateClosed, c.State())

	_, err = c.FetchNextPage(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCursor_FetchNextPageRefusesWithBuffer(t *testing.T) {
	c := New(threePages(), "things")
	_, err := c.Next(context.Background())
	require.NoError(t, err)

	_, err = c.FetchNextPage(context.Background())
	assert.True(t, IsStateError(err))
}

func TestCursor_SortVector(t *testing.T) {
	resp := testutil.PageResponse(nil, doc("n", 1))
	resp["status"] = map[string]any{"sortVector": map[string]any{"$binary": "P4AAAMAAAAA="}}
	sender := testutil.NewScriptedSender(testutil.Reply{Response: resp})
	c := New(sender, "things", WithIncludeSortVector(true))

	vec, err := c.SortVector(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.Vector{1, -2}, vec)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, c.Buffered())
}

func TestCursor_FaultyResponse(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Reply{Response: map[string]any{"data": map[string]any{"documents": []any{}}}})
	c := New(sender, "things")
	_, err := c.Next(context.Background())
	assert.True(t, command.IsFaultyResponseError(err))
}

func TestCursor_ResponseErrors(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Reply{Response: map[string]any{
		"errors": []any{map[string]any{"errorCode": "INVALID_FILTER", "message": "bad"}},
	}})
	c := New(sender, "things")
	_, err := c.Next(context.Background())
	assert.True(t, command.IsResponseError(err))
}

func TestCursor_SenderErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := New(testutil.NewScriptedSender(testutil.Reply{Err: boom}), "things")
	_, err := c.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCursor_RequestTimeoutPassedToSender(t *testing.T) {
	sender := threePages()
	c := New(sender, "things", WithRequestTimeout(2*time.Second))
	_, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, sender.Calls()[0].Timeout)
}

func TestCursor_OverallTimeoutStopsBeforeSending(t *testing.T) {
	clock := testutil.NewManualClock()
	sender := threePages()
	c := New(sender, "things",
		WithRequestTimeout(5*time.Second),
		WithOverallTimeout(10*time.Second),
		WithClock(clock))
	ctx := context.Background()

	_, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, sender.Calls()[0].Timeout)
	_, err = c.Next(ctx)
	require.NoError(t, err)

	clock.Advance(7 * time.Second)
	_, err = c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, sender.Calls()[1].Timeout)
	_, err = c.Next(ctx)
	require.NoError(t, err)

	clock.Advance(4 * time.Second)
	_, err = c.Next(ctx)
	require.Error(t, err)
	assert.True(t, command.IsOverallTimeout(err))

	var te *command.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "find", command.Name(te.Payload))
	assert.Equal(t, 2, sender.CallCount())
}

func TestCursor_CloneIsIndependent(t *testing.T) {
	filter := map[string]any{"nested": map[string]any{"a": 1}}
	c := New(threePages(), "things", WithFilter(filter))
	_, err := c.Next(context.Background())
	require.NoError(t, err)

	clone, err := c.Clone()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, clone.State())
	assert.Zero(t, clone.Consumed())

	filter["nested"].(map[string]any)["a"] = 2
	assert.Equal(t, 1, clone.filter["nested"].(map[string]any)["a"])
}

func TestCursor_TableModeUsesProjectionSchema(t *testing.T) {
	resp := testutil.PageResponse(nil, doc("d", "2024-02-29", "n", "NaN"))
	resp["status"] = map[string]any{"projectionSchema": map[string]any{
		"d": map[string]any{"type": "date"},
		"n": map[string]any{"type": "double"},
	}}
	c := New(testutil.NewScriptedSender(testutil.Reply{Response: resp}), "rows",
		WithCodec(doccodec.Options{Mode: doccodec.ModeTable}))

	row, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "date", ir.TypeName(row["d"]))
	assert.Equal(t, "float", ir.TypeName(row["n"]))
}
