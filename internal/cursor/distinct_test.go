package cursor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/keypath"
	"github.com/roach88/docwire/internal/testutil"
)

func TestDistinct_DedupsInFirstAppearanceOrder(t *testing.T) {
	sender := testutil.NewScriptedSender(
		testutil.Page("A",
			doc("a", map[string]any{"b": 1}),
			doc("a", map[string]any{"b": 1})),
		testutil.Page(nil,
			doc("a", map[string]any{"b": 2})),
	)
	c := New(sender, "things", WithFilter(map[string]any{"kind": "x"}))

	got, err := c.Distinct(context.Background(), "a.b")
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Int(2)}, got)

	body := sender.Body(0)
	assert.Equal(t, map[string]any{"a.b": true}, body["projection"])
	assert.Equal(t, map[string]any{"kind": "x"}, body["filter"])
}

func TestDistinct_LeavesCallerUntouched(t *testing.T) {
	sender := testutil.NewScriptedSender(
		testutil.Page(nil, doc("n", 1), doc("n", 2)),
		testutil.Page(nil, doc("n", 1), doc("n", 2)),
	)
	c := New(sender, "things")
	ctx := context.Background()

	first, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), first["n"])

	values, err := c.Distinct(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Int(2)}, values)

	assert.Equal(t, StateStarted, c.State())
	assert.Equal(t, 1, c.Consumed())
	assert.Equal(t, 1, c.Buffered())
	next, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2), next["n"])
}

func TestDistinct_CompositeValuesByContent(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Page(nil,
		doc("tags", []any{map[string]any{"k": 1, "v": "x"}, map[string]any{"v": "x", "k": 1}}),
		doc("tags", []any{map[string]any{"k": 2}}),
	))
	c := New(sender, "things")

	got, err := c.Distinct(context.Background(), "tags")
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{
		ir.Document{"k": ir.Int(1), "v": ir.Text("x")},
		ir.Document{"k": ir.Int(2)},
	}, got)
}

func TestDistinct_ProjectsSafePrefix(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Page(nil,
		doc("x", []any{map[string]any{"y": "Y", "0": "ZERO"}}),
	))
	c := New(sender, "things")

	got, err := c.Distinct(context.Background(), "x.0")
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Document{"y": ir.Text("Y"), "0": ir.Text("ZERO")}}, got)
	assert.Equal(t, map[string]any{"x": true}, sender.Body(0)["projection"])
}

func TestDistinct_TableProjectsColumnOnly(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Page(nil,
		doc("col", map[string]any{"sub": "a", "other": 1}),
		doc("col", map[string]any{"sub": "b"}),
	))
	c := New(sender, "rows", WithCodec(doccodec.Options{Mode: doccodec.ModeTable}))

	got, err := c.Distinct(context.Background(), "col.sub")
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Text("a"), ir.Text("b")}, got)
	assert.Equal(t, map[string]any{"col": true}, sender.Body(0)["projection"])
}

func TestDistinct_KeepsIntegersAndFloatsApart(t *testing.T) {
	sender := testutil.NewScriptedSender(testutil.Page(nil,
		doc("n", 1), doc("n", 1.0), doc("n", 1),
		doc("n", []any{1}), doc("n", []any{1.0}),
	))
	c := New(sender, "things")

	got, err := c.Distinct(context.Background(), "n")
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Float(1)}, got)
}

func TestDistinct_BadKeys(t *testing.T) {
	c := New(testutil.NewScriptedSender(), "things")
	ctx := context.Background()

	_, err := c.Distinct(ctx, "")
	assert.ErrorIs(t, err, keypath.ErrEmptyPath)

	_, err = c.Distinct(ctx, "a..b")
	assert.ErrorIs(t, err, keypath.ErrEmptySegment)

	_, err = c.Distinct(ctx, "0.a")
	assert.ErrorIs(t, err, keypath.ErrUnprojectableKey)
}
