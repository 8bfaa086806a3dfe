package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, err := s.Insert(ctx, "things", map[string]any{"_id": "a", "n": 1})
	require.NoError(t, err)
	b, err := s.Insert(ctx, "things", map[string]any{"_id": "b", "n": 2})
	require.NoError(t, err)
	other, err := s.Insert(ctx, "others", map[string]any{"_id": "a"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
	assert.Equal(t, int64(1), other.Seq)
	assert.Equal(t, `"a"`, a.IDKey)
	assert.Equal(t, json.Number("1"), a.Body["n"])
}

func TestInsert_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "things", map[string]any{"_id": map[string]any{"$uuid": "x"}, "v": 1})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "things", map[string]any{"v": 2, "_id": map[string]any{"$uuid": "x"}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	n, err := s.Count(ctx, "things")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInsert_MissingID(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Insert(context.Background(), "things", map[string]any{"v": 1})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestScan_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"z", "a", "m"} {
		_, err := s.Insert(ctx, "things", map[string]any{"_id": id})
		require.NoError(t, err)
	}

	recs, err := s.Scan(ctx, "things")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "z", recs[0].Body["_id"])
	assert.Equal(t, "a", recs[1].Body["_id"])
	assert.Equal(t, "m", recs[2].Body["_id"])

	empty, err := s.Scan(ctx, "nothing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReplace_DetectsNoOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec, err := s.Insert(ctx, "things", map[string]any{"_id": "a", "n": 1})
	require.NoError(t, err)

	changed, err := s.Replace(ctx, "things", rec, map[string]any{"_id": "a", "n": 1})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Replace(ctx, "things", rec, map[string]any{"_id": "a", "n": 2})
	require.NoError(t, err)
	assert.True(t, changed)

	got, found, err := s.Get(ctx, "things", "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, json.Number("2"), got.Body["n"])
	assert.Equal(t, rec.Seq, got.Seq)

	_, err = s.Replace(ctx, "things", rec, map[string]any{"_id": "b"})
	assert.Error(t, err)
}

func TestDelete_And_Truncate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Insert(ctx, "things", map[string]any{"_id": id})
		require.NoError(t, err)
	}

	n, err := s.Delete(ctx, "things", `"a"`, `"missing"`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"things"}, names)

	n, err = s.Truncate(ctx, "things")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := s.Count(ctx, "things")
	require.NoError(t, err)
	assert.Zero(t, count)
}
