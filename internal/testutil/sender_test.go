package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedSender_RepliesInOrder(t *testing.T) {
	boom := errors.New("boom")
	s := NewScriptedSender(Page("A", map[string]any{"a": 1}), Reply{Err: boom})
	ctx := context.Background()

	resp, err := s.Send(ctx, map[string]any{"find": map[string]any{"x": 1}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "A", resp["data"].(map[string]any)["nextPageState"])

	_, err = s.Send(ctx, map[string]any{"find": map[string]any{}}, 0)
	assert.ErrorIs(t, err, boom)

	_, err = s.Send(ctx, map[string]any{"find": map[string]any{}}, 0)
	assert.Error(t, err)

	assert.Equal(t, 3, s.CallCount())
	assert.Equal(t, time.Second, s.Calls()[0].Timeout)
	assert.Equal(t, map[string]any{"x": 1}, s.Body(0))
}

func TestScriptedSender_Handler(t *testing.T) {
	s := NewHandlerSender(func(payload map[string]any) (map[string]any, error) {
		return map[string]any{"echo": payload}, nil
	})
	resp, err := s.Send(context.Background(), map[string]any{"ping": map[string]any{}}, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ping": map[string]any{}}, resp["echo"])
}

func TestScriptedSender_CancelledContext(t *testing.T) {
	s := NewScriptedSender(Page(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Send(ctx, map[string]any{}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.CallCount())
}
