package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docwire/internal/collection"
	"github.com/roach88/docwire/internal/command"
	docwiretest "github.com/roach88/docwire/internal/testutil"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestInstrument_CountsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	sender := m.Instrument(docwiretest.NewScriptedSender(
		docwiretest.Reply{Response: map[string]any{"status": map[string]any{"count": 1}}},
		docwiretest.Reply{Response: map[string]any{"errors": []any{map[string]any{"message": "no"}}}},
		docwiretest.Reply{Err: &command.TimeoutError{Kind: command.TimeoutRequest}},
		docwiretest.Reply{Err: &command.TransportError{Endpoint: "x", StatusCode: 500}},
	))
	ctx := context.Background()
	payload := map[string]any{"countDocuments": map[string]any{}}
	for range 4 {
		_, _ = sender.Send(ctx, payload, 0)
	}

	for _, o := range []string{OutcomeOK, OutcomeAPIError, OutcomeTimeout, OutcomeTransport} {
		assert.Equal(t, 1.0, value(t, m.Commands.WithLabelValues("countDocuments", o)), o)
	}

	var pb dto.Metric
	require.NoError(t, m.CommandLatency.WithLabelValues("countDocuments").(prometheus.Metric).Write(&pb))
	assert.Equal(t, uint64(4), pb.GetHistogram().GetSampleCount())
}

func TestInstrument_NilMetricsPassesThrough(t *testing.T) {
	var m *Metrics
	inner := docwiretest.NewScriptedSender()
	assert.Same(t, command.Sender(inner), m.Instrument(inner))
}

func TestObservePage_ThroughCursor(t *testing.T) {
	m := New(prometheus.NewRegistry())
	sender := docwiretest.NewScriptedSender(
		docwiretest.Page("A", map[string]any{"n": 1}, map[string]any{"n": 2}),
		docwiretest.Page(nil, map[string]any{"n": 3}),
	)
	coll := collection.New(m.Instrument(sender), "things", collection.WithObserver(m))

	docs, err := coll.Find(nil).ToList(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	assert.Equal(t, 2.0, value(t, m.CursorPages.WithLabelValues("things")))
	assert.Equal(t, 3.0, value(t, m.CursorDocuments.WithLabelValues("things")))
	assert.Equal(t, 2.0, value(t, m.Commands.WithLabelValues("find", OutcomeOK)))
}
