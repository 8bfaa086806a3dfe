// Package metrics exposes Prometheus instrumentation for command traffic
// and cursor paging.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/docwire/internal/command"
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeAPIError  = "api_error"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport_error"
	OutcomeOther     = "error"
)

// Metrics holds the client collectors.
type Metrics struct {
	// Commands sent, by command name and outcome.
	Commands *prometheus.CounterVec

	// Round-trip latency by command name.
	CommandLatency *prometheus.HistogramVec

	// Pages fetched by cursors, by collection.
	CursorPages *prometheus.CounterVec

	// Documents delivered in those pages, by collection.
	CursorDocuments *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docwire_commands_total",
			Help: "Commands sent to the server by name and outcome",
		}, []string{"command", "outcome"}),

		CommandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docwire_command_duration_seconds",
			Help:    "Round-trip duration of commands by name",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"command"}),

		CursorPages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docwire_cursor_pages_total",
			Help: "Result pages fetched by cursors",
		}, []string{"collection"}),

		CursorDocuments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docwire_cursor_documents_total",
			Help: "Documents received in cursor pages",
		}, []string{"collection"}),
	}
}

// ObservePage records one cursor page. It satisfies cursor.PageObserver.
func (m *Metrics) ObservePage(collection string, documents int) {
	if m != nil {
		m.CursorPages.WithLabelValues(collection).Inc()
		m.CursorDocuments.WithLabelValues(collection).Add(float64(documents))
	}
}

// ObserveCommand records one command round trip.
func (m *Metrics) ObserveCommand(name, outcome string, d time.Duration) {
	if m != nil {
		m.Commands.WithLabelValues(name, outcome).Inc()
		m.CommandLatency.WithLabelValues(name).Observe(d.Seconds())
	}
}

// Instrument wraps sender so every Send is counted and timed.
func (m *Metrics) Instrument(sender command.Sender) command.Sender {
	if m == nil {
		return sender
	}
	return command.SenderFunc(func(ctx context.Context, payload map[string]any, timeout time.Duration) (map[string]any, error) {
		start := time.Now()
		resp, err := sender.Send(ctx, payload, timeout)
		m.ObserveCommand(command.Name(payload), outcome(resp, err), time.Since(start))
		return resp, err
	})
}

func outcome(resp map[string]any, err error) string {
	switch {
	case err == nil:
		if errs, ok := resp["errors"].([]any); ok && len(errs) > 0 {
			return OutcomeAPIError
		}
		return OutcomeOK
	case command.IsTimeoutError(err):
		return OutcomeTimeout
	case command.IsTransportError(err):
		return OutcomeTransport
	default:
		return OutcomeOther
	}
}
