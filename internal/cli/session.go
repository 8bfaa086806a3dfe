package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"golang.org/x/time/rate"

	"github.com/roach88/docwire/internal/collection"
	"github.com/roach88/docwire/internal/command"
	"github.com/roach88/docwire/internal/config"
	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/localapi"
	"github.com/roach88/docwire/internal/metrics"
	"github.com/roach88/docwire/internal/store"
	"github.com/roach88/docwire/internal/transport"
)

// session is one command's connection to a backend.
type session struct {
	cfg      config.Config
	codec    doccodec.Options
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *store.Store // nil for a remote endpoint
	local    *localapi.Server
	remote   *transport.Client
}

// loadConfig layers the global flags over the config file and environment.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.DB != "" && opts.Endpoint != "" {
		return config.Config{}, errors.New("--db and --endpoint are mutually exclusive")
	}
	cfg, err := config.Read(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DB != "" {
		cfg.DB, cfg.Endpoint = opts.DB, ""
	}
	if opts.Endpoint != "" {
		cfg.Endpoint, cfg.DB = opts.Endpoint, ""
	}
	if opts.Keyspace != "" {
		cfg.Keyspace = opts.Keyspace
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openSession(opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	s := &session{cfg: cfg, registry: prometheus.NewRegistry()}
	s.metrics = metrics.New(s.registry)
	s.codec = doccodec.Options{BinaryEncodeVectors: cfg.BinaryVectors}
	if cfg.Mode == config.ModeTable {
		s.codec.Mode = doccodec.ModeTable
	}

	if cfg.DB != "" {
		slog.Debug("opening database", "path", cfg.DB)
		st, err := store.Open(cfg.DB)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		s.store = st
		s.local = localapi.New(st)
		return s, nil
	}

	topts := []transport.Option{
		transport.WithGzip(cfg.Gzip),
		transport.WithAPIPath(cfg.APIPath),
		transport.WithAPIVersion(cfg.APIVersion),
	}
	for k, v := range cfg.Headers {
		topts = append(topts, transport.WithHeader(k, v))
	}
	if cfg.RateLimit > 0 {
		topts = append(topts, transport.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}
	slog.Debug("using endpoint", "endpoint", cfg.Endpoint, "keyspace", cfg.Keyspace)
	s.remote = transport.New(cfg.Endpoint, cfg.Keyspace, topts...)
	return s, nil
}

// collection returns the named collection on the session's backend, with
// instrumentation and the configured client settings.
func (s *session) collection(name string) *collection.Collection {
	var sender command.Sender
	if s.local != nil {
		sender = s.local.Collection(name)
	} else {
		sender = s.remote.Collection(name)
	}
	return collection.New(s.metrics.Instrument(sender), name,
		collection.WithCodec(s.codec),
		collection.WithRequestTimeout(s.cfg.RequestTimeout),
		collection.WithMethodTimeout(s.cfg.MethodTimeout),
		collection.WithChunkSize(s.cfg.ChunkSize),
		collection.WithConcurrency(s.cfg.Concurrency),
		collection.WithBulkConcurrency(s.cfg.BulkConcurrency),
		collection.WithObserver(s.metrics),
	)
}

// Close logs the traffic summary and releases the database.
func (s *session) Close() {
	if families, err := s.registry.Gather(); err == nil {
		logTraffic(families)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}
}

// logTraffic writes one debug line per counter series.
func logTraffic(families []*dto.MetricFamily) {
	for _, fam := range families {
		if fam.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range fam.GetMetric() {
			args := []any{"metric", fam.GetName(), "value", m.GetCounter().GetValue()}
			for _, lp := range m.GetLabel() {
				args = append(args, lp.GetName(), lp.GetValue())
			}
			slog.Debug("traffic", args...)
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
