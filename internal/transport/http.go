// Package transport delivers commands to the server over HTTP.
//
// A Client holds the endpoint and connection settings of one keyspace;
// Client.Collection returns a command.Sender bound to a single collection
// URL. There is no retry logic.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"github.com/roach88/docwire/internal/command"
)

const (
	defaultAPIPath    = "api/json"
	defaultAPIVersion = "v1"
	// errorBodyLimit caps how much of a failed response is kept in the error.
	errorBodyLimit = 512
)

// Client sends commands to one keyspace of a server.
type Client struct {
	endpoint   string
	apiPath    string
	apiVersion string
	keyspace   string

	http     *http.Client
	headers  http.Header
	limiter  *rate.Limiter
	compress bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeader adds a header to every request, such as a token header.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Add(key, value) }
}

// WithRateLimit paces requests through a token bucket.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithGzip compresses request bodies.
func WithGzip(enabled bool) Option {
	return func(c *Client) { c.compress = enabled }
}

// WithAPIPath overrides the path prefix ("api/json").
func WithAPIPath(path string) Option {
	return func(c *Client) { c.apiPath = strings.Trim(path, "/") }
}

// WithAPIVersion overrides the API version segment ("v1").
func WithAPIVersion(version string) Option {
	return func(c *Client) { c.apiVersion = version }
}

// New returns a Client for keyspace at endpoint.
func New(endpoint, keyspace string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiPath:    defaultAPIPath,
		apiVersion: defaultAPIVersion,
		keyspace:   keyspace,
		http:       &http.Client{},
		headers:    http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collection returns a Sender posting to the URL of collection.
func (c *Client) Collection(name string) *Sender {
	url := strings.Join([]string{c.endpoint, c.apiPath, c.apiVersion, c.keyspace, name}, "/")
	return &Sender{client: c, url: url}
}

// Sender posts command payloads to one collection URL.
type Sender struct {
	client *Client
	url    string
}

// URL returns the request URL.
func (s *Sender) URL() string {
	return s.url
}

// Send posts payload and decodes the JSON response, keeping numbers as
// json.Number. A positive timeout bounds the whole exchange including rate
// limiting; expiry is reported as a request *command.TimeoutError.
func (s *Sender) Send(ctx context.Context, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	timedOut := func(err error) bool {
		return timeout > 0 && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded))
	}
	timeoutErr := &command.TimeoutError{
		Kind:     command.TimeoutRequest,
		Endpoint: s.url,
		Payload:  payload,
		Timeout:  timeout,
	}

	if lim := s.client.limiter; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			if timeout > 0 {
				return nil, timeoutErr
			}
			return nil, &command.TransportError{Endpoint: s.url, Err: err}
		}
	}

	body, err := s.encode(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, &command.TransportError{Endpoint: s.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if s.client.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for k, vs := range s.client.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := s.client.http.Do(req)
	if err != nil {
		if timedOut(err) {
			slog.Warn("request timed out", "url", s.url, "command", command.Name(payload), "timeout", timeout)
			return nil, timeoutErr
		}
		return nil, &command.TransportError{Endpoint: s.url, Err: err}
	}
	defer resp.Body.Close()

	out, err := s.decode(resp)
	if err != nil {
		if timedOut(err) {
			return nil, timeoutErr
		}
		return nil, err
	}
	slog.Debug("command sent",
		"url", s.url,
		"command", command.Name(payload),
		"status", resp.StatusCode,
		"elapsed", time.Since(start))
	return out, nil
}

func (s *Sender) encode(payload map[string]any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", command.Name(payload), err)
	}
	if !s.client.compress {
		return raw, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Sender) decode(resp *http.Response) (map[string]any, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &command.TransportError{Endpoint: s.url, StatusCode: resp.StatusCode, Err: err}
		}
		defer zr.Close()
		r = zr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(r, errorBodyLimit))
		return nil, &command.TransportError{
			Endpoint:   s.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", http.StatusText(resp.StatusCode), bytes.TrimSpace(snippet)),
		}
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, &command.TransportError{
			Endpoint:   s.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return out, nil
}

var _ command.Sender = (*Sender)(nil)
