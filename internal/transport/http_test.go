package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/roach88/docwire/internal/command"
)

const endpoint = "https://db.example.com"

func mockedClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	t.Cleanup(func() {
		gock.RestoreClient(hc)
		gock.OffAll()
	})
	return New(endpoint+"/", "ks", append([]Option{WithHTTPClient(hc)}, opts...)...)
}

func TestSender_PostsToCollectionURL(t *testing.T) {
	client := mockedClient(t, WithHeader("Token", "secret"))

	gock.New(endpoint).
		Post("/api/json/v1/ks/things").
		MatchHeader("Token", "secret").
		MatchHeader("Content-Type", "application/json").
		JSON(map[string]any{"find": map[string]any{"filter": map[string]any{"a": 1}}}).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"documents": []any{}, "nextPageState": nil}, "status": map[string]any{"count": 12}})

	sender := client.Collection("things")
	assert.Equal(t, "https://db.example.com/api/json/v1/ks/things", sender.URL())

	resp, err := sender.Send(context.Background(),
		map[string]any{"find": map[string]any{"filter": map[string]any{"a": 1}}}, time.Second)
	require.NoError(t, err)

	n, err := command.StatusInt(resp, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.IsType(t, json.Number(""), command.Status(resp)["count"])
	assert.True(t, gock.IsDone())
}

func TestSender_GzipRequestAndResponse(t *testing.T) {
	client := mockedClient(t, WithGzip(true))

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write([]byte(`{"status":{"insertedIds":["a"]}}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var sent map[string]any
	gock.New(endpoint).
		Post("/api/json/v1/ks/things").
		MatchHeader("Content-Encoding", "gzip").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			zr, err := gzip.NewReader(req.Body)
			if err != nil {
				return false, err
			}
			raw, err := io.ReadAll(zr)
			if err != nil {
				return false, err
			}
			return true, json.Unmarshal(raw, &sent)
		}).
		Reply(200).
		SetHeader("Content-Encoding", "gzip").
		Body(bytes.NewReader(compressed.Bytes()))

	resp, err := client.Collection("things").Send(context.Background(),
		map[string]any{"insertOne": map[string]any{"document": map[string]any{"_id": "a"}}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, command.Status(resp)["insertedIds"])
	assert.Equal(t, map[string]any{"insertOne": map[string]any{"document": map[string]any{"_id": "a"}}}, sent)
}

func TestSender_HTTPErrorIsTransportError(t *testing.T) {
	client := mockedClient(t)
	gock.New(endpoint).
		Post("/api/json/v1/ks/things").
		Reply(503).
		BodyString("overloaded")

	_, err := client.Collection("things").Send(context.Background(), map[string]any{"find": map[string]any{}}, 0)
	require.Error(t, err)

	var te *command.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 503, te.StatusCode)
	assert.Contains(t, te.Error(), "overloaded")
	assert.False(t, command.IsTimeoutError(err))
}

func TestSender_MalformedBodyIsTransportError(t *testing.T) {
	client := mockedClient(t)
	gock.New(endpoint).
		Post("/api/json/v1/ks/things").
		Reply(200).
		BodyString("{not json")

	_, err := client.Collection("things").Send(context.Background(), map[string]any{"find": map[string]any{}}, 0)
	assert.True(t, command.IsTransportError(err))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSender_RequestTimeout(t *testing.T) {
	hang := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	client := New(endpoint, "ks", WithHTTPClient(&http.Client{Transport: hang}))

	payload := map[string]any{"find": map[string]any{}}
	_, err := client.Collection("things").Send(context.Background(), payload, 20*time.Millisecond)
	require.Error(t, err)

	var te *command.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, command.TimeoutRequest, te.Kind)
	assert.Equal(t, 20*time.Millisecond, te.Timeout)
	assert.Equal(t, payload, te.Payload)
	assert.Contains(t, te.Endpoint, "/ks/things")
}

func TestSender_RateLimitWaitCountsAgainstTimeout(t *testing.T) {
	calls := 0
	ok := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"status":{}}`))),
		}, nil
	})
	client := New(endpoint, "ks",
		WithHTTPClient(&http.Client{Transport: ok}),
		WithRateLimit(rate.Every(time.Hour), 1))
	sender := client.Collection("things")
	ctx := context.Background()

	_, err := sender.Send(ctx, map[string]any{"find": map[string]any{}}, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = sender.Send(ctx, map[string]any{"find": map[string]any{}}, 50*time.Millisecond)
	assert.True(t, command.IsTimeoutError(err))
	assert.Equal(t, 1, calls)
}
