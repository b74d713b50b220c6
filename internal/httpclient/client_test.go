package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	client := New(nil)
	assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	assert.Equal(t, DefaultUserAgent, client.userAgent)

	cfg := Config{DefaultTimeout: 5 * time.Second, UserAgent: "FindrTest/0.1"}
	client = New(&cfg)
	assert.Equal(t, 5*time.Second, client.defaultTimeout)
	assert.Equal(t, "FindrTest/0.1", client.userAgent)
	assert.Zero(t, cfg.MaxIdleConns, "caller config must not be mutated")
}

func TestGetSetsUserAgent(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	})
	client := newTestClient(t, nil)

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	body, err := ReadBody(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestPostEncodesJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"Robin"}`, string(data))
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestClient(t, nil)

	resp, err := client.Post(t.Context(), server.URL, "", map[string]string{"name": "Robin"})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestDefaultTimeoutApplies(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	client := newTestClient(t, &Config{DefaultTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	client := newTestClient(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Get(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHooksRun(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Hooked"))
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, nil)

	var afterCalls atomic.Int32
	client.OnBeforeRequest(func(r *http.Request) { r.Header.Set("X-Hooked", "yes") })
	client.OnAfterResponse(func(_ *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Positive(t, elapsed)
		afterCalls.Add(1)
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), afterCalls.Load())
}

func TestReadBodyLimit(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	client := newTestClient(t, nil)

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	_, err = ReadBody(resp, 16)
	require.Error(t, err)

	resp, err = client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	data, err := ReadBody(resp, 64)
	require.NoError(t, err)
	assert.Len(t, data, 64)
}

func TestNewRequestBodies(t *testing.T) {
	t.Parallel()

	req, err := NewRequest(t.Context(), http.MethodPatch, "http://example.test", []byte("raw"))
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Content-Type"))

	req, err = NewRequest(t.Context(), http.MethodDelete, "http://example.test", nil)
	require.NoError(t, err)
	assert.Equal(t, http.NoBody, req.Body)

	_, err = NewRequest(t.Context(), http.MethodPost, "http://example.test", func() {})
	require.Error(t, err)
}
