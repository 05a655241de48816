package recaptcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	mu     sync.Mutex
	method string
	query  url.Values
}

func (r *recorded) get() (string, url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.method, r.query
}

func newVerifyServer(t *testing.T, status int, body string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.method = r.Method
		rec.query = r.URL.Query()
		rec.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestVerifySuccess(t *testing.T) {
	srv, req := newVerifyServer(t, http.StatusOK, `{"success": true, "hostname": "example.com"}`)
	client := NewClient("server-secret", zap.NewNop(), WithVerifyURL(srv.URL))

	ok, err := client.Verify(context.Background(), "tok-123", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	method, query := req.get()
	assert.Equal(t, http.MethodGet, method)
	assert.Equal(t, "server-secret", query.Get("secret"))
	assert.Equal(t, "tok-123", query.Get("response"))
	assert.Equal(t, "10.0.0.1", query.Get("remoteip"))
}

func TestVerifyRejected(t *testing.T) {
	srv, req := newVerifyServer(t, http.StatusOK, `{"success": false, "error-codes": ["missing-input-response"]}`)
	client := NewClient("server-secret", zap.NewNop(), WithVerifyURL(srv.URL))

	ok, err := client.Verify(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, ok)
	_, query := req.get()
	assert.True(t, query.Has("response"), "empty token is still sent")
	assert.False(t, query.Has("remoteip"))
}

func TestVerifyMinScore(t *testing.T) {
	srv, _ := newVerifyServer(t, http.StatusOK, `{"success": true, "score": 0.3}`)

	low := NewClient("s", zap.NewNop(), WithVerifyURL(srv.URL), WithMinScore(0.5))
	ok, err := low.Verify(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.False(t, ok)

	lenient := NewClient("s", zap.NewNop(), WithVerifyURL(srv.URL), WithMinScore(0.2))
	ok, err = lenient.Verify(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyUpstreamError(t *testing.T) {
	srv, _ := newVerifyServer(t, http.StatusInternalServerError, `boom`)
	client := NewClient("s", zap.NewNop(), WithVerifyURL(srv.URL))

	ok, err := client.Verify(context.Background(), "tok", "")
	assert.Error(t, err)
	assert.False(t, ok)

	srv, _ = newVerifyServer(t, http.StatusOK, `not json`)
	client = NewClient("s", zap.NewNop(), WithVerifyURL(srv.URL))
	_, err = client.Verify(context.Background(), "tok", "")
	assert.ErrorContains(t, err, "error parsing response")
}
