package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastConfig(attempts int) *Config {
	return &Config{
		Attempts:        attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

// dropFirst closes the connection without a response for the first n requests
func dropFirst(t *testing.T, n int32, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(hits, 1) <= n {
			conn, _, err := w.(http.Hijacker).Hijack()
			if assert.NoError(t, err) {
				_ = conn.Close()
			}
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultRetryConfig().Validate())
	assert.NoError(t, (*Config)(nil).Validate())

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"zero attempts", Config{Attempts: 0}, "attempts"},
		{"negative interval", Config{Attempts: 1, InitialInterval: -1}, "negative"},
		{"max below initial", Config{Attempts: 1, InitialInterval: time.Second, MaxInterval: time.Millisecond}, "max_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestDefaultBackoffStartsAtInitialInterval(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 500*time.Millisecond, retryablehttp.DefaultBackoff(cfg.InitialInterval, cfg.MaxInterval, 0, nil))
	assert.Equal(t, time.Second, retryablehttp.DefaultBackoff(cfg.InitialInterval, cfg.MaxInterval, 1, nil))
	assert.Equal(t, 4*time.Second, retryablehttp.DefaultBackoff(cfg.InitialInterval, cfg.MaxInterval, 5, nil))
}

func TestConnectionErrorsOnly(t *testing.T) {
	ctx := context.Background()

	retry, err := ConnectionErrorsOnly(ctx, &http.Response{StatusCode: http.StatusInternalServerError}, nil)
	assert.NoError(t, err)
	assert.False(t, retry, "status codes are never retried")

	retry, err = ConnectionErrorsOnly(ctx, nil, &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")})
	assert.NoError(t, err)
	assert.True(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = ConnectionErrorsOnly(cancelled, nil, errors.New("boom"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, retry)
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{Attempts: 0}, time.Second, nil)
	assert.ErrorContains(t, err, "invalid retry configuration")
}

func TestClientRetriesDroppedConnections(t *testing.T) {
	var hits int32
	srv := dropFirst(t, 2, &hits)

	c, err := NewClient(fastConfig(3), time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestClientGivesUpAfterAttempts(t *testing.T) {
	var hits int32
	srv := dropFirst(t, 10, &hits)

	c, err := NewClient(fastConfig(3), time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = c.Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempt(s)")
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryStatusCodes(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(fastConfig(3), time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestClientRefusedConnection(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c, err := NewClient(fastConfig(2), time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = c.Get("http://" + addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 2 attempt(s)")
}
