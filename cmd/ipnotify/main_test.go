package main

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"ipnotify/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), version.Version)
}

func TestRunUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-verbose"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "verbose")
}

func TestRunRejectsUnknownIntervalUnit(t *testing.T) {
	t.Setenv("CHECK_INTERVAL_UNIT", "fortnights")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-once"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Failed to load config")
	assert.Contains(t, stderr.String(), "fortnights")
}

func TestRunRejectsZeroInterval(t *testing.T) {
	t.Setenv("CHECK_INTERVAL", "0")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(nil, &stdout, &stderr))
}

func TestRunStateInitFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("STATE_REDIS_ADDR", addr)
	t.Setenv("STATE_REDIS_DIAL_TIMEOUT", "1s")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-once"}, &stdout, &stderr))
}

func TestRunOnce(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("198.51.100.7\n"))
	}))
	defer source.Close()

	var hits int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	stateFile := filepath.Join(t.TempDir(), "previous_ip.txt")
	t.Setenv("RESOLVER_SOURCES", "text:"+source.URL)
	t.Setenv("DISCORD_WEBHOOKS", "home="+hook.URL)
	t.Setenv("STATE_FILE", stateFile)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-once"}, &stdout, &stderr), stderr.String())

	data, err := os.ReadFile(stateFile)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", string(data))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	// Same address on the next run: nothing is sent
	require.Equal(t, 0, run([]string{"-once"}, &stdout, &stderr))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestRunOnceExitsZeroWhenSourcesFail(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer source.Close()

	var hits int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	stateFile := filepath.Join(t.TempDir(), "previous_ip.txt")
	t.Setenv("RESOLVER_SOURCES", "text:"+source.URL)
	t.Setenv("DISCORD_WEBHOOKS", hook.URL)
	t.Setenv("STATE_FILE", stateFile)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-once"}, &stdout, &stderr))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "error notice sent")
	assert.NoFileExists(t, stateFile)
}
