package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{}).SetDefaults()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.Equal(t, 28, cfg.MaxAge)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "invalid log level")

	cfg = DefaultConfig()
	cfg.MaxSize = -1
	assert.ErrorContains(t, cfg.Validate(), "max_size")
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid logger config")
}

func TestNewWritesConsoleAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "ipnotify.log")
	var console bytes.Buffer

	log, err := build(&Config{Level: "debug", File: file}, &console)
	require.NoError(t, err)

	log.Info("IP address has not changed")
	log.Debug("debug line")
	require.NoError(t, log.Sync())

	assert.Contains(t, console.String(), "IP address has not changed")
	assert.Contains(t, console.String(), "debug line")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "IP address has not changed", entry["msg"])
	assert.Contains(t, entry, "time")
}

func TestLevelFiltering(t *testing.T) {
	var console bytes.Buffer
	log, err := build(&Config{Level: "warn"}, &console)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestZapLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"fatal", zapcore.InfoLevel, true},
		{"", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := (&Config{Level: tt.level}).zapLevel()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
