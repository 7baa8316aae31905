package log

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "WARN", want: slog.LevelWarn},
		{input: "warning", want: slog.LevelWarn},
		{input: " error ", want: slog.LevelError},
		{input: "chatty", wantErr: true},
	}

	for _, tc := range tests {
		level, err := ParseLevel(tc.input)
		if tc.wantErr {
			require.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		require.Equal(t, tc.want, level, "input %q", tc.input)
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	t.Parallel()

	_, _, err := NewLogger(Options{Level: "noisy"})
	require.Error(t, err)
}

func TestNewLoggerFileWritesJSON(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "logs", "nearbyweather.log")
	logger, closer, err := NewLogger(Options{Level: "info", File: file})
	require.NoError(t, err)

	logger.Info("stored weather readings", "list", "nearby", "count", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	require.Equal(t, "stored weather readings", entry["msg"])
	require.Equal(t, "nearby", entry["list"])
	require.InDelta(t, 3, entry["count"], 0.001)
}

func TestNewLoggerFileHonorsLevel(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "nearbyweather.log")
	logger, closer, err := NewLogger(Options{Level: "warn", File: file})
	require.NoError(t, err)

	logger.Info("suppressed")
	logger.Warn("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NotContains(t, string(data), "suppressed")
	require.Contains(t, string(data), "kept")
}

func TestNewLoggerConsole(t *testing.T) {
	t.Parallel()

	logger, closer, err := NewLogger(Options{Level: "debug", NoColor: true})
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, closer.Close())
}
