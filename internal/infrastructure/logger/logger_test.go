package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			log, err := New(&Config{Level: "debug", Format: format, Output: "stdout"})
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("pipeline starting")
	require.NoError(t, Sync(log))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "pipeline starting", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.NotEmpty(t, entry["time"])
}

func TestNew_UnwritableOutput(t *testing.T) {
	// a directory cannot be opened for writing
	_, err := New(&Config{Level: "info", Format: "json", Output: t.TempDir()})
	assert.Error(t, err)
}

func TestNew_LevelFiltersEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.log")

	log, err := New(&Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("below threshold")
	log.Warn("above threshold")
	require.NoError(t, Sync(log))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "below threshold")
	assert.Contains(t, string(raw), "above threshold")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for level, want := range cases {
		assert.Equal(t, want, parseLevel(level), "level %q", level)
	}
}
