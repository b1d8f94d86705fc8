package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", tmpDir)
		t.Setenv("LOCALAPPDATA", filepath.Join(tmpDir, "AppData", "Local"))
	}
	return tmpDir
}

func TestGetLogFilePath(t *testing.T) {
	home := setHome(t)

	logPath, err := getLogFilePath("protobind")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(logPath))

	switch runtime.GOOS {
	case "darwin":
		assert.Equal(t, filepath.Join(home, "Library", "Logs", "protobind", "protobind.log"), logPath)
	case "linux":
		assert.Equal(t, filepath.Join(home, ".local", "state", "protobind", "protobind.log"), logPath)
	}
}

func TestInitLogger(t *testing.T) {
	setHome(t)

	for _, debug := range []bool{false, true} {
		logger, closer, err := InitLogger("protobind-test", debug)
		require.NoError(t, err)
		require.NotNil(t, logger)

		logger.Info("test message", slog.String("key", "value"))
		logger.Debug("debug message")
		require.NoError(t, closer.Close())
	}

	logPath, err := getLogFilePath("protobind-test")
	require.NoError(t, err)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3, "info twice, debug once")
	assert.Contains(t, lines[0], `"app":"protobind-test"`)
}

func TestRotateIfNeeded(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")

	require.NoError(t, rotateIfNeeded(logPath, 10), "missing file is not an error")

	require.NoError(t, os.WriteFile(logPath, []byte("short"), 0644))
	require.NoError(t, rotateIfNeeded(logPath, 10))
	assert.NoFileExists(t, logPath+".1")

	for i := 0; i < maxLogBackups+1; i++ {
		require.NoError(t, os.WriteFile(logPath, []byte(strings.Repeat("x", 20)), 0644))
		require.NoError(t, rotateIfNeeded(logPath, 10))
	}
	assert.NoFileExists(t, logPath)
	for i := 1; i <= maxLogBackups; i++ {
		assert.FileExists(t, logPath+"."+string(rune('0'+i)))
	}
	assert.NoFileExists(t, logPath+"."+string(rune('0'+maxLogBackups+1)))
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", slog.Int("n", 1))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "n=1")
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
	logger.Error("discarded")
}
