package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// maxLogSize is the maximum log file size before rotation (5 MB).
	maxLogSize = 5 * 1024 * 1024
	// maxLogBackups is the number of rotated log files to keep.
	maxLogBackups = 3
)

// InitLogger opens the platform log file for appName and returns a JSON
// logger writing to it, plus the file so the caller can close it:
//   - macOS:   ~/Library/Logs/<app>/<app>.log
//   - Linux:   ~/.local/state/<app>/<app>.log
//   - Windows: %LOCALAPPDATA%\<app>\Logs\<app>.log
//
// When debug is true, the logger uses DEBUG level and includes source locations.
func InitLogger(appName string, debug bool) (*slog.Logger, io.Closer, error) {
	logPath, err := getLogFilePath(appName)
	if err != nil {
		return nil, nil, fmt.Errorf("get log file path: %w", err)
	}

	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory %s: %w", logDir, err)
	}

	if err := rotateIfNeeded(logPath, maxLogSize); err != nil {
		return nil, nil, fmt.Errorf("rotate log file: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	handler := slog.NewJSONHandler(logFile, handlerOptions(debug))
	return slog.New(handler).With(slog.String("app", appName)), logFile, nil
}

// NewConsoleLogger returns a text logger writing to w, for CLI runs that
// do not log to a file.
func NewConsoleLogger(w io.Writer, debug bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, handlerOptions(debug)))
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))
}

func handlerOptions(debug bool) *slog.HandlerOptions {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}
}

// rotateIfNeeded renames logPath to logPath.1 once it reaches limit bytes,
// shifting older backups up and dropping the oldest beyond maxLogBackups.
func rotateIfNeeded(logPath string, limit int64) error {
	info, err := os.Stat(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < limit {
		return nil
	}

	os.Remove(fmt.Sprintf("%s.%d", logPath, maxLogBackups))
	for i := maxLogBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", logPath, i), fmt.Sprintf("%s.%d", logPath, i+1))
	}

	if err := os.Rename(logPath, logPath+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}

// getLogFilePath returns the platform-specific log file path.
func getLogFilePath(appName string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", appName, appName+".log"), nil
	case "linux":
		return filepath.Join(homeDir, ".local", "state", appName, appName+".log"), nil
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, appName, "Logs", appName+".log"), nil
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}
