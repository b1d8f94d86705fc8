package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// storageDirName is the directory under the user's home that holds stored
// bundles and recent targets.
const storageDirName = ".protobind"

// DefaultStoragePath is ~/.protobind (%USERPROFILE%\.protobind on Windows).
// Without a home directory it falls back to protobind under the user config
// directory.
func DefaultStoragePath() (string, error) {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, storageDirName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no home or config directory for bundle storage: %w", err)
	}
	return filepath.Join(dir, "protobind"), nil
}
