package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shhac/protobind/internal/domain"
)

const (
	bundlesDir     = "bundles"
	recentFile     = "recent.json"
	maxRecent      = 10
	filePermission = 0644
	dirPermission  = 0755
)

// JSONRepository implements Repository using JSON files
type JSONRepository struct {
	basePath string
	logger   *slog.Logger
}

// NewJSONRepository creates a new JSON-based storage repository
func NewJSONRepository(basePath string, logger *slog.Logger) *JSONRepository {
	return &JSONRepository{
		basePath: basePath,
		logger:   logger,
	}
}

// SaveBundle validates a bundle and writes it to <base>/bundles/<name>.json
func (r *JSONRepository) SaveBundle(bundle domain.Bundle) error {
	if err := ValidateBundle(bundle); err != nil {
		return err
	}
	if err := r.ensureBundlesDir(); err != nil {
		return fmt.Errorf("ensure bundles directory: %w", err)
	}

	path := r.bundlePath(bundle.Name)
	if err := r.verifyPathInBundlesDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	if err := atomicWriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write bundle file: %w", err)
	}

	r.logger.Debug("saved bundle",
		slog.String("name", bundle.Name),
		slog.String("path", path),
		slog.Int("dependencies", len(bundle.Dependencies)))

	return nil
}

// LoadBundle reads a bundle saved under name
func (r *JSONRepository) LoadBundle(name string) (*domain.Bundle, error) {
	if err := validateBundleName(name); err != nil {
		return nil, fmt.Errorf("invalid bundle name: %w", err)
	}
	path := r.bundlePath(name)
	if err := r.verifyPathInBundlesDir(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrBundleNotFound, name)
		}
		return nil, fmt.Errorf("read bundle file: %w", err)
	}

	var bundle domain.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}

	r.logger.Debug("loaded bundle",
		slog.String("name", name),
		slog.String("path", path))

	return &bundle, nil
}

// ListBundles returns the names of all saved bundles, sorted
func (r *JSONRepository) ListBundles() ([]string, error) {
	bundlesPath := filepath.Join(r.basePath, bundlesDir)

	if _, err := os.Stat(bundlesPath); os.IsNotExist(err) {
		r.logger.Debug("bundles directory does not exist, returning empty list")
		return []string{}, nil
	}

	entries, err := os.ReadDir(bundlesPath)
	if err != nil {
		return nil, fmt.Errorf("read bundles directory: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if name, ok := strings.CutSuffix(entry.Name(), ".json"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	r.logger.Debug("listed bundles", slog.Int("count", len(names)))
	return names, nil
}

// DeleteBundle removes a bundle file
func (r *JSONRepository) DeleteBundle(name string) error {
	if err := validateBundleName(name); err != nil {
		return fmt.Errorf("invalid bundle name: %w", err)
	}
	path := r.bundlePath(name)
	if err := r.verifyPathInBundlesDir(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrBundleNotFound, name)
		}
		return fmt.Errorf("delete bundle file: %w", err)
	}

	r.logger.Debug("deleted bundle",
		slog.String("name", name),
		slog.String("path", path))

	return nil
}

// SaveRecentTarget moves target to the front of the recent list
func (r *JSONRepository) SaveRecentTarget(target domain.Target) error {
	if err := r.ensureBaseDir(); err != nil {
		return fmt.Errorf("ensure base directory: %w", err)
	}

	recent, err := r.loadRecentList()
	if err != nil {
		return fmt.Errorf("load recent targets: %w", err)
	}

	recent = pushRecent(recent, target)

	if err := r.saveRecentList(recent); err != nil {
		return fmt.Errorf("save recent targets: %w", err)
	}

	r.logger.Debug("saved recent target",
		slog.String("address", target.Address))

	return nil
}

// GetRecentTargets returns recently used targets, most recent first
func (r *JSONRepository) GetRecentTargets() ([]domain.Target, error) {
	recent, err := r.loadRecentList()
	if err != nil {
		return nil, fmt.Errorf("load recent targets: %w", err)
	}

	r.logger.Debug("loaded recent targets", slog.Int("count", len(recent)))
	return recent, nil
}

// ClearRecentTargets removes all recent targets
func (r *JSONRepository) ClearRecentTargets() error {
	if err := os.Remove(r.recentPath()); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete recent targets file: %w", err)
	}

	r.logger.Debug("cleared recent targets")
	return nil
}

// atomicWriteFile writes data to a file atomically by writing to a temp file
// in the same directory, syncing, then renaming over the target path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

// pushRecent puts target first, dropping an older entry for the same
// address and trimming to maxRecent.
func pushRecent(recent []domain.Target, target domain.Target) []domain.Target {
	out := []domain.Target{target}
	for _, t := range recent {
		if t.Address != target.Address || t.TLS.Enabled != target.TLS.Enabled {
			out = append(out, t)
		}
	}
	if len(out) > maxRecent {
		out = out[:maxRecent]
	}
	return out
}

func (r *JSONRepository) ensureBaseDir() error {
	if err := os.MkdirAll(r.basePath, dirPermission); err != nil {
		return fmt.Errorf("create base directory: %w", err)
	}
	return nil
}

func (r *JSONRepository) ensureBundlesDir() error {
	path := filepath.Join(r.basePath, bundlesDir)
	if err := os.MkdirAll(path, dirPermission); err != nil {
		return fmt.Errorf("create bundles directory: %w", err)
	}
	return nil
}

func (r *JSONRepository) bundlePath(name string) string {
	return filepath.Join(r.basePath, bundlesDir, name+".json")
}

// verifyPathInBundlesDir checks that the resolved path is within the bundles
// directory, complementing validateBundleName.
func (r *JSONRepository) verifyPathInBundlesDir(path string) error {
	base := filepath.Join(r.basePath, bundlesDir)
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return fmt.Errorf("path outside bundles directory: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %q escapes bundles directory", path)
	}
	return nil
}

func (r *JSONRepository) recentPath() string {
	return filepath.Join(r.basePath, recentFile)
}

func (r *JSONRepository) loadRecentList() ([]domain.Target, error) {
	data, err := os.ReadFile(r.recentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Target{}, nil
		}
		return nil, fmt.Errorf("read recent file: %w", err)
	}

	var recent []domain.Target
	if err := json.Unmarshal(data, &recent); err != nil {
		return nil, fmt.Errorf("unmarshal recent targets: %w", err)
	}
	return recent, nil
}

func (r *JSONRepository) saveRecentList(recent []domain.Target) error {
	data, err := json.MarshalIndent(recent, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recent targets: %w", err)
	}
	if err := atomicWriteFile(r.recentPath(), data, filePermission); err != nil {
		return fmt.Errorf("write recent file: %w", err)
	}
	return nil
}
