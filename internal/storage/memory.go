package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shhac/protobind/internal/domain"
)

// MemoryRepository implements Repository in memory, for tests and
// one-shot CLI runs
type MemoryRepository struct {
	bundles map[string]domain.Bundle
	recent  []domain.Target
	mu      sync.RWMutex
}

// NewMemoryRepository creates a new in-memory storage repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bundles: make(map[string]domain.Bundle),
		recent:  []domain.Target{},
	}
}

// SaveBundle validates and stores a bundle
func (m *MemoryRepository) SaveBundle(bundle domain.Bundle) error {
	if err := ValidateBundle(bundle); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.bundles[bundle.Name] = bundle
	return nil
}

// LoadBundle retrieves a bundle
func (m *MemoryRepository) LoadBundle(name string) (*domain.Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundle, ok := m.bundles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBundleNotFound, name)
	}
	return &bundle, nil
}

// ListBundles returns the names of all stored bundles, sorted
func (m *MemoryRepository) ListBundles() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.bundles))
	for name := range m.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteBundle removes a bundle
func (m *MemoryRepository) DeleteBundle(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bundles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrBundleNotFound, name)
	}
	delete(m.bundles, name)
	return nil
}

// SaveRecentTarget moves target to the front of the recent list
func (m *MemoryRepository) SaveRecentTarget(target domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent = pushRecent(m.recent, target)
	return nil
}

// GetRecentTargets returns a copy of the recent list
func (m *MemoryRepository) GetRecentTargets() ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recent := make([]domain.Target, len(m.recent))
	copy(recent, m.recent)
	return recent, nil
}

// ClearRecentTargets removes all recent targets
func (m *MemoryRepository) ClearRecentTargets() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent = []domain.Target{}
	return nil
}
