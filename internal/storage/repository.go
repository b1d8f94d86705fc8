package storage

import (
	"errors"

	"github.com/shhac/protobind/internal/domain"
)

// ErrBundleNotFound is returned when no bundle is stored under a name.
var ErrBundleNotFound = errors.New("bundle not found")

// Repository defines persistence operations for bundles and targets
type Repository interface {
	// Bundle operations
	SaveBundle(bundle domain.Bundle) error
	LoadBundle(name string) (*domain.Bundle, error)
	ListBundles() ([]string, error)
	DeleteBundle(name string) error

	// Recently used servers
	SaveRecentTarget(target domain.Target) error
	GetRecentTargets() ([]domain.Target, error)
	ClearRecentTargets() error
}
