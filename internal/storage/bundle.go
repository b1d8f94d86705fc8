package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shhac/protobind/internal/domain"
	perrors "github.com/shhac/protobind/internal/errors"
	"github.com/shhac/protobind/internal/stub"
	"gopkg.in/yaml.v3"
)

// ValidateBundle checks the fields a bundle needs before it can be stored.
func ValidateBundle(b domain.Bundle) error {
	if err := validateBundleName(b.Name); err != nil {
		return perrors.ValidationError{Field: "name", Message: err.Error()}
	}
	if strings.TrimSpace(b.Root) == "" {
		return perrors.ValidationError{Field: "root", Message: "root descriptor must not be empty"}
	}
	for name, encoded := range b.Dependencies {
		if name == "" {
			return perrors.ValidationError{Field: "dependencies", Message: "dependency name must not be empty"}
		}
		if strings.TrimSpace(encoded) == "" {
			return perrors.ValidationError{Field: "dependencies", Message: fmt.Sprintf("dependency %q is empty", name)}
		}
	}
	if b.Stub != nil && b.Stub.Name == "" {
		return perrors.ValidationError{Field: "stub.name", Message: "stub type must be named"}
	}
	return nil
}

// validateBundleName checks that a bundle name is safe for use as a filename.
func validateBundleName(name string) error {
	if name == "" {
		return fmt.Errorf("bundle name must not be empty")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("bundle name must not contain %q", "..")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("bundle name must not contain path separators")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("bundle name must not contain null bytes")
	}
	return nil
}

// LoadBundleFile reads a bundle from a .yaml, .yml or .json file. A bundle
// without a name takes the file's base name.
func LoadBundleFile(path string) (*domain.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle file: %w", err)
	}

	var bundle domain.Bundle
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported bundle file extension %q", ext)
	}

	if bundle.Name == "" {
		bundle.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &bundle, nil
}

// WriteBundleFile writes bundle as YAML or JSON depending on the extension.
func WriteBundleFile(path string, bundle domain.Bundle) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(bundle)
	case ".json":
		data, err = json.MarshalIndent(bundle, "", "  ")
	default:
		return fmt.Errorf("unsupported bundle file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	return atomicWriteFile(path, data, filePermission)
}

// LoadStubFile reads a stub description from a .yaml, .yml or .json file.
func LoadStubFile(path string) (*stub.Type, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stub file: %w", err)
	}

	var st stub.Type
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &st)
	case ".json":
		err = json.Unmarshal(data, &st)
	default:
		return nil, fmt.Errorf("unsupported stub file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if st.Name == "" {
		return nil, perrors.ValidationError{Field: "name", Message: "stub type must be named"}
	}
	return &st, nil
}
