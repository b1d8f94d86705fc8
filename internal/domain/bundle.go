package domain

import (
	"time"

	"github.com/shhac/protobind/internal/stub"
)

// Bundle is everything needed to bind a stub: the encoded root descriptor,
// its dependency table and the stub description.
type Bundle struct {
	Name         string            `json:"name" yaml:"name"`
	Root         string            `json:"root" yaml:"root"` // Hex-encoded FileDescriptorProto
	Dependencies map[string]string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Stub         *stub.Type        `json:"stub,omitempty" yaml:"stub,omitempty"`
	Types        []stub.Shape      `json:"types,omitempty" yaml:"types,omitempty"` // Extra names for response type lookup
	Source       string            `json:"source,omitempty" yaml:"source,omitempty"` // Server address when fetched via reflection
	SavedAt      time.Time         `json:"saved_at,omitempty" yaml:"saved_at,omitempty"`
}
