package descriptor

import (
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Schema is a root file descriptor linked together with every dependency
// that could be resolved for it. It is immutable once built.
type Schema struct {
	root    protoreflect.FileDescriptor
	files   *protoregistry.Files
	linked  map[string]protoreflect.FileDescriptor
	missing []string
}

// File returns the root file descriptor.
func (s *Schema) File() protoreflect.FileDescriptor {
	return s.root
}

// Files returns the registry holding the root and all linked dependencies.
func (s *Schema) Files() *protoregistry.Files {
	return s.files
}

// Services returns the services declared by the root file.
func (s *Schema) Services() protoreflect.ServiceDescriptors {
	return s.root.Services()
}

// FindService returns the root file's service with the given short name.
func (s *Schema) FindService(name string) protoreflect.ServiceDescriptor {
	return s.root.Services().ByName(protoreflect.Name(name))
}

// Dependency returns the fragment linked for an import name.
func (s *Schema) Dependency(name string) (protoreflect.FileDescriptor, bool) {
	fd, ok := s.linked[name]
	return fd, ok
}

// Dependencies returns the import names of every linked fragment, sorted.
func (s *Schema) Dependencies() []string {
	names := make([]string, 0, len(s.linked))
	for name := range s.linked {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the import names that could not be found and were linked
// as placeholders. It is always empty in strict mode.
func (s *Schema) Missing() []string {
	out := make([]string, len(s.missing))
	copy(out, s.missing)
	return out
}
