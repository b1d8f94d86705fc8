// Package registry holds message descriptors registered while binding stubs
// so that payloads can be built and decoded later without the schema.
package registry

import (
	"log/slog"
	"sync"

	"github.com/shhac/protobind/internal/logging"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Registry maps names to message descriptors and keeps a dynamicpb message
// type for each registered full name. It is append-only: the first
// registration of a name wins. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]protoreflect.MessageDescriptor
	types  *protoregistry.Types
	logger *slog.Logger
}

// New creates an empty registry. A nil logger discards output.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		byName: make(map[string]protoreflect.MessageDescriptor),
		types:  new(protoregistry.Types),
		logger: logger,
	}
}

// AddMessage registers md under name and under its full name.
func (r *Registry) AddMessage(name string, md protoreflect.MessageDescriptor) {
	if md == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(name, md)
}

// AddNested registers every message nested in md, recursively, under its
// full name.
func (r *Registry) AddNested(md protoreflect.MessageDescriptor) {
	if md == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addNested(md)
}

func (r *Registry) addNested(md protoreflect.MessageDescriptor) {
	nested := md.Messages()
	for i := 0; i < nested.Len(); i++ {
		child := nested.Get(i)
		r.add(string(child.FullName()), child)
		r.addNested(child)
	}
}

func (r *Registry) add(name string, md protoreflect.MessageDescriptor) {
	if md.IsPlaceholder() {
		r.logger.Warn("skipping unresolved message", slog.String("message", string(md.FullName())))
		return
	}
	if _, ok := r.byName[name]; !ok {
		r.byName[name] = md
	}
	full := string(md.FullName())
	if _, ok := r.byName[full]; !ok {
		r.byName[full] = md
	}
	if _, err := r.types.FindMessageByName(md.FullName()); err == nil {
		return
	}
	if err := r.types.RegisterMessage(dynamicpb.NewMessageType(md)); err != nil {
		r.logger.Debug("message type not registered",
			slog.String("message", full),
			slog.Any("error", err),
		)
	}
}

// FindMessage returns the descriptor registered under name.
func (r *Registry) FindMessage(name string) (protoreflect.MessageDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.byName[name]
	return md, ok
}

// FindMessageByName implements protoregistry.MessageTypeResolver.
func (r *Registry) FindMessageByName(name protoreflect.FullName) (protoreflect.MessageType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types.FindMessageByName(name)
}

// FindMessageByURL implements protoregistry.MessageTypeResolver so that
// google.protobuf.Any payloads can be expanded.
func (r *Registry) FindMessageByURL(url string) (protoreflect.MessageType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types.FindMessageByURL(url)
}

// FindExtensionByName implements protoregistry.ExtensionTypeResolver.
// Extensions are not tracked.
func (r *Registry) FindExtensionByName(field protoreflect.FullName) (protoreflect.ExtensionType, error) {
	return nil, protoregistry.NotFound
}

// FindExtensionByNumber implements protoregistry.ExtensionTypeResolver.
func (r *Registry) FindExtensionByNumber(message protoreflect.FullName, field protoreflect.FieldNumber) (protoreflect.ExtensionType, error) {
	return nil, protoregistry.NotFound
}

// Len returns the number of distinct message types registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types.NumMessages()
}
