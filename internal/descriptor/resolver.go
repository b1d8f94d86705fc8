package descriptor

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	perrors "github.com/shhac/protobind/internal/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// DependencyTable maps import names to encoded descriptors.
type DependencyTable interface {
	Lookup(name string) (encoded string, ok bool)
}

// Dependencies is a map-backed DependencyTable.
type Dependencies map[string]string

// Lookup returns the encoded descriptor registered under name.
func (d Dependencies) Lookup(name string) (string, bool) {
	encoded, ok := d[name]
	return encoded, ok
}

// Resolver builds a Schema from an encoded root descriptor and its
// dependency table. The first successful result is cached; later calls
// return it without decoding again. Failures are not cached.
type Resolver struct {
	root string
	deps DependencyTable
	opts options

	mu     sync.Mutex
	schema *Schema
}

// NewResolver creates a resolver for root. A nil deps is treated as an
// empty table.
func NewResolver(root string, deps DependencyTable, opts ...Option) *Resolver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if deps == nil {
		deps = Dependencies(nil)
	}
	return &Resolver{
		root: root,
		deps: deps,
		opts: o,
	}
}

// Resolve returns the linked, validated schema.
func (r *Resolver) Resolve() (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schema != nil {
		return r.schema, nil
	}

	l := &linker{
		opts:       r.opts,
		deps:       r.deps,
		files:      new(protoregistry.Files),
		linked:     make(map[string]protoreflect.FileDescriptor),
		inProgress: make(map[string]bool),
	}

	root, err := l.resolve("", r.root)
	if err != nil {
		r.opts.logger.Debug("descriptor resolution failed", slog.Any("error", err))
		return nil, err
	}

	r.schema = &Schema{
		root:    root,
		files:   l.files,
		linked:  l.linked,
		missing: l.missing,
	}

	r.opts.logger.Debug("resolved descriptor",
		slog.String("file", root.Path()),
		slog.Int("dependencies", len(l.linked)),
		slog.Int("missing", len(l.missing)),
	)
	return r.schema, nil
}

// linker holds the state of one resolution run.
type linker struct {
	opts  options
	deps  DependencyTable
	files *protoregistry.Files

	// linked holds fragments by the dependency name they were imported as.
	linked     map[string]protoreflect.FileDescriptor
	inProgress map[string]bool
	missing    []string
}

// resolve decodes, parses and links one fragment after its dependencies.
// name is the import name the fragment was requested under, empty for the root.
func (l *linker) resolve(name, encoded string) (protoreflect.FileDescriptor, error) {
	fdp, err := l.parse(name, encoded)
	if err != nil {
		return nil, err
	}

	key := name
	if key == "" {
		key = fdp.GetName()
	}
	l.inProgress[key] = true
	l.inProgress[fdp.GetName()] = true
	defer func() {
		delete(l.inProgress, key)
		delete(l.inProgress, fdp.GetName())
	}()

	// found counts only imports the dependency table supplies. The fallback
	// files let a fragment link, but never satisfy the table on their own.
	declared := fdp.GetDependency()
	found := 0
	var missing, absent []string
	for _, dep := range declared {
		if _, ok := l.linked[dep]; ok {
			found++
			continue
		}
		if l.inProgress[dep] {
			return nil, perrors.Wrapf(perrors.ErrCyclicDependency, dep,
				"imported by %s while still being resolved", fdp.GetName())
		}

		depEncoded, ok := l.deps.Lookup(dep)
		if !ok {
			absent = append(absent, dep)
			if l.fromFallback(dep) {
				l.opts.logger.Debug("dependency resolved from fallback files",
					slog.String("file", fdp.GetName()),
					slog.String("dependency", dep),
				)
				continue
			}
			if l.opts.mode == Strict {
				return nil, perrors.Wrapf(perrors.ErrUnresolvedDependency, dep,
					"imported by %s", fdp.GetName())
			}
			missing = append(missing, dep)
			continue
		}

		l.opts.logger.Debug("resolving dependency",
			slog.String("file", fdp.GetName()),
			slog.String("dependency", dep),
		)
		if _, err := l.resolve(dep, depEncoded); err != nil {
			return nil, err
		}
		found++
	}

	if len(declared) > 0 && found == 0 {
		return nil, perrors.Wrapf(perrors.ErrUnresolvedDependency, fdp.GetName(),
			"none of its dependencies are in the dependency table: %s", strings.Join(absent, ", "))
	}
	if len(missing) > 0 {
		l.opts.logger.Warn("linking with missing dependencies",
			slog.String("file", fdp.GetName()),
			slog.Any("missing", missing),
		)
		for _, dep := range missing {
			if !slices.Contains(l.missing, dep) {
				l.missing = append(l.missing, dep)
			}
		}
	}

	fd, err := l.link(fdp, len(missing) > 0)
	if err != nil {
		return nil, err
	}
	if name != "" {
		l.linked[name] = fd
	}
	return fd, nil
}

// parse decodes and unmarshals one fragment.
func (l *linker) parse(name, encoded string) (*descriptorpb.FileDescriptorProto, error) {
	raw, err := l.opts.decoder(encoded)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrMalformedInput, name, err)
	}
	if len(raw) == 0 {
		return nil, perrors.Wrapf(perrors.ErrMalformedInput, name, "descriptor decodes to zero bytes")
	}

	fdp := &descriptorpb.FileDescriptorProto{}
	if err := proto.Unmarshal(raw, fdp); err != nil {
		return nil, perrors.Wrap(perrors.ErrMalformedInput, name, err)
	}
	if fdp.GetName() == "" {
		return nil, perrors.Wrapf(perrors.ErrMalformedInput, name, "file descriptor has no name")
	}

	if l.opts.repairs {
		if applyRepairs(fdp) {
			l.opts.logger.Debug("repaired descriptor", slog.String("file", fdp.GetName()))
		}
	}
	return fdp, nil
}

// link builds the fragment against everything linked so far and registers it.
func (l *linker) link(fdp *descriptorpb.FileDescriptorProto, partial bool) (protoreflect.FileDescriptor, error) {
	var resolver protodesc.Resolver = l.files
	if l.opts.fallback != nil {
		resolver = &combinedResolver{local: l.files, global: l.opts.fallback}
	}

	opts := protodesc.FileOptions{AllowUnresolvable: partial}
	fd, err := opts.New(fdp, resolver)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrSchemaValidation, fdp.GetName(), err)
	}
	if err := l.files.RegisterFile(fd); err != nil {
		return nil, perrors.Wrap(perrors.ErrSchemaValidation, fdp.GetName(), err)
	}
	return fd, nil
}

func (l *linker) fromFallback(path string) bool {
	if l.opts.fallback == nil {
		return false
	}
	_, err := l.opts.fallback.FindFileByPath(path)
	return err == nil
}

// combinedResolver tries local files first, then falls back to a global set.
type combinedResolver struct {
	local  *protoregistry.Files
	global *protoregistry.Files
}

func (r *combinedResolver) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	if fd, err := r.local.FindFileByPath(path); err == nil {
		return fd, nil
	}
	return r.global.FindFileByPath(path)
}

func (r *combinedResolver) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	if d, err := r.local.FindDescriptorByName(name); err == nil {
		return d, nil
	}
	return r.global.FindDescriptorByName(name)
}
