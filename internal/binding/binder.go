package binding

import (
	"log/slog"

	"github.com/shhac/protobind/internal/descriptor"
	"github.com/shhac/protobind/internal/domain"
	perrors "github.com/shhac/protobind/internal/errors"
	"github.com/shhac/protobind/internal/logging"
	"github.com/shhac/protobind/internal/registry"
	"github.com/shhac/protobind/internal/stub"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// MessageRegistry receives the message types of every bound method.
type MessageRegistry interface {
	AddMessage(name string, md protoreflect.MessageDescriptor)
	AddNested(md protoreflect.MessageDescriptor)
	FindMessage(name string) (protoreflect.MessageDescriptor, bool)
}

var _ MessageRegistry = (*registry.Registry)(nil)

// Binder binds stub types to the services of resolved schemas.
type Binder struct {
	reg            MessageRegistry
	lookup         stub.TypeLookup
	convention     stub.Convention
	requestPolicy  stub.RequestPolicy
	responsePolicy stub.ResponsePolicy
	logger         *slog.Logger
}

// Option configures a Binder.
type Option func(*Binder)

// WithTypeLookup sets the lookup used when no response shape can be
// inferred. By default each Bind uses a catalog of the stub's own types.
func WithTypeLookup(l stub.TypeLookup) Option {
	return func(b *Binder) {
		b.lookup = l
	}
}

// WithConvention sets the call-metadata type.
func WithConvention(c stub.Convention) Option {
	return func(b *Binder) {
		b.convention = c
	}
}

// WithRequestPolicy replaces stub.InferRequest.
func WithRequestPolicy(p stub.RequestPolicy) Option {
	return func(b *Binder) {
		if p != nil {
			b.requestPolicy = p
		}
	}
}

// WithResponsePolicy replaces stub.InferResponse.
func WithResponsePolicy(p stub.ResponsePolicy) Option {
	return func(b *Binder) {
		if p != nil {
			b.responsePolicy = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBinder creates a binder that registers message types into reg. A nil
// reg gets a private registry.
func NewBinder(reg MessageRegistry, opts ...Option) *Binder {
	b := &Binder{
		convention:     stub.DefaultConvention,
		requestPolicy:  stub.InferRequest,
		responsePolicy: stub.InferResponse,
		logger:         logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if reg == nil {
		reg = registry.New(b.logger)
	}
	b.reg = reg
	return b
}

// Registry returns the registry bound message types are added to.
func (b *Binder) Registry() MessageRegistry {
	return b.reg
}

// Bind locates the service for st and binds every stub method to it. Any
// failure aborts the whole bind.
func (b *Binder) Bind(schema *descriptor.Schema, st stub.Type) (*Table, error) {
	sd, err := LocateService(schema, st.Name)
	if err != nil {
		return nil, err
	}

	lookup := b.lookup
	if lookup == nil {
		lookup = stub.CatalogOf(st)
	}

	b.logger.Debug("binding stub",
		slog.String("stub", st.Name),
		slog.String("service", string(sd.FullName())),
		slog.Int("methods", len(st.Methods)),
	)

	bindings := make([]Binding, 0, len(st.Methods))
	for _, sm := range st.Methods {
		md := sd.Methods().ByName(protoreflect.Name(sm.Name))
		if md == nil {
			return nil, perrors.Wrapf(perrors.ErrUnknownMethod, sm.Name,
				"service %s has no such method", sd.FullName())
		}
		bindings = append(bindings, b.bindMethod(sd, md, sm, st.Package, lookup))
	}

	return newTable(bindings), nil
}

func (b *Binder) bindMethod(sd protoreflect.ServiceDescriptor, md protoreflect.MethodDescriptor, sm stub.Method, pkg string, lookup stub.TypeLookup) Binding {
	in, out := md.Input(), md.Output()
	for _, msg := range []protoreflect.MessageDescriptor{in, out} {
		b.reg.AddMessage(string(msg.FullName()), msg)
		b.reg.AddNested(msg)
	}

	fullName := string(sd.FullName()) + "/" + string(md.Name())

	reqShape := b.requestPolicy(sm.Params, b.convention)
	respShape, ok := b.responsePolicy(sm.Return, b.convention)
	if !ok {
		respShape, ok = lookup.LookupType(pkg, string(out.Name()))
		if !ok {
			respShape = stub.NamedShape(pkg, string(out.Name()))
		}
	}

	b.logger.Debug("bound method",
		slog.String("method", fullName),
		slog.String("request", reqShape.String()),
		slog.String("response", respShape.String()),
	)

	return Binding{
		Type:           domain.MethodTypeOf(md.IsStreamingClient(), md.IsStreamingServer()),
		FullMethodName: fullName,
		Request:        newMarshaller(string(in.FullName()), reqShape, b.reg),
		Response:       newMarshaller(string(out.FullName()), respShape, b.reg),
		Schema:         md,
	}
}
