package binding

import (
	"fmt"

	"github.com/shhac/protobind/internal/stub"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Marshaller encodes and decodes one direction of a method. It pairs the
// schema message name with the payload shape inferred from the stub. The
// message descriptor is looked up in the registry when first needed.
type Marshaller struct {
	message string
	shape   stub.Shape
	reg     MessageRegistry
}

func newMarshaller(message string, shape stub.Shape, reg MessageRegistry) Marshaller {
	return Marshaller{message: message, shape: shape, reg: reg}
}

// MessageName returns the fully qualified schema message name.
func (m Marshaller) MessageName() string {
	return m.message
}

// Shape returns the inferred stub payload shape.
func (m Marshaller) Shape() stub.Shape {
	return m.shape
}

// NoPayload reports whether the stub side carries no payload, only call
// metadata. The wire still carries an empty message of the schema type.
func (m Marshaller) NoPayload() bool {
	return m.shape.IsNil()
}

// Descriptor returns the schema message descriptor from the registry.
func (m Marshaller) Descriptor() (protoreflect.MessageDescriptor, error) {
	if m.reg == nil {
		return nil, fmt.Errorf("no message registry for %s", m.message)
	}
	md, ok := m.reg.FindMessage(m.message)
	if !ok {
		return nil, fmt.Errorf("message %s is not registered", m.message)
	}
	return md, nil
}

// New returns an empty dynamic message of the schema type.
func (m Marshaller) New() (*dynamicpb.Message, error) {
	md, err := m.Descriptor()
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}

// Marshal encodes msg to wire bytes. A nil msg encodes an empty message.
func (m Marshaller) Marshal(msg proto.Message) ([]byte, error) {
	if msg == nil {
		empty, err := m.New()
		if err != nil {
			return nil, err
		}
		msg = empty
	}
	if got := string(msg.ProtoReflect().Descriptor().FullName()); got != m.message {
		return nil, fmt.Errorf("marshal %s: got message %s", m.message, got)
	}
	return proto.Marshal(msg)
}

// Unmarshal decodes wire bytes into a dynamic message.
func (m Marshaller) Unmarshal(data []byte) (*dynamicpb.Message, error) {
	msg, err := m.New()
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", m.message, err)
	}
	return msg, nil
}

// DecodeJSON parses protojson into a dynamic message. Empty input yields an
// empty message.
func (m Marshaller) DecodeJSON(data []byte) (*dynamicpb.Message, error) {
	msg, err := m.New()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return msg, nil
	}
	opts := protojson.UnmarshalOptions{Resolver: m.resolver()}
	if err := opts.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse %s JSON: %w", m.message, err)
	}
	return msg, nil
}

// EncodeJSON renders msg as indented protojson.
func (m Marshaller) EncodeJSON(msg proto.Message) ([]byte, error) {
	opts := protojson.MarshalOptions{
		Multiline:       true,
		Indent:          "  ",
		EmitUnpopulated: false,
		Resolver:        m.resolver(),
	}
	return opts.Marshal(msg)
}

type typeResolver interface {
	protoregistry.MessageTypeResolver
	protoregistry.ExtensionTypeResolver
}

// resolver lets Any payloads expand against the registry when it can.
func (m Marshaller) resolver() typeResolver {
	if r, ok := m.reg.(typeResolver); ok {
		return r
	}
	return protoregistry.GlobalTypes
}
