package grpc

import (
	"fmt"

	"github.com/shhac/protobind/internal/binding"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"
	"google.golang.org/protobuf/proto"
)

// bindingCodec puts one binding's marshallers on the wire: requests are
// encoded by its request marshaller and replies decoded by its response
// marshaller.
type bindingCodec struct {
	b binding.Binding
}

var _ encoding.CodecV2 = bindingCodec{}

func (c bindingCodec) Marshal(v any) (mem.BufferSlice, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%s: cannot send %T", c.b.FullMethodName, v)
	}
	data, err := c.b.Request.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return mem.BufferSlice{mem.SliceBuffer(data)}, nil
}

func (c bindingCodec) Unmarshal(data mem.BufferSlice, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("%s: cannot receive into %T", c.b.FullMethodName, v)
	}
	decoded, err := c.b.Response.Unmarshal(data.Materialize())
	if err != nil {
		return err
	}
	if msg.ProtoReflect().Descriptor() != decoded.Descriptor() {
		return fmt.Errorf("%s: cannot receive %s into %s", c.b.FullMethodName,
			decoded.Descriptor().FullName(), msg.ProtoReflect().Descriptor().FullName())
	}
	proto.Reset(msg)
	proto.Merge(msg, decoded)
	return nil
}

// Name keeps the standard content subtype so servers see application/grpc+proto.
func (bindingCodec) Name() string {
	return "proto"
}

func codecOption(b binding.Binding) grpc.CallOption {
	return grpc.ForceCodecV2(bindingCodec{b: b})
}
