// Package testutil builds descriptor fixtures for tests.
package testutil

import (
	"encoding/hex"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func StrPtr(s string) *string { return &s }
func Int32Ptr(i int32) *int32 { return &i }
func BoolPtr(b bool) *bool    { return &b }

// File returns a proto3 file descriptor proto.
func File(name, pkg string, deps []string, msgs []*descriptorpb.DescriptorProto, svcs ...*descriptorpb.ServiceDescriptorProto) *descriptorpb.FileDescriptorProto {
	fd := &descriptorpb.FileDescriptorProto{
		Name:        StrPtr(name),
		Syntax:      StrPtr("proto3"),
		Dependency:  deps,
		MessageType: msgs,
		Service:     svcs,
	}
	if pkg != "" {
		fd.Package = StrPtr(pkg)
	}
	return fd
}

// Message returns a message descriptor proto.
func Message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:  StrPtr(name),
		Field: fields,
	}
}

// StringField returns an optional string field.
func StringField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   StrPtr(name),
		Number: Int32Ptr(number),
		Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
}

// MessageField returns an optional message field referencing typeName,
// which should be fully qualified with a leading dot.
func MessageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     StrPtr(name),
		Number:   Int32Ptr(number),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		TypeName: StrPtr(typeName),
	}
}

// Service returns a service descriptor proto.
func Service(name string, methods ...*descriptorpb.MethodDescriptorProto) *descriptorpb.ServiceDescriptorProto {
	return &descriptorpb.ServiceDescriptorProto{
		Name:   StrPtr(name),
		Method: methods,
	}
}

// Method returns a unary method descriptor proto.
func Method(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       StrPtr(name),
		InputType:  StrPtr(input),
		OutputType: StrPtr(output),
	}
}

// StreamingMethod returns a method descriptor proto with the given streaming flags.
func StreamingMethod(name, input, output string, client, server bool) *descriptorpb.MethodDescriptorProto {
	m := Method(name, input, output)
	m.ClientStreaming = BoolPtr(client)
	m.ServerStreaming = BoolPtr(server)
	return m
}

// Encode marshals fd and hex encodes it.
func Encode(t testing.TB, fd *descriptorpb.FileDescriptorProto) string {
	t.Helper()
	b, err := proto.Marshal(fd)
	if err != nil {
		t.Fatalf("marshal %s: %v", fd.GetName(), err)
	}
	return hex.EncodeToString(b)
}

// EchoFile returns echo.proto in package pkg (possibly empty) with a single
// unary service Echo.Say(SayRequest) returns (SayResponse). SayResponse
// nests a Detail message.
func EchoFile(pkg string) *descriptorpb.FileDescriptorProto {
	resp := Message("SayResponse",
		StringField("text", 1),
		MessageField("detail", 2, TypeName(pkg, "SayResponse.Detail")),
	)
	resp.NestedType = []*descriptorpb.DescriptorProto{Message("Detail", StringField("note", 1))}

	return File("echo.proto", pkg, nil,
		[]*descriptorpb.DescriptorProto{
			Message("SayRequest", StringField("text", 1)),
			resp,
		},
		Service("Echo", Method("Say", TypeName(pkg, "SayRequest"), TypeName(pkg, "SayResponse"))),
	)
}

// TypeName returns the absolute type name of name in package pkg.
func TypeName(pkg, name string) string {
	if pkg == "" {
		return "." + name
	}
	return "." + pkg + "." + name
}
