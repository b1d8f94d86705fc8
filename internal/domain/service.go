package domain

import "google.golang.org/protobuf/reflect/protoreflect"

// MethodType is the RPC cardinality of a method.
type MethodType string

const (
	Unary        MethodType = "Unary"
	ServerStream MethodType = "ServerStream"
	ClientStream MethodType = "ClientStream"
	BidiStream   MethodType = "BidiStream"
)

// MethodTypeOf derives the cardinality from the streaming flags.
func MethodTypeOf(clientStream, serverStream bool) MethodType {
	if clientStream && serverStream {
		return BidiStream
	}
	if serverStream {
		return ServerStream
	}
	if clientStream {
		return ClientStream
	}
	return Unary
}

// ClientStreams reports whether the client sends a stream of messages.
func (t MethodType) ClientStreams() bool {
	return t == ClientStream || t == BidiStream
}

// ServerStreams reports whether the server sends a stream of messages.
func (t MethodType) ServerStreams() bool {
	return t == ServerStream || t == BidiStream
}

// Service summarizes a service declared in a resolved schema
type Service struct {
	Name     string
	FullName string // Fully qualified name
	Methods  []Method
}

// Method summarizes a service method
type Method struct {
	Name           string
	FullName       string // "<service full name>/<method>"
	InputType      string // Fully qualified message name
	OutputType     string
	IsClientStream bool
	IsServerStream bool
}

// MethodType returns the RPC cardinality
func (m Method) MethodType() MethodType {
	return MethodTypeOf(m.IsClientStream, m.IsServerStream)
}

// ServiceFromDescriptor summarizes sd.
func ServiceFromDescriptor(sd protoreflect.ServiceDescriptor) Service {
	svc := Service{
		Name:     string(sd.Name()),
		FullName: string(sd.FullName()),
	}
	methods := sd.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		svc.Methods = append(svc.Methods, Method{
			Name:           string(md.Name()),
			FullName:       svc.FullName + "/" + string(md.Name()),
			InputType:      string(md.Input().FullName()),
			OutputType:     string(md.Output().FullName()),
			IsClientStream: md.IsStreamingClient(),
			IsServerStream: md.IsStreamingServer(),
		})
	}
	return svc
}
