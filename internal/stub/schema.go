package stub

import "google.golang.org/protobuf/reflect/protoreflect"

// FromService describes the client stub of sd as protoc-gen-go-grpc would
// name it, "<Service>Client". Each method takes its input message and
// returns "Output | error" whatever its cardinality, so the binder infers
// nothing from the return and finds the output type in the stub catalog.
func FromService(sd protoreflect.ServiceDescriptor) Type {
	st := Type{
		Name:    string(sd.Name()) + "Client",
		Package: string(sd.ParentFile().Package()),
	}
	methods := sd.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		st.Methods = append(st.Methods, Method{
			Name:   string(md.Name()),
			Params: []Shape{messageShape(md.Input())},
			Return: UnionOf(messageShape(md.Output()), ErrorShape),
		})
	}
	return st
}

func messageShape(md protoreflect.MessageDescriptor) Shape {
	return NamedShape(string(md.ParentFile().Package()), string(md.Name()))
}
