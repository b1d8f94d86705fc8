package stub

import (
	"context"
	"fmt"
	"reflect"

	"google.golang.org/grpc"
)

var (
	contextType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	callOptionType = reflect.TypeOf((*grpc.CallOption)(nil)).Elem()
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// ErrorShape is the shape FromInterface uses for a trailing error result.
var ErrorShape = NamedShape("", "error")

// FromInterface describes a protoc-gen-go-grpc client interface, e.g.
// reflect.TypeOf((*pb.GreeterClient)(nil)).Elem().
//
// context.Context parameters and trailing ...grpc.CallOption are dropped.
// Results are mapped as:
//
//	(*T, error)              T | error
//	(*T, metadata.MD, error) (T, MD) | error
//	(S, error)               S | error, for stream clients
func FromInterface(t reflect.Type) (Type, error) {
	if t == nil || t.Kind() != reflect.Interface {
		return Type{}, fmt.Errorf("stub type must be an interface, got %v", t)
	}

	st := Type{
		Name:    t.Name(),
		Package: t.PkgPath(),
		Methods: make([]Method, 0, t.NumMethod()),
	}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		st.Methods = append(st.Methods, Method{
			Name:   m.Name,
			Params: paramShapes(m.Type),
			Return: returnShape(m.Type),
		})
	}
	return st, nil
}

func paramShapes(ft reflect.Type) []Shape {
	var params []Shape
	for i := 0; i < ft.NumIn(); i++ {
		in := ft.In(i)
		if in == contextType {
			continue
		}
		if ft.IsVariadic() && i == ft.NumIn()-1 && in.Elem() == callOptionType {
			continue
		}
		params = append(params, shapeOf(in))
	}
	return params
}

func returnShape(ft reflect.Type) Shape {
	n := ft.NumOut()
	hasErr := n > 0 && ft.Out(n-1) == errorType
	if hasErr {
		n--
	}

	var payload Shape
	switch n {
	case 0:
		payload = NoPayload()
	case 1:
		payload = shapeOf(ft.Out(0))
	default:
		elems := make([]Shape, n)
		for i := range elems {
			elems[i] = shapeOf(ft.Out(i))
		}
		payload = TupleOf(elems...)
	}

	if hasErr {
		return UnionOf(payload, ErrorShape)
	}
	return payload
}

func shapeOf(t reflect.Type) Shape {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == errorType {
		return ErrorShape
	}
	if t.Name() == "" {
		return NamedShape("", t.String())
	}
	return NamedShape(t.PkgPath(), t.Name())
}
