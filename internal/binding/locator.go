// Package binding binds stub types to resolved schemas and produces the
// call table consumed by the transport.
package binding

import (
	"strings"

	"github.com/shhac/protobind/internal/descriptor"
	perrors "github.com/shhac/protobind/internal/errors"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// suffixRule strips a stub naming suffix to derive a service name.
type suffixRule struct {
	suffix string
	strip  int
}

// suffixRules are evaluated in order; the first match wins.
var suffixRules = []suffixRule{
	{suffix: "BlockingClient", strip: 14},
	{suffix: "Client", strip: 6},
}

// serviceNameFor derives the service name a stub type name refers to.
func serviceNameFor(stubTypeName string) (string, bool) {
	for _, rule := range suffixRules {
		if strings.HasSuffix(stubTypeName, rule.suffix) {
			name := stubTypeName[:len(stubTypeName)-rule.strip]
			return name, name != ""
		}
	}
	return "", false
}

// LocateService finds the root file service a stub type binds to: the
// service named by the stub name minus its client suffix, or else the only
// service in the file.
func LocateService(schema *descriptor.Schema, stubTypeName string) (protoreflect.ServiceDescriptor, error) {
	services := schema.Services()
	if services.Len() == 0 {
		return nil, perrors.New(perrors.ErrNoServiceInSchema, schema.File().Path())
	}

	if name, ok := serviceNameFor(stubTypeName); ok {
		if sd := services.ByName(protoreflect.Name(name)); sd != nil {
			return sd, nil
		}
	}

	if services.Len() == 1 {
		return services.Get(0), nil
	}
	return nil, perrors.Wrapf(perrors.ErrAmbiguousService, stubTypeName,
		"%s declares %d services and none matches", schema.File().Path(), services.Len())
}
