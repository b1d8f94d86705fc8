package binding

import (
	"testing"

	"github.com/shhac/protobind/internal/descriptor"
	perrors "github.com/shhac/protobind/internal/errors"
	"github.com/shhac/protobind/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"
)

func resolve(t *testing.T, fd *descriptorpb.FileDescriptorProto) *descriptor.Schema {
	t.Helper()
	schema, err := descriptor.NewResolver(testutil.Encode(t, fd), nil).Resolve()
	require.NoError(t, err)
	return schema
}

// greeterFile declares one unary method per service name given.
func greeterFile(services ...string) *descriptorpb.FileDescriptorProto {
	var svcs []*descriptorpb.ServiceDescriptorProto
	for _, name := range services {
		svcs = append(svcs, testutil.Service(name,
			testutil.Method("Hello", ".greet.HelloRequest", ".greet.HelloReply")))
	}
	return testutil.File("greet.proto", "greet", nil,
		[]*descriptorpb.DescriptorProto{
			testutil.Message("HelloRequest", testutil.StringField("name", 1)),
			testutil.Message("HelloReply", testutil.StringField("message", 1)),
		},
		svcs...,
	)
}

func TestLocateService(t *testing.T) {
	one := resolve(t, greeterFile("Greeter"))
	two := resolve(t, greeterFile("Greeter", "Farewell"))

	tests := []struct {
		name    string
		schema  *descriptor.Schema
		stub    string
		want    string
		wantErr error
	}{
		{"blocking client suffix", two, "GreeterBlockingClient", "greet.Greeter", nil},
		{"client suffix", two, "FarewellClient", "greet.Farewell", nil},
		{"single service fallback", one, "Unrelated", "greet.Greeter", nil},
		{"suffix with no matching service falls back", one, "OtherClient", "greet.Greeter", nil},
		{"bare suffix", one, "Client", "greet.Greeter", nil},
		{"ambiguous", two, "Unrelated", "", perrors.ErrAmbiguousService},
		{"ambiguous after suffix miss", two, "OtherBlockingClient", "", perrors.ErrAmbiguousService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd, err := LocateService(tt.schema, tt.stub)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.stub)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(sd.FullName()))
		})
	}
}

func TestLocateService_NoServices(t *testing.T) {
	schema := resolve(t, testutil.File("empty.proto", "empty", nil,
		[]*descriptorpb.DescriptorProto{testutil.Message("Nothing")}))

	_, err := LocateService(schema, "AnythingClient")
	require.ErrorIs(t, err, perrors.ErrNoServiceInSchema)
	assert.Contains(t, err.Error(), "empty.proto")
}

func TestServiceNameFor(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"GreeterBlockingClient", "Greeter", true},
		{"GreeterClient", "Greeter", true},
		{"GreeterBlocking", "", false},
		{"Greeter", "", false},
		{"Client", "", false},
		{"BlockingClient", "", false},
	}
	for _, tt := range tests {
		got, ok := serviceNameFor(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
