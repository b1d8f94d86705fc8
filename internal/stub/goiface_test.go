package stub

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const pkgPath = "github.com/shhac/protobind/internal/stub"

type SayRequest struct{}
type SayResponse struct{}

type Echo_ChatClient interface {
	Send(*SayRequest) error
	Recv() (*SayResponse, error)
}

type EchoClient interface {
	Say(ctx context.Context, in *SayRequest, opts ...grpc.CallOption) (*SayResponse, error)
	SayWithHeaders(ctx context.Context, in *SayRequest, opts ...grpc.CallOption) (*SayResponse, metadata.MD, error)
	Ping(ctx context.Context, md metadata.MD, opts ...grpc.CallOption) (*SayResponse, error)
	Chat(ctx context.Context, opts ...grpc.CallOption) (Echo_ChatClient, error)
}

func TestFromInterface(t *testing.T) {
	st, err := FromInterface(reflect.TypeOf((*EchoClient)(nil)).Elem())
	require.NoError(t, err)

	assert.Equal(t, "EchoClient", st.Name)
	assert.Equal(t, pkgPath, st.Package)
	require.Len(t, st.Methods, 4)

	req := NamedShape(pkgPath, "SayRequest")
	resp := NamedShape(pkgPath, "SayResponse")

	say, ok := st.Method("Say")
	require.True(t, ok)
	require.Len(t, say.Params, 1)
	assert.True(t, req.Equal(say.Params[0]))
	assert.True(t, UnionOf(resp, ErrorShape).Equal(say.Return), say.Return.String())

	hdr, _ := st.Method("SayWithHeaders")
	assert.True(t, UnionOf(TupleOf(resp, DefaultConvention.Shape()), ErrorShape).Equal(hdr.Return), hdr.Return.String())

	ping, _ := st.Method("Ping")
	require.Len(t, ping.Params, 1)
	assert.True(t, ping.Params[0].Matches(DefaultConvention))

	chat, _ := st.Method("Chat")
	assert.Empty(t, chat.Params)
	assert.True(t, UnionOf(NamedShape(pkgPath, "Echo_ChatClient"), ErrorShape).Equal(chat.Return))
}

func TestFromInterface_Inference(t *testing.T) {
	st, err := FromInterface(reflect.TypeOf((*EchoClient)(nil)).Elem())
	require.NoError(t, err)

	ping, _ := st.Method("Ping")
	assert.True(t, InferRequest(ping.Params, DefaultConvention).IsNil())

	hdr, _ := st.Method("SayWithHeaders")
	got, ok := InferResponse(hdr.Return, DefaultConvention)
	require.True(t, ok)
	assert.Equal(t, "SayResponse", got.Name)

	say, _ := st.Method("Say")
	_, ok = InferResponse(say.Return, DefaultConvention)
	assert.False(t, ok)
}

func TestFromInterface_RejectsNonInterface(t *testing.T) {
	_, err := FromInterface(reflect.TypeOf(SayRequest{}))
	assert.Error(t, err)

	_, err = FromInterface(nil)
	assert.Error(t, err)
}
