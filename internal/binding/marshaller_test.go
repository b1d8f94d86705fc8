package binding

import (
	"testing"

	"github.com/shhac/protobind/internal/registry"
	"github.com/shhac/protobind/internal/stub"
	"github.com/shhac/protobind/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
)

func boundSay(t *testing.T) Binding {
	t.Helper()
	schema := resolve(t, testutil.EchoFile("demo"))
	table, err := NewBinder(registry.New(nil)).Bind(schema, echoStub("demo", stub.Method{Name: "Say"}))
	require.NoError(t, err)
	b, ok := table.Get("demo.Echo/Say")
	require.True(t, ok)
	return b
}

func TestMarshaller_JSONRoundTrip(t *testing.T) {
	b := boundSay(t)

	req, err := b.Request.DecodeJSON([]byte(`{"text": "hello"}`))
	require.NoError(t, err)

	wire, err := b.Request.Marshal(req)
	require.NoError(t, err)

	decoded, err := b.Request.Unmarshal(wire)
	require.NoError(t, err)
	assert.True(t, proto.Equal(req, decoded))

	out, err := b.Request.EncodeJSON(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "hello"}`, string(out))
}

func TestMarshaller_NestedResponse(t *testing.T) {
	b := boundSay(t)

	resp, err := b.Response.DecodeJSON([]byte(`{"text": "hi", "detail": {"note": "n"}}`))
	require.NoError(t, err)
	wire, err := b.Response.Marshal(resp)
	require.NoError(t, err)

	got, err := b.Response.Unmarshal(wire)
	require.NoError(t, err)
	detail := got.Get(got.Descriptor().Fields().ByName("detail")).Message()
	assert.Equal(t, "n", detail.Get(detail.Descriptor().Fields().ByName("note")).String())
}

func TestMarshaller_EmptyPayloads(t *testing.T) {
	b := boundSay(t)

	wire, err := b.Request.Marshal(nil)
	require.NoError(t, err)
	assert.Empty(t, wire)

	msg, err := b.Request.DecodeJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "demo.SayRequest", string(msg.Descriptor().FullName()))
}

func TestMarshaller_Errors(t *testing.T) {
	b := boundSay(t)

	_, err := b.Request.Marshal(&emptypb.Empty{})
	assert.Error(t, err, "wrong message type")

	_, err = b.Request.DecodeJSON([]byte(`{"nope": 1}`))
	assert.Error(t, err)

	_, err = b.Request.Unmarshal([]byte{0xff})
	assert.Error(t, err)

	orphan := newMarshaller("demo.Unregistered", stub.NoPayload(), registry.New(nil))
	_, err = orphan.New()
	assert.Error(t, err)

	_, err = newMarshaller("demo.SayRequest", stub.NoPayload(), nil).Descriptor()
	assert.Error(t, err)
}
