package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/mem"
	"google.golang.org/protobuf/types/known/emptypb"
)

func TestBindingCodec(t *testing.T) {
	b, ok := echoTable(t).Get("demo.Echo/Say")
	require.True(t, ok)
	codec := bindingCodec{b: b}
	assert.Equal(t, "proto", codec.Name())

	req, err := b.Request.DecodeJSON([]byte(`{"text": "wire"}`))
	require.NoError(t, err)
	data, err := codec.Marshal(req)
	require.NoError(t, err)

	resp, err := b.Response.New()
	require.NoError(t, err)
	require.NoError(t, codec.Unmarshal(mem.BufferSlice{mem.SliceBuffer(data.Materialize())}, resp))
	out, err := b.Response.EncodeJSON(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "wire"}`, string(out))
}

func TestBindingCodec_Rejects(t *testing.T) {
	b, ok := echoTable(t).Get("demo.Echo/Say")
	require.True(t, ok)
	codec := bindingCodec{b: b}

	// A reply-typed message is not a request of this method.
	wrong, err := b.Response.New()
	require.NoError(t, err)
	_, err = codec.Marshal(wrong)
	assert.ErrorContains(t, err, "demo.SayResponse")

	_, err = codec.Marshal("not a message")
	assert.Error(t, err)

	err = codec.Unmarshal(mem.BufferSlice{mem.SliceBuffer(nil)}, &emptypb.Empty{})
	assert.ErrorContains(t, err, "google.protobuf.Empty")

	err = codec.Unmarshal(mem.BufferSlice{mem.SliceBuffer(nil)}, 42)
	assert.Error(t, err)
}
