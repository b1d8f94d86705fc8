package grpc

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shhac/protobind/internal/domain"
	perrors "github.com/shhac/protobind/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInvoker_Unary(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)

	resp, err := inv.Call(testContext(t), echoTable(t), domain.Request{
		Method:   "demo.Echo/Say",
		Bodies:   []string{`{"text": "hello"}`},
		Metadata: map[string]string{"x-request": "abc"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Bodies, 1)
	assert.JSONEq(t, `{"text": "hello"}`, resp.Bodies[0])
	assert.Equal(t, "abc", resp.Headers["x-echo"])
	assert.Equal(t, "true", resp.Trailers["x-done"])
}

func TestInvoker_UnaryEmptyBody(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)

	resp, err := inv.Call(testContext(t), echoTable(t), domain.Request{Method: "demo.Echo/Say"})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, resp.Bodies[0])
}

func TestInvoker_UnaryStatusError(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)

	_, err := inv.Call(testContext(t), echoTable(t), domain.Request{
		Method: "demo.Echo/Say",
		Bodies: []string{`{"text": "fail"}`},
	})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestInvoker_ServerStream(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)

	resp, err := inv.Call(testContext(t), echoTable(t), domain.Request{
		Method: "demo.Echo/Repeat",
		Bodies: []string{`{"text": "hi"}`},
	})
	require.NoError(t, err)

	require.Len(t, resp.Bodies, 3)
	assert.JSONEq(t, `{"text": "hi-1"}`, resp.Bodies[0])
	assert.JSONEq(t, `{"text": "hi-3"}`, resp.Bodies[2])
}

func TestInvoker_ServerStreamMetadata(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)

	resp, err := inv.Call(testContext(t), echoTable(t), domain.Request{
		Method:   "demo.Echo/Repeat",
		Bodies:   []string{`{"text": "md"}`},
		Metadata: map[string]string{"x-request": "r-7"},
	})
	require.NoError(t, err)

	assert.Len(t, resp.Bodies, 3)
	assert.Equal(t, "r-7", resp.Headers["x-echo"])
	assert.Equal(t, "3", resp.Trailers["x-count"])
}

func TestInvoker_ServerStreamChannels(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)
	b, ok := echoTable(t).Get("demo.Echo/Repeat")
	require.True(t, ok)

	msgs, errs := inv.InvokeServerStream(testContext(t), b, `{"text": "x"}`, nil)
	var got []string
	for msg := range msgs {
		got = append(got, msg)
	}
	assert.NoError(t, <-errs)
	assert.Len(t, got, 3)
}

func TestInvoker_ClientStream(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)

	resp, err := inv.Call(testContext(t), echoTable(t), domain.Request{
		Method: "demo.Echo/Collect",
		Bodies: []string{`{"text": "a"}`, `{"text": "b"}`, `{"text": "c"}`},
	})
	require.NoError(t, err)

	require.Len(t, resp.Bodies, 1)
	assert.JSONEq(t, `{"text": "a,b,c"}`, resp.Bodies[0])
}

func TestInvoker_Bidi(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)

	resp, err := inv.Call(testContext(t), echoTable(t), domain.Request{
		Method: "demo.Echo/Chat",
		Bodies: []string{`{"text": "one"}`, `{"text": "two"}`},
	})
	require.NoError(t, err)

	require.Len(t, resp.Bodies, 2)
	assert.JSONEq(t, `{"text": "ONE"}`, resp.Bodies[0])
	assert.JSONEq(t, `{"text": "TWO"}`, resp.Bodies[1])
}

func TestInvoker_BidiHandle(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)
	b, ok := echoTable(t).Get("demo.Echo/Chat")
	require.True(t, ok)

	h, err := inv.OpenStream(testContext(t), b, nil)
	require.NoError(t, err)

	require.NoError(t, h.Send(`{"text": "ping"}`))
	msg, err := h.Recv()
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "PING"}`, msg)

	require.NoError(t, h.CloseSend())
	_, err = h.Recv()
	assert.True(t, errors.Is(err, io.EOF))

	assert.Error(t, h.Send(`{"nope": 1}`), "unknown field is rejected before sending")
}

func TestInvoker_Errors(t *testing.T) {
	inv := NewInvoker(testConn, testLogger)
	table := echoTable(t)

	_, err := inv.Call(testContext(t), table, domain.Request{Method: "demo.Echo/Shout"})
	assert.ErrorIs(t, err, perrors.ErrUnknownMethod)

	_, err = inv.Call(testContext(t), table, domain.Request{
		Method: "demo.Echo/Say",
		Bodies: []string{`{}`, `{}`},
	})
	assert.Error(t, err, "unary takes one body")

	_, err = inv.Call(testContext(t), table, domain.Request{
		Method: "demo.Echo/Say",
		Bodies: []string{`{"text": `},
	})
	assert.Error(t, err, "malformed JSON")
}

func TestFlattenMD(t *testing.T) {
	assert.Nil(t, flattenMD(nil))
	got := flattenMD(map[string][]string{"a": {"1", "2"}, "b": {"3"}})
	assert.Equal(t, map[string]string{"a": "1, 2", "b": "3"}, got)
}
