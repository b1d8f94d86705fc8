package app

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/shhac/protobind/internal/domain"
	perrors "github.com/shhac/protobind/internal/errors"
	"github.com/shhac/protobind/internal/logging"
	"github.com/shhac/protobind/internal/storage"
	"github.com/shhac/protobind/internal/stub"
	"github.com/shhac/protobind/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/descriptorpb"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a := NewWithRepository(DefaultConfig(), logging.NewNopLogger(), storage.NewMemoryRepository())
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func echoBundle(t *testing.T) domain.Bundle {
	return domain.Bundle{Name: "echo", Root: testutil.Encode(t, testutil.EchoFile("demo"))}
}

func TestNew(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoragePath = t.TempDir()
	cfg.Debug = true

	var stderr bytes.Buffer
	a, err := New(cfg, &stderr)
	require.NoError(t, err)
	defer a.Close()

	a.Logger().Debug("hello")
	assert.Contains(t, stderr.String(), "hello")
	assert.Same(t, cfg, a.Config())

	cfg.DependencyMode = "sloppy"
	_, err = New(cfg, &stderr)
	assert.Error(t, err)
}

func TestApp_BindDerivesStub(t *testing.T) {
	a := newTestApp(t)

	sess, err := a.Bind(echoBundle(t))
	require.NoError(t, err)

	assert.Equal(t, "EchoClient", sess.Stub.Name)
	assert.Equal(t, []string{"demo.Echo/Say"}, sess.Table.Keys())
	assert.Equal(t, 3, sess.Registry.Len(), "request, response and nested detail")

	services := sess.Services()
	require.Len(t, services, 1)
	assert.Equal(t, "demo.Echo", services[0].FullName)
	assert.Equal(t, domain.Unary, services[0].Methods[0].MethodType())
}

func TestApp_BindWithStubAndTypes(t *testing.T) {
	a := newTestApp(t)

	b := echoBundle(t)
	b.Stub = &stub.Type{
		Name:    "EchoBlockingClient",
		Package: "grpc",
		Methods: []stub.Method{{
			Name:   "Say",
			Params: []stub.Shape{stub.NamedShape("demo", "SayRequest")},
			Return: stub.NamedShape("demo", "SayResponse"),
		}},
	}
	b.Types = []stub.Shape{stub.NamedShape("grpc", "SayResponse")}

	sess, err := a.Bind(b)
	require.NoError(t, err)
	bnd, ok := sess.Table.Get("demo.Echo/Say")
	require.True(t, ok)
	assert.Equal(t, "grpc.SayResponse", bnd.Response.Shape().String(), "found through the bundle's types")
}

func TestApp_BindErrors(t *testing.T) {
	a := newTestApp(t)

	_, err := a.Bind(domain.Bundle{Name: "bad", Root: "zz"})
	assert.ErrorIs(t, err, perrors.ErrMalformedInput)

	b := echoBundle(t)
	b.Stub = &stub.Type{Name: "EchoClient", Methods: []stub.Method{{Name: "Shout"}}}
	_, err = a.Bind(b)
	assert.ErrorIs(t, err, perrors.ErrUnknownMethod)

	noService := testutil.File("types.proto", "demo", nil, []*descriptorpb.DescriptorProto{testutil.Message("Only")})
	_, err = a.Bind(domain.Bundle{Name: "types", Root: testutil.Encode(t, noService)})
	assert.ErrorIs(t, err, perrors.ErrNoServiceInSchema)
}

func TestApp_Describe(t *testing.T) {
	a := newTestApp(t)
	sess, err := a.Bind(echoBundle(t))
	require.NoError(t, err)

	src, err := a.Describe(sess, "")
	require.NoError(t, err)
	assert.Contains(t, src, "package demo;")
	assert.Contains(t, src, "service Echo")
	assert.Contains(t, src, "rpc Say")

	msg, err := a.Describe(sess, "demo.SayRequest")
	require.NoError(t, err)
	assert.Contains(t, msg, "message SayRequest")
	assert.NotContains(t, msg, "service Echo")

	_, err = a.Describe(sess, "demo.Missing")
	assert.Error(t, err)
}

func TestApp_LoadBundle(t *testing.T) {
	a := newTestApp(t)
	b := echoBundle(t)
	require.NoError(t, a.Storage().SaveBundle(b))

	got, err := a.LoadBundle("echo")
	require.NoError(t, err)
	assert.Equal(t, b.Root, got.Root)

	path := filepath.Join(t.TempDir(), "file.yaml")
	require.NoError(t, storage.WriteBundleFile(path, b))
	got, err = a.LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name)

	_, err = a.LoadBundle("absent")
	assert.ErrorIs(t, err, storage.ErrBundleNotFound)
}

func TestApp_RequiresConnection(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.ListServices(ctx)
	assert.Error(t, err)
	_, err = a.Fetch(ctx, "demo.Echo")
	assert.Error(t, err)

	sess, err := a.Bind(echoBundle(t))
	require.NoError(t, err)
	_, err = a.Call(ctx, sess, domain.Request{Method: "demo.Echo/Say"})
	assert.Error(t, err)
}

func startHealthServer(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestApp_FetchBindCall(t *testing.T) {
	addr := startHealthServer(t)
	a := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, a.Connect(ctx, domain.Target{Address: addr}))

	recent, err := a.Storage().GetRecentTargets()
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, addr, recent[0].Address)

	services, err := a.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"grpc.health.v1.Health"}, services)

	bundle, err := a.Fetch(ctx, "grpc.health.v1.Health")
	require.NoError(t, err)
	assert.Equal(t, addr, bundle.Source)
	require.NotNil(t, bundle.Stub)
	assert.Equal(t, "HealthClient", bundle.Stub.Name)
	require.NoError(t, a.Storage().SaveBundle(*bundle))

	stored, err := a.LoadBundle("grpc.health.v1.Health")
	require.NoError(t, err)
	sess, err := a.Bind(*stored)
	require.NoError(t, err)

	resp, err := a.Call(ctx, sess, domain.Request{Method: "grpc.health.v1.Health/Check", Bodies: []string{`{}`}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "SERVING"}`, resp.Bodies[0])
}
