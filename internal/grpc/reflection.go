package grpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shhac/protobind/internal/domain"
	"google.golang.org/grpc"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// reflectionServices are hidden from ListServices.
var reflectionServices = map[string]bool{
	"grpc.reflection.v1alpha.ServerReflection": true,
	"grpc.reflection.v1.ServerReflection":      true,
}

// ReflectionClient reads descriptors from a server's reflection service
type ReflectionClient struct {
	conn   grpc.ClientConnInterface
	logger *slog.Logger

	// known are files the fetch encodes from this process instead of asking
	// the server for them.
	known *protoregistry.Files
}

// NewReflectionClient creates a new reflection client for the given connection
func NewReflectionClient(conn grpc.ClientConnInterface, logger *slog.Logger) *ReflectionClient {
	return &ReflectionClient{
		conn:   conn,
		logger: logger,
		known:  protoregistry.GlobalFiles,
	}
}

// reflectionStream is one ServerReflectionInfo exchange.
type reflectionStream struct {
	stream reflectionpb.ServerReflection_ServerReflectionInfoClient
}

func (r *ReflectionClient) open(ctx context.Context) (*reflectionStream, error) {
	stream, err := reflectionpb.NewServerReflectionClient(r.conn).ServerReflectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open reflection stream: %w", err)
	}
	return &reflectionStream{stream: stream}, nil
}

func (s *reflectionStream) roundTrip(req *reflectionpb.ServerReflectionRequest) (*reflectionpb.ServerReflectionResponse, error) {
	if err := s.stream.Send(req); err != nil {
		return nil, fmt.Errorf("failed to send reflection request: %w", err)
	}
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive reflection response: %w", err)
	}
	if errResp := resp.GetErrorResponse(); errResp != nil {
		return nil, fmt.Errorf("reflection error: %s", errResp.GetErrorMessage())
	}
	return resp, nil
}

// files sends req and returns the raw descriptors in the response.
func (s *reflectionStream) files(req *reflectionpb.ServerReflectionRequest) ([][]byte, error) {
	resp, err := s.roundTrip(req)
	if err != nil {
		return nil, err
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return nil, fmt.Errorf("unexpected reflection response type")
	}
	return fdResp.GetFileDescriptorProto(), nil
}

func (s *reflectionStream) close() {
	_ = s.stream.CloseSend()
}

// ListServices returns the fully qualified names of the services the server
// exposes, sorted, without the reflection service itself.
func (r *ReflectionClient) ListServices(ctx context.Context) ([]string, error) {
	r.logger.Debug("listing services via reflection")

	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	resp, err := s.roundTrip(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{},
	})
	if err != nil {
		r.logger.Error("failed to list services", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	var names []string
	for _, svc := range resp.GetListServicesResponse().GetService() {
		if reflectionServices[svc.GetName()] {
			continue
		}
		names = append(names, svc.GetName())
	}
	sort.Strings(names)

	r.logger.Info("discovered services via reflection", slog.Int("service_count", len(names)))
	return names, nil
}

// FetchBundle downloads the file declaring serviceName and the files it
// imports, hex encoded as a bundle root and dependency table. Imports that
// are neither known locally nor provided by the server are left out; a
// lenient resolve treats them as missing.
func (r *ReflectionClient) FetchBundle(ctx context.Context, serviceName string) (*domain.Bundle, error) {
	r.logger.Debug("fetching descriptors via reflection", slog.String("service", serviceName))

	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	raws, err := s.files(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{
			FileContainingSymbol: serviceName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", serviceName, err)
	}

	fetched := newFileSet()
	fetched.addAll(raws, r.logger)

	rootName, ok := fetched.declaring(serviceName)
	if !ok {
		return nil, fmt.Errorf("server returned no file declaring %s", serviceName)
	}

	// Collect imports the first response did not carry until nothing new
	// turns up. Files linkable locally are encoded from the local copy so the
	// bundle's dependency table is complete without asking the server.
	asked := map[string]bool{}
	for {
		missing := fetched.missing(func(dep string) bool { return !asked[dep] })
		if len(missing) == 0 {
			break
		}
		for _, dep := range missing {
			asked[dep] = true
			if raw, ok := r.localFile(dep); ok {
				fetched.addAll([][]byte{raw}, r.logger)
				continue
			}
			raws, err := s.files(&reflectionpb.ServerReflectionRequest{
				MessageRequest: &reflectionpb.ServerReflectionRequest_FileByFilename{
					FileByFilename: dep,
				},
			})
			if err != nil {
				r.logger.Warn("server could not provide dependency",
					slog.String("dependency", dep),
					slog.Any("error", err),
				)
				continue
			}
			fetched.addAll(raws, r.logger)
		}
	}

	bundle := &domain.Bundle{
		Name:         serviceName,
		Root:         hex.EncodeToString(fetched.raw[rootName]),
		Dependencies: make(map[string]string, len(fetched.raw)-1),
		SavedAt:      time.Now(),
	}
	for name, raw := range fetched.raw {
		if name != rootName {
			bundle.Dependencies[name] = hex.EncodeToString(raw)
		}
	}

	r.logger.Info("fetched descriptors via reflection",
		slog.String("service", serviceName),
		slog.String("root", rootName),
		slog.Int("dependencies", len(bundle.Dependencies)),
	)
	return bundle, nil
}

// localFile returns the wire form of a file known to this process, such as a
// well-known type.
func (r *ReflectionClient) localFile(path string) ([]byte, bool) {
	fd, err := r.known.FindFileByPath(path)
	if err != nil {
		return nil, false
	}
	raw, err := proto.Marshal(protodesc.ToFileDescriptorProto(fd))
	if err != nil {
		r.logger.Debug("failed to encode local descriptor",
			slog.String("file", path),
			slog.Any("error", err),
		)
		return nil, false
	}
	return raw, true
}

// fileSet collects reflection results by file name, keeping both the raw
// bytes and the parsed proto.
type fileSet struct {
	raw    map[string][]byte
	parsed map[string]*descriptorpb.FileDescriptorProto
	order  []string
}

func newFileSet() *fileSet {
	return &fileSet{
		raw:    map[string][]byte{},
		parsed: map[string]*descriptorpb.FileDescriptorProto{},
	}
}

func (f *fileSet) addAll(raws [][]byte, logger *slog.Logger) {
	for _, raw := range raws {
		fd := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(raw, fd); err != nil {
			logger.Warn("failed to unmarshal file descriptor from reflection", slog.Any("error", err))
			continue
		}
		if _, ok := f.raw[fd.GetName()]; ok {
			continue
		}
		f.raw[fd.GetName()] = raw
		f.parsed[fd.GetName()] = fd
		f.order = append(f.order, fd.GetName())
	}
}

// declaring returns the file whose package and services declare the fully
// qualified service name.
func (f *fileSet) declaring(serviceName string) (string, bool) {
	for _, name := range f.order {
		fd := f.parsed[name]
		for _, svc := range fd.GetService() {
			full := svc.GetName()
			if pkg := fd.GetPackage(); pkg != "" {
				full = pkg + "." + full
			}
			if full == strings.TrimPrefix(serviceName, ".") {
				return name, true
			}
		}
	}
	return "", false
}

// missing lists imports of collected files that are not collected yet and
// pass want, sorted.
func (f *fileSet) missing(want func(dep string) bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range f.order {
		for _, dep := range f.parsed[name].GetDependency() {
			if _, ok := f.raw[dep]; ok || seen[dep] {
				continue
			}
			seen[dep] = true
			if want(dep) {
				out = append(out, dep)
			}
		}
	}
	sort.Strings(out)
	return out
}
