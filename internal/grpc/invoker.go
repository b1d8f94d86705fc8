package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shhac/protobind/internal/binding"
	"github.com/shhac/protobind/internal/domain"
	perrors "github.com/shhac/protobind/internal/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Invoker executes calls described by binding table entries. Requests and
// responses are JSON; the binding's marshallers convert them to and from
// dynamic messages of the schema types.
type Invoker struct {
	conn   grpc.ClientConnInterface
	logger *slog.Logger
}

// NewInvoker creates an invoker over conn
func NewInvoker(conn grpc.ClientConnInterface, logger *slog.Logger) *Invoker {
	return &Invoker{conn: conn, logger: logger}
}

// Call looks up req.Method in table and runs it to completion, whatever its
// cardinality. Every body in req.Bodies is sent; every server message is
// collected into the response.
func (i *Invoker) Call(ctx context.Context, table *binding.Table, req domain.Request) (*domain.Response, error) {
	b, ok := table.Get(req.Method)
	if !ok {
		return nil, perrors.New(perrors.ErrUnknownMethod, req.Method)
	}
	md := metadata.New(req.Metadata)

	if !b.Type.ClientStreams() && len(req.Bodies) > 1 {
		return nil, fmt.Errorf("%s is %s and takes one request body, got %d", b.FullMethodName, b.Type, len(req.Bodies))
	}

	switch b.Type {
	case domain.Unary:
		return i.InvokeUnary(ctx, b, firstBody(req.Bodies), md)
	case domain.ServerStream:
		return i.collectServerStream(ctx, b, firstBody(req.Bodies), md)
	default:
		return i.collectStream(ctx, b, req.Bodies, md)
	}
}

func firstBody(bodies []string) string {
	if len(bodies) == 0 {
		return ""
	}
	return bodies[0]
}

// InvokeUnary performs a unary call with a JSON request body.
func (i *Invoker) InvokeUnary(ctx context.Context, b binding.Binding, body string, md metadata.MD) (*domain.Response, error) {
	i.logger.Debug("invoking unary RPC",
		slog.String("method", b.FullMethodName),
		slog.String("request", body),
	)

	reqMsg, err := b.Request.DecodeJSON([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("invalid request JSON: %w", err)
	}
	respMsg, err := b.Response.New()
	if err != nil {
		return nil, err
	}

	if len(md) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}

	var header, trailer metadata.MD
	start := time.Now()
	err = i.conn.Invoke(ctx, b.Path(), reqMsg, respMsg, codecOption(b), grpc.Header(&header), grpc.Trailer(&trailer))
	elapsed := time.Since(start)
	if err != nil {
		i.logger.Error("unary RPC failed",
			slog.String("method", b.FullMethodName),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
		return nil, err
	}

	out, err := b.Response.EncodeJSON(respMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to format response: %w", err)
	}

	i.logger.Info("unary RPC completed",
		slog.String("method", b.FullMethodName),
		slog.Duration("duration", elapsed),
	)

	return &domain.Response{
		Bodies:   []string{string(out)},
		Headers:  flattenMD(header),
		Trailers: flattenMD(trailer),
		Duration: elapsed,
	}, nil
}

// InvokeServerStream starts a server-streaming call. Messages arrive on the
// first channel as JSON; the error channel receives exactly one value, nil
// on a clean end of stream. Both channels are closed when the stream ends.
func (i *Invoker) InvokeServerStream(ctx context.Context, b binding.Binding, body string, md metadata.MD) (<-chan string, <-chan error) {
	msgChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)

		stream, err := i.open(ctx, b, md)
		if err != nil {
			errChan <- err
			return
		}
		if err := stream.Send(body); err != nil {
			errChan <- err
			return
		}
		if err := stream.CloseSend(); err != nil {
			errChan <- err
			return
		}

		count := 0
		for {
			msg, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				i.logger.Info("server stream completed",
					slog.String("method", b.FullMethodName),
					slog.Int("message_count", count),
				)
				errChan <- nil
				return
			}
			if err != nil {
				errChan <- err
				return
			}
			count++

			select {
			case msgChan <- msg:
			case <-ctx.Done():
				i.logger.Info("server stream cancelled by context",
					slog.String("method", b.FullMethodName),
					slog.Int("message_count", count),
				)
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return msgChan, errChan
}

// collectServerStream sends the single request body and reads every reply,
// keeping the stream's headers and trailers.
func (i *Invoker) collectServerStream(ctx context.Context, b binding.Binding, body string, md metadata.MD) (*domain.Response, error) {
	return i.collectStream(ctx, b, []string{body}, md)
}

// collectStream sends every body on a stream, half-closes and reads until
// the server ends the stream.
func (i *Invoker) collectStream(ctx context.Context, b binding.Binding, bodies []string, md metadata.MD) (*domain.Response, error) {
	start := time.Now()
	stream, err := i.open(ctx, b, md)
	if err != nil {
		return nil, err
	}

	for _, body := range bodies {
		if err := stream.Send(body); err != nil {
			return nil, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	resp := &domain.Response{}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		resp.Bodies = append(resp.Bodies, msg)
	}

	resp.Headers = stream.Header()
	resp.Trailers = stream.Trailer()
	resp.Duration = time.Since(start)
	return resp, nil
}

// OpenStream starts a streaming call of any cardinality and returns a handle
// for exchanging JSON messages.
func (i *Invoker) OpenStream(ctx context.Context, b binding.Binding, md metadata.MD) (*StreamHandle, error) {
	return i.open(ctx, b, md)
}

func (i *Invoker) open(ctx context.Context, b binding.Binding, md metadata.MD) (*StreamHandle, error) {
	i.logger.Debug("opening stream",
		slog.String("method", b.FullMethodName),
		slog.String("type", string(b.Type)),
	)

	if len(md) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}

	desc := &grpc.StreamDesc{
		StreamName:    string(b.Schema.Name()),
		ServerStreams: b.Type.ServerStreams(),
		ClientStreams: b.Type.ClientStreams(),
	}
	stream, err := i.conn.NewStream(ctx, desc, b.Path(), codecOption(b))
	if err != nil {
		i.logger.Error("failed to open stream",
			slog.String("method", b.FullMethodName),
			slog.Any("error", err),
		)
		return nil, err
	}

	return &StreamHandle{stream: stream, binding: b, logger: i.logger}, nil
}

// StreamHandle is an open streaming call. Send and Recv exchange JSON
// bodies converted through the binding's marshallers.
type StreamHandle struct {
	stream  grpc.ClientStream
	binding binding.Binding
	logger  *slog.Logger
}

// Send encodes a JSON body and sends it.
func (h *StreamHandle) Send(body string) error {
	msg, err := h.binding.Request.DecodeJSON([]byte(body))
	if err != nil {
		return fmt.Errorf("invalid request JSON: %w", err)
	}
	if err := h.stream.SendMsg(msg); err != nil {
		h.logger.Error("failed to send stream message",
			slog.String("method", h.binding.FullMethodName),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

// Recv receives the next message as JSON. It returns io.EOF when the server
// ends the stream.
func (h *StreamHandle) Recv() (string, error) {
	msg, err := h.binding.Response.New()
	if err != nil {
		return "", err
	}
	if err := h.stream.RecvMsg(msg); err != nil {
		return "", err
	}
	out, err := h.binding.Response.EncodeJSON(msg)
	if err != nil {
		return "", fmt.Errorf("failed to format stream message: %w", err)
	}
	return string(out), nil
}

// CloseSend half-closes the stream. Messages can still be received.
func (h *StreamHandle) CloseSend() error {
	return h.stream.CloseSend()
}

// Header returns the response headers, blocking until they arrive.
func (h *StreamHandle) Header() map[string]string {
	md, err := h.stream.Header()
	if err != nil {
		return nil
	}
	return flattenMD(md)
}

// Trailer returns the response trailers. It is only complete once Recv has
// returned io.EOF or an error.
func (h *StreamHandle) Trailer() map[string]string {
	return flattenMD(h.stream.Trailer())
}

// flattenMD joins multi-valued keys with ", ".
func flattenMD(md metadata.MD) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
