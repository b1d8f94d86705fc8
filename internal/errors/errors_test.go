package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestBindError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrSchemaValidation, "a.proto", cause)

	assert.ErrorIs(t, err, ErrSchemaValidation)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrMalformedInput)
	assert.Equal(t, `schema validation failed: "a.proto": boom`, err.Error())
}

func TestBindError_WrappedTwice(t *testing.T) {
	err := fmt.Errorf("bind stub: %w", New(ErrUnknownMethod, "Say"))

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "Say", bindErr.Name)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestBindError_NoName(t *testing.T) {
	err := Wrapf(ErrMalformedInput, "", "decoded %d bytes", 0)
	assert.Equal(t, "malformed descriptor input: decoded 0 bytes", err.Error())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		title    string
		severity ErrorSeverity
	}{
		{"malformed", New(ErrMalformedInput, ""), "Malformed Descriptor", SeverityError},
		{"unresolved", New(ErrUnresolvedDependency, "b.proto"), "Unresolved Dependency", SeverityError},
		{"cycle", New(ErrCyclicDependency, "b.proto"), "Cyclic Dependency", SeverityError},
		{"validation", New(ErrSchemaValidation, "a.proto"), "Invalid Schema", SeverityError},
		{"no service", New(ErrNoServiceInSchema, "a.proto"), "No Service", SeverityError},
		{"ambiguous", New(ErrAmbiguousService, "FooClient"), "Ambiguous Service", SeverityError},
		{"unknown method", New(ErrUnknownMethod, "Say"), "Unknown Method", SeverityError},
		{"deadline", context.DeadlineExceeded, "Request Timeout", SeverityError},
		{"cancelled", context.Canceled, "Request Cancelled", SeverityInfo},
		{"field", ValidationError{Field: "root", Message: "must not be empty"}, "Validation Error", SeverityError},
		{"other", errors.New("???"), "Unexpected Error", SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uiErr := ClassifyError(tt.err)
			require.NotNil(t, uiErr)
			assert.Equal(t, tt.title, uiErr.Title)
			assert.Equal(t, tt.severity, uiErr.Severity)
			assert.ErrorIs(t, uiErr, tt.err)
		})
	}

	assert.Nil(t, ClassifyError(nil))
}

func TestClassifyGRPCError(t *testing.T) {
	st := status.New(codes.InvalidArgument, "name is required")
	st, err := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{
			{Field: "name", Description: "must be set"},
		},
	})
	require.NoError(t, err)

	uiErr := ClassifyGRPCError(st.Err())
	assert.Equal(t, "Invalid Request", uiErr.Title)
	assert.Equal(t, "name is required", uiErr.Details)

	uiErr = ClassifyGRPCError(status.Error(codes.Unknown, "kaput"))
	assert.Equal(t, "kaput", uiErr.Message)
	assert.Contains(t, uiErr.Details, "gRPC: Unknown - kaput")

	uiErr = ClassifyGRPCError(New(ErrUnknownMethod, "Say"))
	assert.Equal(t, "Unknown Method", uiErr.Title)
}

func TestFormatStatusDetails(t *testing.T) {
	st, err := status.New(codes.Internal, "oops").WithDetails(
		&errdetails.DebugInfo{Detail: "nil pointer", StackEntries: []string{"main.go:10"}},
		&errdetails.RequestInfo{RequestId: "req-1"},
	)
	require.NoError(t, err)

	out := formatStatusDetails(st)
	assert.Contains(t, out, "Debug Info:\n  nil pointer\n  main.go:10")
	assert.Contains(t, out, "Request ID: req-1")
}
