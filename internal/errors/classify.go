package errors

import (
	"context"
	"errors"
)

// ErrorSeverity indicates how serious an error is for the person running the tool.
type ErrorSeverity int

const (
	SeverityInfo    ErrorSeverity = iota // User should know, not blocking
	SeverityWarning                      // Degraded result
	SeverityError                        // Operation failed, input must change
	SeverityFatal                        // Tool must exit
)

// String returns the lower-case severity label.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// UIError wraps an error with presentation metadata for the CLI.
type UIError struct {
	Err      error
	Severity ErrorSeverity
	Title    string   // Short user-facing title
	Message  string   // Detailed user-facing message
	Recovery []string // Suggested actions (bullet points)
	Details  string   // Technical details
}

func (e UIError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Title
}

// Unwrap returns the underlying error.
func (e UIError) Unwrap() error {
	return e.Err
}

// ClassifyError converts an error into a UIError with severity, title,
// message and recovery suggestions.
func ClassifyError(err error) *UIError {
	if err == nil {
		return nil
	}

	var uiErr *UIError
	if errors.As(err, &uiErr) {
		return uiErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Request Timeout",
			Message:  "The server took too long to respond.",
			Recovery: []string{"Try again", "Increase the --timeout flag"},
		}

	case errors.Is(err, context.Canceled):
		return &UIError{
			Err:      err,
			Severity: SeverityInfo,
			Title:    "Request Cancelled",
			Message:  "The operation was cancelled.",
			Recovery: []string{},
		}

	case errors.Is(err, ErrMalformedInput):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Malformed Descriptor",
			Message:  "The descriptor could not be decoded into a file descriptor.",
			Recovery: []string{
				"Check that the descriptor is hex encoded",
				"Check that it is a serialized google.protobuf.FileDescriptorProto",
			},
			Details: err.Error(),
		}

	case errors.Is(err, ErrUnresolvedDependency):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Unresolved Dependency",
			Message:  "A descriptor imports files that are missing from the dependency table.",
			Recovery: []string{
				"Add the imported files to the bundle's dependency table",
				"Enable the well-known type fallback for google/protobuf imports",
			},
			Details: err.Error(),
		}

	case errors.Is(err, ErrCyclicDependency):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Cyclic Dependency",
			Message:  "The dependency table contains an import cycle.",
			Recovery: []string{"Remove the cycle from the dependency table"},
			Details:  err.Error(),
		}

	case errors.Is(err, ErrSchemaValidation):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Invalid Schema",
			Message:  "The linked descriptors are not internally consistent.",
			Recovery: []string{
				"Check for duplicate type names across files",
				"Try again with descriptor repairs enabled",
			},
			Details: err.Error(),
		}

	case errors.Is(err, ErrNoServiceInSchema):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "No Service",
			Message:  "The root descriptor does not define any service.",
			Recovery: []string{"Use the descriptor of the file that declares the service"},
			Details:  err.Error(),
		}

	case errors.Is(err, ErrAmbiguousService):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Ambiguous Service",
			Message:  "The stub type name does not match any service and the schema has several.",
			Recovery: []string{"Name the stub <Service>Client or <Service>BlockingClient"},
			Details:  err.Error(),
		}

	case errors.Is(err, ErrUnknownMethod):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Unknown Method",
			Message:  "A stub method has no counterpart in the service definition.",
			Recovery: []string{"Check the stub method names against the service"},
			Details:  err.Error(),
		}
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Validation Error",
			Message:  validationErr.Message,
			Recovery: []string{"Correct the value and try again"},
			Details:  validationErr.Error(),
		}
	}

	return &UIError{
		Err:      err,
		Severity: SeverityError,
		Title:    "Unexpected Error",
		Message:  "An unexpected error occurred.",
		Recovery: []string{"Try again"},
		Details:  err.Error(),
	}
}
