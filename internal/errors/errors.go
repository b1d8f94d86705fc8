package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for resolution and binding failures.
var (
	ErrMalformedInput       = errors.New("malformed descriptor input")
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	ErrCyclicDependency     = errors.New("cyclic dependency")
	ErrSchemaValidation     = errors.New("schema validation failed")
	ErrNoServiceInSchema    = errors.New("no service found in schema")
	ErrAmbiguousService     = errors.New("ambiguous service")
	ErrUnknownMethod        = errors.New("unknown method")
)

// BindError carries the failure kind (one of the sentinels above), the
// dependency, stub type or method name it concerns, and the underlying cause.
type BindError struct {
	Kind error
	Name string
	Err  error
}

func (e *BindError) Error() string {
	msg := e.Kind.Error()
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error's kind.
func (e *BindError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *BindError) Unwrap() error {
	return e.Err
}

// New returns a BindError of the given kind for name.
func New(kind error, name string) error {
	return &BindError{Kind: kind, Name: name}
}

// Wrap returns a BindError of the given kind for name caused by err.
func Wrap(kind error, name string, err error) error {
	return &BindError{Kind: kind, Name: name, Err: err}
}

// Wrapf is like Wrap but builds the cause from a format string.
func Wrapf(kind error, name, format string, a ...any) error {
	return &BindError{Kind: kind, Name: name, Err: fmt.Errorf(format, a...)}
}

// ValidationError represents an invalid user-supplied value, such as a
// configuration field or a bundle entry.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
