package descriptor

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shhac/protobind/internal/logging"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Decoder turns an encoded descriptor string into raw descriptor bytes.
type Decoder func(encoded string) ([]byte, error)

// HexDecoder is the default Decoder. Surrounding whitespace is ignored.
func HexDecoder(encoded string) ([]byte, error) {
	return hex.DecodeString(strings.TrimSpace(encoded))
}

// DependencyMode selects how missing dependencies are handled.
type DependencyMode int

const (
	// Lenient fails only when a fragment declares dependencies and none of
	// them can be found. Partially resolved fragments are linked with
	// placeholders for the missing files.
	Lenient DependencyMode = iota
	// Strict fails on the first missing dependency.
	Strict
)

// String returns the mode name as accepted by ParseDependencyMode.
func (m DependencyMode) String() string {
	switch m {
	case Lenient:
		return "lenient"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("DependencyMode(%d)", int(m))
	}
}

// ParseDependencyMode parses "lenient" or "strict" (case-insensitive).
func ParseDependencyMode(s string) (DependencyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("unknown dependency mode %q (want lenient or strict)", s)
	}
}

type options struct {
	decoder  Decoder
	mode     DependencyMode
	fallback *protoregistry.Files
	repairs  bool
	logger   *slog.Logger
}

func defaultOptions() options {
	return options{
		decoder: HexDecoder,
		mode:    Lenient,
		logger:  logging.NewNopLogger(),
	}
}

// Option configures a Resolver.
type Option func(*options)

// WithDecoder replaces the hex decoder.
func WithDecoder(d Decoder) Option {
	return func(o *options) {
		if d != nil {
			o.decoder = d
		}
	}
}

// WithDependencyMode selects strict or lenient dependency resolution.
func WithDependencyMode(m DependencyMode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithFallbackFiles makes imports that are absent from the dependency table
// resolvable from files, typically protoregistry.GlobalFiles so that
// google/protobuf/*.proto imports link against the well-known types.
func WithFallbackFiles(files *protoregistry.Files) Option {
	return func(o *options) {
		o.fallback = files
	}
}

// WithRepairs enables descriptor fix-ups applied before linking.
func WithRepairs() Option {
	return func(o *options) {
		o.repairs = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
