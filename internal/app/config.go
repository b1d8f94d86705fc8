package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shhac/protobind/internal/descriptor"
	"github.com/shhac/protobind/internal/stub"
)

// EnvPrefix prefixes every environment variable read by ConfigFromEnv.
const EnvPrefix = "PROTOBIND"

// Config holds application-wide configuration.
type Config struct {
	// Debug enables debug logging and additional diagnostics
	Debug bool `envconfig:"DEBUG"`

	// LogFile writes JSON logs to the platform log directory instead of
	// text logs on stderr
	LogFile bool `envconfig:"LOG_FILE" default:"false"`

	// StoragePath is the directory where bundles and recent targets are
	// stored. Empty means storage.DefaultStoragePath().
	StoragePath string `envconfig:"STORAGE_PATH"`

	// DependencyMode is "lenient" or "strict"
	DependencyMode string `envconfig:"DEPENDENCY_MODE" default:"lenient"`

	// WellKnownFallback links google/protobuf/*.proto imports missing from
	// a bundle against the compiled-in well-known types
	WellKnownFallback bool `envconfig:"WELL_KNOWN_FALLBACK" default:"true"`

	// Repairs applies descriptor fix-ups before linking
	Repairs bool `envconfig:"REPAIRS"`

	// MetadataConvention names the stub type that stands for call metadata
	MetadataConvention string `envconfig:"METADATA_CONVENTION" default:"default"`

	// CallTimeout bounds network operations; zero disables the bound
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DependencyMode:     descriptor.Lenient.String(),
		WellKnownFallback:  true,
		MetadataConvention: "default",
		CallTimeout:        30 * time.Second,
	}
}

// ConfigFromEnv creates a configuration from PROTOBIND_* environment
// variables, e.g. PROTOBIND_DEBUG=true or PROTOBIND_DEPENDENCY_MODE=strict.
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read %s_* environment: %w", EnvPrefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that are parsed later.
func (c *Config) Validate() error {
	if _, err := descriptor.ParseDependencyMode(c.DependencyMode); err != nil {
		return err
	}
	if _, err := stub.ParseConvention(c.MetadataConvention); err != nil {
		return err
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call timeout must not be negative, got %s", c.CallTimeout)
	}
	return nil
}

// ResolverOptions translates the configuration into resolver options.
func (c *Config) ResolverOptions() ([]descriptor.Option, error) {
	mode, err := descriptor.ParseDependencyMode(c.DependencyMode)
	if err != nil {
		return nil, err
	}
	opts := []descriptor.Option{descriptor.WithDependencyMode(mode)}
	if c.WellKnownFallback {
		opts = append(opts, descriptor.WithFallbackFiles(wellKnownFiles()))
	}
	if c.Repairs {
		opts = append(opts, descriptor.WithRepairs())
	}
	return opts, nil
}

// Convention returns the parsed metadata convention.
func (c *Config) Convention() (stub.Convention, error) {
	return stub.ParseConvention(c.MetadataConvention)
}
