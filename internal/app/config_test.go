package app

import (
	"testing"
	"time"

	"github.com/shhac/protobind/internal/stub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "lenient", cfg.DependencyMode)
	assert.True(t, cfg.WellKnownFallback)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)

	opts, err := cfg.ResolverOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2, "mode and fallback")

	conv, err := cfg.Convention()
	require.NoError(t, err)
	assert.Equal(t, stub.DefaultConvention, conv)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PROTOBIND_DEBUG", "true")
	t.Setenv("PROTOBIND_STORAGE_PATH", "/tmp/pb")
	t.Setenv("PROTOBIND_DEPENDENCY_MODE", "strict")
	t.Setenv("PROTOBIND_WELL_KNOWN_FALLBACK", "false")
	t.Setenv("PROTOBIND_REPAIRS", "1")
	t.Setenv("PROTOBIND_METADATA_CONVENTION", "headers")
	t.Setenv("PROTOBIND_CALL_TIMEOUT", "5s")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/tmp/pb", cfg.StoragePath)
	assert.Equal(t, "strict", cfg.DependencyMode)
	assert.False(t, cfg.WellKnownFallback)
	assert.True(t, cfg.Repairs)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)

	opts, err := cfg.ResolverOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2, "mode and repairs")

	conv, err := cfg.Convention()
	require.NoError(t, err)
	assert.Equal(t, stub.HeadersConvention, conv)
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PROTOBIND_DEBUG", "maybe"},
		{"PROTOBIND_DEPENDENCY_MODE", "sloppy"},
		{"PROTOBIND_METADATA_CONVENTION", "A | B"},
		{"PROTOBIND_CALL_TIMEOUT", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := ConfigFromEnv()
			assert.Error(t, err)
		})
	}
}
