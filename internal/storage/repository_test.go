package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shhac/protobind/internal/domain"
	perrors "github.com/shhac/protobind/internal/errors"
	"github.com/shhac/protobind/internal/logging"
	"github.com/shhac/protobind/internal/stub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repositories(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"json":   NewJSONRepository(t.TempDir(), logging.NewNopLogger()),
		"memory": NewMemoryRepository(),
	}
}

func sampleBundle(name string) domain.Bundle {
	return domain.Bundle{
		Name:         name,
		Root:         "0a0a6563686f2e70726f746f",
		Dependencies: map[string]string{"common.proto": "0a0c636f6d6d6f6e2e70726f746f"},
		Stub: &stub.Type{
			Name:    "EchoClient",
			Package: "demo",
			Methods: []stub.Method{{
				Name:   "Say",
				Params: []stub.Shape{stub.NamedShape("demo", "SayRequest")},
				Return: stub.UnionOf(stub.NamedShape("demo", "SayResponse"), stub.ErrorShape),
			}},
		},
	}
}

func TestRepository_BundleRoundTrip(t *testing.T) {
	for kind, repo := range repositories(t) {
		t.Run(kind, func(t *testing.T) {
			want := sampleBundle("echo")
			require.NoError(t, repo.SaveBundle(want))
			require.NoError(t, repo.SaveBundle(sampleBundle("alpha")))

			got, err := repo.LoadBundle("echo")
			require.NoError(t, err)
			assert.Equal(t, want.Root, got.Root)
			assert.Equal(t, want.Dependencies, got.Dependencies)
			require.NotNil(t, got.Stub)
			assert.True(t, want.Stub.Methods[0].Return.Equal(got.Stub.Methods[0].Return))

			names, err := repo.ListBundles()
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "echo"}, names)

			require.NoError(t, repo.DeleteBundle("echo"))
			_, err = repo.LoadBundle("echo")
			assert.True(t, errors.Is(err, ErrBundleNotFound))
			assert.ErrorIs(t, repo.DeleteBundle("echo"), ErrBundleNotFound)
		})
	}
}

func TestRepository_RejectsInvalidBundle(t *testing.T) {
	for kind, repo := range repositories(t) {
		t.Run(kind, func(t *testing.T) {
			err := repo.SaveBundle(domain.Bundle{Name: "empty"})
			var verr perrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "root", verr.Field)
		})
	}
}

func TestRepository_RecentTargets(t *testing.T) {
	for kind, repo := range repositories(t) {
		t.Run(kind, func(t *testing.T) {
			empty, err := repo.GetRecentTargets()
			require.NoError(t, err)
			assert.Empty(t, empty)

			for i := 0; i < maxRecent+2; i++ {
				require.NoError(t, repo.SaveRecentTarget(domain.Target{Address: filepath.Join("host", string(rune('a'+i)))}))
			}
			require.NoError(t, repo.SaveRecentTarget(domain.Target{Address: "host/c"}))

			recent, err := repo.GetRecentTargets()
			require.NoError(t, err)
			assert.Len(t, recent, maxRecent)
			assert.Equal(t, "host/c", recent[0].Address)

			seen := map[string]bool{}
			for _, r := range recent {
				assert.False(t, seen[r.Address], "duplicate %s", r.Address)
				seen[r.Address] = true
			}

			require.NoError(t, repo.ClearRecentTargets())
			recent, err = repo.GetRecentTargets()
			require.NoError(t, err)
			assert.Empty(t, recent)
		})
	}
}

func TestJSONRepository_ListIgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	repo := NewJSONRepository(dir, logging.NewNopLogger())
	require.NoError(t, repo.SaveBundle(sampleBundle("echo")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, bundlesDir, ".tmp-123"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, bundlesDir, "notes.txt"), []byte("x"), 0644))

	names, err := repo.ListBundles()
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, names)
}

func TestJSONRepository_ListMissingDir(t *testing.T) {
	repo := NewJSONRepository(filepath.Join(t.TempDir(), "absent"), logging.NewNopLogger())
	names, err := repo.ListBundles()
	require.NoError(t, err)
	assert.Empty(t, names)
}
