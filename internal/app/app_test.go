package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewWithMemoryStorage(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "storage:\n  provider: memory\n")

	a, err := New(context.Background(), path)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Logger())
	require.NotNil(t, a.Storage())
	require.NotNil(t, a.Archiver())
	require.NotNil(t, a.Publisher())
	require.Equal(t, "memory", a.Config().Storage.Provider)
}

func TestNewWithLocalStorage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  provider: local\n  local_dir: "+dir+"\n")

	a, err := New(context.Background(), path)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Storage())
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "session:\n  pool_size: 0\n")
	_, err := New(context.Background(), path)
	require.Error(t, err)
}
