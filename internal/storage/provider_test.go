package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func providersUnderTest(t *testing.T) map[string]Provider {
	t.Helper()

	local, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	return map[string]Provider{
		"memory": NewMemoryProvider(),
		"local":  local,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	for name, p := range providersUnderTest(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			require.NoError(t, p.Save(ctx, "news/snapshot.json", []byte(`{"a":1}`)))

			got, err := p.Load(ctx, "news/snapshot.json")
			require.NoError(t, err)
			require.Equal(t, []byte(`{"a":1}`), got)
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	t.Parallel()

	for name, p := range providersUnderTest(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			require.NoError(t, p.Save(ctx, "obj", []byte("v1")))
			require.NoError(t, p.Save(ctx, "obj", []byte("v2")))

			got, err := p.Load(ctx, "obj")
			require.NoError(t, err)
			require.Equal(t, []byte("v2"), got)
		})
	}
}

func TestLoadAbsentObjectIsErrNotFound(t *testing.T) {
	t.Parallel()

	for name, p := range providersUnderTest(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := p.Load(context.Background(), "never/written")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLocalProviderRejectsEscapingNames(t *testing.T) {
	t.Parallel()

	local, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	require.Error(t, local.Save(context.Background(), "../outside", []byte("x")))
	require.Error(t, local.Save(context.Background(), "/abs/path", []byte("x")))
}

func TestNewLocalProviderValidatesBaseDir(t *testing.T) {
	t.Parallel()

	_, err := NewLocalProvider("  ")
	require.Error(t, err)
}
