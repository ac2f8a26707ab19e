package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

func TestRouterDispatchesByKind(t *testing.T) {
	t.Parallel()

	embedder := NewHashingEmbedder(64)
	about := New("about", embedder, zap.NewNop())
	posts := New("posts", embedder, zap.NewNop())
	router := NewRouter(map[intel.SourceKind]*Store{
		intel.KindAbout: about,
		intel.KindPost:  posts,
	}, zap.NewNop())

	stored := router.Add([]intel.Fragment{
		{Content: "payments infrastructure company", Entity: "Acme Pay", Origin: "o1", Kind: intel.KindAbout},
		{Content: "we shipped instant settlement", Entity: "Acme Pay", Origin: "o2", Kind: intel.KindPost},
		{Content: "orphan kind", Entity: "Acme Pay", Origin: "o3", Kind: intel.KindNews},
	})

	require.Equal(t, 2, stored)
	require.Equal(t, 1, about.Len())
	require.Equal(t, 1, posts.Len())
	require.Equal(t, 2, router.Len())
}

func TestRouterQueryHonorsKindFilter(t *testing.T) {
	t.Parallel()

	embedder := NewHashingEmbedder(64)
	about := New("about", embedder, zap.NewNop())
	posts := New("posts", embedder, zap.NewNop())
	router := NewRouter(map[intel.SourceKind]*Store{
		intel.KindAbout: about,
		intel.KindPost:  posts,
	}, zap.NewNop())
	router.Add([]intel.Fragment{
		{Content: "payments infrastructure company", Entity: "Acme Pay", Origin: "o1", Kind: intel.KindAbout},
		{Content: "we shipped instant settlement", Entity: "Acme Pay", Origin: "o2", Kind: intel.KindPost},
	})

	hits, err := router.Query(context.Background(), "payments", 10, intel.Filter{Entity: "Acme Pay", Kind: intel.KindAbout})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, intel.KindAbout, hits[0].Kind)

	all, err := router.Query(context.Background(), "payments", 10, intel.Filter{Entity: "Acme Pay"})
	require.NoError(t, err)
	require.Len(t, all, 2)

	none, err := router.Query(context.Background(), "payments", 10, intel.Filter{Entity: "Acme Pay", Kind: intel.KindNews})
	require.NoError(t, err)
	require.Empty(t, none)
}
