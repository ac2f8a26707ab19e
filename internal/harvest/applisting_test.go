package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

const storeBody = `{
	"resultCount": 1,
	"results": [{
		"trackName": "Acme Pay Wallet",
		"trackId": 42,
		"artistName": "Acme Pay Ltd",
		"description": "Send and receive payments instantly.",
		"primaryGenreName": "Finance",
		"averageUserRating": 4.6,
		"userRatingCount": 1234,
		"releaseDate": "2021-05-01T00:00:00Z",
		"currentVersionReleaseDate": "2024-11-12T00:00:00Z",
		"trackContentRating": "4+",
		"formattedPrice": "Free"
	}]
}`

func storeClient(t *testing.T, handler http.HandlerFunc) *AppListingHarvester {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAppListingHarvester(AppListingConfig{Endpoint: srv.URL}, zap.NewNop())
}

func TestAppListingHarvestFormatsListing(t *testing.T) {
	t.Parallel()

	h := storeClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Acme Pay", r.URL.Query().Get("term"))
		require.Equal(t, "software", r.URL.Query().Get("media"))
		_, _ = w.Write([]byte(storeBody))
	})

	frags, err := h.Harvest(context.Background(), intel.Entity{Name: "Acme Pay"}, "")
	require.NoError(t, err)
	require.Len(t, frags, 1)

	frag := frags[0]
	require.Equal(t, intel.KindAppListing, frag.Kind)
	require.Equal(t, "app-store:42", frag.Origin)
	require.Contains(t, frag.Content, "App Name: Acme Pay Wallet")
	require.Contains(t, frag.Content, "Developer: Acme Pay Ltd")
	require.Contains(t, frag.Content, "Rating: 4.6 (1234 ratings)")
	require.Contains(t, frag.Content, "Release Date: 2021-05-01")
	require.NotContains(t, frag.Content, "T00:00:00Z")
}

func TestAppListingHarvestNoResults(t *testing.T) {
	t.Parallel()

	h := storeClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"resultCount": 0, "results": []}`))
	})

	frags, err := h.Harvest(context.Background(), intel.Entity{Name: "Unknown Co"}, "")
	require.NoError(t, err)
	require.Empty(t, frags)
}

func TestAppListingHarvestServerError(t *testing.T) {
	t.Parallel()

	h := storeClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := h.Harvest(context.Background(), intel.Entity{Name: "Acme Pay"}, "")
	require.Error(t, err)
}

func TestQueriesCarryKinds(t *testing.T) {
	t.Parallel()

	entity := intel.Entity{Name: "Acme Pay"}

	news := NewsQueries(entity, []string{"fin.example", "news.example"})
	require.Len(t, news, 1)
	require.Equal(t, intel.KindNews, news[0].Kind)
	require.Contains(t, news[0].Text, `"Acme Pay"`)
	require.Contains(t, news[0].Text, "site:fin.example OR site:news.example")

	deep := DeepSearchQueries(entity)
	require.NotEmpty(t, deep)
	for _, q := range deep {
		require.Equal(t, intel.KindDeepSearch, q.Kind)
		require.Contains(t, q.Text, `"Acme Pay"`)
	}
}
