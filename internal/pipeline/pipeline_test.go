package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/harvest"
	"github.com/fintelworks/prospector/internal/index"
	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/pace"
)

type fakeSearch struct {
	mu      sync.Mutex
	hits    map[string][]intel.SearchResult
	err     map[string]error
	queries []string
}

func (s *fakeSearch) Search(_ context.Context, query string, _ int) ([]intel.SearchResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if err := s.err[query]; err != nil {
		return nil, err
	}
	return s.hits[query], nil
}

type fakeHarvester struct {
	mu      sync.Mutex
	calls   []intel.WorkItem
	failURL string
}

func (h *fakeHarvester) Harvest(_ context.Context, entity intel.Entity, target string) ([]intel.Fragment, error) {
	h.mu.Lock()
	h.calls = append(h.calls, intel.WorkItem{Entity: entity.Name, URL: target})
	h.mu.Unlock()
	if target == h.failURL {
		return nil, errors.New("fetch refused")
	}
	return []intel.Fragment{{
		Content: "content from " + target,
		Entity:  entity.Name,
		Origin:  target,
		Kind:    intel.KindNews,
	}}, nil
}

func (h *fakeHarvester) targets() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	urls := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		urls = append(urls, c.URL)
	}
	sort.Strings(urls)
	return urls
}

func oneQueryPerEntity(entity intel.Entity) []harvest.Query {
	return []harvest.Query{{Text: entity.Name, Kind: intel.KindNews}}
}

func newsIndex(t *testing.T) *index.Store {
	t.Helper()
	return index.New("news", index.NewHashingEmbedder(64), zap.NewNop())
}

func TestRunDeduplicatesSharedURLsAcrossEntities(t *testing.T) {
	t.Parallel()

	// Two entities whose discovery overlaps on one article, once with a
	// fragment suffix. The shared URL must be fetched exactly once, and
	// it belongs to the entity that discovered it first.
	search := &fakeSearch{hits: map[string][]intel.SearchResult{
		"Acme Pay": {
			{URL: "https://fin.example/acme-funding"},
			{URL: "https://fin.example/sector-roundup"},
		},
		"Nova Bank": {
			{URL: "https://fin.example/sector-roundup#today"},
			{URL: "https://fin.example/nova-retail"},
		},
	}}
	harvester := &fakeHarvester{}
	store := newsIndex(t)

	p := New(search, pace.New(0), zap.NewNop())
	summaries, err := p.Run(context.Background(),
		[]intel.Entity{{Name: "Acme Pay"}, {Name: "Nova Bank"}},
		[]Source{{
			Kind:      intel.KindNews,
			Queries:   oneQueryPerEntity,
			Harvester: harvester,
			Index:     store,
			Workers:   2,
		}},
	)
	require.NoError(t, err)

	sum := summaries[intel.KindNews]
	require.Equal(t, 3, sum.Attempted)
	require.Equal(t, 3, sum.Fragments)
	require.Zero(t, sum.Failures)
	require.Equal(t, []string{
		"https://fin.example/acme-funding",
		"https://fin.example/nova-retail",
		"https://fin.example/sector-roundup",
	}, harvester.targets())

	// The overlapping article was claimed by the first entity.
	for _, call := range harvester.calls {
		if call.URL == "https://fin.example/sector-roundup" {
			require.Equal(t, "Acme Pay", call.Entity)
		}
	}
	require.Equal(t, 3, store.Len())
}

func TestRunIsolatesItemFailures(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{hits: map[string][]intel.SearchResult{
		"Acme Pay": {
			{URL: "https://fin.example/ok-1"},
			{URL: "https://fin.example/broken"},
			{URL: "https://fin.example/ok-2"},
		},
	}}
	harvester := &fakeHarvester{failURL: "https://fin.example/broken"}
	store := newsIndex(t)

	p := New(search, pace.New(0), zap.NewNop())
	summaries, err := p.Run(context.Background(),
		[]intel.Entity{{Name: "Acme Pay"}},
		[]Source{{
			Kind:      intel.KindNews,
			Queries:   oneQueryPerEntity,
			Harvester: harvester,
			Index:     store,
			Workers:   2,
		}},
	)
	require.NoError(t, err)

	sum := summaries[intel.KindNews]
	require.Equal(t, 3, sum.Attempted)
	require.Equal(t, 2, sum.Fragments)
	require.Equal(t, 1, sum.Failures)
	require.Equal(t, 2, store.Len())
}

func TestRunCountsQueryFailures(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{
		hits: map[string][]intel.SearchResult{
			"Acme Pay": {{URL: "https://fin.example/acme"}},
		},
		err: map[string]error{"Nova Bank": errors.New("throttled")},
	}
	harvester := &fakeHarvester{}

	p := New(search, pace.New(0), zap.NewNop())
	summaries, err := p.Run(context.Background(),
		[]intel.Entity{{Name: "Acme Pay"}, {Name: "Nova Bank"}},
		[]Source{{
			Kind:      intel.KindNews,
			Queries:   oneQueryPerEntity,
			Harvester: harvester,
			Index:     newsIndex(t),
			Workers:   1,
		}},
	)
	require.NoError(t, err)

	sum := summaries[intel.KindNews]
	require.Equal(t, 1, sum.Attempted)
	require.Equal(t, 1, sum.Fragments)
	require.Equal(t, 1, sum.Failures)
}

func TestDirectSourceSkipsDiscovery(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{}
	harvester := &fakeHarvester{}

	direct := func(entity intel.Entity) []intel.WorkItem {
		if entity.WebsiteURL == "" {
			return nil
		}
		return []intel.WorkItem{{Entity: entity.Name, URL: entity.WebsiteURL, Kind: intel.KindWebsitePage}}
	}

	p := New(search, pace.New(0), zap.NewNop())
	summaries, err := p.Run(context.Background(),
		[]intel.Entity{
			{Name: "Acme Pay", WebsiteURL: "https://acmepay.example"},
			{Name: "Ghost Corp"},
		},
		[]Source{{
			Kind:      intel.KindWebsitePage,
			Direct:    direct,
			Harvester: harvester,
			Index:     newsIndex(t),
			Workers:   1,
		}},
	)
	require.NoError(t, err)

	require.Empty(t, search.queries)
	sum := summaries[intel.KindWebsitePage]
	require.Equal(t, 1, sum.Attempted)
	require.Equal(t, []string{"https://acmepay.example"}, harvester.targets())
}

func TestRunGroupRunnerMatchesPoolContract(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{hits: map[string][]intel.SearchResult{
		"Acme Pay": {
			{URL: "https://fin.example/a"},
			{URL: "https://fin.example/b"},
			{URL: "https://fin.example/c"},
		},
	}}
	harvester := &fakeHarvester{}
	store := newsIndex(t)

	p := New(search, pace.New(0), zap.NewNop())
	summaries, err := p.Run(context.Background(),
		[]intel.Entity{{Name: "Acme Pay"}},
		[]Source{{
			Kind:      intel.KindNews,
			Queries:   oneQueryPerEntity,
			Harvester: harvester,
			Index:     store,
			Workers:   2,
			Async:     true,
		}},
	)
	require.NoError(t, err)
	require.Equal(t, Summary{Attempted: 3, Fragments: 3}, summaries[intel.KindNews])
	require.Equal(t, 3, store.Len())
}

func TestRunRejectsMisconfiguredSource(t *testing.T) {
	t.Parallel()

	p := New(&fakeSearch{}, pace.New(0), zap.NewNop())

	_, err := p.Run(context.Background(),
		[]intel.Entity{{Name: "Acme Pay"}},
		[]Source{{
			Kind:      intel.KindNews,
			Queries:   oneQueryPerEntity,
			Direct:    func(intel.Entity) []intel.WorkItem { return nil },
			Harvester: &fakeHarvester{},
			Index:     newsIndex(t),
		}},
	)
	require.Error(t, err)

	_, err = p.Run(context.Background(),
		[]intel.Entity{{Name: "Acme Pay"}},
		[]Source{{Kind: intel.KindNews, Queries: oneQueryPerEntity}},
	)
	require.Error(t, err)
}

type slowHarvester struct {
	delay time.Duration
}

func (h *slowHarvester) Harvest(_ context.Context, entity intel.Entity, target string) ([]intel.Fragment, error) {
	time.Sleep(h.delay)
	return []intel.Fragment{{Content: "f", Entity: entity.Name, Origin: target, Kind: intel.KindNews}}, nil
}

func TestRunBoundsParallelism(t *testing.T) {
	t.Parallel()

	// Five items through two workers at 50ms each is three waves: the
	// run must take at least three delays but well under five.
	const delay = 50 * time.Millisecond
	hits := make([]intel.SearchResult, 0, 5)
	for i := 0; i < 5; i++ {
		hits = append(hits, intel.SearchResult{URL: fmt.Sprintf("https://fin.example/p%d", i)})
	}
	search := &fakeSearch{hits: map[string][]intel.SearchResult{"Acme Pay": hits}}

	p := New(search, pace.New(0), zap.NewNop())
	start := time.Now()
	summaries, err := p.Run(context.Background(),
		[]intel.Entity{{Name: "Acme Pay"}},
		[]Source{{
			Kind:      intel.KindNews,
			Queries:   oneQueryPerEntity,
			Harvester: &slowHarvester{delay: delay},
			Index:     newsIndex(t),
			Workers:   2,
		}},
	)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Equal(t, 5, summaries[intel.KindNews].Fragments)
	require.GreaterOrEqual(t, elapsed, 3*delay)
	require.Less(t, elapsed, 5*delay)
}
