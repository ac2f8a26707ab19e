package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

// Store is an append-only similarity index over fragments for one source
// kind. Fragments are never removed or mutated; growth is monotonic
// within a run. Writes are batched by the orchestrator after each
// harvesting stage, so the store only needs coarse locking.
type Store struct {
	name     string
	embedder intel.Embedder
	logger   *zap.Logger

	mu        sync.RWMutex
	fragments []intel.Fragment
	vectors   [][]float32
}

// New creates an empty store named after its source kind namespace.
func New(name string, embedder intel.Embedder, logger *zap.Logger) *Store {
	return &Store{name: name, embedder: embedder, logger: logger}
}

// Name returns the store's namespace.
func (s *Store) Name() string {
	return s.name
}

// Add appends fragments, dropping any whose content is empty after
// trimming, and returns the number actually stored. Dropped counts are
// logged so data-quality loss stays observable.
func (s *Store) Add(fragments []intel.Fragment) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, dropped := 0, 0
	for _, frag := range fragments {
		if !frag.Clean() {
			dropped++
			continue
		}
		s.fragments = append(s.fragments, frag)
		s.vectors = append(s.vectors, s.embedder.Embed(frag.Content))
		stored++
	}
	if dropped > 0 {
		s.logger.Debug("dropped empty fragments",
			zap.String("index", s.name), zap.Int("dropped", dropped))
	}
	return stored
}

// Len reports the number of stored fragments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments)
}

type scored struct {
	pos   int
	score float64
}

// Query returns up to k fragments ranked by similarity to text, restricted
// to fragments matching the filter. The entity restriction is applied
// before ranking: a fragment tagged with a different entity can never
// appear in the result, whatever its similarity.
func (s *Store) Query(ctx context.Context, text string, k int, filter intel.Filter) ([]intel.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", s.name, err)
	}
	if k <= 0 {
		return nil, nil
	}

	probe := s.embedder.Embed(text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]scored, 0, len(s.fragments))
	for i, frag := range s.fragments {
		if !filter.Matches(frag) {
			continue
		}
		candidates = append(candidates, scored{pos: i, score: cosine(probe, s.vectors[i])})
	}

	// Stable order: score descending, insertion order as tie-break, so
	// persisted and restored stores answer identically.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]intel.Fragment, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, s.fragments[c.pos])
	}
	return results, nil
}
