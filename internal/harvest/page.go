package harvest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/session"
)

// PageFetcher is the slice of a borrowed session that harvesters use.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (session.Page, error)
}

// Pool is the borrow surface harvesters need from the session pool.
type Pool interface {
	With(ctx context.Context, fn func(session.Resource) error) error
}

// PageHarvester fetches one URL through a pooled browser session and
// returns its cleaned text as a single fragment of the configured kind.
// News and deep-search retrieval share this implementation; only their
// discovery queries differ.
type PageHarvester struct {
	pool   Pool
	kind   intel.SourceKind
	logger *zap.Logger
}

// NewPageHarvester builds a PageHarvester emitting fragments of kind.
func NewPageHarvester(pool Pool, kind intel.SourceKind, logger *zap.Logger) *PageHarvester {
	return &PageHarvester{pool: pool, kind: kind, logger: logger}
}

// Harvest borrows a session, renders the target, and emits one fragment.
// The session is returned on every exit path.
func (h *PageHarvester) Harvest(ctx context.Context, entity intel.Entity, target string) ([]intel.Fragment, error) {
	var page session.Page
	err := h.pool.With(ctx, func(res session.Resource) error {
		fetcher, ok := res.(PageFetcher)
		if !ok {
			return fmt.Errorf("pooled resource %T cannot fetch pages", res)
		}
		var fetchErr error
		page, fetchErr = fetcher.Fetch(ctx, target)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}

	frag := intel.Fragment{
		Content: CleanText(page.HTML),
		Entity:  entity.Name,
		Origin:  page.FinalURL,
		Kind:    h.kind,
	}
	if !frag.Clean() {
		h.logger.Debug("page yielded no text",
			zap.String("entity", entity.Name), zap.String("url", target))
		return nil, nil
	}
	return []intel.Fragment{frag}, nil
}
