package index

import (
	"context"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

// Router dispatches fragments into per-kind stores. It exists for
// harvesters that emit several kinds from one fetch, such as the
// profile harvester; each fragment still lands in its own kind's store.
type Router struct {
	routes map[intel.SourceKind]*Store
	logger *zap.Logger
}

// NewRouter builds a Router over the given kind-to-store routes.
func NewRouter(routes map[intel.SourceKind]*Store, logger *zap.Logger) *Router {
	return &Router{routes: routes, logger: logger}
}

// Add appends each fragment to its kind's store. Fragments of a kind
// with no route are dropped and counted in the log.
func (r *Router) Add(fragments []intel.Fragment) int {
	byKind := make(map[intel.SourceKind][]intel.Fragment)
	unrouted := 0
	for _, frag := range fragments {
		if _, ok := r.routes[frag.Kind]; !ok {
			unrouted++
			continue
		}
		byKind[frag.Kind] = append(byKind[frag.Kind], frag)
	}
	if unrouted > 0 {
		r.logger.Warn("dropping fragments with no route", zap.Int("count", unrouted))
	}
	stored := 0
	for kind, batch := range byKind {
		stored += r.routes[kind].Add(batch)
	}
	return stored
}

// Len reports the total fragments across all routes.
func (r *Router) Len() int {
	n := 0
	for _, store := range r.routes {
		n += store.Len()
	}
	return n
}

// Query delegates to the filter's kind when it names one, otherwise
// fans out to every route and caps the union at k.
func (r *Router) Query(ctx context.Context, text string, k int, filter intel.Filter) ([]intel.Fragment, error) {
	if filter.Kind != "" {
		store, ok := r.routes[filter.Kind]
		if !ok {
			return nil, nil
		}
		return store.Query(ctx, text, k, filter)
	}

	var out []intel.Fragment
	for _, store := range r.routes {
		hits, err := store.Query(ctx, text, k, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, hits...)
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}
