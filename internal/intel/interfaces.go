package intel

import "context"

// SearchClient issues one query against the external search service and
// returns the ordered hits. Implementations carry their own timeout; the
// caller is responsible for pacing consecutive calls.
type SearchClient interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// Harvester produces fragments for one entity/target pair. Implementations
// fail soft: on error they return whatever fragments they already have plus
// the cause for logging, and the batch continues. A harvester never mutates
// shared state; it only returns data for the orchestrator to route.
type Harvester interface {
	Harvest(ctx context.Context, entity Entity, target string) ([]Fragment, error)
}

// Index is an append-only, similarity-queryable collection of fragments
// for one source kind.
type Index interface {
	// Add appends fragments, dropping any whose content is empty after
	// trimming. It returns the number of fragments actually stored.
	Add(fragments []Fragment) int

	// Query returns up to k fragments ranked by similarity to text,
	// restricted to those matching the filter. It never returns a
	// fragment belonging to a different entity than the filter names.
	Query(ctx context.Context, text string, k int, filter Filter) ([]Fragment, error)

	// Len reports the number of stored fragments.
	Len() int
}

// Embedder turns text into a similarity vector. The vector math itself is
// an opaque collaborator capability; the pipeline only requires that equal
// inputs produce equal vectors within one run.
type Embedder interface {
	Embed(text string) []float32
}
