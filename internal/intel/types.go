// Package intel defines the core types and interfaces shared across the
// harvesting pipeline: entities, harvested fragments, work items, and the
// contracts the orchestrator calls across.
package intel

import "strings"

// SourceKind tags a fragment with the kind of source it was harvested from.
type SourceKind string

// Source kinds persisted in fragment metadata. The set is closed; the
// orchestrator routes each kind into its own index namespace.
const (
	KindAbout       SourceKind = "about"
	KindPost        SourceKind = "post"
	KindJob         SourceKind = "job"
	KindNews        SourceKind = "news"
	KindWebsitePage SourceKind = "website-page"
	KindAppListing  SourceKind = "app-listing"
	KindDeepSearch  SourceKind = "deep-search-hit"
)

// Entity is a named subject of harvesting, loaded from the roster.
// It is immutable for the duration of a run.
type Entity struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url,omitempty"`
	WebsiteURL string `json:"website_url,omitempty"`
}

// Fragment is a single harvested, cleaned text unit. Fragments are created
// by harvesters, routed into exactly one index, and never mutated after.
type Fragment struct {
	Content string     `json:"content"`
	Entity  string     `json:"entity"`
	Origin  string     `json:"origin"`
	Kind    SourceKind `json:"kind"`
}

// Clean trims surrounding whitespace and reports whether any content
// remains. Fragments that come back false are dropped, never stored.
func (f *Fragment) Clean() bool {
	f.Content = strings.TrimSpace(f.Content)
	return f.Content != ""
}

// WorkItem is one unit of Stage-2 fetch work, produced by Stage-1 discovery
// or directly from a known URL. Consumed exactly once per run.
type WorkItem struct {
	Entity string
	URL    string
	Kind   SourceKind
}

// SearchResult is a single hit returned by the external query service.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"description"`
}

// Filter restricts index queries. Entity equality is mandatory for
// retrieval correctness; Kind is optional.
type Filter struct {
	Entity string
	Kind   SourceKind
}

// Matches reports whether a fragment satisfies the filter.
func (f Filter) Matches(frag Fragment) bool {
	if f.Entity != "" && frag.Entity != f.Entity {
		return false
	}
	if f.Kind != "" && frag.Kind != f.Kind {
		return false
	}
	return true
}
