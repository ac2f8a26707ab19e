package harvest

import (
	"fmt"
	"strings"

	"github.com/fintelworks/prospector/internal/intel"
)

// Query is one templated Stage-1 discovery query together with the
// fragment kind its hits will carry.
type Query struct {
	Text string
	Kind intel.SourceKind
}

// NewsQueries builds the credible-site-scoped news query for an entity.
// A single query covers every configured site via OR'd site: operators.
func NewsQueries(entity intel.Entity, sites []string) []Query {
	if len(sites) == 0 {
		return []Query{{
			Text: fmt.Sprintf("%q news", entity.Name),
			Kind: intel.KindNews,
		}}
	}
	scoped := make([]string, 0, len(sites))
	for _, site := range sites {
		scoped = append(scoped, "site:"+site)
	}
	return []Query{{
		Text: fmt.Sprintf("%q (%s)", entity.Name, strings.Join(scoped, " OR ")),
		Kind: intel.KindNews,
	}}
}

// DeepSearchQueries builds the targeted intent queries for an entity:
// partnerships, announcements, funding, and forum discussion.
func DeepSearchQueries(entity intel.Entity) []Query {
	name := fmt.Sprintf("%q", entity.Name)
	templates := []string{
		name + " partners with",
		name + " collaboration",
		name + " integration with",
		name + " press release",
		name + " announces",
		name + " launches product",
		name + " funding round",
		name + " review site:reddit.com",
	}
	queries := make([]Query, 0, len(templates))
	for _, text := range templates {
		queries = append(queries, Query{Text: text, Kind: intel.KindDeepSearch})
	}
	return queries
}
