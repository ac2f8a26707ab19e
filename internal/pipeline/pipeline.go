// Package pipeline orchestrates a harvesting run: a sequential,
// rate-limited discovery stage that turns entities into deduplicated
// work items, followed by a parallel retrieval stage that fans those
// items out to a harvester and routes the fragments into the kind's
// index. Stages never overlap within one source; the index sees a
// single batched Add per stage.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/harvest"
	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/metrics"
	"github.com/fintelworks/prospector/internal/pace"
	"github.com/fintelworks/prospector/internal/runner"
)

const defaultResultsPerQuery = 5

// Source describes one kind of harvesting work. Exactly one of Queries
// or Direct must be set: Queries drives search-based discovery, Direct
// short-circuits Stage 1 into known work items.
type Source struct {
	Kind intel.SourceKind

	// Queries builds the Stage-1 discovery queries for an entity.
	Queries func(entity intel.Entity) []harvest.Query

	// Direct builds work items without discovery, for sources whose
	// targets are already known (profile URL, website, app store).
	Direct func(entity intel.Entity) []intel.WorkItem

	// Harvester fetches one work item into fragments.
	Harvester intel.Harvester

	// Index receives the stage's fragments in one batched append.
	Index intel.Index

	// Workers bounds Stage-2 concurrency. For pooled-session harvesters
	// it should match the session pool size.
	Workers int

	// Async selects the errgroup runner instead of the worker pool. The
	// two are contract-equivalent; Async fits stateless HTTP work.
	Async bool

	// ResultsPerQuery caps hits taken from each discovery query.
	ResultsPerQuery int
}

// Summary reports one source's run outcome. Failures counts both failed
// discovery queries and failed work items, so losing data is never
// silent.
type Summary struct {
	Attempted int `json:"attempted"`
	Fragments int `json:"fragments"`
	Failures  int `json:"failures"`
}

// Pipeline runs sources over a roster of entities. The pacer and the
// normalized-URL claim set are shared across every source and entity in
// the run.
type Pipeline struct {
	search intel.SearchClient
	pacer  *pace.Pacer
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a Pipeline. The pacer gates every discovery query the run
// issues, regardless of source.
func New(search intel.SearchClient, pacer *pace.Pacer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		search: search,
		pacer:  pacer,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Run executes every source against every entity and returns per-kind
// summaries. Sources run in order; entities are iterated in roster
// order, so the first entity to discover a shared URL owns it.
func (p *Pipeline) Run(ctx context.Context, entities []intel.Entity, sources []Source) (map[intel.SourceKind]Summary, error) {
	byName := make(map[string]intel.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}

	summaries := make(map[intel.SourceKind]Summary, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return summaries, fmt.Errorf("run aborted: %w", err)
		}
		if src.Harvester == nil || src.Index == nil {
			return summaries, fmt.Errorf("source %s: harvester and index are required", src.Kind)
		}
		if (src.Queries == nil) == (src.Direct == nil) {
			return summaries, fmt.Errorf("source %s: exactly one of queries or direct must be set", src.Kind)
		}

		sum, err := p.runSource(ctx, entities, byName, src)
		summaries[src.Kind] = sum
		if err != nil {
			return summaries, err
		}
		p.logger.Info("source complete",
			zap.String("kind", string(src.Kind)),
			zap.Int("attempted", sum.Attempted),
			zap.Int("fragments", sum.Fragments),
			zap.Int("failures", sum.Failures),
		)
	}
	return summaries, nil
}

func (p *Pipeline) runSource(ctx context.Context, entities []intel.Entity, byName map[string]intel.Entity, src Source) (Summary, error) {
	var sum Summary

	items, queryFailures, err := p.discover(ctx, entities, src)
	if err != nil {
		return sum, err
	}
	sum.Failures += queryFailures
	sum.Attempted = len(items)
	metrics.ObserveWorkItems(string(src.Kind), len(items))
	if len(items) == 0 {
		return sum, nil
	}

	fn := func(ctx context.Context, item intel.WorkItem) ([]intel.Fragment, error) {
		entity, ok := byName[item.Entity]
		if !ok {
			return nil, fmt.Errorf("unknown entity %q", item.Entity)
		}
		return src.Harvester.Harvest(ctx, entity, item.URL)
	}

	var results []runner.Result[intel.WorkItem, []intel.Fragment]
	if src.Async {
		results = runner.Group(ctx, items, src.Workers, fn, p.logger)
	} else {
		results = runner.Pool(ctx, items, src.Workers, fn, p.logger)
	}

	var batch []intel.Fragment
	for _, res := range results {
		if res.Failed() {
			metrics.ObserveFailure(string(src.Kind), "fetch")
			sum.Failures++
			continue
		}
		batch = append(batch, res.Value...)
	}

	// Single writer: the index is only appended to here, after the
	// parallel stage has fully drained.
	sum.Fragments = src.Index.Add(batch)
	metrics.ObserveFragments(string(src.Kind), sum.Fragments)
	return sum, nil
}

// discover produces the source's work items. Search-backed sources pace
// each query and take up to ResultsPerQuery hits; direct sources emit
// one item per known target. Either way every URL passes through the
// run-global claim set.
func (p *Pipeline) discover(ctx context.Context, entities []intel.Entity, src Source) ([]intel.WorkItem, int, error) {
	if src.Direct != nil {
		var items []intel.WorkItem
		for _, entity := range entities {
			for _, item := range src.Direct(entity) {
				if item.URL != "" && !p.claim(item.URL) {
					continue
				}
				items = append(items, item)
			}
		}
		return items, 0, nil
	}

	perQuery := src.ResultsPerQuery
	if perQuery <= 0 {
		perQuery = defaultResultsPerQuery
	}

	var items []intel.WorkItem
	failures := 0
	for _, entity := range entities {
		for _, query := range src.Queries(entity) {
			start := time.Now()
			if err := p.pacer.Wait(ctx); err != nil {
				return items, failures, fmt.Errorf("discovery for %s: %w", entity.Name, err)
			}
			metrics.ObservePaceDelay(time.Since(start))

			hits, err := p.search.Search(ctx, query.Text, perQuery)
			if err != nil {
				metrics.ObserveQuery(string(src.Kind), false)
				metrics.ObserveFailure(string(src.Kind), "query")
				failures++
				p.logger.Warn("discovery query failed",
					zap.String("entity", entity.Name),
					zap.String("query", query.Text),
					zap.Error(err),
				)
				continue
			}
			metrics.ObserveQuery(string(src.Kind), true)

			for _, hit := range hits {
				if !p.claim(hit.URL) {
					continue
				}
				items = append(items, intel.WorkItem{
					Entity: entity.Name,
					URL:    hit.URL,
					Kind:   query.Kind,
				})
			}
		}
	}
	return items, failures, nil
}

// claim records a URL in the run-global dedup set, keyed by its
// normalized form. It returns true the first time a URL is seen;
// unparseable URLs are rejected outright.
func (p *Pipeline) claim(rawURL string) bool {
	normalized, err := intel.NormalizeURL(rawURL)
	if err != nil {
		p.logger.Debug("dropping unparseable url", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.seen[normalized]; dup {
		return false
	}
	p.seen[normalized] = struct{}{}
	return true
}
