// Package discover enriches roster entities that are missing profile or
// website URLs, using the search service plus an optional verification
// fetch.
package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/harvest"
	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/session"
)

// Verifier checks that a candidate URL is actually reachable.
type Verifier interface {
	Verify(ctx context.Context, target string) error
}

// PoolVerifier verifies candidates through a borrowed browser session.
type PoolVerifier struct {
	pool harvest.Pool
}

// NewPoolVerifier wraps a session pool as a Verifier.
func NewPoolVerifier(pool harvest.Pool) *PoolVerifier {
	return &PoolVerifier{pool: pool}
}

// Verify fetches the target and rejects error statuses.
func (v *PoolVerifier) Verify(ctx context.Context, target string) error {
	return v.pool.With(ctx, func(res session.Resource) error {
		fetcher, ok := res.(harvest.PageFetcher)
		if !ok {
			return fmt.Errorf("pooled resource %T cannot fetch pages", res)
		}
		page, err := fetcher.Fetch(ctx, target)
		if err != nil {
			return err
		}
		if page.StatusCode >= 400 {
			return fmt.Errorf("candidate returned status %d", page.StatusCode)
		}
		return nil
	})
}

// Config scopes candidate discovery.
type Config struct {
	// ProfileHost is the host profiles live on, e.g. a professional
	// network domain. Candidates on other hosts are rejected.
	ProfileHost string

	// ProfilePath is the path prefix a valid profile URL carries.
	ProfilePath string
}

func (c *Config) applyDefaults() {
	if c.ProfilePath == "" {
		c.ProfilePath = "/company/"
	}
}

// Enricher fills in missing entity URLs. Entities that already carry
// both URLs pass through untouched.
type Enricher struct {
	search   intel.SearchClient
	verifier Verifier
	cfg      Config
	logger   *zap.Logger
}

// New builds an Enricher. verifier may be nil to accept candidates
// without fetching them.
func New(search intel.SearchClient, verifier Verifier, cfg Config, logger *zap.Logger) *Enricher {
	cfg.applyDefaults()
	return &Enricher{search: search, verifier: verifier, cfg: cfg, logger: logger}
}

// Enrich returns a copy of entities with discovered URLs filled in.
// Discovery failures leave the entity as it was; they never fail the
// batch.
func (e *Enricher) Enrich(ctx context.Context, entities []intel.Entity) []intel.Entity {
	out := make([]intel.Entity, len(entities))
	copy(out, entities)
	for i := range out {
		if err := ctx.Err(); err != nil {
			return out
		}
		if out[i].ProfileURL == "" {
			if found := e.findProfile(ctx, out[i]); found != "" {
				out[i].ProfileURL = found
			}
		}
		if out[i].WebsiteURL == "" {
			if found := e.findWebsite(ctx, out[i]); found != "" {
				out[i].WebsiteURL = found
			}
		}
	}
	return out
}

func (e *Enricher) findProfile(ctx context.Context, entity intel.Entity) string {
	query := fmt.Sprintf("%q", entity.Name)
	if e.cfg.ProfileHost != "" {
		query += " site:" + e.cfg.ProfileHost
	}
	hits, err := e.search.Search(ctx, query, 5)
	if err != nil {
		e.logger.Warn("profile discovery failed", zap.String("entity", entity.Name), zap.Error(err))
		return ""
	}
	for _, hit := range hits {
		if !e.isProfile(hit.URL) {
			continue
		}
		if e.accept(ctx, entity, hit.URL) {
			return hit.URL
		}
	}
	return ""
}

func (e *Enricher) findWebsite(ctx context.Context, entity intel.Entity) string {
	query := fmt.Sprintf("%q official website", entity.Name)
	hits, err := e.search.Search(ctx, query, 5)
	if err != nil {
		e.logger.Warn("website discovery failed", zap.String("entity", entity.Name), zap.Error(err))
		return ""
	}
	for _, hit := range hits {
		parsed, err := url.Parse(hit.URL)
		if err != nil || !parsed.IsAbs() {
			continue
		}
		// The profile host is never an entity's own site.
		if e.cfg.ProfileHost != "" && strings.HasSuffix(parsed.Hostname(), e.cfg.ProfileHost) {
			continue
		}
		if e.accept(ctx, entity, hit.URL) {
			return hit.URL
		}
	}
	return ""
}

func (e *Enricher) isProfile(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return false
	}
	if e.cfg.ProfileHost != "" && !strings.HasSuffix(parsed.Hostname(), e.cfg.ProfileHost) {
		return false
	}
	return strings.Contains(parsed.Path, e.cfg.ProfilePath)
}

func (e *Enricher) accept(ctx context.Context, entity intel.Entity, candidate string) bool {
	if e.verifier == nil {
		return true
	}
	if err := e.verifier.Verify(ctx, candidate); err != nil {
		e.logger.Debug("candidate rejected",
			zap.String("entity", entity.Name),
			zap.String("url", candidate),
			zap.Error(err),
		)
		return false
	}
	return true
}
