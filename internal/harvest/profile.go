package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/session"
)

// ProfileConfig controls the profile-page harvester. The selectors are
// the external extraction-rule boundary: which element holds a post or a
// job listing is site-specific and injected, not hardcoded here.
type ProfileConfig struct {
	PostSelector string
	JobSelector  string
	MaxPosts     int
	MaxJobs      int
}

func (c *ProfileConfig) applyDefaults() {
	if c.PostSelector == "" {
		c.PostSelector = "article"
	}
	if c.JobSelector == "" {
		c.JobSelector = "li.job"
	}
	if c.MaxPosts <= 0 {
		c.MaxPosts = 10
	}
	if c.MaxJobs <= 0 {
		c.MaxJobs = 10
	}
}

// ProfileHarvester scrapes the about, posts, and jobs sub-pages of a
// known profile URL through a pooled session. Each sub-page fails soft
// on its own; one missing section never costs the others.
type ProfileHarvester struct {
	pool   Pool
	cfg    ProfileConfig
	logger *zap.Logger
}

// NewProfileHarvester builds a ProfileHarvester.
func NewProfileHarvester(pool Pool, cfg ProfileConfig, logger *zap.Logger) *ProfileHarvester {
	cfg.applyDefaults()
	return &ProfileHarvester{pool: pool, cfg: cfg, logger: logger}
}

// Harvest fetches the three profile sub-pages with one borrowed session.
func (h *ProfileHarvester) Harvest(ctx context.Context, entity intel.Entity, target string) ([]intel.Fragment, error) {
	if target == "" {
		return nil, errors.New("no profile url")
	}
	base := strings.TrimRight(target, "/")

	var fragments []intel.Fragment
	var errs []error
	err := h.pool.With(ctx, func(res session.Resource) error {
		fetcher, ok := res.(PageFetcher)
		if !ok {
			return fmt.Errorf("pooled resource %T cannot fetch pages", res)
		}

		if frag, err := h.about(ctx, fetcher, entity, base); err != nil {
			errs = append(errs, err)
		} else {
			fragments = append(fragments, frag...)
		}
		if frags, err := h.posts(ctx, fetcher, entity, base); err != nil {
			errs = append(errs, err)
		} else {
			fragments = append(fragments, frags...)
		}
		if frags, err := h.jobs(ctx, fetcher, entity, base); err != nil {
			errs = append(errs, err)
		} else {
			fragments = append(fragments, frags...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(fragments) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("profile harvest for %s: %w", entity.Name, errors.Join(errs...))
	}
	for _, subErr := range errs {
		h.logger.Warn("profile sub-page failed",
			zap.String("entity", entity.Name), zap.Error(subErr))
	}
	return fragments, nil
}

func (h *ProfileHarvester) about(ctx context.Context, fetcher PageFetcher, entity intel.Entity, base string) ([]intel.Fragment, error) {
	page, err := fetcher.Fetch(ctx, base+"/about/")
	if err != nil {
		return nil, fmt.Errorf("about page: %w", err)
	}
	frag := intel.Fragment{
		Content: CleanText(page.HTML),
		Entity:  entity.Name,
		Origin:  base,
		Kind:    intel.KindAbout,
	}
	if !frag.Clean() {
		return nil, nil
	}
	return []intel.Fragment{frag}, nil
}

func (h *ProfileHarvester) posts(ctx context.Context, fetcher PageFetcher, entity intel.Entity, base string) ([]intel.Fragment, error) {
	page, err := fetcher.Fetch(ctx, base+"/posts/")
	if err != nil {
		return nil, fmt.Errorf("posts page: %w", err)
	}
	return h.selectFragments(page.HTML, h.cfg.PostSelector, h.cfg.MaxPosts, entity, base, intel.KindPost)
}

func (h *ProfileHarvester) jobs(ctx context.Context, fetcher PageFetcher, entity intel.Entity, base string) ([]intel.Fragment, error) {
	page, err := fetcher.Fetch(ctx, base+"/jobs/")
	if err != nil {
		return nil, fmt.Errorf("jobs page: %w", err)
	}
	frags, err := h.selectFragments(page.HTML, h.cfg.JobSelector, h.cfg.MaxJobs, entity, base, intel.KindJob)
	if err != nil {
		return nil, err
	}
	for i := range frags {
		frags[i].Content = "Hiring for: " + frags[i].Content
	}
	return frags, nil
}

func (h *ProfileHarvester) selectFragments(html, selector string, max int, entity intel.Entity, origin string, kind intel.SourceKind) ([]intel.Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var fragments []intel.Fragment
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		frag := intel.Fragment{
			Content: cleanSelection(sel),
			Entity:  entity.Name,
			Origin:  origin,
			Kind:    kind,
		}
		if frag.Clean() {
			fragments = append(fragments, frag)
		}
		return len(fragments) < max
	})
	return fragments, nil
}
