package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

// WebsiteConfig controls the stateless corporate-site harvester.
type WebsiteConfig struct {
	UserAgent string
	Timeout   time.Duration
	MaxPages  int
}

func (c *WebsiteConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
}

// WebsiteHarvester walks a corporate site from its known root URL using
// plain HTTP: the landing page plus same-host pages linked from it, up
// to the configured page budget. No pooled session is needed; the work
// is purely network-bound.
type WebsiteHarvester struct {
	cfg    WebsiteConfig
	logger *zap.Logger
}

// NewWebsiteHarvester builds a WebsiteHarvester.
func NewWebsiteHarvester(cfg WebsiteConfig, logger *zap.Logger) *WebsiteHarvester {
	cfg.applyDefaults()
	return &WebsiteHarvester{cfg: cfg, logger: logger}
}

// Harvest fetches up to MaxPages pages of the entity's site and returns
// one fragment per page with extractable text.
func (h *WebsiteHarvester) Harvest(ctx context.Context, entity intel.Entity, target string) ([]intel.Fragment, error) {
	if target == "" {
		return nil, errors.New("no website url")
	}
	root, err := url.Parse(target)
	if err != nil || root.Host == "" {
		return nil, fmt.Errorf("invalid website url %q", target)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(root.Hostname(), strings.TrimPrefix(root.Hostname(), "www.")),
		colly.MaxDepth(1),
	)
	if h.cfg.UserAgent != "" {
		collector.UserAgent = h.cfg.UserAgent
	}
	collector.SetRequestTimeout(h.cfg.Timeout)
	collector.WithTransport(newHTTPTransport())

	var (
		mu        sync.Mutex
		fragments []intel.Fragment
		fetchErrs []error
	)

	collector.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		frag := intel.Fragment{
			Content: CleanText(string(r.Body)),
			Entity:  entity.Name,
			Origin:  r.Request.URL.String(),
			Kind:    intel.KindWebsitePage,
		}
		if !frag.Clean() {
			return
		}
		mu.Lock()
		fragments = append(fragments, frag)
		mu.Unlock()
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		budget := len(fragments) < h.cfg.MaxPages
		mu.Unlock()
		if !budget {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		// Visit errors here are budget/duplicate signals, not failures.
		_ = e.Request.Visit(link)
	})

	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		fetchErrs = append(fetchErrs, fmt.Errorf("fetch %s: %w", r.Request.URL, err))
		mu.Unlock()
	})

	if err := collector.Visit(root.String()); err != nil {
		return nil, fmt.Errorf("visit %s: %w", target, err)
	}
	collector.Wait()

	if len(fragments) > h.cfg.MaxPages {
		fragments = fragments[:h.cfg.MaxPages]
	}
	if len(fragments) == 0 && len(fetchErrs) > 0 {
		return nil, errors.Join(fetchErrs...)
	}
	for _, fetchErr := range fetchErrs {
		h.logger.Debug("site page failed",
			zap.String("entity", entity.Name), zap.Error(fetchErr))
	}
	return fragments, nil
}
