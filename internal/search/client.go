// Package search implements the external web query service client used by
// the discovery stages. One call per Stage-1 query; pacing between calls
// is the caller's responsibility.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

// Config controls the query service client.
type Config struct {
	Endpoint string
	APIKey   string
	Country  string
	Language string
	Timeout  time.Duration
}

// Client calls a Brave-style web search API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client. The API key is required; a missing key is a
// configuration error surfaced before any harvesting starts.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.search.brave.com/res/v1/web/search"
	}
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type webResponse struct {
	Web struct {
		Results []intel.SearchResult `json:"results"`
	} `json:"web"`
}

// Search issues one query and returns the ordered hits. A throttled
// response is retried once after the server-indicated delay; any other
// failure is returned to the caller for per-query soft handling.
func (c *Client) Search(ctx context.Context, query string, count int) ([]intel.SearchResult, error) {
	results, retryAfter, err := c.doSearch(ctx, query, count)
	if retryAfter <= 0 {
		return results, err
	}

	c.logger.Debug("query service throttled, retrying once",
		zap.String("query", query), zap.Duration("after", retryAfter))
	select {
	case <-time.After(retryAfter):
	case <-ctx.Done():
		return nil, fmt.Errorf("search retry wait: %w", ctx.Err())
	}
	results, retryAfter, err = c.doSearch(ctx, query, count)
	if err == nil && retryAfter > 0 {
		// Still throttled: surface it so the caller counts the query as
		// failed instead of mistaking the empty batch for zero hits.
		return nil, fmt.Errorf("search throttled after retry")
	}
	return results, err
}

func (c *Client) doSearch(ctx context.Context, query string, count int) ([]intel.SearchResult, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build search request: %w", err)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("country", c.cfg.Country)
	q.Set("search_lang", c.cfg.Language)
	if count > 0 {
		q.Set("count", strconv.Itoa(count))
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRetryAfter(resp), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed webResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}
	if count > 0 && len(parsed.Web.Results) > count {
		parsed.Web.Results = parsed.Web.Results[:count]
	}
	return parsed.Web.Results, 0, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
