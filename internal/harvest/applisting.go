package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

// AppListingConfig controls the app-store lookup harvester.
type AppListingConfig struct {
	Endpoint string
	Country  string
	Limit    int
	Timeout  time.Duration
}

func (c *AppListingConfig) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://itunes.apple.com/search"
	}
	if c.Country == "" {
		c.Country = "US"
	}
	if c.Limit <= 0 {
		c.Limit = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// AppListingHarvester looks an entity up in the app-store search API and
// formats the top listing into a key-value fragment. It is stateless HTTP
// work; no pooled session is involved and the target argument is unused
// because discovery is the entity name itself.
type AppListingHarvester struct {
	cfg    AppListingConfig
	http   *http.Client
	logger *zap.Logger
}

// NewAppListingHarvester builds an AppListingHarvester.
func NewAppListingHarvester(cfg AppListingConfig, logger *zap.Logger) *AppListingHarvester {
	cfg.applyDefaults()
	return &AppListingHarvester{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type appListing struct {
	TrackName        string   `json:"trackName"`
	TrackID          int64    `json:"trackId"`
	ArtistName       string   `json:"artistName"`
	Description      string   `json:"description"`
	PrimaryGenre     string   `json:"primaryGenreName"`
	AverageRating    float64  `json:"averageUserRating"`
	RatingCount      int64    `json:"userRatingCount"`
	ReleaseDate      string   `json:"releaseDate"`
	CurrentRelease   string   `json:"currentVersionReleaseDate"`
	ContentAdvisory  string   `json:"trackContentRating"`
	SellerName       string   `json:"sellerName"`
	FormattedPrice   string   `json:"formattedPrice"`
	SupportedDevices []string `json:"supportedDevices"`
}

type appSearchResponse struct {
	Results []appListing `json:"results"`
}

// Harvest queries the store for the entity name and emits one fragment
// per listing found, up to the configured limit.
func (h *AppListingHarvester) Harvest(ctx context.Context, entity intel.Entity, _ string) ([]intel.Fragment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build store request: %w", err)
	}
	q := url.Values{}
	q.Set("term", entity.Name)
	q.Set("country", h.cfg.Country)
	q.Set("media", "software")
	q.Set("entity", "software,iPadSoftware")
	q.Set("limit", strconv.Itoa(h.cfg.Limit))
	req.URL.RawQuery = q.Encode()

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store search for %s: %w", entity.Name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store search returned status %d", resp.StatusCode)
	}

	var parsed appSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode store response: %w", err)
	}
	if len(parsed.Results) == 0 {
		h.logger.Debug("no app listing found", zap.String("entity", entity.Name))
		return nil, nil
	}
	if len(parsed.Results) > h.cfg.Limit {
		parsed.Results = parsed.Results[:h.cfg.Limit]
	}

	fragments := make([]intel.Fragment, 0, len(parsed.Results))
	for _, listing := range parsed.Results {
		frag := intel.Fragment{
			Content: formatListing(listing),
			Entity:  entity.Name,
			Origin:  fmt.Sprintf("app-store:%d", listing.TrackID),
			Kind:    intel.KindAppListing,
		}
		if frag.Clean() {
			fragments = append(fragments, frag)
		}
	}
	return fragments, nil
}

// formatListing flattens the listing into labeled lines; empty fields are
// omitted so the fragment carries only real signal.
func formatListing(listing appListing) string {
	pairs := []struct {
		label string
		value string
	}{
		{"App Name", listing.TrackName},
		{"Developer", firstNonEmpty(listing.ArtistName, listing.SellerName)},
		{"Genre", listing.PrimaryGenre},
		{"Description", listing.Description},
		{"Rating", formatRating(listing.AverageRating, listing.RatingCount)},
		{"Price", listing.FormattedPrice},
		{"Release Date", trimTimestamp(listing.ReleaseDate)},
		{"Last Updated", trimTimestamp(listing.CurrentRelease)},
		{"Content Rating", listing.ContentAdvisory},
	}

	var b strings.Builder
	b.WriteString("--- App Store Listing ---\n")
	for _, pair := range pairs {
		if pair.value == "" {
			continue
		}
		b.WriteString(pair.label)
		b.WriteString(": ")
		b.WriteString(pair.value)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatRating(avg float64, count int64) string {
	if count == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f (%d ratings)", avg, count)
}

func trimTimestamp(iso string) string {
	if i := strings.IndexByte(iso, 'T'); i > 0 {
		return iso[:i]
	}
	return iso
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
