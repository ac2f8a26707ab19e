// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Roster  RosterConfig  `mapstructure:"roster"`
	Search  SearchConfig  `mapstructure:"search"`
	Session SessionConfig `mapstructure:"session"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Index   IndexConfig   `mapstructure:"index"`
	Storage StorageConfig `mapstructure:"storage"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

// ServerConfig controls the HTTP status server.
type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RosterConfig locates the entity roster.
type RosterConfig struct {
	Path string `mapstructure:"path"`
}

// SearchConfig configures the external query service and its pacing.
type SearchConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	APIKey          string `mapstructure:"api_key"`
	Country         string `mapstructure:"country"`
	Language        string `mapstructure:"language"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	ResultsPerQuery int    `mapstructure:"results_per_query"`
}

// SessionConfig governs the browser session pool.
type SessionConfig struct {
	PoolSize           int    `mapstructure:"pool_size"`
	UserAgent          string `mapstructure:"user_agent"`
	PageTimeoutSeconds int    `mapstructure:"page_timeout_seconds"`
	Headless           bool   `mapstructure:"headless"`
}

// HarvestConfig tunes the individual harvesters.
type HarvestConfig struct {
	NewsSites       []string `mapstructure:"news_sites"`
	MaxPosts        int      `mapstructure:"max_posts"`
	MaxJobs         int      `mapstructure:"max_jobs"`
	WebsiteMaxPages int      `mapstructure:"website_max_pages"`
	AppCountry      string   `mapstructure:"app_country"`
}

// IndexConfig tunes the similarity stores and the aggregator.
type IndexConfig struct {
	EmbedderDim      int `mapstructure:"embedder_dim"`
	PerStoreK        int `mapstructure:"per_store_k"`
	MaxFragmentChars int `mapstructure:"max_fragment_chars"`
}

// StorageConfig selects the snapshot persistence backend.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// ArchiveConfig controls the optional Postgres run archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// NotifyConfig holds metadata for run-completion events.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment. An empty path skips the
// config file and relies on defaults plus PROSPECTOR_* variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("roster.path", "companies.csv")
	v.SetDefault("search.country", "us")
	v.SetDefault("search.language", "en")
	v.SetDefault("search.timeout_seconds", 10)
	v.SetDefault("search.interval_seconds", 1)
	v.SetDefault("search.results_per_query", 5)
	v.SetDefault("session.pool_size", 2)
	v.SetDefault("session.page_timeout_seconds", 25)
	v.SetDefault("session.headless", true)
	v.SetDefault("harvest.max_posts", 10)
	v.SetDefault("harvest.max_jobs", 10)
	v.SetDefault("harvest.website_max_pages", 5)
	v.SetDefault("harvest.app_country", "US")
	v.SetDefault("index.embedder_dim", 256)
	v.SetDefault("index.per_store_k", 50)
	v.SetDefault("index.max_fragment_chars", 2000)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "data/snapshots")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Roster.Path == "" {
		return fmt.Errorf("roster.path must be set")
	}
	if c.Search.IntervalSeconds < 0 {
		return fmt.Errorf("search.interval_seconds must be >= 0")
	}
	if c.Session.PoolSize <= 0 {
		return fmt.Errorf("session.pool_size must be > 0")
	}
	switch c.Storage.Provider {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("storage.provider must be local, memory, or gcs")
	}
	if c.Archive.Enabled && c.Archive.DSN == "" {
		return fmt.Errorf("archive.dsn must be set when the archive is enabled")
	}
	if c.Notify.Enabled && (c.Notify.ProjectID == "" || c.Notify.TopicName == "") {
		return fmt.Errorf("notify.project_id and notify.topic_name must be set when notify is enabled")
	}
	return nil
}

// QueryInterval converts the configured pacing interval into a duration.
func (c Config) QueryInterval() time.Duration {
	return time.Duration(c.Search.IntervalSeconds) * time.Second
}

// PageTimeout converts the session page timeout into a duration.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Session.PageTimeoutSeconds) * time.Second
}
