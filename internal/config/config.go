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
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	Fetcher     FetcherConfig     `mapstructure:"fetcher"`
	Headless    HeadlessConfig    `mapstructure:"headless"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Competitors CompetitorsConfig `mapstructure:"competitors"`
	Gaps        GapsConfig        `mapstructure:"gaps"`
	Search      SearchConfig      `mapstructure:"search"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DB          DBConfig          `mapstructure:"db"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the site crawl.
type CrawlerConfig struct {
	PageLimit         int     `mapstructure:"page_limit"`
	Concurrency       int     `mapstructure:"concurrency"`
	PerPageTimeoutSec int     `mapstructure:"per_page_timeout_seconds"`
	OverallTimeoutSec int     `mapstructure:"overall_timeout_seconds"`
	PerHostRPS        float64 `mapstructure:"per_host_rps"`
	UserAgent         string  `mapstructure:"user_agent"`
	ArchivePages      bool    `mapstructure:"archive_pages"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	Provider       string `mapstructure:"provider"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the headless rendering fetcher.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// ExtractorConfig tunes keyword extraction.
type ExtractorConfig struct {
	TopK            int     `mapstructure:"top_k"`
	HeadingBoost    float64 `mapstructure:"heading_boost"`
	UserFloor       float64 `mapstructure:"user_floor"`
	MinCorpusTokens int     `mapstructure:"min_corpus_tokens"`
}

// CompetitorsConfig tunes competitor identification.
type CompetitorsConfig struct {
	QueryKeywords      int     `mapstructure:"query_keywords"`
	ResultsPerQuery    int     `mapstructure:"results_per_query"`
	TopM               int     `mapstructure:"top_m"`
	PrimaryThreshold   float64 `mapstructure:"primary_threshold"`
	SecondaryThreshold float64 `mapstructure:"secondary_threshold"`
	EmergingThreshold  float64 `mapstructure:"emerging_threshold"`
}

// GapsConfig tunes content gap generation.
type GapsConfig struct {
	TopK              int     `mapstructure:"top_k"`
	DefaultDifficulty int     `mapstructure:"default_difficulty"`
	TrafficWeight     float64 `mapstructure:"traffic_weight"`
	DifficultyWeight  float64 `mapstructure:"difficulty_weight"`
	HighThreshold     float64 `mapstructure:"high_threshold"`
	MediumThreshold   float64 `mapstructure:"medium_threshold"`
}

// SearchConfig selects and tunes the search provider.
type SearchConfig struct {
	Provider       string `mapstructure:"provider"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	CacheTTLSec    int    `mapstructure:"cache_ttl_seconds"`
}

// JobsConfig governs the worker pool and job budgets.
type JobsConfig struct {
	Workers           int    `mapstructure:"workers"`
	QueueDepth        int    `mapstructure:"queue_depth"`
	JobTimeoutSeconds int    `mapstructure:"job_timeout_seconds"`
	EventTopic        string `mapstructure:"event_topic"`
}

// StorageConfig selects the store and blob providers.
type StorageConfig struct {
	StoreProvider string `mapstructure:"store_provider"`
	BlobProvider  string `mapstructure:"blob_provider"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	LocalBaseDir  string `mapstructure:"local_base_dir"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FOOTPRINT")
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
	v.SetDefault("crawler.page_limit", 10)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.per_page_timeout_seconds", 10)
	v.SetDefault("crawler.overall_timeout_seconds", 60)
	v.SetDefault("crawler.per_host_rps", 4)
	v.SetDefault("crawler.user_agent", "footprint-bot/0.1")
	v.SetDefault("crawler.archive_pages", false)
	v.SetDefault("fetcher.provider", "colly")
	v.SetDefault("fetcher.timeout_seconds", 10)
	v.SetDefault("fetcher.max_body_bytes", 2<<20)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("extractor.top_k", 50)
	v.SetDefault("extractor.heading_boost", 2.0)
	v.SetDefault("extractor.user_floor", 0.8)
	v.SetDefault("extractor.min_corpus_tokens", 30)
	v.SetDefault("competitors.query_keywords", 15)
	v.SetDefault("competitors.results_per_query", 10)
	v.SetDefault("competitors.top_m", 15)
	v.SetDefault("competitors.primary_threshold", 0.5)
	v.SetDefault("competitors.secondary_threshold", 0.25)
	v.SetDefault("competitors.emerging_threshold", 0.1)
	v.SetDefault("gaps.top_k", 10)
	v.SetDefault("gaps.default_difficulty", 50)
	v.SetDefault("gaps.traffic_weight", 0.7)
	v.SetDefault("gaps.difficulty_weight", 0.3)
	v.SetDefault("gaps.high_threshold", 0.66)
	v.SetDefault("gaps.medium_threshold", 0.33)
	v.SetDefault("search.provider", "static")
	v.SetDefault("search.timeout_seconds", 10)
	v.SetDefault("search.cache_ttl_seconds", 3600)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_depth", 64)
	v.SetDefault("jobs.job_timeout_seconds", 300)
	v.SetDefault("jobs.event_topic", "analysis-events")
	v.SetDefault("storage.store_provider", "memory")
	v.SetDefault("storage.blob_provider", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.migrate", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.PageLimit <= 0 {
		return fmt.Errorf("crawler.page_limit must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Fetcher.Provider {
	case "colly", "safe", "headless":
	default:
		return fmt.Errorf("fetcher.provider must be colly, safe or headless")
	}
	switch c.Search.Provider {
	case "http", "static", "none":
	default:
		return fmt.Errorf("search.provider must be http, static or none")
	}
	if c.Search.Provider == "http" && c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url must be set for the http provider")
	}
	switch c.Storage.StoreProvider {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.store_provider must be memory or postgres")
	}
	if c.Storage.StoreProvider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set for the postgres store")
	}
	switch c.Storage.BlobProvider {
	case "memory", "local", "gcs":
	default:
		return fmt.Errorf("storage.blob_provider must be memory, local or gcs")
	}
	if c.Storage.BlobProvider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs blob store")
	}
	if c.Storage.BlobProvider == "local" && c.Storage.LocalBaseDir == "" {
		return fmt.Errorf("storage.local_base_dir must be set for the local blob store")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Gaps.TrafficWeight+c.Gaps.DifficultyWeight <= 0 {
		return fmt.Errorf("gaps priority weights must sum to > 0")
	}
	return nil
}

// JobTimeout returns the per-job execution budget.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Jobs.JobTimeoutSeconds) * time.Second
}
