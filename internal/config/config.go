// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage providers.
const (
	ProviderMemory   = "memory"
	ProviderMongo    = "mongo"
	ProviderPostgres = "postgres"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Report    ReportConfig    `mapstructure:"report"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig locates the category and review pages.
type SiteConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	CategoryPath string `mapstructure:"category_path"`
	ReviewPath   string `mapstructure:"review_path"`
	Timezone     string `mapstructure:"timezone"`
}

// CrawlConfig governs the category fan-out.
type CrawlConfig struct {
	PageWorkers int `mapstructure:"page_workers"`
}

// PipelineConfig governs per-product enrichment.
type PipelineConfig struct {
	ItemWorkers           int  `mapstructure:"item_workers"`
	ChunkSize             int  `mapstructure:"chunk_size"`
	ReselectMissingDetail bool `mapstructure:"reselect_missing_detail"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	MaxRetries       int      `mapstructure:"max_retries"`
	BackoffInitialMs int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int      `mapstructure:"backoff_max_ms"`
	RateLimitRPS     float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int      `mapstructure:"rate_limit_burst"`
	UserAgents       []string `mapstructure:"user_agents"`
	Proxies          []string `mapstructure:"proxies"`
}

// StorageConfig selects and configures the product store.
type StorageConfig struct {
	Provider string         `mapstructure:"provider"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// MongoConfig points at the products collection.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ReportConfig names the CSV exports and where they go.
type ReportConfig struct {
	Dir          string `mapstructure:"dir"`
	ProductsFile string `mapstructure:"products_file"`
	ReviewsFile  string `mapstructure:"reviews_file"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
}

// NotifyConfig holds metadata for run notifications.
type NotifyConfig struct {
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig names the topic run summaries are published to.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServerConfig controls the operator HTTP listener (health, metrics, run
// trigger). An empty Addr disables it; an empty APIKey leaves /v1 open.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
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
	v.SetDefault("site.base_url", "https://www.dresslily.com")
	v.SetDefault("site.category_path", "/hoodies-c-181-page-{page}.html")
	v.SetDefault("site.review_path", "/m-review-a-view_review-goods_id-{product_id}-page-{page}.htm")
	v.SetDefault("site.timezone", "UTC")
	v.SetDefault("crawl.page_workers", 8)
	v.SetDefault("pipeline.item_workers", 50)
	v.SetDefault("pipeline.chunk_size", 300)
	v.SetDefault("pipeline.reselect_missing_detail", false)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("http.user_agents", []string{})
	v.SetDefault("http.proxies", []string{})
	v.SetDefault("storage.provider", ProviderMemory)
	v.SetDefault("storage.mongo.uri", "")
	v.SetDefault("storage.mongo.database", "dresslily")
	v.SetDefault("storage.mongo.collection", "hoodies")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", "products")
	v.SetDefault("storage.postgres.max_conns", 10)
	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.products_file", "products.csv")
	v.SetDefault("report.reviews_file", "reviews.csv")
	v.SetDefault("report.gcs_bucket", "")
	v.SetDefault("report.prefix", "")
	v.SetDefault("notify.pubsub.project_id", "")
	v.SetDefault("notify.pubsub.topic_id", "")
	v.SetDefault("server.addr", "")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "catalog-crawler")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url is invalid: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Crawl.PageWorkers <= 0 {
		return fmt.Errorf("crawl.page_workers must be > 0")
	}
	if c.Pipeline.ItemWorkers <= 0 {
		return fmt.Errorf("pipeline.item_workers must be > 0")
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	switch c.Storage.Provider {
	case ProviderMemory:
	case ProviderMongo:
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri must be set when storage.provider is mongo")
		}
	case ProviderPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set when storage.provider is postgres")
		}
	default:
		return fmt.Errorf("storage.provider %q is not one of memory, mongo, postgres", c.Storage.Provider)
	}
	if c.Notify.PubSub.TopicID != "" && c.Notify.PubSub.ProjectID == "" {
		return fmt.Errorf("notify.pubsub.project_id must be set when a topic is configured")
	}
	return nil
}

// Location loads site.timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("site.timezone %q: %w", c.Site.Timezone, err)
	}
	return loc, nil
}

// Timeout converts http.timeout_seconds into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Backoff returns the initial and maximum retry delays.
func (c Config) Backoff() (time.Duration, time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
