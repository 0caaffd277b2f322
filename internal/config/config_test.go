package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Site.BaseURL != "https://www.dresslily.com" {
		t.Fatalf("unexpected base url %q", cfg.Site.BaseURL)
	}
	if cfg.Pipeline.ChunkSize != 300 || cfg.Pipeline.ItemWorkers != 50 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Storage.Provider != ProviderMemory {
		t.Fatalf("expected memory provider, got %q", cfg.Storage.Provider)
	}
	if !cfg.Logging.Development {
		t.Fatal("expected development logging by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: https://shop.test
  category_path: /sweaters-page-{page}.html
  timezone: Asia/Shanghai
crawl:
  page_workers: 4
pipeline:
  item_workers: 20
  chunk_size: 100
  reselect_missing_detail: true
http:
  timeout_seconds: 45
  max_retries: 4
  backoff_initial_ms: 100
  backoff_max_ms: 500
  rate_limit_rps: 2.5
  user_agents: ["agent-a", "agent-b"]
  proxies: ["http://proxy-1:3128"]
storage:
  provider: mongo
  mongo:
    uri: mongodb://localhost:27017
    collection: sweaters
report:
  gcs_bucket: reports-bucket
  prefix: catalog
notify:
  pubsub:
    project_id: proj
    topic_id: catalog-runs
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.CategoryPath != "/sweaters-page-{page}.html" {
		t.Fatalf("expected category path override, got %q", cfg.Site.CategoryPath)
	}
	if !strings.Contains(cfg.Site.ReviewPath, "{product_id}") {
		t.Fatalf("expected default review path to survive, got %q", cfg.Site.ReviewPath)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Shanghai" {
		t.Fatalf("unexpected location %v err=%v", loc, err)
	}
	if !cfg.Pipeline.ReselectMissingDetail || cfg.Pipeline.ChunkSize != 100 {
		t.Fatalf("expected pipeline overrides to apply: %+v", cfg.Pipeline)
	}
	if len(cfg.HTTP.UserAgents) != 2 || cfg.HTTP.Proxies[0] != "http://proxy-1:3128" {
		t.Fatalf("expected http lists to load: %+v", cfg.HTTP)
	}
	if cfg.HTTP.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.HTTP.RateLimitRPS)
	}
	if cfg.Storage.Mongo.Database != "dresslily" || cfg.Storage.Mongo.Collection != "sweaters" {
		t.Fatalf("unexpected mongo config: %+v", cfg.Storage.Mongo)
	}
	if got := cfg.Timeout(); got != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %v", got)
	}
	initial, maxDelay := cfg.Backoff()
	if initial != 100*time.Millisecond || maxDelay != 500*time.Millisecond {
		t.Fatalf("unexpected backoff %v/%v", initial, maxDelay)
	}
	if cfg.Notify.PubSub.TopicID != "catalog-runs" || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected notify/logging config: %+v %+v", cfg.Notify, cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_PIPELINE_CHUNK_SIZE", "25")
	t.Setenv("CATALOG_STORAGE_PROVIDER", "postgres")
	t.Setenv("CATALOG_STORAGE_POSTGRES_DSN", "postgres://localhost/catalog")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.ChunkSize != 25 {
		t.Fatalf("expected chunk size from env, got %d", cfg.Pipeline.ChunkSize)
	}
	if cfg.Storage.Provider != ProviderPostgres || cfg.Storage.Postgres.DSN == "" {
		t.Fatalf("expected postgres from env: %+v", cfg.Storage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid base url", func(c *Config) { c.Site.BaseURL = "shop" }, "site.base_url"},
		{"unknown timezone", func(c *Config) { c.Site.Timezone = "Mars/Olympus" }, "site.timezone"},
		{"no page workers", func(c *Config) { c.Crawl.PageWorkers = 0 }, "crawl.page_workers"},
		{"no item workers", func(c *Config) { c.Pipeline.ItemWorkers = 0 }, "pipeline.item_workers"},
		{"no chunk size", func(c *Config) { c.Pipeline.ChunkSize = 0 }, "pipeline.chunk_size"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "redis" }, "storage.provider"},
		{"mongo without uri", func(c *Config) { c.Storage.Provider = ProviderMongo }, "storage.mongo.uri"},
		{"postgres without dsn", func(c *Config) { c.Storage.Provider = ProviderPostgres }, "storage.postgres.dsn"},
		{"topic without project", func(c *Config) { c.Notify.PubSub.TopicID = "runs" }, "notify.pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
