// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalog-crawler/internal/app"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	memorypublisher "github.com/JakeFAU/catalog-crawler/internal/publisher/memory"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Report.Dir = t.TempDir()
	return cfg
}

func TestNewApp_MemoryDefaults(t *testing.T) {
	t.Parallel()

	a, err := app.NewApp(context.Background(), baseConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.IsType(t, &memory.ProductStore{}, a.Store)
	assert.IsType(t, &memorypublisher.Publisher{}, a.Publisher)
	require.Len(t, a.Sinks, 1)
	assert.IsType(t, &local.BlobStore{}, a.Sinks[0])
	assert.NotNil(t, a.Coordinator)
	assert.NotNil(t, a.Exporter)
}

func TestNewApp_WithTelemetry(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Telemetry.Enabled = true
	a, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	a.Close(context.Background())
}

func TestNewApp_ConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name:          "Unknown storage provider",
			mutate:        func(c *config.Config) { c.Storage.Provider = "unknown" },
			expectedError: "unknown storage provider: unknown",
		},
		{
			name: "Malformed mongo URI",
			mutate: func(c *config.Config) {
				c.Storage.Provider = config.ProviderMongo
				c.Storage.Mongo.URI = "not-a-mongo-uri"
			},
			expectedError: "failed to initialize storage",
		},
		{
			name: "Malformed postgres DSN",
			mutate: func(c *config.Config) {
				c.Storage.Provider = config.ProviderPostgres
				c.Storage.Postgres.DSN = "postgres://user@host:notaport/db"
			},
			expectedError: "failed to initialize storage",
		},
		{
			name:          "Invalid site template",
			mutate:        func(c *config.Config) { c.Site.CategoryPath = "/hoodies.html" },
			expectedError: "invalid site",
		},
		{
			name:          "Unknown timezone",
			mutate:        func(c *config.Config) { c.Site.Timezone = "Mars/Olympus" },
			expectedError: "site.timezone",
		},
		{
			name:          "Bad proxy",
			mutate:        func(c *config.Config) { c.HTTP.Proxies = []string{"://nope"} },
			expectedError: "failed to initialize fetcher",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t)
			tc.mutate(&cfg)

			_, err := app.NewApp(context.Background(), cfg, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedError)
		})
	}
}

func TestApp_CloseRunsEveryCloser(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	a, err := app.NewApp(context.Background(), baseConfig(t), zap.New(core))
	require.NoError(t, err)

	a.Close(context.Background())
	assert.Equal(t, 1, logs.FilterMessage("Shutting down application services...").Len())
	assert.Zero(t, logs.FilterMessage("Error closing service").Len())

	// A second close is a no-op beyond logging.
	a.Close(context.Background())
}

func TestApp_RunAndExportEndToEndOnEmptySite(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	// Nothing listens here, so every fetch fails fast.
	cfg.Site.BaseURL = "http://127.0.0.1:1"
	cfg.HTTP.MaxRetries = 0
	a, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	summary, err := a.Coordinator.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Discovered)

	res, err := a.Exporter.Export(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Products)

	msgs := a.Publisher.(*memorypublisher.Publisher).Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, app.LocalTopic, msgs[0].Topic)
}
