// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/pipeline"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/catalog-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/report"
	"github.com/JakeFAU/catalog-crawler/internal/scrape"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
	mongostore "github.com/JakeFAU/catalog-crawler/internal/storage/mongo"
	"github.com/JakeFAU/catalog-crawler/internal/storage/postgres"
	"github.com/JakeFAU/catalog-crawler/internal/telemetry"
)

// LocalTopic is used for run summaries when no Pub/Sub topic is configured.
const LocalTopic = "catalog-runs"

const storeConnectTimeout = 10 * time.Second

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and closed by the CLI when the command finishes.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Store       catalog.Store
	Publisher   catalog.Publisher
	Sinks       []catalog.BlobStore
	Coordinator *pipeline.Coordinator
	Exporter    *report.Exporter

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// NewApp instantiates every service from cfg. It fails fast if a
// critical dependency cannot be initialized, releasing what was already opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()
	logger.Info("Initializing application services...")
	metrics.Init()

	if cfg.Telemetry.Enabled {
		tp, terr := telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName)
		if terr != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", terr)
		}
		a.addCloser("tracer provider", tp.Shutdown)
	}

	// 1. Product store
	if a.Store, err = a.newStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.addCloser("product store", a.Store.Close)

	// 2. Run notifications
	topic := cfg.Notify.PubSub.TopicID
	if topic == "" {
		logger.Info("Using in-memory publisher; run summaries stay in process.")
		a.Publisher = memorypublisher.New()
		topic = LocalTopic
	} else {
		logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", topic))
		client, perr := pubsub.NewClient(ctx, cfg.Notify.PubSub.ProjectID)
		if perr != nil {
			return nil, fmt.Errorf("failed to initialize pubsub: %w", perr)
		}
		a.addCloser("pubsub client", func(context.Context) error { return client.Close() })
		a.Publisher = pubsubpublisher.New(client)
	}

	// 3. Report sinks
	if err = a.initSinks(ctx); err != nil {
		return nil, err
	}
	a.Exporter, err = report.NewExporter(report.Config{
		ProductsFile: cfg.Report.ProductsFile,
		ReviewsFile:  cfg.Report.ReviewsFile,
	}, a.Store, logger.Named("report"), a.Sinks...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report exporter: %w", err)
	}

	// 4. Crawl pipeline
	a.Coordinator, err = a.newCoordinator(topic)
	if err != nil {
		return nil, err
	}

	logger.Info("Application services initialized successfully.")
	return a, nil
}

func (a *App) newStore(ctx context.Context) (catalog.Store, error) {
	cfg := a.Config.Storage
	switch cfg.Provider {
	case config.ProviderMemory:
		a.Logger.Info("Using in-memory product store. Records are lost on exit.")
		return memory.NewProductStore(), nil
	case config.ProviderMongo:
		a.Logger.Info("Connecting to MongoDB...", zap.String("database", cfg.Mongo.Database), zap.String("collection", cfg.Mongo.Collection))
		return mongostore.New(ctx, mongostore.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    storeConnectTimeout,
		})
	case config.ProviderPostgres:
		a.Logger.Info("Connecting to PostgreSQL...", zap.String("table", cfg.Postgres.Table))
		return postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func (a *App) initSinks(ctx context.Context) error {
	cfg := a.Config.Report
	localSink, err := local.New(local.Config{BaseDir: cfg.Dir})
	if err != nil {
		return fmt.Errorf("failed to initialize report dir: %w", err)
	}
	a.Sinks = append(a.Sinks, localSink)

	if cfg.GCSBucket == "" {
		return nil
	}
	a.Logger.Info("Uploading reports to GCS", zap.String("bucket", cfg.GCSBucket))
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize gcs client: %w", err)
	}
	a.addCloser("gcs client", func(context.Context) error { return client.Close() })
	gcsSink, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
	if err != nil {
		return fmt.Errorf("failed to initialize gcs sink: %w", err)
	}
	a.Sinks = append(a.Sinks, gcsSink)
	return nil
}

func (a *App) newCoordinator(topic string) (*pipeline.Coordinator, error) {
	cfg := a.Config
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	site := scrape.Site{
		BaseURL:      cfg.Site.BaseURL,
		CategoryPath: cfg.Site.CategoryPath,
		ReviewPath:   cfg.Site.ReviewPath,
		Location:     loc,
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}

	initial, maxBackoff := cfg.Backoff()
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.RateLimitRPS,
		DefaultBurst: cfg.HTTP.RateLimitBurst,
	})
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgents:     cfg.HTTP.UserAgents,
		Proxies:        cfg.HTTP.Proxies,
		Timeout:        cfg.Timeout(),
		MaxAttempts:    cfg.HTTP.MaxRetries + 1,
		BackoffInitial: initial,
		BackoffMax:     maxBackoff,
	}, limiter, a.Logger.Named("fetcher"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	coordinator, err := pipeline.New(pipeline.Config{
		ItemWorkers:           cfg.Pipeline.ItemWorkers,
		ChunkSize:             cfg.Pipeline.ChunkSize,
		ReselectMissingDetail: cfg.Pipeline.ReselectMissingDetail,
		Topic:                 topic,
	}, pipeline.Deps{
		Listings:  scrape.NewCategoryCrawler(site, fetcher, nil, cfg.Crawl.PageWorkers, a.Logger.Named("category")),
		Details:   scrape.NewDetailFetcher(site, fetcher, nil, a.Logger.Named("detail")),
		Reviews:   scrape.NewReviewCrawler(site, fetcher, nil, a.Logger.Named("reviews")),
		Store:     a.Store,
		Publisher: a.Publisher,
		IDs:       uuid.New(),
		Clock:     system.New(),
	}, a.Logger.Named("pipeline"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	return coordinator, nil
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close shuts down services in reverse order of creation and flushes the logger.
func (a *App) Close(ctx context.Context) {
	a.Logger.Info("Shutting down application services...")
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.Logger.Warn("Error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil

	if err := a.Logger.Sync(); err != nil {
		a.Logger.Debug("Error syncing logger on shutdown", zap.Error(err))
	}
}
