// Package pipeline drives a full crawl: discover the category, upsert stubs,
// then complete the unparsed records chunk by chunk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/pool"
	"github.com/JakeFAU/catalog-crawler/internal/telemetry"
)

// ListingSource discovers stub records. Implemented by scrape.CategoryCrawler.
type ListingSource interface {
	Crawl(ctx context.Context) []catalog.Patch
}

// DetailSource scrapes a product page. Implemented by scrape.DetailFetcher.
type DetailSource interface {
	Fetch(ctx context.Context, ref catalog.Ref) (catalog.Detail, error)
}

// ReviewSource collects a product's reviews. Implemented by scrape.ReviewCrawler.
type ReviewSource interface {
	Crawl(ctx context.Context, productID int64) ([]catalog.Review, error)
}

// Config tunes the coordinator.
type Config struct {
	ItemWorkers           int
	ChunkSize             int
	ReselectMissingDetail bool
	// Topic receives the run summary when a publisher is configured.
	Topic string
}

// Deps groups the coordinator's collaborators. Publisher may be nil.
type Deps struct {
	Listings  ListingSource
	Details   DetailSource
	Reviews   ReviewSource
	Store     catalog.Store
	Publisher catalog.Publisher
	IDs       catalog.IDGenerator
	Clock     catalog.Clock
}

// Coordinator runs the crawl pipeline.
type Coordinator struct {
	cfg    Config
	deps   Deps
	tracer trace.Tracer
	logger *zap.Logger
}

// ItemResult is the outcome of completing one record. Either half may fail
// independently.
type ItemResult struct {
	Ref     catalog.Ref
	Detail  pool.Result[catalog.Detail]
	Reviews pool.Result[[]catalog.Review]
	// ReviewsSkipped is set when the record was selected only for its detail.
	ReviewsSkipped bool
}

// workItem is a selected record and the halves it still needs.
type workItem struct {
	ref         catalog.Ref
	wantReviews bool
}

// New validates deps and returns a Coordinator.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Coordinator, error) {
	switch {
	case deps.Listings == nil:
		return nil, errors.New("pipeline: listing source is required")
	case deps.Details == nil:
		return nil, errors.New("pipeline: detail source is required")
	case deps.Reviews == nil:
		return nil, errors.New("pipeline: review source is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.IDs == nil:
		return nil, errors.New("pipeline: id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("pipeline: clock is required")
	}
	if cfg.ItemWorkers <= 0 {
		cfg.ItemWorkers = 1
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("pipeline: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		tracer: telemetry.Tracer(),
		logger: logger,
	}, nil
}

// Run performs one full pass. Per-item failures are tolerated and left for
// the next run; a store failure aborts the run, leaving earlier chunks
// committed. The returned summary reflects the work done up to that point.
func (c *Coordinator) Run(ctx context.Context) (catalog.RunSummary, error) {
	runID, err := c.deps.IDs.NewID()
	if err != nil {
		return catalog.RunSummary{}, fmt.Errorf("failed to generate run id: %w", err)
	}
	summary := catalog.RunSummary{RunID: runID, StartedAt: c.deps.Clock.Now()}
	logger := c.logger.With(zap.String("run_id", runID))

	ctx, span := c.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	if err := c.run(ctx, logger, &summary); err != nil {
		summary.FinishedAt = c.deps.Clock.Now()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveRun(metrics.StatusFailed, summary.Discovered)
		logger.Error("run aborted", zap.Error(err), zap.Any("summary", summary))
		return summary, err
	}
	summary.FinishedAt = c.deps.Clock.Now()
	metrics.ObserveRun(metrics.StatusOK, summary.Discovered)
	logger.Info("run finished",
		zap.Int("discovered", summary.Discovered),
		zap.Int("unparsed", summary.Unparsed),
		zap.Int("detail_parsed", summary.DetailParsed),
		zap.Int("reviews_parsed", summary.ReviewsParsed),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	c.publish(ctx, logger, summary)
	return summary, nil
}

func (c *Coordinator) run(ctx context.Context, logger *zap.Logger, summary *catalog.RunSummary) error {
	stubs := c.deps.Listings.Crawl(ctx)
	summary.Discovered = len(stubs)
	logger.Info("category crawled", zap.Int("products", len(stubs)))
	if err := c.deps.Store.UpsertMany(ctx, stubs); err != nil {
		return fmt.Errorf("failed to upsert stubs: %w", err)
	}
	metrics.AddUpserted(len(stubs))

	items, err := c.selectWork(ctx, summary)
	if err != nil {
		return err
	}
	chunks := pool.Chunk(items, c.cfg.ChunkSize)
	summary.Chunks = len(chunks)
	logger.Info("work selected",
		zap.Int("unparsed", summary.Unparsed),
		zap.Int("missing_details", summary.MissingDetails),
		zap.Int("chunks", len(chunks)),
	)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before chunk %d: %w", i+1, err)
		}
		if err := c.processChunk(ctx, chunk, summary); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		logger.Info(fmt.Sprintf("%d/%d chunk", i+1, len(chunks)), zap.Int("items", len(chunk)))
	}
	return nil
}

// selectWork lists records without reviews and, when enabled, records whose
// detail is still missing. A record is selected once.
func (c *Coordinator) selectWork(ctx context.Context, summary *catalog.RunSummary) ([]workItem, error) {
	unparsed, err := c.deps.Store.FindUnparsed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find unparsed products: %w", err)
	}
	summary.Unparsed = len(unparsed)
	items := make([]workItem, 0, len(unparsed))
	seen := make(map[int64]struct{}, len(unparsed))
	for _, ref := range unparsed {
		seen[ref.ID] = struct{}{}
		items = append(items, workItem{ref: ref, wantReviews: true})
	}
	if !c.cfg.ReselectMissingDetail {
		return items, nil
	}

	missing, err := c.deps.Store.FindMissingDetail(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find products missing detail: %w", err)
	}
	for _, ref := range missing {
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}
		items = append(items, workItem{ref: ref})
		summary.MissingDetails++
	}
	return items, nil
}

func (c *Coordinator) processChunk(ctx context.Context, chunk []workItem, summary *catalog.RunSummary) error {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "pipeline.chunk", trace.WithAttributes(attribute.Int("chunk.items", len(chunk))))
	defer span.End()

	outcomes := pool.Map(ctx, c.cfg.ItemWorkers, chunk, c.processItem)

	details := make([]catalog.Patch, 0, len(chunk))
	reviews := make([]catalog.Patch, 0, len(chunk))
	for i, outcome := range outcomes {
		res := outcome.Value
		if !outcome.OK() {
			// The item panicked; neither half is trusted.
			c.logger.Error("item failed", zap.Int64("product_id", chunk[i].ref.ID), zap.Error(outcome.Err))
			res = ItemResult{
				Ref:            chunk[i].ref,
				Detail:         pool.Result[catalog.Detail]{Err: outcome.Err},
				Reviews:        pool.Result[[]catalog.Review]{Err: outcome.Err},
				ReviewsSkipped: !chunk[i].wantReviews,
			}
		}

		if res.Detail.OK() {
			detail := res.Detail.Value
			details = append(details, catalog.Patch{ID: res.Ref.ID, Detail: &detail})
			summary.DetailParsed++
			metrics.ObserveItem("detail", metrics.StatusOK)
		} else {
			summary.DetailFailed++
			metrics.ObserveItem("detail", metrics.StatusFailed)
		}

		if res.ReviewsSkipped {
			continue
		}
		if res.Reviews.OK() {
			reviews = append(reviews, catalog.Patch{ID: res.Ref.ID, Reviews: &catalog.ReviewSet{Items: res.Reviews.Value}})
			summary.ReviewsParsed++
			summary.ReviewsTotal += len(res.Reviews.Value)
			metrics.ObserveItem("reviews", metrics.StatusOK)
		} else {
			summary.ReviewsFailed++
			metrics.ObserveItem("reviews", metrics.StatusFailed)
		}
	}

	if err := c.deps.Store.UpsertMany(ctx, details); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail upsert failed")
		return fmt.Errorf("failed to upsert details: %w", err)
	}
	metrics.AddUpserted(len(details))
	if err := c.deps.Store.UpsertMany(ctx, reviews); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review upsert failed")
		return fmt.Errorf("failed to upsert reviews: %w", err)
	}
	metrics.AddUpserted(len(reviews))
	metrics.ObserveChunk(time.Since(start))
	return nil
}

// processItem fetches the detail page, then the reviews. A failure in one
// half does not stop the other.
func (c *Coordinator) processItem(ctx context.Context, item workItem) (ItemResult, error) {
	res := ItemResult{Ref: item.ref, ReviewsSkipped: !item.wantReviews}
	logger := c.logger.With(zap.Int64("product_id", item.ref.ID))

	detail, err := c.deps.Details.Fetch(ctx, item.ref)
	res.Detail = pool.Result[catalog.Detail]{Value: detail, Err: err}
	if err != nil {
		logger.Warn("detail not parsed", zap.String("url", item.ref.URL), zap.Error(err))
	}
	if !item.wantReviews {
		return res, nil
	}

	reviews, err := c.deps.Reviews.Crawl(ctx, item.ref.ID)
	res.Reviews = pool.Result[[]catalog.Review]{Value: reviews, Err: err}
	if err != nil {
		logger.Warn("reviews not parsed", zap.Error(err))
	} else {
		logger.Debug("item done", zap.Int("reviews", len(reviews)))
	}
	return res, nil
}

func (c *Coordinator) publish(ctx context.Context, logger *zap.Logger, summary catalog.RunSummary) {
	if c.deps.Publisher == nil || c.cfg.Topic == "" {
		return
	}
	msgID, err := c.deps.Publisher.Publish(ctx, c.cfg.Topic, summary)
	if err != nil {
		logger.Warn("failed to publish run summary", zap.String("topic", c.cfg.Topic), zap.Error(err))
		return
	}
	logger.Info("run summary published", zap.String("topic", c.cfg.Topic), zap.String("message_id", msgID))
}
