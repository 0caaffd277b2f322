// Package report exports the stored catalog as product and review CSV files.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

const contentType = "text/csv; charset=utf-8"

// Column headers of the two exports.
var (
	ProductHeader = []string{
		"productId", "productUrl", "name", "discount",
		"discountedPrice", "originalPrice", "rating", "productInfo",
	}
	ReviewHeader = []string{"productId", "rating", "timestamp", "text", "size", "color"}
)

// Config names the exported objects.
type Config struct {
	ProductsFile string
	ReviewsFile  string
}

// Result lists what an export wrote.
type Result struct {
	Products int
	Reviews  int
	URIs     []string
}

// Exporter renders the catalog and writes it to every sink.
type Exporter struct {
	cfg    Config
	store  catalog.Store
	sinks  []catalog.BlobStore
	logger *zap.Logger
}

// NewExporter constructs an Exporter. At least one sink is required.
func NewExporter(cfg Config, store catalog.Store, logger *zap.Logger, sinks ...catalog.BlobStore) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("at least one report sink is required")
	}
	if cfg.ProductsFile == "" {
		cfg.ProductsFile = "products.csv"
	}
	if cfg.ReviewsFile == "" {
		cfg.ReviewsFile = "reviews.csv"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{cfg: cfg, store: store, sinks: sinks, logger: logger}, nil
}

// Export reads every product and writes both CSVs.
func (e *Exporter) Export(ctx context.Context) (Result, error) {
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list products: %w", err)
	}

	var res Result
	var productsCSV, reviewsCSV bytes.Buffer
	if res.Products, err = WriteProducts(&productsCSV, products); err != nil {
		return Result{}, err
	}
	if res.Reviews, err = WriteReviews(&reviewsCSV, products); err != nil {
		return Result{}, err
	}

	for _, sink := range e.sinks {
		for name, body := range map[string][]byte{
			e.cfg.ProductsFile: productsCSV.Bytes(),
			e.cfg.ReviewsFile:  reviewsCSV.Bytes(),
		} {
			uri, err := sink.PutObject(ctx, name, contentType, bytes.NewReader(body))
			if err != nil {
				return res, fmt.Errorf("write %s: %w", name, err)
			}
			res.URIs = append(res.URIs, uri)
		}
	}
	e.logger.Info("report exported",
		zap.Int("products", res.Products),
		zap.Int("reviews", res.Reviews),
		zap.Strings("uris", res.URIs),
	)
	return res, nil
}

// WriteProducts writes one row per product whose detail page was parsed and
// returns the row count.
func WriteProducts(w io.Writer, products []catalog.Product) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ProductHeader); err != nil {
		return 0, fmt.Errorf("write product header: %w", err)
	}
	rows := 0
	for _, p := range products {
		if !p.DetailParsed {
			continue
		}
		rating := ""
		if p.Rating.Valid {
			rating = p.Rating.Decimal.String()
		}
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.URL,
			p.Name,
			strconv.Itoa(p.Discount),
			p.DiscountPrice.StringFixed(2),
			p.OriginalPrice.StringFixed(2),
			rating,
			deref(p.ProductInfo),
		}
		if err := cw.Write(record); err != nil {
			return rows, fmt.Errorf("write product %d: %w", p.ID, err)
		}
		rows++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("flush products: %w", err)
	}
	return rows, nil
}

// WriteReviews writes one row per review and returns the row count.
func WriteReviews(w io.Writer, products []catalog.Product) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReviewHeader); err != nil {
		return 0, fmt.Errorf("write review header: %w", err)
	}
	rows := 0
	for _, p := range products {
		for _, r := range p.Reviews {
			record := []string{
				strconv.FormatInt(p.ID, 10),
				strconv.Itoa(r.Rating),
				strconv.FormatInt(r.Timestamp, 10),
				r.Text,
				deref(r.Size),
				deref(r.Color),
			}
			if err := cw.Write(record); err != nil {
				return rows, fmt.Errorf("write review of product %d: %w", p.ID, err)
			}
			rows++
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("flush reviews: %w", err)
	}
	return rows, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
