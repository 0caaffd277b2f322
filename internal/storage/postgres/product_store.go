// Package postgres provides a Postgres-backed catalog.Store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for product rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// ProductStore keeps one row per product. A NULL reviews column means the
// reviews were never written.
type ProductStore struct {
	pool  pool
	table string
}

// New connects to Postgres and creates the products table if it is missing.
func New(ctx context.Context, cfg Config) (*ProductStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &ProductStore{pool: p, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*ProductStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ProductStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the products table.
func (s *ProductStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	product_id       BIGINT PRIMARY KEY,
	product_url      TEXT,
	name             TEXT,
	original_price   NUMERIC,
	discounted_price NUMERIC,
	discount         INTEGER,
	rating           NUMERIC,
	product_info     TEXT,
	detail_parsed    BOOLEAN NOT NULL DEFAULT FALSE,
	reviews          JSONB
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// UpsertMany applies the patches in one transaction.
func (s *ProductStore) UpsertMany(ctx context.Context, patches []catalog.Patch) error {
	type statement struct {
		sql  string
		args []any
	}
	stmts := make([]statement, 0, len(patches))
	for _, patch := range patches {
		sql, args, err := s.upsertStatement(patch)
		if err != nil {
			return fmt.Errorf("product %d: %w", patch.ID, err)
		}
		if sql != "" {
			stmts = append(stmts, statement{sql: sql, args: args})
		}
	}
	if len(stmts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	for _, st := range stmts {
		if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("upsert product: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *ProductStore) upsertStatement(patch catalog.Patch) (string, []any, error) {
	cols := []string{"product_id"}
	vals := []string{"$1"}
	args := []any{patch.ID}
	add := func(col, cast string, v any) {
		args = append(args, v)
		cols = append(cols, col)
		vals = append(vals, fmt.Sprintf("$%d%s", len(args), cast))
	}
	if l := patch.Listing; l != nil {
		add("product_url", "", l.URL)
		add("name", "", l.Name)
		add("original_price", "::numeric", l.OriginalPrice.String())
		add("discounted_price", "::numeric", l.DiscountPrice.String())
		add("discount", "", l.Discount)
	}
	if d := patch.Detail; d != nil {
		var rating *string
		if d.Rating.Valid {
			v := d.Rating.Decimal.String()
			rating = &v
		}
		add("rating", "::numeric", rating)
		add("product_info", "", d.ProductInfo)
		add("detail_parsed", "", true)
	}
	if r := patch.Reviews; r != nil {
		items := r.Items
		if items == nil {
			items = []catalog.Review{}
		}
		payload, err := json.Marshal(items)
		if err != nil {
			return "", nil, fmt.Errorf("marshal reviews: %w", err)
		}
		add("reviews", "::jsonb", payload)
	}
	if len(cols) == 1 {
		return "", nil, nil
	}

	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (product_id) DO UPDATE SET %s",
		s.table, strings.Join(cols, ", "), strings.Join(vals, ", "), strings.Join(sets, ", "))
	return query, args, nil
}

// FindUnparsed returns products whose reviews column is NULL.
func (s *ProductStore) FindUnparsed(ctx context.Context) ([]catalog.Ref, error) {
	return s.findRefs(ctx, "reviews IS NULL")
}

// FindMissingDetail returns products with reviews whose detail page never parsed.
func (s *ProductStore) FindMissingDetail(ctx context.Context) ([]catalog.Ref, error) {
	return s.findRefs(ctx, "reviews IS NOT NULL AND NOT detail_parsed")
}

func (s *ProductStore) findRefs(ctx context.Context, where string) ([]catalog.Ref, error) {
	query := fmt.Sprintf(
		"SELECT product_id, COALESCE(product_url, '') FROM %s WHERE %s ORDER BY product_id",
		s.table, where)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select refs: %w", err)
	}
	defer rows.Close()

	refs := make([]catalog.Ref, 0)
	for rows.Next() {
		var ref catalog.Ref
		if err := rows.Scan(&ref.ID, &ref.URL); err != nil {
			return nil, fmt.Errorf("scan ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refs: %w", err)
	}
	return refs, nil
}

// ListProducts returns every product ordered by ID.
func (s *ProductStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	query := fmt.Sprintf(`
SELECT product_id,
	COALESCE(product_url, ''),
	COALESCE(name, ''),
	COALESCE(original_price, 0)::text,
	COALESCE(discounted_price, 0)::text,
	COALESCE(discount, 0),
	rating::text,
	product_info,
	detail_parsed,
	reviews
FROM %s ORDER BY product_id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	products := make([]catalog.Product, 0)
	for rows.Next() {
		var (
			p                    catalog.Product
			origPrice, discPrice string
			rating               *string
			reviews              []byte
		)
		if err := rows.Scan(&p.ID, &p.URL, &p.Name, &origPrice, &discPrice, &p.Discount,
			&rating, &p.ProductInfo, &p.DetailParsed, &reviews); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.OriginalPrice, err = decimal.NewFromString(origPrice); err != nil {
			return nil, fmt.Errorf("product %d original_price: %w", p.ID, err)
		}
		if p.DiscountPrice, err = decimal.NewFromString(discPrice); err != nil {
			return nil, fmt.Errorf("product %d discounted_price: %w", p.ID, err)
		}
		if rating != nil {
			r, err := decimal.NewFromString(*rating)
			if err != nil {
				return nil, fmt.Errorf("product %d rating: %w", p.ID, err)
			}
			p.Rating = decimal.NewNullDecimal(r)
		}
		if reviews != nil {
			if err := json.Unmarshal(reviews, &p.Reviews); err != nil {
				return nil, fmt.Errorf("product %d reviews: %w", p.ID, err)
			}
			p.ReviewsParsed = true
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Close releases the underlying pool resources.
func (s *ProductStore) Close(context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
