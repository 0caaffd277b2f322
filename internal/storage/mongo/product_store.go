// Package mongo stores products as documents with nested reviews.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Config controls the Mongo connection.
type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type collection interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// ProductStore implements catalog.Store on a single collection keyed by product ID.
type ProductStore struct {
	client *mongo.Client
	coll   collection
}

// New connects to Mongo and pings the primary.
func New(ctx context.Context, cfg Config) (*ProductStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("storage.mongo.uri is required")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("storage.mongo database and collection are required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &ProductStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// NewWithCollection constructs a store around an existing collection (primarily for testing).
func NewWithCollection(coll collection) (*ProductStore, error) {
	if coll == nil {
		return nil, fmt.Errorf("collection is required")
	}
	return &ProductStore{coll: coll}, nil
}

// UpsertMany issues one unordered bulk write of $set upserts.
func (s *ProductStore) UpsertMany(ctx context.Context, patches []catalog.Patch) error {
	models := make([]mongo.WriteModel, 0, len(patches))
	for _, patch := range patches {
		set, err := setDocument(patch)
		if err != nil {
			return fmt.Errorf("product %d: %w", patch.ID, err)
		}
		if len(set) == 0 {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: patch.ID}}).
			SetUpdate(bson.D{{Key: "$set", Value: set}}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk upsert %d products: %w", len(models), err)
	}
	return nil
}

// FindUnparsed returns products without a reviews field.
func (s *ProductStore) FindUnparsed(ctx context.Context) ([]catalog.Ref, error) {
	return s.findRefs(ctx, bson.D{{Key: "reviews", Value: bson.D{{Key: "$exists", Value: false}}}})
}

// FindMissingDetail returns products with reviews whose detail page never parsed.
func (s *ProductStore) FindMissingDetail(ctx context.Context) ([]catalog.Ref, error) {
	return s.findRefs(ctx, bson.D{
		{Key: "reviews", Value: bson.D{{Key: "$exists", Value: true}}},
		{Key: "detailParsed", Value: bson.D{{Key: "$ne", Value: true}}},
	})
}

// ListProducts returns every product ordered by ID.
func (s *ProductStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]catalog.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.product()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", doc.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Close disconnects the client.
func (s *ProductStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func (s *ProductStore) findRefs(ctx context.Context, filter bson.D) ([]catalog.Ref, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "productUrl", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find refs: %w", err)
	}
	var docs []refDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode refs: %w", err)
	}
	refs := make([]catalog.Ref, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, catalog.Ref{ID: d.ID, URL: d.URL})
	}
	return refs, nil
}

func setDocument(patch catalog.Patch) (bson.D, error) {
	var set bson.D
	if l := patch.Listing; l != nil {
		orig, err := toDecimal128(l.OriginalPrice)
		if err != nil {
			return nil, fmt.Errorf("originalPrice: %w", err)
		}
		disc, err := toDecimal128(l.DiscountPrice)
		if err != nil {
			return nil, fmt.Errorf("discountedPrice: %w", err)
		}
		set = append(set,
			bson.E{Key: "productUrl", Value: l.URL},
			bson.E{Key: "name", Value: l.Name},
			bson.E{Key: "originalPrice", Value: orig},
			bson.E{Key: "discountedPrice", Value: disc},
			bson.E{Key: "discount", Value: l.Discount},
		)
	}
	if d := patch.Detail; d != nil {
		var rating any
		if d.Rating.Valid {
			v, err := toDecimal128(d.Rating.Decimal)
			if err != nil {
				return nil, fmt.Errorf("rating: %w", err)
			}
			rating = v
		}
		set = append(set,
			bson.E{Key: "rating", Value: rating},
			bson.E{Key: "productInfo", Value: d.ProductInfo},
			bson.E{Key: "detailParsed", Value: true},
		)
	}
	if r := patch.Reviews; r != nil {
		docs := make([]reviewDoc, 0, len(r.Items))
		for _, item := range r.Items {
			docs = append(docs, reviewDoc(item))
		}
		set = append(set, bson.E{Key: "reviews", Value: docs})
	}
	return set, nil
}

type refDoc struct {
	ID  int64  `bson:"_id"`
	URL string `bson:"productUrl"`
}

type reviewDoc struct {
	Rating    int     `bson:"rating"`
	Timestamp int64   `bson:"timestamp"`
	Text      string  `bson:"text"`
	Size      *string `bson:"size"`
	Color     *string `bson:"color"`
}

type productDoc struct {
	ID            int64                 `bson:"_id"`
	URL           string                `bson:"productUrl"`
	Name          string                `bson:"name"`
	OriginalPrice primitive.Decimal128  `bson:"originalPrice"`
	DiscountPrice primitive.Decimal128  `bson:"discountedPrice"`
	Discount      int                   `bson:"discount"`
	Rating        *primitive.Decimal128 `bson:"rating"`
	ProductInfo   *string               `bson:"productInfo"`
	DetailParsed  bool                  `bson:"detailParsed"`
	Reviews       *[]reviewDoc          `bson:"reviews"`
}

func (d productDoc) product() (catalog.Product, error) {
	p := catalog.Product{
		ID:           d.ID,
		URL:          d.URL,
		Name:         d.Name,
		Discount:     d.Discount,
		ProductInfo:  d.ProductInfo,
		DetailParsed: d.DetailParsed,
	}
	var err error
	if p.OriginalPrice, err = fromDecimal128(d.OriginalPrice); err != nil {
		return p, fmt.Errorf("originalPrice: %w", err)
	}
	if p.DiscountPrice, err = fromDecimal128(d.DiscountPrice); err != nil {
		return p, fmt.Errorf("discountedPrice: %w", err)
	}
	if d.Rating != nil {
		rating, err := fromDecimal128(*d.Rating)
		if err != nil {
			return p, fmt.Errorf("rating: %w", err)
		}
		p.Rating = decimal.NewNullDecimal(rating)
	}
	if d.Reviews != nil {
		p.ReviewsParsed = true
		p.Reviews = make([]catalog.Review, 0, len(*d.Reviews))
		for _, r := range *d.Reviews {
			p.Reviews = append(p.Reviews, catalog.Review(r))
		}
	}
	return p, nil
}

var errBadDecimal = errors.New("not a finite decimal")

// toDecimal128 keeps the scraped scale, so 40.00 is stored as 40.00 and not 40.
func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	s := d.String()
	if exp := d.Exponent(); exp < 0 {
		s = d.StringFixed(-exp)
	}
	v, err := primitive.ParseDecimal128(s)
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("%w: %v", errBadDecimal, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	if v.IsNaN() || v.IsInf() != 0 {
		return decimal.Zero, errBadDecimal
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", errBadDecimal, err)
	}
	return d, nil
}
