package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogRepository exposes the two read queries candidate retrieval is built
// on. Both are idempotent; ordering is part of the contract.
type CatalogRepository interface {
	// SearchByName returns up to limit candidates by trigram similarity
	// against the title, descending, with NameSimilarity populated.
	SearchByName(ctx context.Context, title string, limit int) ([]CatalogCandidate, error)

	// SearchByActives returns up to limit candidates whose active-ingredient
	// set intersects actives, ordered by efficacy descending (nulls last).
	SearchByActives(ctx context.Context, title string, actives []string, limit int) ([]CatalogCandidate, error)
}

// EnrichmentRepository is the system of record for match results.
type EnrichmentRepository interface {
	// Upsert inserts or refreshes the record keyed on
	// (ExternalProductID, CatalogHash). On conflict every match and price
	// field is overwritten; status is never touched.
	Upsert(ctx context.Context, record *EnrichmentRecord) error

	// UpdateStatus applies a lifecycle transition to one record. It is the
	// only status mutator and rejects transitions outside the allowed table.
	UpdateStatus(ctx context.Context, id int64, next Status) error

	// BulkUpdateStatus applies the same transition to a set of records and
	// returns how many rows changed.
	BulkUpdateStatus(ctx context.Context, ids []int64, next Status) (int, error)

	List(ctx context.Context, filter EnrichmentFilter) ([]EnrichmentRecord, error)
	Stats(ctx context.Context) (*EnrichmentStats, error)

	// ListForAdjustment selects rows for a bulk price run: the explicit id
	// set when given (rows must carry both a competitor average and a
	// merchant price), otherwise all approved/applied rows with competitor
	// data and an overpriced position.
	ListForAdjustment(ctx context.Context, ids []int64) ([]EnrichmentRecord, error)

	ListByStatus(ctx context.Context, status Status) ([]EnrichmentRecord, error)

	// SavePriceApplied persists a confirmed price write: the new merchant
	// price and a fair position.
	SavePriceApplied(ctx context.Context, id int64, newPrice float64) error
}

// BenchmarkRepository recomputes and serves per-segment catalog aggregates.
type BenchmarkRepository interface {
	// ListSegments returns one row per (product type, price tier) group with
	// at least two catalog products, carrying average efficacy and count.
	ListSegments(ctx context.Context) ([]MarketBenchmark, error)

	// TopActives returns the n most frequent active ingredients in a segment.
	TopActives(ctx context.Context, productType string, tier PriceTier, n int) ([]string, error)

	// TopSuitability returns the n most frequent suitability tags in a segment.
	TopSuitability(ctx context.Context, productType string, tier PriceTier, n int) ([]string, error)

	Upsert(ctx context.Context, benchmark *MarketBenchmark) error
	List(ctx context.Context) ([]MarketBenchmark, error)
}

// Variant is one sellable variant of a platform product.
type Variant struct {
	ID             int64    `json:"id"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compareAtPrice,omitempty"`
}

// Metafield is one platform metafield entry.
type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// PlatformClient is the external commerce platform collaborator. The engine
// treats it as a black box: reads and writes either complete or fail within
// the client's own timeout, and per-call failures carry the HTTP status where
// one exists.
type PlatformClient interface {
	// Configured reports whether credentials are present. Callers fail fast
	// before any row processing when they are not.
	Configured() bool

	// FetchProducts pulls the full live product list.
	FetchProducts(ctx context.Context) ([]InputProduct, error)

	// FetchVariants returns the variant list of one product.
	FetchVariants(ctx context.Context, productID int64) ([]Variant, error)

	// UpdateVariantPrices writes newPrice to every listed variant of the
	// product in a single call, recording compareAt as the compare-at price.
	UpdateVariantPrices(ctx context.Context, productID int64, variantIDs []int64, newPrice, compareAt float64) error

	// WriteMetafields writes the metafield set and tag list to the product.
	WriteMetafields(ctx context.Context, productID int64, metafields []Metafield, tags []string) error
}
