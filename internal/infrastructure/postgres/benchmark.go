package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pricelens/backend/internal/domain"
)

// minSegmentSize is the smallest catalog segment worth benchmarking.
const minSegmentSize = 2

// BenchmarkRepository recomputes and serves market benchmarks in Postgres.
type BenchmarkRepository struct {
	db *sql.DB
}

// NewBenchmarkRepository creates a benchmark repository.
func NewBenchmarkRepository(db *sql.DB) *BenchmarkRepository {
	return &BenchmarkRepository{db: db}
}

// ListSegments groups the catalog by (product type, price tier) and returns
// one row per segment with at least two products, carrying average efficacy
// and product count.
func (r *BenchmarkRepository) ListSegments(ctx context.Context) ([]domain.MarketBenchmark, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT category, price_tier, COALESCE(AVG(efficacy_score), 0), COUNT(*)
		FROM catalog_products
		WHERE category IS NOT NULL AND category <> ''
		  AND price_tier IS NOT NULL AND price_tier <> ''
		GROUP BY category, price_tier
		HAVING COUNT(*) >= %d
		ORDER BY category, price_tier`, minSegmentSize))
	if err != nil {
		return nil, fmt.Errorf("listing catalog segments: %w", err)
	}
	defer rows.Close()

	var segments []domain.MarketBenchmark
	for rows.Next() {
		var (
			segment domain.MarketBenchmark
			tier    string
		)
		if err := rows.Scan(&segment.ProductType, &tier, &segment.AvgEfficacy, &segment.ProductCount); err != nil {
			return nil, fmt.Errorf("scanning segment row: %w", err)
		}
		segment.PriceTier = domain.PriceTier(tier)
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

// TopActives returns the n most frequent active ingredients in a segment.
func (r *BenchmarkRepository) TopActives(ctx context.Context, productType string, tier domain.PriceTier, n int) ([]string, error) {
	return r.topUnnested(ctx, "active_ingredients", productType, tier, n)
}

// TopSuitability returns the n most frequent suitability tags in a segment.
func (r *BenchmarkRepository) TopSuitability(ctx context.Context, productType string, tier domain.PriceTier, n int) ([]string, error) {
	return r.topUnnested(ctx, "suitability", productType, tier, n)
}

func (r *BenchmarkRepository) topUnnested(ctx context.Context, column, productType string, tier domain.PriceTier, n int) ([]string, error) {
	// column comes from a fixed internal list, never caller input.
	query := fmt.Sprintf(`
		SELECT entry, COUNT(*) AS freq
		FROM catalog_products, unnest(%s) AS entry
		WHERE category = $1 AND price_tier = $2
		GROUP BY entry
		ORDER BY freq DESC, entry
		LIMIT $3`, column)

	rows, err := r.db.QueryContext(ctx, query, productType, string(tier), n)
	if err != nil {
		return nil, fmt.Errorf("querying top %s: %w", column, err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var entry string
		var freq int
		if err := rows.Scan(&entry, &freq); err != nil {
			return nil, fmt.Errorf("scanning top %s row: %w", column, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Upsert writes one benchmark row keyed uniquely on (product type, price tier).
func (r *BenchmarkRepository) Upsert(ctx context.Context, benchmark *domain.MarketBenchmark) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO market_benchmarks (
			product_type, price_tier, avg_efficacy, product_count,
			top_actives, top_suitability, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_type, price_tier) DO UPDATE SET
			avg_efficacy = EXCLUDED.avg_efficacy,
			product_count = EXCLUDED.product_count,
			top_actives = EXCLUDED.top_actives,
			top_suitability = EXCLUDED.top_suitability,
			computed_at = EXCLUDED.computed_at`,
		benchmark.ProductType, string(benchmark.PriceTier), benchmark.AvgEfficacy,
		benchmark.ProductCount, pq.Array(benchmark.TopActives),
		pq.Array(benchmark.TopSuitability), benchmark.ComputedAt)
	if err != nil {
		return fmt.Errorf("upserting benchmark: %w", err)
	}
	return nil
}

// List returns every persisted benchmark row.
func (r *BenchmarkRepository) List(ctx context.Context) ([]domain.MarketBenchmark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_type, price_tier, avg_efficacy, product_count,
		       top_actives, top_suitability, computed_at
		FROM market_benchmarks
		ORDER BY product_type, price_tier`)
	if err != nil {
		return nil, fmt.Errorf("listing benchmarks: %w", err)
	}
	defer rows.Close()

	var benchmarks []domain.MarketBenchmark
	for rows.Next() {
		var (
			b       domain.MarketBenchmark
			tier    string
			actives pq.StringArray
			suits   pq.StringArray
		)
		if err := rows.Scan(&b.ProductType, &tier, &b.AvgEfficacy, &b.ProductCount,
			&actives, &suits, &b.ComputedAt); err != nil {
			return nil, fmt.Errorf("scanning benchmark row: %w", err)
		}
		b.PriceTier = domain.PriceTier(tier)
		b.TopActives = actives
		b.TopSuitability = suits
		benchmarks = append(benchmarks, b)
	}
	return benchmarks, rows.Err()
}
