package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
)

// benchmarkTopN is how many top actives/suitability tags each segment keeps.
const benchmarkTopN = 5

// benchmarkCacheKey holds the latest recompute output for read endpoints.
const benchmarkCacheKey = "benchmarks:latest"

// defaultBenchmarkTTL bounds how stale served benchmarks may be.
const defaultBenchmarkTTL = 1 * time.Hour

// BenchmarkService recomputes per-segment catalog statistics wholesale and
// serves them with a read-through cache.
type BenchmarkService struct {
	benchmarks domain.BenchmarkRepository
	cache      domain.CacheRepository
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// NewBenchmarkService creates a benchmark service.
func NewBenchmarkService(
	benchmarks domain.BenchmarkRepository,
	cache domain.CacheRepository,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *BenchmarkService {
	if cacheTTL <= 0 {
		cacheTTL = defaultBenchmarkTTL
	}
	return &BenchmarkService{
		benchmarks: benchmarks,
		cache:      cache,
		logger:     logger,
		cacheTTL:   cacheTTL,
	}
}

// Recompute rebuilds one MarketBenchmark row per (product type, price tier)
// segment with at least two catalog products and returns the upserted rows.
// A failing segment is skipped and logged; the rest still recompute.
func (s *BenchmarkService) Recompute(ctx context.Context) ([]domain.MarketBenchmark, error) {
	segments, err := s.benchmarks.ListSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing catalog segments: %w", err)
	}

	upserted := make([]domain.MarketBenchmark, 0, len(segments))
	for i := range segments {
		segment := segments[i]

		actives, err := s.benchmarks.TopActives(ctx, segment.ProductType, segment.PriceTier, benchmarkTopN)
		if err != nil {
			s.logSegmentError("top actives", &segment, err)
			continue
		}
		suitability, err := s.benchmarks.TopSuitability(ctx, segment.ProductType, segment.PriceTier, benchmarkTopN)
		if err != nil {
			s.logSegmentError("top suitability", &segment, err)
			continue
		}

		segment.TopActives = actives
		segment.TopSuitability = suitability
		segment.ComputedAt = time.Now().UTC()

		if err := s.benchmarks.Upsert(ctx, &segment); err != nil {
			s.logSegmentError("upsert", &segment, err)
			continue
		}
		upserted = append(upserted, segment)
	}

	// Refresh the read cache with the new rows.
	if err := s.cache.Set(ctx, benchmarkCacheKey, upserted, s.cacheTTL); err != nil {
		s.logger.Warn("benchmark cache refresh failed", zap.Error(err))
	}

	s.logger.Info("benchmarks recomputed",
		zap.Int("segments", len(segments)), zap.Int("upserted", len(upserted)))
	return upserted, nil
}

// List serves the persisted benchmarks, preferring the cached copy.
func (s *BenchmarkService) List(ctx context.Context) ([]domain.MarketBenchmark, error) {
	if cached, err := s.cache.Get(ctx, benchmarkCacheKey); err == nil {
		if rows, ok := cached.([]domain.MarketBenchmark); ok {
			return rows, nil
		}
	}

	rows, err := s.benchmarks.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, benchmarkCacheKey, rows, s.cacheTTL); err != nil {
		s.logger.Warn("benchmark cache set failed", zap.Error(err))
	}
	return rows, nil
}

func (s *BenchmarkService) logSegmentError(op string, segment *domain.MarketBenchmark, err error) {
	s.logger.Error("benchmark segment "+op+" failed",
		zap.String("product_type", segment.ProductType),
		zap.String("price_tier", string(segment.PriceTier)),
		zap.Error(err))
}
