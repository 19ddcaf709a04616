package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pricelens/backend/internal/domain"
)

// PriceStrategy selects how the target price is derived from the competitor
// average.
type PriceStrategy string

const (
	StrategyMatchAvg   PriceStrategy = "match_avg"   // target = competitor average
	StrategyUndercut5  PriceStrategy = "undercut_5"  // target = competitor average * 0.95
	StrategyUndercut10 PriceStrategy = "undercut_10" // target = competitor average * 0.90
)

// Row-level adjustment statuses
const (
	RowAdjusted   = "adjusted"
	RowSkipped    = "skipped_minimal_change"
	RowNoVariants = "no_variants"
)

// minPriceChange is the smallest absolute price delta worth writing.
const minPriceChange = 0.50

// adjustBatchSize groups rows for progress reporting. Batching is a
// reporting convenience, not a correctness boundary: rows are still handled
// independently and a failure never aborts the batch.
const adjustBatchSize = 5

// defaultWriteInterval paces external writes to respect the platform's rate
// limits. The orchestrator is deliberately sequential.
const defaultWriteInterval = 600 * time.Millisecond

// PriceAdjustConfig holds configuration for the bulk price adjuster.
type PriceAdjustConfig struct {
	WriteInterval time.Duration
}

// PriceAdjuster drives the controlled bulk price-adjustment workflow: select
// rows, compute target prices per strategy, write to the platform with pacing
// and per-row error isolation, and aggregate outcomes.
type PriceAdjuster struct {
	enrichments domain.EnrichmentRepository
	platform    domain.PlatformClient
	logger      *zap.Logger
	pacer       *rate.Limiter
}

// NewPriceAdjuster creates a bulk price adjuster.
func NewPriceAdjuster(
	enrichments domain.EnrichmentRepository,
	platform domain.PlatformClient,
	logger *zap.Logger,
	config PriceAdjustConfig,
) *PriceAdjuster {
	interval := config.WriteInterval
	if interval <= 0 {
		interval = defaultWriteInterval
	}

	return &PriceAdjuster{
		enrichments: enrichments,
		platform:    platform,
		logger:      logger,
		pacer:       rate.NewLimiter(rate.Every(interval), 1),
	}
}

// AdjustmentRow is the per-row outcome of a bulk run. Status is one of
// adjusted, skipped_minimal_change, no_variants, or error_<http status>.
type AdjustmentRow struct {
	RecordID          int64   `json:"recordId"`
	ExternalProductID int64   `json:"externalProductId"`
	Status            string  `json:"status"`
	OldPrice          float64 `json:"oldPrice"`
	NewPrice          float64 `json:"newPrice,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// AdjustmentSummary aggregates a bulk run. Invariant:
// Total == Adjusted + Failed + Skipped.
type AdjustmentSummary struct {
	Total    int             `json:"total"`
	Adjusted int             `json:"adjusted"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
	Results  []AdjustmentRow `json:"results"`
	Errors   []string        `json:"errors"`
}

// AdjustPrices runs a bulk price adjustment. When ids is non-empty the run
// operates on exactly those rows; otherwise on every approved/applied row
// with competitor data and an overpriced position. Per-row failures are
// isolated and aggregated, never propagated; only pre-flight configuration
// failures abort the run.
func (p *PriceAdjuster) AdjustPrices(ctx context.Context, ids []int64, strategy PriceStrategy) (*AdjustmentSummary, error) {
	if !p.platform.Configured() {
		return nil, domain.ErrPlatformNotConfigured
	}
	if !validStrategy(strategy) {
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidRequest, strategy)
	}

	rows, err := p.enrichments.ListForAdjustment(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("selecting adjustment rows: %w", err)
	}

	summary := &AdjustmentSummary{Total: len(rows)}
	collector := newErrorCollector()

	for start := 0; start < len(rows); start += adjustBatchSize {
		end := start + adjustBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		p.logger.Info("price adjustment batch",
			zap.Int("from", start), zap.Int("to", end), zap.Int("total", len(rows)))

		for i := start; i < end; i++ {
			row := p.adjustOne(ctx, &rows[i], strategy, collector)
			switch row.Status {
			case RowAdjusted:
				summary.Adjusted++
			case RowSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			summary.Results = append(summary.Results, row)
		}
	}

	summary.Errors = collector.Errors()
	p.logger.Info("price adjustment complete",
		zap.Int("total", summary.Total),
		zap.Int("adjusted", summary.Adjusted),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

// adjustOne processes a single row: compute target, fetch variants, write the
// price, persist the confirmed change. Any failure is terminal for the row in
// this run; there is no per-row retry.
func (p *PriceAdjuster) adjustOne(ctx context.Context, record *domain.EnrichmentRecord, strategy PriceStrategy, collector *errorCollector) AdjustmentRow {
	row := AdjustmentRow{
		RecordID:          record.ID,
		ExternalProductID: record.ExternalProductID,
	}

	// Selection guarantees both fields, but explicit ids bypass the query
	// filters, so guard again here.
	if record.CompetitorAvg == nil || record.MerchantPrice == nil {
		row.Status = statusForError(nil)
		row.Error = "missing competitor average or merchant price"
		collector.Add(fmt.Sprintf("record %d: %s", record.ID, row.Error))
		return row
	}

	current := *record.MerchantPrice
	target := targetPrice(strategy, *record.CompetitorAvg)
	row.OldPrice = current

	if math.Abs(target-current) < minPriceChange {
		row.Status = RowSkipped
		return row
	}

	variants, err := p.platform.FetchVariants(ctx, record.ExternalProductID)
	if err != nil {
		row.Status = statusForError(err)
		row.Error = err.Error()
		collector.Add(fmt.Sprintf("record %d: %v", record.ID, err))
		return row
	}
	if len(variants) == 0 {
		row.Status = RowNoVariants
		collector.Add(fmt.Sprintf("record %d: product %d has no variants", record.ID, record.ExternalProductID))
		return row
	}

	variantIDs := make([]int64, 0, len(variants))
	for _, v := range variants {
		variantIDs = append(variantIDs, v.ID)
	}

	// One write per product covering every variant, prior price kept as the
	// compare-at reference.
	err = p.platform.UpdateVariantPrices(ctx, record.ExternalProductID, variantIDs, target, current)

	// Pacing applies after each external write, success or failure.
	p.waitPacer(ctx)

	if err != nil {
		row.Status = statusForError(err)
		row.Error = err.Error()
		collector.Add(fmt.Sprintf("record %d: %v", record.ID, err))
		p.logger.Warn("price write failed",
			zap.Int64("record_id", record.ID),
			zap.Int64("external_id", record.ExternalProductID),
			zap.Error(err))
		return row
	}

	row.Status = RowAdjusted
	row.NewPrice = target

	if err := p.enrichments.SavePriceApplied(ctx, record.ID, target); err != nil {
		// The external write is confirmed; the row counts as adjusted even if
		// the local snapshot lags.
		p.logger.Error("failed to persist adjusted price",
			zap.Int64("record_id", record.ID), zap.Error(err))
	}
	return row
}

func (p *PriceAdjuster) waitPacer(ctx context.Context) {
	if err := p.pacer.Wait(ctx); err != nil {
		p.logger.Warn("pacing interrupted", zap.Error(err))
	}
}

// targetPrice computes the strategy target, rounded to 2 decimals.
func targetPrice(strategy PriceStrategy, competitorAvg float64) float64 {
	switch strategy {
	case StrategyUndercut5:
		return round2(competitorAvg * 0.95)
	case StrategyUndercut10:
		return round2(competitorAvg * 0.90)
	default:
		return round2(competitorAvg)
	}
}

func validStrategy(s PriceStrategy) bool {
	switch s {
	case StrategyMatchAvg, StrategyUndercut5, StrategyUndercut10:
		return true
	}
	return false
}

// statusForError maps a platform failure to a row status, embedding the HTTP
// status when one is known.
func statusForError(err error) string {
	var statusErr *domain.PlatformStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("error_%d", statusErr.StatusCode)
	}
	return "error_0"
}
