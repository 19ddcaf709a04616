package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pricelens/backend/internal/domain"
)

// metafieldNamespace scopes every metafield this engine writes.
const metafieldNamespace = "pricelens"

// SyncConfig holds configuration for the platform sync service.
type SyncConfig struct {
	WriteInterval time.Duration
}

// SyncService pushes approved enrichment records to the platform as a fixed
// metafield set plus a tag list, transitioning each record to applied after a
// confirmed write.
type SyncService struct {
	enrichments domain.EnrichmentRepository
	platform    domain.PlatformClient
	logger      *zap.Logger
	pacer       *rate.Limiter
}

// NewSyncService creates a platform sync service.
func NewSyncService(
	enrichments domain.EnrichmentRepository,
	platform domain.PlatformClient,
	logger *zap.Logger,
	config SyncConfig,
) *SyncService {
	interval := config.WriteInterval
	if interval <= 0 {
		interval = defaultWriteInterval
	}

	return &SyncService{
		enrichments: enrichments,
		platform:    platform,
		logger:      logger,
		pacer:       rate.NewLimiter(rate.Every(interval), 1),
	}
}

// PushSummary aggregates a push run. Failures are collected per row; the run
// never aborts on one.
type PushSummary struct {
	Total  int      `json:"total"`
	Pushed int      `json:"pushed"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

// PushApproved writes the metafield set of every approved record to its
// platform product and marks the record applied on success.
func (s *SyncService) PushApproved(ctx context.Context) (*PushSummary, error) {
	if !s.platform.Configured() {
		return nil, domain.ErrPlatformNotConfigured
	}

	records, err := s.enrichments.ListByStatus(ctx, domain.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("listing approved records: %w", err)
	}

	summary := &PushSummary{Total: len(records)}
	collector := newErrorCollector()

	for i := range records {
		record := &records[i]
		metafields := buildMetafields(record)
		tags := buildTags(record)

		err := s.platform.WriteMetafields(ctx, record.ExternalProductID, metafields, tags)
		s.waitPacer(ctx)
		if err != nil {
			summary.Failed++
			collector.Add(fmt.Sprintf("record %d: %v", record.ID, err))
			s.logger.Warn("metafield push failed",
				zap.Int64("record_id", record.ID),
				zap.Int64("external_id", record.ExternalProductID),
				zap.Error(err))
			continue
		}

		summary.Pushed++
		if err := s.enrichments.UpdateStatus(ctx, record.ID, domain.StatusApplied); err != nil {
			// The platform write is confirmed; the lifecycle lag is logged
			// and the next push run will retry the transition.
			s.logger.Error("failed to mark record applied",
				zap.Int64("record_id", record.ID), zap.Error(err))
		}
	}

	summary.Errors = collector.Errors()
	s.logger.Info("platform push complete",
		zap.Int("total", summary.Total),
		zap.Int("pushed", summary.Pushed),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

func (s *SyncService) waitPacer(ctx context.Context) {
	if err := s.pacer.Wait(ctx); err != nil {
		s.logger.Warn("pacing interrupted", zap.Error(err))
	}
}

// buildMetafields constructs the fixed metafield set for one record.
func buildMetafields(record *domain.EnrichmentRecord) []domain.Metafield {
	fields := []domain.Metafield{
		{Namespace: metafieldNamespace, Key: "catalog_hash", Value: record.CatalogHash, Type: "single_line_text_field"},
		{Namespace: metafieldNamespace, Key: "confidence", Value: string(record.Confidence), Type: "single_line_text_field"},
		{Namespace: metafieldNamespace, Key: "actives", Value: jsonList(record.Actives), Type: "list.single_line_text_field"},
		{Namespace: metafieldNamespace, Key: "suitability", Value: jsonList(record.Suitability), Type: "list.single_line_text_field"},
		{Namespace: metafieldNamespace, Key: "contraindications", Value: jsonList(record.Contraindications), Type: "list.single_line_text_field"},
	}
	if record.EfficacyScore != nil {
		fields = append(fields, domain.Metafield{
			Namespace: metafieldNamespace, Key: "efficacy_score",
			Value: strconv.FormatFloat(*record.EfficacyScore, 'f', 2, 64),
			Type:  "number_decimal",
		})
	}
	if record.PricePosition != "" {
		fields = append(fields, domain.Metafield{
			Namespace: metafieldNamespace, Key: "price_position",
			Value: string(record.PricePosition), Type: "single_line_text_field",
		})
	}
	if record.CompetitorAvg != nil {
		fields = append(fields, domain.Metafield{
			Namespace: metafieldNamespace, Key: "competitor_price_avg",
			Value: strconv.FormatFloat(*record.CompetitorAvg, 'f', 2, 64),
			Type:  "number_decimal",
		})
	}
	return fields
}

// buildTags derives the storefront tag list from the record's match fields.
func buildTags(record *domain.EnrichmentRecord) []string {
	tags := []string{
		"pricelens:matched",
		"pricelens:confidence:" + string(record.Confidence),
	}
	for _, active := range record.Actives {
		tags = append(tags, "active:"+active)
	}
	for _, tag := range record.Suitability {
		tags = append(tags, "suits:"+tag)
	}
	return tags
}

func jsonList(values []string) string {
	if values == nil {
		values = []string{}
	}
	encoded, _ := json.Marshal(values)
	return string(encoded)
}
