package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
)

// Candidate retrieval limits
const (
	defaultCandidateLimit = 10
	fallbackTriggerCount  = 3 // fallback fires when primary found fewer than this
)

// defaultAcceptanceThreshold is the composite score a match must exceed to be
// persisted. Matches at or below it are reported as null matches.
const defaultAcceptanceThreshold = 0.25

// MatchingConfig holds configuration for the matching service.
type MatchingConfig struct {
	AcceptanceThreshold float64
	CandidateLimit      int
}

// MatchingService reconciles merchant products against the curated catalog:
// retrieve candidates, score them, classify confidence, analyze price
// position, and upsert the winning enrichment record.
type MatchingService struct {
	catalog     domain.CatalogRepository
	enrichments domain.EnrichmentRepository
	platform    domain.PlatformClient
	scorer      *CompositeScorer
	analyzer    *PriceAnalyzer
	logger      *zap.Logger

	acceptanceThreshold float64
	candidateLimit      int
}

// NewMatchingService creates a matching service with its dependencies.
func NewMatchingService(
	catalog domain.CatalogRepository,
	enrichments domain.EnrichmentRepository,
	platform domain.PlatformClient,
	logger *zap.Logger,
	config MatchingConfig,
) *MatchingService {
	threshold := config.AcceptanceThreshold
	if threshold <= 0 {
		threshold = defaultAcceptanceThreshold
	}
	limit := config.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	return &MatchingService{
		catalog:             catalog,
		enrichments:         enrichments,
		platform:            platform,
		scorer:              NewCompositeScorer(),
		analyzer:            NewPriceAnalyzer(),
		logger:              logger,
		acceptanceThreshold: threshold,
		candidateLimit:      limit,
	}
}

// ProductMatch is the per-product outcome of a matching run. Match and
// Analysis are nil when no candidate scored above the acceptance threshold.
type ProductMatch struct {
	ExternalID int64                 `json:"externalId"`
	Title      string                `json:"title"`
	Match      *domain.MatchResult   `json:"match"`
	Analysis   *domain.PriceAnalysis `json:"analysis,omitempty"`
	Persisted  bool                  `json:"persisted"`
}

// MatchRunSummary reports run-level totals alongside per-product results.
type MatchRunSummary struct {
	RunID          string         `json:"runId"`
	Total          int            `json:"total"`
	Matched        int            `json:"matched"`
	HighConfidence int            `json:"highConfidence"`
	MatchRate      float64        `json:"matchRate"`
	Results        []ProductMatch `json:"results"`
}

// Run matches the given products, or the full live product list when
// pullLive is set. Each product is processed independently; a persistence
// failure on one record does not fail the run or even that product's result.
func (s *MatchingService) Run(ctx context.Context, products []domain.InputProduct, pullLive bool) (*MatchRunSummary, error) {
	if pullLive {
		if !s.platform.Configured() {
			return nil, domain.ErrPlatformNotConfigured
		}
		live, err := s.platform.FetchProducts(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPlatformUnavailable, err)
		}
		products = live
	}
	if len(products) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	summary := &MatchRunSummary{
		RunID:   uuid.NewString(),
		Total:   len(products),
		Results: make([]ProductMatch, 0, len(products)),
	}

	for i := range products {
		result := s.matchOne(ctx, &products[i])
		if result.Match != nil {
			summary.Matched++
			if result.Match.Confidence == domain.ConfidenceHigh {
				summary.HighConfidence++
			}
		}
		summary.Results = append(summary.Results, result)
	}

	if summary.Total > 0 {
		summary.MatchRate = float64(summary.Matched) / float64(summary.Total)
	}

	s.logger.Info("matching run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("matched", summary.Matched),
		zap.Int("high_confidence", summary.HighConfidence))

	return summary, nil
}

// matchOne runs the full pipeline for a single product.
func (s *MatchingService) matchOne(ctx context.Context, input *domain.InputProduct) ProductMatch {
	result := ProductMatch{ExternalID: input.ExternalID, Title: input.Title}

	actives := ExtractActives(matchableText(input))

	candidates, err := s.findCandidates(ctx, input, actives)
	if err != nil {
		s.logger.Error("candidate retrieval failed",
			zap.Int64("external_id", input.ExternalID), zap.Error(err))
		return result
	}
	if len(candidates) == 0 {
		return result
	}

	best := s.scoreBest(input, actives, candidates)
	if best == nil || best.Score <= s.acceptanceThreshold {
		// No-match is not an error: reported as a null match, never written.
		return result
	}

	analysis := s.analyzer.Analyze(input.Price, best.Candidate.PriceTier, best.Candidate.EfficacyScore)
	result.Match = best
	result.Analysis = &analysis

	record := buildEnrichmentRecord(input, best, &analysis)
	if err := s.enrichments.Upsert(ctx, record); err != nil {
		// The in-memory result is still returned; the record is simply not
		// durably saved.
		s.logger.Error("enrichment upsert failed",
			zap.Int64("external_id", input.ExternalID),
			zap.String("catalog_hash", best.Candidate.Hash),
			zap.Error(err))
		return result
	}
	result.Persisted = true
	return result
}

// findCandidates runs the primary trigram query and, when it comes up short
// and the input yielded extracted actives, an ingredient fallback. Results
// merge de-duplicated by catalog hash with primary order preserved.
func (s *MatchingService) findCandidates(ctx context.Context, input *domain.InputProduct, actives []string) ([]domain.CatalogCandidate, error) {
	primary, err := s.catalog.SearchByName(ctx, input.Title, s.candidateLimit)
	if err != nil {
		return nil, err
	}

	if len(primary) >= fallbackTriggerCount || len(actives) == 0 {
		return primary, nil
	}

	fallback, err := s.catalog.SearchByActives(ctx, input.Title, actives, s.candidateLimit)
	if err != nil {
		// Primary results are still usable; the fallback is best-effort.
		s.logger.Warn("ingredient fallback query failed", zap.Error(err))
		return primary, nil
	}

	seen := make(map[string]bool, len(primary))
	merged := make([]domain.CatalogCandidate, 0, len(primary)+len(fallback))
	for _, c := range primary {
		seen[c.Hash] = true
		merged = append(merged, c)
	}
	for _, c := range fallback {
		if !seen[c.Hash] {
			seen[c.Hash] = true
			merged = append(merged, c)
		}
	}
	return merged, nil
}

// scoreBest scores every candidate and keeps the strictly highest score;
// the first-seen candidate wins ties, relying on the retriever's stable order.
func (s *MatchingService) scoreBest(input *domain.InputProduct, actives []string, candidates []domain.CatalogCandidate) *domain.MatchResult {
	var best *domain.MatchResult
	for i := range candidates {
		scored := s.scorer.Score(input, actives, &candidates[i])
		if best == nil || scored.Score > best.Score {
			best = scored
		}
	}
	return best
}

// matchableText concatenates the free-text fields ingredient extraction
// looks at.
func matchableText(input *domain.InputProduct) string {
	parts := []string{input.Title, input.Description}
	parts = append(parts, input.Tags...)
	return strings.Join(parts, " ")
}

// buildEnrichmentRecord denormalizes the input snapshot, match fields, and
// price fields into the persisted unit of work. Status defaults to pending on
// first insert; the store preserves existing status on conflict.
func buildEnrichmentRecord(input *domain.InputProduct, match *domain.MatchResult, analysis *domain.PriceAnalysis) *domain.EnrichmentRecord {
	return &domain.EnrichmentRecord{
		ExternalProductID: input.ExternalID,
		Title:             input.Title,
		Vendor:            input.Vendor,
		ProductType:       input.ProductType,
		MerchantPrice:     input.Price,
		CatalogHash:       match.Candidate.Hash,
		CatalogName:       match.Candidate.DisplayName,
		EfficacyScore:     match.Candidate.EfficacyScore,
		Actives:           match.Candidate.Actives,
		Suitability:       match.Candidate.Suitability,
		Contraindications: match.Candidate.Contraindications,
		Score:             match.Score,
		Confidence:        match.Confidence,
		Reasons:           match.Reasons,
		Method:            match.Method,
		CompetitorAvg:     analysis.CompetitorAvg,
		MarginOpportunity: analysis.MarginOpportunity,
		PricePosition:     analysis.Position,
		Status:            domain.StatusPending,
	}
}
