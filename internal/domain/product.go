package domain

// InputProduct is a merchant product supplied per matching run.
// It is ephemeral: the engine never owns or mutates it.
type InputProduct struct {
	ExternalID  int64    `json:"externalId"`
	Title       string   `json:"title"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"productType,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// PriceTier classifies a catalog item's expected retail band.
type PriceTier string

const (
	TierBudget  PriceTier = "budget"
	TierMid     PriceTier = "mid"
	TierPremium PriceTier = "premium"
	TierLuxury  PriceTier = "luxury"
	TierUnknown PriceTier = "unknown"
)

// CatalogCandidate is a curated catalog item returned by candidate retrieval.
// Read-only within this engine; owned by the catalog curation pipeline.
type CatalogCandidate struct {
	Hash              string    `json:"hash"`
	DisplayName       string    `json:"displayName"`
	Category          string    `json:"category,omitempty"`
	PriceTier         PriceTier `json:"priceTier"`
	EfficacyScore     *float64  `json:"efficacyScore,omitempty"` // 0-5 scale
	Actives           []string  `json:"actives,omitempty"`
	Suitability       []string  `json:"suitability,omitempty"`
	Contraindications []string  `json:"contraindications,omitempty"`
	IngredientSummary string    `json:"ingredientSummary,omitempty"`

	// NameSimilarity is the raw trigram similarity of DisplayName against
	// the current InputProduct title, computed by the retrieval query.
	NameSimilarity float64 `json:"nameSimilarity"`
}

// Confidence is the coarse tier derived from a composite score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// MatchMethod records which signal drove the best match.
type MatchMethod string

const (
	MethodExact      MatchMethod = "exact"
	MethodFuzzy      MatchMethod = "fuzzy"
	MethodIngredient MatchMethod = "ingredient"
	MethodManual     MatchMethod = "manual"
)

// MatchResult is the best catalog candidate for one input product.
type MatchResult struct {
	Candidate  CatalogCandidate `json:"candidate"`
	Score      float64          `json:"score"` // composite, clamped to [0,1]
	Reasons    []string         `json:"reasons"`
	Confidence Confidence       `json:"confidence"`
	Method     MatchMethod      `json:"method"`
}

// PricePosition is the qualitative placement of a merchant price against
// the competitive band for the matched catalog item's tier.
type PricePosition string

const (
	PositionUnderpriced PricePosition = "underpriced"
	PositionFair        PricePosition = "fair"
	PositionOverpriced  PricePosition = "overpriced"
)

// PriceAnalysis holds the price-position fields for a match. All fields are
// nil/empty when the merchant supplied no price or the tier has no band.
// Invariant: MarginOpportunity is never set without CompetitorAvg.
type PriceAnalysis struct {
	Position          PricePosition `json:"position,omitempty"`
	CompetitorAvg     *float64      `json:"competitorAvg,omitempty"`
	MarginOpportunity *float64      `json:"marginOpportunity,omitempty"`
}
