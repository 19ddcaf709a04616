package domain

import "time"

// Status is the lifecycle state of an enrichment record.
// Lifecycle: pending -> {approved | rejected} -> applied.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusApplied  Status = "applied"
)

// allowedTransitions is the closed transition table enforced at the mutation
// boundary. Applied is terminal: it is only reachable from approved, after a
// confirmed write to the platform.
var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusRejected, StatusApplied},
	StatusRejected: {StatusApproved},
	StatusApplied:  {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// TransitionSources returns every status allowed to transition into next, in
// a fixed order. Bulk mutations use it to constrain updates in one statement.
func TransitionSources(next Status) []Status {
	ordered := []Status{StatusPending, StatusApproved, StatusRejected, StatusApplied}
	var sources []Status
	for _, s := range ordered {
		if s.CanTransition(next) {
			sources = append(sources, s)
		}
	}
	return sources
}

// EnrichmentRecord is the persisted unit of work: one row per
// (external product, matched catalog item) pair, holding a denormalized
// snapshot of the input product at match time plus match and price fields.
type EnrichmentRecord struct {
	ID                int64    `json:"id"`
	ExternalProductID int64    `json:"externalProductId"`
	Title             string   `json:"title"`
	Vendor            string   `json:"vendor,omitempty"`
	ProductType       string   `json:"productType,omitempty"`
	MerchantPrice     *float64 `json:"merchantPrice,omitempty"`

	CatalogHash       string   `json:"catalogHash"`
	CatalogName       string   `json:"catalogName"`
	EfficacyScore     *float64 `json:"efficacyScore,omitempty"`
	Actives           []string `json:"actives,omitempty"`
	Suitability       []string `json:"suitability,omitempty"`
	Contraindications []string `json:"contraindications,omitempty"`

	Score      float64     `json:"score"`
	Confidence Confidence  `json:"confidence"`
	Reasons    []string    `json:"reasons,omitempty"`
	Method     MatchMethod `json:"method"`

	CompetitorAvg     *float64      `json:"competitorAvg,omitempty"`
	MarginOpportunity *float64      `json:"marginOpportunity,omitempty"`
	PricePosition     PricePosition `json:"pricePosition,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// MarketBenchmark is a per (product type, price tier) catalog aggregate.
// Recomputed wholesale, keyed uniquely on the pair.
type MarketBenchmark struct {
	ProductType    string    `json:"productType"`
	PriceTier      PriceTier `json:"priceTier"`
	AvgEfficacy    float64   `json:"avgEfficacy"`
	ProductCount   int       `json:"productCount"`
	TopActives     []string  `json:"topActives,omitempty"`
	TopSuitability []string  `json:"topSuitability,omitempty"`
	ComputedAt     time.Time `json:"computedAt,omitempty"`
}

// EnrichmentFilter narrows List queries on the enrichment store.
type EnrichmentFilter struct {
	Confidence Confidence
	Status     Status
	Limit      int
}

// EnrichmentStats is the aggregate view over persisted records.
type EnrichmentStats struct {
	Total         int            `json:"total"`
	ByConfidence  map[string]int `json:"byConfidence"`
	ByStatus      map[string]int `json:"byStatus"`
	ByPosition    map[string]int `json:"byPosition"`
	AvgSimilarity float64        `json:"avgSimilarity"`
}
