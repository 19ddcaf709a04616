package usecase

import (
	"fmt"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// Signal weights for the composite score (sum to 1.0)
const (
	weightNameSimilarity = 0.40 // Trigram similarity of titles, always applied
	weightVendorMatch    = 0.15 // Merchant vendor appears in candidate name (or reverse)
	weightTypeMatch      = 0.10 // Product type strings align
	weightActivesOverlap = 0.25 // Jaccard overlap of active-ingredient sets
	weightTierAlignment  = 0.10 // Merchant price falls inside the candidate tier's band
)

// Confidence thresholds over the composite score
const (
	confidenceHighThreshold   = 0.70
	confidenceMediumThreshold = 0.45
)

// exactMatchSimilarity is the raw name similarity above which the match
// method is reported as exact.
const exactMatchSimilarity = 0.80

// tierPriceCutoffs are the fixed merchant-price cutoffs per tier used by the
// tier-alignment signal. The merchant's price is checked against these, not
// against the candidate's own competitive band.
var tierPriceCutoffs = map[domain.PriceTier][2]float64{
	domain.TierBudget:  {0, 15},
	domain.TierMid:     {15, 40},
	domain.TierPremium: {40, 80},
	domain.TierLuxury:  {80, 1e9},
}

// signal is one row of the fixed scoring table. contribution only enters the
// numerator when applicable; weightCounted controls whether the weight enters
// the denominator. Signals 1-3 and 5 always count their weight; only the
// actives overlap counts its weight conditionally, so the effective scale
// changes when neither side has extracted actives. That asymmetry is
// load-bearing for existing scores and is preserved exactly.
type signal struct {
	weight        float64
	weightCounted bool
	applicable    bool
	contribution  float64
	reason        string
}

// CompositeScorer combines five weighted similarity signals into one
// [0,1] match score with human-readable reasons.
type CompositeScorer struct{}

// NewCompositeScorer creates a composite scorer.
func NewCompositeScorer() *CompositeScorer {
	return &CompositeScorer{}
}

// Score evaluates one candidate against an input product. inputActives is the
// extracted active set for the input text (computed once per product by the
// caller, not per candidate).
func (s *CompositeScorer) Score(
	input *domain.InputProduct,
	inputActives []string,
	candidate *domain.CatalogCandidate,
) *domain.MatchResult {
	signals := [5]signal{
		s.nameSignal(candidate),
		s.vendorSignal(input, candidate),
		s.typeSignal(input, candidate),
		s.activesSignal(inputActives, candidate),
		s.tierSignal(input, candidate),
	}

	var sum, totalWeight float64
	var reasons []string
	for _, sig := range signals {
		if sig.weightCounted {
			totalWeight += sig.weight
		}
		if sig.applicable {
			sum += sig.contribution
			if sig.reason != "" {
				reasons = append(reasons, sig.reason)
			}
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = clamp01(sum / totalWeight)
	}

	return &domain.MatchResult{
		Candidate:  *candidate,
		Score:      score,
		Reasons:    reasons,
		Confidence: ConfidenceForScore(score),
		Method:     deriveMethod(candidate.NameSimilarity, reasons),
	}
}

// nameSignal: always applied, contributes the raw trigram similarity.
func (s *CompositeScorer) nameSignal(candidate *domain.CatalogCandidate) signal {
	return signal{
		weight:        weightNameSimilarity,
		weightCounted: true,
		applicable:    true,
		contribution:  candidate.NameSimilarity * weightNameSimilarity,
		reason:        fmt.Sprintf("name:%.3f", candidate.NameSimilarity),
	}
}

// vendorSignal: applied when the merchant vendor is a substring of the
// candidate name, or the candidate's first token is a substring of the vendor.
func (s *CompositeScorer) vendorSignal(input *domain.InputProduct, candidate *domain.CatalogCandidate) signal {
	sig := signal{weight: weightVendorMatch, weightCounted: true}

	vendor := strings.ToLower(strings.TrimSpace(input.Vendor))
	name := strings.ToLower(candidate.DisplayName)
	if vendor == "" || name == "" {
		return sig
	}

	matched := strings.Contains(name, vendor)
	if !matched {
		if first := firstToken(name); first != "" && strings.Contains(vendor, first) {
			matched = true
		}
	}
	if matched {
		sig.applicable = true
		sig.contribution = weightVendorMatch
		sig.reason = "vendor:match"
	}
	return sig
}

// typeSignal: applied when normalized type strings are equal or one contains
// the other.
func (s *CompositeScorer) typeSignal(input *domain.InputProduct, candidate *domain.CatalogCandidate) signal {
	sig := signal{weight: weightTypeMatch, weightCounted: true}

	inputType := strings.ToLower(strings.TrimSpace(input.ProductType))
	candType := strings.ToLower(strings.TrimSpace(candidate.Category))
	if inputType == "" || candType == "" {
		return sig
	}

	if inputType == candType || strings.Contains(inputType, candType) || strings.Contains(candType, inputType) {
		sig.applicable = true
		sig.contribution = weightTypeMatch
		sig.reason = "type:match"
	}
	return sig
}

// activesSignal: Jaccard overlap between the input's extracted actives and the
// candidate's actives. The weight joins the denominator only when either side
// has any actives at all.
func (s *CompositeScorer) activesSignal(inputActives []string, candidate *domain.CatalogCandidate) signal {
	sig := signal{weight: weightActivesOverlap}

	candActives := normalizeActives(candidate.Actives)
	if len(inputActives) == 0 && len(candActives) == 0 {
		return sig
	}

	sig.weightCounted = true
	sig.applicable = true
	sig.contribution = jaccard(inputActives, candActives) * weightActivesOverlap

	if shared := countSharedActives(inputActives, candActives); shared > 0 {
		sig.reason = fmt.Sprintf("actives:%d_shared", shared)
	}
	return sig
}

// tierSignal: applied when the merchant supplied a price and it falls inside
// the fixed cutoffs for the candidate's tier.
func (s *CompositeScorer) tierSignal(input *domain.InputProduct, candidate *domain.CatalogCandidate) signal {
	sig := signal{weight: weightTierAlignment, weightCounted: true}

	if input.Price == nil {
		return sig
	}
	cutoffs, ok := tierPriceCutoffs[candidate.PriceTier]
	if !ok {
		return sig
	}

	price := *input.Price
	if price >= cutoffs[0] && price < cutoffs[1] {
		sig.applicable = true
		sig.contribution = weightTierAlignment
		sig.reason = "price_tier:aligned"
	}
	return sig
}

// ConfidenceForScore maps a composite score to its tier. Pure and
// deterministic: high iff score >= 0.70, medium iff score >= 0.45, else low.
func ConfidenceForScore(score float64) domain.Confidence {
	switch {
	case score >= confidenceHighThreshold:
		return domain.ConfidenceHigh
	case score >= confidenceMediumThreshold:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// deriveMethod tags match provenance: exact for near-identical names,
// ingredient when the actives signal fired a shared-actives reason, fuzzy
// otherwise.
func deriveMethod(nameSimilarity float64, reasons []string) domain.MatchMethod {
	if nameSimilarity > exactMatchSimilarity {
		return domain.MethodExact
	}
	for _, r := range reasons {
		if strings.HasPrefix(r, "actives:") {
			return domain.MethodIngredient
		}
	}
	return domain.MethodFuzzy
}

// normalizeActives lowercases candidate actives and replaces underscores with
// spaces so they compare against extracted tokens.
func normalizeActives(actives []string) []string {
	if len(actives) == 0 {
		return nil
	}
	out := make([]string, 0, len(actives))
	for _, a := range actives {
		out = append(out, strings.ToLower(strings.ReplaceAll(a, "_", " ")))
	}
	return out
}

// jaccard computes |A∩B| / |A∪B| over two token lists treated as sets.
// Symmetric; 1 for identical non-empty sets, 0 when both are empty.
func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// countSharedActives counts distinct input actives that substring-match any
// candidate active in either direction.
func countSharedActives(inputActives, candActives []string) int {
	shared := 0
	for _, in := range inputActives {
		for _, cand := range candActives {
			if strings.Contains(cand, in) || strings.Contains(in, cand) {
				shared++
				break
			}
		}
	}
	return shared
}

// firstToken returns the first whitespace-delimited token of s.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// clamp01 clamps v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
