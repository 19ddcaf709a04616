package usecase

import (
	"math"

	"github.com/pricelens/backend/internal/domain"
)

// competitorBand is the estimated low/mid/high competitive price range for a
// tier, in currency-agnostic units. The mid value doubles as the competitor
// average.
type competitorBand struct {
	low  float64
	mid  float64
	high float64
}

// competitorBands are fixed per tier. Unknown tiers have no band, and no band
// means no analysis.
var competitorBands = map[domain.PriceTier]competitorBand{
	domain.TierBudget:  {5, 12, 20},
	domain.TierMid:     {15, 28, 45},
	domain.TierPremium: {35, 55, 85},
	domain.TierLuxury:  {70, 120, 200},
}

// Position band multipliers: prices inside the low/high band are still
// flagged once they drift past these fractions of the mid value.
const (
	underpricedMidFactor = 0.85
	overpricedMidFactor  = 1.15
)

// efficacyBonusFactor lifts the competitor average for high-efficacy
// products when estimating margin opportunity.
const (
	efficacyBonusFactor    = 1.15
	efficacyBonusThreshold = 4.0
)

// PriceAnalyzer maps a merchant price against the competitive band for the
// matched catalog item's price tier.
type PriceAnalyzer struct{}

// NewPriceAnalyzer creates a price analyzer.
func NewPriceAnalyzer() *PriceAnalyzer {
	return &PriceAnalyzer{}
}

// Analyze derives the qualitative price position and margin opportunity.
// Returns an all-nil analysis when no merchant price is supplied or the tier
// has no defined band: no data, no computation.
func (a *PriceAnalyzer) Analyze(
	merchantPrice *float64,
	tier domain.PriceTier,
	efficacyScore *float64,
) domain.PriceAnalysis {
	if merchantPrice == nil {
		return domain.PriceAnalysis{}
	}
	band, ok := competitorBands[tier]
	if !ok {
		return domain.PriceAnalysis{}
	}

	price := *merchantPrice
	position := positionInBand(price, band)

	// The efficacy bonus applies regardless of position: margin opportunity
	// is a headline figure, not conditioned on being overpriced.
	bonus := 1.0
	if efficacyScore != nil && *efficacyScore > efficacyBonusThreshold {
		bonus = efficacyBonusFactor
	}

	competitorAvg := band.mid
	margin := round2(competitorAvg*bonus - price)

	return domain.PriceAnalysis{
		Position:          position,
		CompetitorAvg:     &competitorAvg,
		MarginOpportunity: &margin,
	}
}

// positionInBand evaluates the position rules in order: outside the band
// first, then drift past the mid-value factors, else fair.
func positionInBand(price float64, band competitorBand) domain.PricePosition {
	switch {
	case price < band.low:
		return domain.PositionUnderpriced
	case price > band.high:
		return domain.PositionOverpriced
	case price < band.mid*underpricedMidFactor:
		return domain.PositionUnderpriced
	case price > band.mid*overpricedMidFactor:
		return domain.PositionOverpriced
	default:
		return domain.PositionFair
	}
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
