/*
scoring.go - Anomaly score and confidence score

PURPOSE:
  Two pure, deterministic functions. The anomaly score says how bad the
  underpayment looks; the confidence score says how much the inputs can be
  trusted. Neither reads the clock, a random source or any global state.

ANOMALY SCORE (0..100):
  ratio r = shortfall / total entitled (1 when nothing was entitled)

    shortfall ≤ tolerance      →  0
    0   < r ≤ 5%               → 10 .. 40   linear
    5%  < r ≤ 20%              → 50 .. 75   linear
    20% < r                    → 75 .. 90   linear, r capped at 50%

  +5 for each underpaid component beyond the first (at most +10), clamped
  to [0, 100] and floored to an integer. Paying more on any component can
  only lower r and the component count, so the score never rises with it.

CONFIDENCE (0..1):
  ceiling (0.95) minus a fixed penalty per quality flag, floored at 0.
  Every rule coverage gap carries its own flag and its own penalty.
*/
package compliance

import (
	"github.com/shopspring/decimal"
)

// ScoringConfig holds the scorer parameters.
type ScoringConfig struct {
	// Tolerance is the shortfall treated as zero, in dollars.
	Tolerance decimal.Decimal
	// Ceiling is the confidence of a flawless input set.
	Ceiling decimal.Decimal
	// Penalties is the confidence discount per flag kind.
	Penalties map[FlagKind]decimal.Decimal
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Tolerance: MustDecimal("0.01"),
		Ceiling:   MustDecimal("0.95"),
		Penalties: DefaultPenalties(),
	}
}

// DefaultPenalties returns a fresh copy of the default flag penalties.
func DefaultPenalties() map[FlagKind]decimal.Decimal {
	return map[FlagKind]decimal.Decimal{
		FlagLowConfidenceExtraction:   MustDecimal("0.30"),
		FlagAmbiguousClause:           MustDecimal("0.15"),
		FlagMissingDocument:           MustDecimal("0.25"),
		FlagConflictingClassification: MustDecimal("0.20"),
		FlagRuleCoverageGap:           MustDecimal("0.30"),
		FlagUnmatchedClassification:   MustDecimal("0.25"),
		FlagAggregatedPayslip:         MustDecimal("0.10"),
		FlagEnterpriseAgreement:       MustDecimal("0.10"),
	}
}

// =============================================================================
// ANOMALY SCORE
// =============================================================================

type band struct {
	from, to  decimal.Decimal // ratio range (from, to]
	low, high decimal.Decimal // score range
}

var (
	anomalyBands = []band{
		{from: decimal.Zero, to: MustDecimal("0.05"), low: decimal.NewFromInt(10), high: decimal.NewFromInt(40)},
		{from: MustDecimal("0.05"), to: MustDecimal("0.20"), low: decimal.NewFromInt(50), high: decimal.NewFromInt(75)},
		{from: MustDecimal("0.20"), to: MustDecimal("0.50"), low: decimal.NewFromInt(75), high: decimal.NewFromInt(90)},
	}
	extraComponentBonus = decimal.NewFromInt(5)
	maxComponentBonus   = decimal.NewFromInt(10)
	maxScore            = decimal.NewFromInt(100)
)

// AnomalyScore rates the severity of an underpayment from 0 to 100.
func AnomalyScore(lines PayLines, tolerance decimal.Decimal) int {
	shortfall := lines.Shortfall()
	if !shortfall.GreaterThan(tolerance) {
		return 0
	}

	ratio := one
	if entitled := lines.TotalEntitled(); entitled.IsPositive() {
		ratio = shortfall.Div(entitled)
	}

	last := anomalyBands[len(anomalyBands)-1]
	score := last.high
	for _, b := range anomalyBands {
		if ratio.LessThanOrEqual(b.to) {
			// low + (ratio − from) / (to − from) × (high − low)
			score = b.low.Add(ratio.Sub(b.from).Div(b.to.Sub(b.from)).Mul(b.high.Sub(b.low)))
			break
		}
	}

	if n := len(lines.Underpaid(tolerance)); n > 1 {
		score = score.Add(decimal.Min(extraComponentBonus.Mul(decimal.NewFromInt(int64(n-1))), maxComponentBonus))
	}
	score = decimal.Min(decimal.Max(score, decimal.Zero), maxScore)
	return int(score.Floor().IntPart())
}

// =============================================================================
// CONFIDENCE
// =============================================================================

// Confidence discounts the ceiling by the penalty of every flag raised.
// Unknown flag kinds carry no penalty.
func Confidence(flags []QualityFlag, cfg ScoringConfig) decimal.Decimal {
	c := cfg.Ceiling
	for _, f := range flags {
		if p, ok := cfg.Penalties[f.Kind]; ok {
			c = c.Sub(p)
		}
	}
	return decimal.Max(c, decimal.Zero)
}
