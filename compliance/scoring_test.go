package compliance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/wage-compliance/compliance"
)

func short(entitled, paid string) compliance.PayComponentLine {
	return compliance.PayComponentLine{Component: "ordinary", Entitled: dec(entitled), Paid: dec(paid)}
}

// =============================================================================
// ANOMALY SCORE
// =============================================================================

func TestAnomalyScore_Bands(t *testing.T) {
	tol := dec("0.01")

	tests := []struct {
		name  string
		lines compliance.PayLines
		want  int
	}{
		{"paid in full", compliance.PayLines{short("100", "100")}, 0},
		{"shortfall at tolerance", compliance.PayLines{short("100", "99.99")}, 0},
		{"1% short", compliance.PayLines{short("100", "99")}, 16},
		{"5% short, top of first band", compliance.PayLines{short("100", "95")}, 40},
		{"evening underpayment", compliance.PayLines{short("78.38", "71.25")}, 56},
		{"20% short, top of second band", compliance.PayLines{short("100", "80")}, 75},
		{"35% short", compliance.PayLines{short("100", "65")}, 82},
		{"nothing paid", compliance.PayLines{short("100", "0")}, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compliance.AnomalyScore(tt.lines, tol))
		})
	}
}

func TestAnomalyScore_ExtraComponents(t *testing.T) {
	// GIVEN: The same 10% shortfall spread over one to four components
	// WHEN: Scoring
	// THEN: +5 per extra underpaid component, capped at +10

	tol := dec("0.01")
	line := func(key string) compliance.PayComponentLine {
		return compliance.PayComponentLine{Component: compliance.ComponentKey(key), Entitled: dec("50"), Paid: dec("45")}
	}

	assert.Equal(t, 58, compliance.AnomalyScore(compliance.PayLines{line("a")}, tol))
	assert.Equal(t, 63, compliance.AnomalyScore(compliance.PayLines{line("a"), line("b")}, tol))
	assert.Equal(t, 68, compliance.AnomalyScore(compliance.PayLines{line("a"), line("b"), line("c")}, tol))
	assert.Equal(t, 68, compliance.AnomalyScore(compliance.PayLines{line("a"), line("b"), line("c"), line("d")}, tol))
}

func TestAnomalyScore_ClampedTo100(t *testing.T) {
	lines := compliance.PayLines{
		{Component: "a", Entitled: dec("50"), Paid: dec("0")},
		{Component: "b", Entitled: dec("50"), Paid: dec("0")},
		{Component: "c", Entitled: dec("50"), Paid: dec("0")},
	}
	assert.Equal(t, 100, compliance.AnomalyScore(lines, dec("0.01")))
}

func TestAnomalyScore_NeverRisesWhenMoreIsPaid(t *testing.T) {
	// GIVEN: An underpaid result
	// WHEN: Paying more on any component, including one with no award basis
	// THEN: The score does not increase

	tol := dec("0.01")
	base := compliance.PayLines{
		{Component: "ordinary", Entitled: dec("100"), Paid: dec("80")},
		{Component: "casual-loading", Entitled: dec("25"), Paid: dec("10")},
	}
	score := compliance.AnomalyScore(base, tol)

	paidMore := append(compliance.PayLines(nil), base...)
	paidMore[1].Paid = dec("20")
	assert.LessOrEqual(t, compliance.AnomalyScore(paidMore, tol), score)

	withBonus := append(append(compliance.PayLines(nil), base...),
		compliance.PayComponentLine{Component: "bonus", Entitled: dec("0"), Paid: dec("50")})
	assert.Equal(t, score, compliance.AnomalyScore(withBonus, tol))
}

// =============================================================================
// CONFIDENCE
// =============================================================================

func TestConfidence(t *testing.T) {
	cfg := compliance.DefaultScoringConfig()
	flag := func(kind compliance.FlagKind) compliance.QualityFlag { return compliance.QualityFlag{Kind: kind} }

	tests := []struct {
		name  string
		flags []compliance.QualityFlag
		want  string
	}{
		{"no flags", nil, "0.95"},
		{"low confidence extraction", []compliance.QualityFlag{flag(compliance.FlagLowConfidenceExtraction)}, "0.65"},
		{"enterprise agreement", []compliance.QualityFlag{flag(compliance.FlagEnterpriseAgreement)}, "0.85"},
		{"every gap counts", []compliance.QualityFlag{flag(compliance.FlagRuleCoverageGap), flag(compliance.FlagRuleCoverageGap)}, "0.35"},
		{"floored at zero", []compliance.QualityFlag{
			flag(compliance.FlagLowConfidenceExtraction),
			flag(compliance.FlagRuleCoverageGap),
			flag(compliance.FlagMissingDocument),
			flag(compliance.FlagUnmatchedClassification),
		}, "0"},
		{"unknown kind carries no penalty", []compliance.QualityFlag{flag("cosmic_rays")}, "0.95"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, compliance.Confidence(tt.flags, cfg))
		})
	}
}

func TestDefaultPenalties_ReturnsACopy(t *testing.T) {
	p := compliance.DefaultPenalties()
	p[compliance.FlagAggregatedPayslip] = dec("0.90")

	assertDecimal(t, "0.10", compliance.DefaultPenalties()[compliance.FlagAggregatedPayslip])
}
