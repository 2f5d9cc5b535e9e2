package compliance_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wage-compliance/compliance"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestEvaluate_UnderpaidEveningShift(t *testing.T) {
	// GIVEN: A casual on $28.50 paid the loaded ordinary rate for 2 evening hours
	// WHEN: Evaluating the employee
	// THEN: Entitled 78.38, paid 71.25, underpaid by 7.13 on the evening penalty

	out := newEngine(t).Evaluate(march(), eveningAtOrdinary())
	require.Nil(t, out.Exclusion)
	require.NotNil(t, out.Result)
	r := out.Result

	assert.Equal(t, compliance.ClassUnderpaid, r.Classification)
	assertDecimal(t, "78.38", r.TotalEntitled())
	assertDecimal(t, "71.25", r.TotalPaid())
	assertDecimal(t, "-7.13", r.TotalDifference())
	assertDecimal(t, "7.13", r.Shortfall())
	assertDecimal(t, "0.95", r.Confidence)
	assert.Equal(t, 56, r.AnomalyScore)
	assert.Equal(t, compliance.ComponentKey("evening-penalty"), r.PrimaryReason)
	assert.Equal(t, compliance.AwardID("MA000120"), r.AwardID)
	assert.Equal(t, []string{"2024-07-01"}, r.RuleSetVersions)
	assert.Len(t, r.InputHash, 64)
}

func TestEvaluate_MissingContract(t *testing.T) {
	// GIVEN: Timesheet and payslip but no employment profile
	// WHEN: Evaluating
	// THEN: An insufficient_data exclusion and no result

	out := newEngine(t).Evaluate(march(), withoutContract())
	assert.Nil(t, out.Result)
	require.NotNil(t, out.Exclusion)
	assert.Equal(t, compliance.ExcludedInsufficientData, out.Exclusion.Kind)
	assert.Equal(t, []string{"contract"}, out.Exclusion.Missing)
	assert.Contains(t, out.Exclusion.Error, "missing contract")
	assert.NotEmpty(t, out.Exclusion.InputHash)
}

func TestEvaluate_MissingDocuments(t *testing.T) {
	in := eveningAtOrdinary()
	in.Segments, in.Paid = nil, nil

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Exclusion)
	assert.Equal(t, []string{"timesheet", "payslip"}, out.Exclusion.Missing)
}

func TestEvaluate_EmptyPayslipIsNotMissing(t *testing.T) {
	// GIVEN: A payslip with no lines
	// WHEN: Evaluating
	// THEN: Every entitled component is unpaid; the employee is underpaid

	in := eveningAtOrdinary()
	in.Paid = []compliance.PaidLine{}

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Result)
	assert.Equal(t, compliance.ClassUnderpaid, out.Result.Classification)
	assertDecimal(t, "78.38", out.Result.Shortfall())
}

func TestEvaluate_LowConfidenceSundayShift(t *testing.T) {
	// GIVEN: A Sunday shift paid as ordinary time, flagged low confidence by ingestion
	// WHEN: Evaluating
	// THEN: needs_review even though the shortfall alone would be underpaid

	out := newEngine(t).Evaluate(march(), sundayLowConfidence())
	require.NotNil(t, out.Result)
	r := out.Result

	assert.Equal(t, compliance.ClassNeedsReview, r.Classification)
	assertDecimal(t, "0.65", r.Confidence)
	assertDecimal(t, "285.00", r.TotalEntitled())
	assertDecimal(t, "285.00", r.Shortfall())
	assertDecimal(t, "142.50", r.Overpayment())
	assert.Equal(t, compliance.ComponentKey("sunday-penalty"), r.PrimaryReason)
	assert.Equal(t, []string{"confidence 0.65 below auto-accept 0.70"}, r.Reasons)

	ordinary := lineFor(t, r.Lines, "ordinary")
	assert.Equal(t, compliance.BasisNoAwardBasis, ordinary.Basis)
}

func TestEvaluate_PrecisionFailure(t *testing.T) {
	in := eveningAtOrdinary()
	in.Paid[0].Amount = dec("71.255")
	in.Paid[0].Hours, in.Paid[0].Rate = nil, nil

	out := newEngine(t).Evaluate(march(), in)
	assert.Nil(t, out.Result)
	require.NotNil(t, out.Exclusion)
	assert.Equal(t, compliance.ExcludedPrecisionFailure, out.Exclusion.Kind)
	assert.Contains(t, out.Exclusion.Error, "fractions of a cent")
}

func TestEvaluate_CoverageGapIsNeverZero(t *testing.T) {
	// GIVEN: A profile with no award identifier
	// WHEN: Evaluating
	// THEN: needs_review with the gap recorded, not an ok with zero entitlement

	in := eveningAtOrdinary()
	in.Profiles[0].AwardID = ""

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Result)
	r := out.Result

	assert.Equal(t, compliance.ClassNeedsReview, r.Classification)
	require.Len(t, r.CoverageGaps, 1)
	assert.Contains(t, r.Reasons, "1 shift segment(s) not covered by award rules")
	assertDecimal(t, "0.65", r.Confidence)
}

func TestEvaluate_UnmatchedClassification(t *testing.T) {
	in := eveningAtOrdinary()
	in.Profiles[0].Classification = "level-9.9"

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Result)
	assert.Equal(t, compliance.ClassNeedsReview, out.Result.Classification)
	assert.Contains(t, out.Result.Reasons, "classification not found in award")
	assertDecimal(t, "0.70", out.Result.Confidence)
}

func TestEvaluate_EnterpriseAgreementLowersConfidence(t *testing.T) {
	in := eveningAtOrdinary()
	in.Profiles[0].EnterpriseAgreement = true

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Result)
	assertDecimal(t, "0.85", out.Result.Confidence)
	assert.Equal(t, compliance.ClassUnderpaid, out.Result.Classification)
}

func TestEvaluate_LatestProfileWins(t *testing.T) {
	// GIVEN: Two uploaded contracts, the later one on a higher base rate
	// WHEN: Evaluating
	// THEN: The later upload is the active profile

	in := eveningAtOrdinary()
	older := casual("E-1001")
	older.UploadedAt = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	newer := casual("E-1001")
	newer.BaseRate = dec("30.00")
	newer.UploadedAt = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	in.Profiles = []compliance.EmploymentProfile{newer, older}

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Result)
	// 2h × 30.00 × 1.10 × 1.25
	assertDecimal(t, "82.50", out.Result.TotalEntitled())
}

func TestActiveProfile_IgnoresOtherPeriods(t *testing.T) {
	other := casual("E-1")
	other.PayPeriodID = "2025-02-F2"
	other.UploadedAt = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	current := casual("E-1")
	current.PayPeriodID = "2025-03-F1"

	got := compliance.ActiveProfile([]compliance.EmploymentProfile{other, current}, "2025-03-F1")
	require.NotNil(t, got)
	assert.Equal(t, compliance.PayPeriodID("2025-03-F1"), got.PayPeriodID)

	assert.Nil(t, compliance.ActiveProfile([]compliance.EmploymentProfile{other}, "2025-03-F1"))
}

// =============================================================================
// SCOPE
// =============================================================================

func TestEvaluate_ShiftOutsidePeriodIsLeftOut(t *testing.T) {
	// GIVEN: An employee paid in full for the period plus a February evening shift
	// WHEN: Evaluating March
	// THEN: The February shift adds no entitlement and is reported as out of scope

	in := paidInFull()
	in.Segments = append(in.Segments, seg("E-1001", "2025-02-25", "18:00", "20:00"))

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Result)
	r := out.Result

	assert.Equal(t, compliance.ClassOK, r.Classification)
	assertDecimal(t, "78.38", r.TotalEntitled())
	assertDecimal(t, "0", r.Shortfall())
	assertDecimal(t, "0.95", r.Confidence, "out-of-scope shifts carry no penalty")

	require.Len(t, r.Flags, 1)
	assert.Equal(t, compliance.FlagSegmentOutOfScope, r.Flags[0].Kind)
	assert.Contains(t, r.Flags[0].Detail, "2025-02-25 18:00 outside pay period 2025-03-F1")
}

func TestEvaluate_OtherEmployeesShiftIsLeftOut(t *testing.T) {
	in := paidInFull()
	in.Segments = append(in.Segments, seg("E-2002", "2025-03-12", "18:00", "20:00"))

	out := newEngine(t).Evaluate(march(), in)
	require.NotNil(t, out.Result)
	assert.Equal(t, compliance.ClassOK, out.Result.Classification)
	assertDecimal(t, "78.38", out.Result.TotalEntitled())
	require.Len(t, out.Result.Flags, 1)
	assert.Contains(t, out.Result.Flags[0].Detail, "belongs to employee E-2002")
}

func TestEvaluate_OnlyOutOfPeriodShiftsMeansNoTimesheet(t *testing.T) {
	in := paidInFull()
	in.Segments = []compliance.ShiftSegment{seg("E-1001", "2025-03-17", "18:00", "20:00")}

	out := newEngine(t).Evaluate(march(), in)
	assert.Nil(t, out.Result)
	require.NotNil(t, out.Exclusion)
	assert.Equal(t, []string{"timesheet"}, out.Exclusion.Missing)
}

func TestEvaluate_OvernightShiftOnLastDayStaysInPeriod(t *testing.T) {
	// GIVEN: A shift starting on the last day of the period and ending after midnight
	// WHEN: Evaluating it, and evaluating it again in a period one day longer
	// THEN: Both give the same entitlement, so the hours after midnight count

	in := paidInFull()
	in.Segments = []compliance.ShiftSegment{seg("E-1001", "2025-03-16", "22:00", "02:00")}

	longer := march()
	longer.ID = "2025-03-X"
	longer.End = compliance.NewDate(2025, time.March, 17)

	engine := newEngine(t)
	last := engine.Evaluate(march(), in)
	wide := engine.Evaluate(longer, in)
	require.NotNil(t, last.Result)
	require.NotNil(t, wide.Result)

	for _, f := range last.Result.Flags {
		assert.NotEqual(t, compliance.FlagSegmentOutOfScope, f.Kind)
	}
	assertDecimal(t, wide.Result.TotalEntitled().String(), last.Result.TotalEntitled())
}

// =============================================================================
// SCORING
// =============================================================================

func TestEvaluate_PayingMoreNeverLowersConfidence(t *testing.T) {
	// GIVEN: The underpaid and the uncertain employee
	// WHEN: Raising the paid amount step by step
	// THEN: Confidence never falls and the anomaly score never rises

	tests := []struct {
		name  string
		input func() compliance.EmployeeInput
		paid  []string
	}{
		{"evening shift", eveningAtOrdinary, []string{"71.25", "75.00", "78.38", "90.00"}},
		{"sunday shift", sundayLowConfidence, []string{"142.50", "160.00", "199.50", "250.00"}},
	}

	engine := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prev *compliance.ComplianceResult
			for _, amount := range tt.paid {
				in := tt.input()
				in.Paid[0].Hours, in.Paid[0].Rate = nil, nil
				in.Paid[0].Amount = dec(amount)

				out := engine.Evaluate(march(), in)
				require.NotNil(t, out.Result, "paid %s", amount)
				r := out.Result
				if prev != nil {
					assert.True(t, r.Confidence.GreaterThanOrEqual(prev.Confidence),
						"paid %s: confidence %s fell from %s", amount, r.Confidence, prev.Confidence)
					assert.LessOrEqual(t, r.AnomalyScore, prev.AnomalyScore, "paid %s", amount)
				}
				prev = r
			}
		})
	}
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestEvaluate_ByteIdenticalOnRerun(t *testing.T) {
	// GIVEN: The same inputs evaluated twice by separately built engines
	// WHEN: Serializing both results
	// THEN: The bytes are identical

	first := newEngine(t).Evaluate(march(), sundayLowConfidence())
	second := newEngine(t).Evaluate(march(), sundayLowConfidence())

	a, err := json.Marshal(first.Result)
	require.NoError(t, err)
	b, err := json.Marshal(second.Result)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestInputHash(t *testing.T) {
	engine := newEngine(t)
	base, err := engine.InputHash(march(), eveningAtOrdinary())
	require.NoError(t, err)

	t.Run("segment order does not matter", func(t *testing.T) {
		a := eveningAtOrdinary()
		a.Segments = append(a.Segments, seg("E-1001", "2025-03-12", "09:00", "12:00"))
		b := eveningAtOrdinary()
		b.Segments = append([]compliance.ShiftSegment{seg("E-1001", "2025-03-12", "09:00", "12:00")}, b.Segments...)

		ha, err := engine.InputHash(march(), a)
		require.NoError(t, err)
		hb, err := engine.InputHash(march(), b)
		require.NoError(t, err)
		assert.Equal(t, ha, hb)
	})

	t.Run("corrected payslip changes the hash", func(t *testing.T) {
		in := eveningAtOrdinary()
		in.Paid[0].Amount = dec("78.38")
		in.Paid[0].Hours, in.Paid[0].Rate = nil, nil
		h, err := engine.InputHash(march(), in)
		require.NoError(t, err)
		assert.NotEqual(t, base, h)
	})

	t.Run("engine settings change the hash", func(t *testing.T) {
		cfg := compliance.DefaultEngineConfig()
		cfg.Router.AutoAccept = dec("0.80")
		other, err := compliance.NewEngine(presetTable(t), nil, cfg)
		require.NoError(t, err)
		h, err := other.InputHash(march(), eveningAtOrdinary())
		require.NoError(t, err)
		assert.NotEqual(t, base, h)
	})
}

func TestComplianceResult_JSONCarriesDerivedTotals(t *testing.T) {
	out := newEngine(t).Evaluate(march(), eveningAtOrdinary())
	require.NotNil(t, out.Result)

	b, err := json.Marshal(out.Result)
	require.NoError(t, err)

	var view struct {
		TotalEntitled   string `json:"total_entitled"`
		TotalPaid       string `json:"total_paid"`
		TotalDifference string `json:"total_difference"`
		Shortfall       string `json:"shortfall"`
		Lines           []struct {
			Component  string `json:"component"`
			Difference string `json:"difference"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(b, &view))

	want := []struct {
		Component  string `json:"component"`
		Difference string `json:"difference"`
	}{{Component: "evening-penalty", Difference: "-7.13"}}
	if diff := cmp.Diff(want, view.Lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "78.38", view.TotalEntitled)
	assert.Equal(t, "-7.13", view.TotalDifference)
	assert.Equal(t, "7.13", view.Shortfall)
}

func TestNewEngine_RequiresRuleTable(t *testing.T) {
	_, err := compliance.NewEngine(nil, nil, compliance.DefaultEngineConfig())
	assert.Error(t, err)
}
