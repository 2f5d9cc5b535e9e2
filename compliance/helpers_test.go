package compliance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wage-compliance/awards"
	"github.com/warp/wage-compliance/compliance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return compliance.MustDecimal(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !dec(want).Equal(got) {
		assert.Fail(t, "decimal mismatch: want "+want+", got "+got.String(), msgAndArgs...)
	}
}

// at returns the instant "2006-01-02" "15:04" in UTC.
func at(date, clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		panic(err)
	}
	return t
}

func seg(employee compliance.EmployeeID, date, from, to string) compliance.ShiftSegment {
	start, end := at(date, from), at(date, to)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return compliance.ShiftSegment{EmployeeID: employee, Start: start, End: end}
}

func casual(employee compliance.EmployeeID) compliance.EmploymentProfile {
	return compliance.EmploymentProfile{
		EmployeeID:     employee,
		EmploymentType: compliance.Casual,
		Classification: "level-3.1",
		BaseRate:       dec("28.50"),
		AwardID:        awards.ChildrensServicesID,
	}
}

func fullTime(employee compliance.EmployeeID) compliance.EmploymentProfile {
	p := casual(employee)
	p.EmploymentType = compliance.FullTime
	return p
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func presetTable(t *testing.T) *compliance.RuleTable {
	t.Helper()
	table, err := awards.Table()
	require.NoError(t, err)
	return table
}

func march() compliance.PayPeriod {
	return compliance.PayPeriod{
		ID:    "2025-03-F1",
		Start: compliance.NewDate(2025, time.March, 3),
		End:   compliance.NewDate(2025, time.March, 16),
	}
}

// =============================================================================
// SCENARIO INPUTS
// =============================================================================

// eveningAtOrdinary is a casual paid the loaded ordinary rate for two
// weekday evening hours.
func eveningAtOrdinary() compliance.EmployeeInput {
	return compliance.EmployeeInput{
		EmployeeID: "E-1001",
		Profiles:   []compliance.EmploymentProfile{casual("E-1001")},
		Segments:   []compliance.ShiftSegment{seg("E-1001", "2025-03-11", "18:00", "20:00")},
		Paid: []compliance.PaidLine{{
			Component: "evening-penalty", Hours: decp("2"), Rate: decp("35.625"),
			Amount: dec("71.25"), IncludesLoading: true,
		}},
	}
}

// paidInFull is eveningAtOrdinary with the evening penalty and loading paid.
func paidInFull() compliance.EmployeeInput {
	in := eveningAtOrdinary()
	in.Paid = []compliance.PaidLine{{Component: "evening-penalty", Amount: dec("78.38"), IncludesLoading: true}}
	return in
}

// withoutContract is eveningAtOrdinary with no employment profile.
func withoutContract() compliance.EmployeeInput {
	in := eveningAtOrdinary()
	in.EmployeeID = "E-1002"
	in.Segments[0].EmployeeID = "E-1002"
	in.Profiles = nil
	return in
}

// sundayLowConfidence is a Sunday shift paid as ordinary time from a payslip
// the extractor was unsure about.
func sundayLowConfidence() compliance.EmployeeInput {
	return compliance.EmployeeInput{
		EmployeeID: "E-1003",
		Profiles:   []compliance.EmploymentProfile{casual("E-1003")},
		Segments:   []compliance.ShiftSegment{seg("E-1003", "2025-03-16", "09:00", "13:00")},
		Paid: []compliance.PaidLine{{
			Component: "ordinary", Hours: decp("4"), Rate: decp("35.625"),
			Amount: dec("142.50"), IncludesLoading: true,
		}},
		Flags: []compliance.QualityFlag{{Kind: compliance.FlagLowConfidenceExtraction, Source: "ocr"}},
	}
}

func newEngine(t *testing.T) *compliance.Engine {
	t.Helper()
	engine, err := compliance.NewEngine(presetTable(t), nil, compliance.DefaultEngineConfig())
	require.NoError(t, err)
	return engine
}
