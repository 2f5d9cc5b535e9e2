/*
Package compliance provides the wage compliance calculation and review-routing engine.

PURPOSE:
  Turns structured employee inputs (employment profile, worked shift segments,
  payslip lines and data-quality flags) into a per-employee compliance verdict:
  an itemized entitlement, a signed discrepancy per pay component, an anomaly
  score, a confidence score and, when confidence is insufficient, a review case
  with an SLA.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money helpers: decimal-only arithmetic, cents rounding
  - Identifiers: EmployeeID, PayPeriodID, AwardID, ComponentKey
  - ShiftSegment: one worked interval, produced by the timesheet parser
  - EmploymentProfile: one active contract per employee per pay period
  - QualityFlag: data-quality signal raised by ingestion or by the engine

DESIGN PRINCIPLES:
  1. Purity: resolver, calculator, detector, scorer and router are pure functions
  2. Precision: decimal.Decimal everywhere, cents rounding only at line level
  3. Immutability: results are never edited; corrections append a new version
  4. Auditability: every result carries the input hash it was computed from

PIPELINE:
  ShiftSegments ──▶ Resolver ──▶ Entitlement ──▶ Discrepancy ──▶ Scoring ──▶ Router
                                                                    │
                                                      ReviewCase ◀──┘ (needs_review)

SEE ALSO:
  - award.go: Award rule table and versioning
  - resolver.go: Rate resolution per shift segment
  - pipeline.go: Per-employee pipeline wiring the stages together
  - batch.go: Fan-out across employees for an audit run
*/
package compliance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - decimal helpers (never float64 for currency)
// =============================================================================

// Cents is the rounding scale for monetary amounts.
const Cents int32 = 2

// RoundCents rounds an amount to whole cents, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal { return d.Round(Cents) }

// MustDecimal parses a decimal literal and panics on malformed input.
// Use for constants and presets only.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

var secondsPerHour = decimal.NewFromInt(3600)

// HoursOf converts a duration into decimal hours.
func HoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(secondsPerHour)
}

// AmountFor returns rate × duration in hours, rounded to cents.
// The division happens last so whole-minute durations never drift.
func AmountFor(rate decimal.Decimal, d time.Duration) decimal.Decimal {
	return RoundCents(rate.Mul(decimal.NewFromInt(int64(d / time.Second))).Div(secondsPerHour))
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type PayPeriodID string
type AwardID string
type RunID string
type ReviewCaseID string

// ComponentKey names a pay component. Award rule keys double as component keys
// ("ordinary", "evening-penalty", "casual-loading", ...).
type ComponentKey string

const (
	ComponentOrdinary ComponentKey = "ordinary"
)

// =============================================================================
// EMPLOYMENT
// =============================================================================

type EmploymentType string

const (
	FullTime EmploymentType = "full_time"
	PartTime EmploymentType = "part_time"
	Casual   EmploymentType = "casual"
)

// Valid reports whether t is a recognised employment type.
func (t EmploymentType) Valid() bool {
	switch t {
	case FullTime, PartTime, Casual:
		return true
	}
	return false
}

// EmploymentProfile is the contract snapshot for one employee in one pay period.
type EmploymentProfile struct {
	EmployeeID          EmployeeID      `json:"employee_id"`
	PayPeriodID         PayPeriodID     `json:"pay_period_id"`
	EmploymentType      EmploymentType  `json:"employment_type"`
	Classification      string          `json:"classification"`
	BaseRate            decimal.Decimal `json:"base_rate"`
	AwardID             AwardID         `json:"award_id"`
	EnterpriseAgreement bool            `json:"enterprise_agreement"`
	UploadedAt          time.Time       `json:"uploaded_at"`
}

// ActiveProfile returns the profile in force for the pay period.
// Later uploads supersede earlier ones; nil when no profile matches.
func ActiveProfile(profiles []EmploymentProfile, period PayPeriodID) *EmploymentProfile {
	var active *EmploymentProfile
	for i := range profiles {
		p := &profiles[i]
		if p.PayPeriodID != "" && p.PayPeriodID != period {
			continue
		}
		if active == nil || p.UploadedAt.After(active.UploadedAt) {
			active = p
		}
	}
	if active == nil {
		return nil
	}
	cp := *active
	return &cp
}

// =============================================================================
// SHIFT SEGMENT - worked time, already parsed from timesheets
// =============================================================================

type DayType string

const (
	DayWeekday       DayType = "weekday"
	DaySaturday      DayType = "saturday"
	DaySunday        DayType = "sunday"
	DayPublicHoliday DayType = "public_holiday"
)

type TimeWindow string

const (
	WindowOrdinary TimeWindow = "ordinary"
	WindowEvening  TimeWindow = "evening"
	WindowNight    TimeWindow = "night"
)

// ShiftSegment is one continuous worked interval. Start and End carry the
// location the award is interpreted in; day boundaries use that location.
type ShiftSegment struct {
	EmployeeID EmployeeID `json:"employee_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	SourceRef  string     `json:"source_ref,omitempty"`
}

// Date is the civil date the segment starts on.
func (s ShiftSegment) Date() Date { return DateOf(s.Start) }

// Duration is the worked length of the segment.
func (s ShiftSegment) Duration() time.Duration { return s.End.Sub(s.Start) }

// SortSegments orders segments by start, then end. Resolution results depend on
// this order, so every entry point sorts before resolving.
func SortSegments(segs []ShiftSegment) []ShiftSegment {
	out := append([]ShiftSegment(nil), segs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].End.Before(out[j].End)
	})
	return out
}

// =============================================================================
// DATA QUALITY
// =============================================================================

type FlagKind string

const (
	// Raised by ingestion.
	FlagLowConfidenceExtraction   FlagKind = "low_confidence_extraction"
	FlagAmbiguousClause           FlagKind = "ambiguous_clause"
	FlagMissingDocument           FlagKind = "missing_document"
	FlagConflictingClassification FlagKind = "conflicting_classification"

	// Raised by the engine.
	FlagRuleCoverageGap         FlagKind = "rule_coverage_gap"
	FlagUnmatchedClassification FlagKind = "unmatched_classification"
	FlagAggregatedPayslip       FlagKind = "aggregated_payslip"
	FlagEnterpriseAgreement     FlagKind = "enterprise_agreement"
	// A shift left out of the audit. Informational: no confidence penalty.
	FlagSegmentOutOfScope FlagKind = "segment_out_of_scope"
)

// QualityFlag is a data-quality signal attached to an employee's inputs.
type QualityFlag struct {
	Kind   FlagKind `json:"kind"`
	Source string   `json:"source,omitempty"`
	Detail string   `json:"detail,omitempty"`
}

// EvidenceRef points at a source document excerpt. Opaque to the engine.
type EvidenceRef string
