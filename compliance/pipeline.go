/*
pipeline.go - Per-employee compliance pipeline

PURPOSE:
  Wires the stages together for one employee and one pay period and turns
  every failure into an explicit outcome. Evaluate never returns an error:
  the caller always gets exactly one Outcome.

STAGES:
  1. Scope: shifts starting outside the pay period or belonging to another
     employee are dropped and reported as segment_out_of_scope flags.
  2. Completeness: contract, timesheet and payslip must all be present,
     otherwise the employee is excluded as insufficient_data.
  3. Resolve segments (gaps degrade to needs_review, never to zero).
  4. Entitlement lines.
  5. Discrepancies against the payslip (precision failure → exclusion).
  6. Confidence from all quality flags, anomaly score from the lines.
  7. Route to ok / underpaid / needs_review.

DETERMINISM:
  A ComplianceResult contains no timestamps, run ids or random values.
  Identical inputs give byte-identical JSON. Bookkeeping (run, version,
  recorded time) lives in StoredResult.
*/
package compliance

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT
// =============================================================================

// EmployeeInput is everything ingestion hands over for one employee.
// A nil Paid means no payslip was supplied; an empty non-nil Paid is a
// payslip with no lines.
type EmployeeInput struct {
	EmployeeID     EmployeeID          `json:"employee_id"`
	Profiles       []EmploymentProfile `json:"profiles"`
	Segments       []ShiftSegment      `json:"segments"`
	Paid           []PaidLine          `json:"paid"`
	Flags          []QualityFlag       `json:"flags,omitempty"`
	Evidence       []EvidenceRef       `json:"evidence,omitempty"`
	RemediationDue *Date               `json:"remediation_due,omitempty"`
}

// inScope splits the segments into those the audit covers and a flag for
// each one it leaves out. A segment belongs to the period when it starts on
// one of the period's days; a segment without an employee id is taken as
// the input's own.
func (in EmployeeInput) inScope(period PayPeriod) ([]ShiftSegment, []QualityFlag) {
	var kept []ShiftSegment
	var dropped []QualityFlag
	for _, s := range in.Segments {
		var detail string
		switch {
		case s.EmployeeID != "" && s.EmployeeID != in.EmployeeID:
			detail = fmt.Sprintf("shift %s belongs to employee %s", s.Start.Format("2006-01-02 15:04"), s.EmployeeID)
		case !period.Contains(s.Date()):
			detail = fmt.Sprintf("shift %s outside pay period %s (%s to %s)", s.Start.Format("2006-01-02 15:04"), period.ID, period.Start, period.End)
		default:
			kept = append(kept, s)
			continue
		}
		dropped = append(dropped, QualityFlag{Kind: FlagSegmentOutOfScope, Source: s.SourceRef, Detail: detail})
	}
	return kept, dropped
}

// missing lists the documents the input lacks, given the segments in scope.
func (in EmployeeInput) missing(profile *EmploymentProfile, segments []ShiftSegment) []string {
	var out []string
	if profile == nil {
		out = append(out, "contract")
	}
	if len(segments) == 0 {
		out = append(out, "timesheet")
	}
	if in.Paid == nil {
		out = append(out, "payslip")
	}
	return out
}

// =============================================================================
// OUTPUT
// =============================================================================

// ComplianceResult is the immutable verdict for one employee and pay period.
type ComplianceResult struct {
	EmployeeID      EmployeeID            `json:"employee_id"`
	PayPeriodID     PayPeriodID           `json:"pay_period_id"`
	InputHash       string                `json:"input_hash"`
	AwardID         AwardID               `json:"award_id"`
	Classification  Classification        `json:"classification"`
	RuleSetVersions []string              `json:"rule_set_versions"`
	Lines           PayLines              `json:"lines"`
	AnomalyScore    int                   `json:"anomaly_score"`
	Confidence      decimal.Decimal       `json:"confidence"`
	PrimaryReason   ComponentKey          `json:"primary_reason,omitempty"`
	Reasons         []string              `json:"reasons"`
	Flags           []QualityFlag         `json:"flags,omitempty"`
	CoverageGaps    []RuleResolutionError `json:"coverage_gaps,omitempty"`
	EvidenceRefs    []EvidenceRef         `json:"evidence_refs,omitempty"`
	RemediationDue  *Date                 `json:"remediation_due,omitempty"`
}

func (r ComplianceResult) Key() ResultKey {
	return ResultKey{EmployeeID: r.EmployeeID, PayPeriodID: r.PayPeriodID, InputHash: r.InputHash}
}

func (r ComplianceResult) TotalEntitled() decimal.Decimal   { return r.Lines.TotalEntitled() }
func (r ComplianceResult) TotalPaid() decimal.Decimal       { return r.Lines.TotalPaid() }
func (r ComplianceResult) TotalDifference() decimal.Decimal { return r.Lines.TotalDifference() }
func (r ComplianceResult) Shortfall() decimal.Decimal       { return r.Lines.Shortfall() }
func (r ComplianceResult) Overpayment() decimal.Decimal     { return r.Lines.Overpayment() }

// MarshalJSON adds the derived totals so consumers never recompute them.
func (r ComplianceResult) MarshalJSON() ([]byte, error) {
	type result ComplianceResult
	return json.Marshal(struct {
		result
		TotalEntitled   decimal.Decimal `json:"total_entitled"`
		TotalPaid       decimal.Decimal `json:"total_paid"`
		TotalDifference decimal.Decimal `json:"total_difference"`
		Shortfall       decimal.Decimal `json:"shortfall"`
		Overpayment     decimal.Decimal `json:"overpayment"`
	}{
		result:          result(r),
		TotalEntitled:   r.TotalEntitled(),
		TotalPaid:       r.TotalPaid(),
		TotalDifference: r.TotalDifference(),
		Shortfall:       r.Shortfall(),
		Overpayment:     r.Overpayment(),
	})
}

type ExclusionKind string

const (
	ExcludedInsufficientData ExclusionKind = "insufficient_data"
	ExcludedPrecisionFailure ExclusionKind = "precision_failure"
)

// Exclusion is the explicit failure record for an employee that could not
// be classified. It is never counted as ok, underpaid or needs_review.
type Exclusion struct {
	EmployeeID  EmployeeID    `json:"employee_id"`
	PayPeriodID PayPeriodID   `json:"pay_period_id"`
	InputHash   string        `json:"input_hash,omitempty"`
	Kind        ExclusionKind `json:"kind"`
	Missing     []string      `json:"missing,omitempty"`
	Error       string        `json:"error"`
}

// Outcome is the single record the pipeline produces per employee: a result
// or an exclusion. Skipped marks a result reused from an earlier run.
type Outcome struct {
	EmployeeID EmployeeID        `json:"employee_id"`
	Result     *ComplianceResult `json:"result,omitempty"`
	Exclusion  *Exclusion        `json:"exclusion,omitempty"`
	Skipped    bool              `json:"skipped,omitempty"`
}

// =============================================================================
// ENGINE
// =============================================================================

// EngineConfig gathers the parameters of every stage.
type EngineConfig struct {
	Scoring ScoringConfig `json:"scoring"`
	Router  RouterConfig  `json:"router"`
	// PrecisionTolerance bounds sub-cent noise on payslip amounts.
	PrecisionTolerance decimal.Decimal `json:"precision_tolerance"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Scoring:            DefaultScoringConfig(),
		Router:             DefaultRouterConfig(),
		PrecisionTolerance: MustDecimal("0.001"),
	}
}

// Engine evaluates employees against a rule table. Safe for concurrent use:
// it holds no mutable state.
type Engine struct {
	resolver *Resolver
	cfg      EngineConfig
	settings string
}

func NewEngine(rules *RuleTable, cal HolidayCalendar, cfg EngineConfig) (*Engine, error) {
	if rules == nil {
		return nil, errors.New("engine: rule table required")
	}
	if cal == nil {
		cal = NoHolidays{}
	}
	settings, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: settings: %w", err)
	}
	return &Engine{
		resolver: &Resolver{Rules: rules, Calendar: cal},
		cfg:      cfg,
		settings: string(settings),
	}, nil
}

func (e *Engine) Config() EngineConfig { return e.cfg }

// InputHash returns the idempotency hash of an employee's inputs.
func (e *Engine) InputHash(period PayPeriod, in EmployeeInput) (string, error) {
	profile := ActiveProfile(in.Profiles, period.ID)
	var ruleSets []string
	if profile != nil {
		// The day after the period is included: an overnight shift on the
		// last day runs into it.
		for _, d := range append(period.Days(), period.End.AddDays(1)) {
			set, err := e.resolver.Rules.ActiveAt(profile.AwardID, d)
			if err != nil {
				continue
			}
			ruleSets = appendVersion(ruleSets, string(set.AwardID)+"@"+set.Version)
		}
	}
	return inputHash(hashInput{
		Period:         period,
		Profile:        profile,
		Segments:       in.Segments,
		Paid:           in.Paid,
		Flags:          in.Flags,
		Evidence:       in.Evidence,
		RemediationDue: in.RemediationDue,
		RuleSets:       ruleSets,
		Settings:       e.settings,
	})
}

// Evaluate runs the pipeline for one employee.
func (e *Engine) Evaluate(period PayPeriod, in EmployeeInput) Outcome {
	out := Outcome{EmployeeID: in.EmployeeID}
	hash, err := e.InputHash(period, in)
	if err != nil {
		out.Exclusion = &Exclusion{EmployeeID: in.EmployeeID, PayPeriodID: period.ID, Kind: ExcludedPrecisionFailure, Error: err.Error()}
		return out
	}

	profile := ActiveProfile(in.Profiles, period.ID)
	segments, outOfScope := in.inScope(period)
	if missing := in.missing(profile, segments); len(missing) > 0 {
		err := &DataIncompleteError{EmployeeID: in.EmployeeID, Missing: missing}
		out.Exclusion = &Exclusion{
			EmployeeID: in.EmployeeID, PayPeriodID: period.ID, InputHash: hash,
			Kind: ExcludedInsufficientData, Missing: missing, Error: err.Error(),
		}
		return out
	}

	res := e.resolver.ResolvePeriod(segments, *profile)
	ent := CalculateEntitlement(period.ID, res.Tuples)
	disc, err := DetectDiscrepancies(in.EmployeeID, ent, in.Paid, e.cfg.PrecisionTolerance)
	if err != nil {
		out.Exclusion = &Exclusion{
			EmployeeID: in.EmployeeID, PayPeriodID: period.ID, InputHash: hash,
			Kind: ExcludedPrecisionFailure, Error: err.Error(),
		}
		return out
	}

	flags := append([]QualityFlag(nil), in.Flags...)
	flags = append(flags, outOfScope...)
	flags = append(flags, res.Flags...)
	flags = append(flags, disc.Flags...)
	if profile.EnterpriseAgreement {
		flags = append(flags, QualityFlag{
			Kind:   FlagEnterpriseAgreement,
			Source: "profile",
			Detail: "enterprise agreement may displace award terms",
		})
	}

	confidence := Confidence(flags, e.cfg.Scoring)
	class, reasons := Route(RouteInput{
		Lines:                   disc.Lines,
		Confidence:              confidence,
		Gaps:                    len(res.Gaps),
		UnmatchedClassification: hasFlag(flags, FlagUnmatchedClassification),
	}, e.cfg.Router)

	out.Result = &ComplianceResult{
		EmployeeID:      in.EmployeeID,
		PayPeriodID:     period.ID,
		InputHash:       hash,
		AwardID:         profile.AwardID,
		Classification:  class,
		RuleSetVersions: res.Versions,
		Lines:           disc.Lines,
		AnomalyScore:    AnomalyScore(disc.Lines, e.cfg.Scoring.Tolerance),
		Confidence:      confidence,
		PrimaryReason:   disc.Lines.PrimaryReason(),
		Reasons:         reasons,
		Flags:           flags,
		CoverageGaps:    res.Gaps,
		EvidenceRefs:    in.Evidence,
		RemediationDue:  in.RemediationDue,
	}
	return out
}

func hasFlag(flags []QualityFlag, kind FlagKind) bool {
	for _, f := range flags {
		if f.Kind == kind {
			return true
		}
	}
	return false
}
