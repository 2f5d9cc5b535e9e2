/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry stable JSON tags (ComplianceResult, CaseState, AuditRun)
  are returned as they are; the types here cover request bodies and the
  summary views that have no domain equivalent.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Awards:   AwardDTO
  Audits:   RunSummaryDTO, ResultsResponse
  Reviews:  CaseDTO, AssignRequest, DecisionRequest, RescoreRequest
  Errors:   ErrorResponse

VALIDATION:
  Validation is done in handlers and in the compliance package. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/input.go: The audit request document accepted by POST /api/audits
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/export"
)

// =============================================================================
// AWARDS
// =============================================================================

// AwardDTO summarises one version of an award rule set.
type AwardDTO struct {
	AwardID       compliance.AwardID `json:"award_id"`
	Name          string             `json:"name"`
	Version       string             `json:"version"`
	EffectiveFrom compliance.Date    `json:"effective_from"`
	Rules         int                `json:"rules"`
	Classes       []string           `json:"classifications"`
}

func toAwardDTO(set compliance.AwardRuleSet) AwardDTO {
	dto := AwardDTO{
		AwardID:       set.AwardID,
		Name:          set.Name,
		Version:       set.Version,
		EffectiveFrom: set.EffectiveFrom,
		Rules:         len(set.Rules),
	}
	for _, c := range set.Classifications {
		dto.Classes = append(dto.Classes, c.Classification)
	}
	return dto
}

// =============================================================================
// AUDIT RUNS
// =============================================================================

// RunSummaryDTO is an audit run without its per-employee outcomes.
type RunSummaryDTO struct {
	ID             compliance.RunID          `json:"id"`
	OrganisationID string                    `json:"organisation_id"`
	PayPeriod      compliance.PayPeriod      `json:"pay_period"`
	StartedAt      time.Time                 `json:"started_at"`
	CompletedAt    time.Time                 `json:"completed_at"`
	Cancelled      bool                      `json:"cancelled"`
	Stats          compliance.RunStats       `json:"stats"`
	RootCauses     []compliance.ComponentKey `json:"root_cause_ranking"`
}

func toRunSummary(run *compliance.AuditRun) RunSummaryDTO {
	stats := run.Stats()
	return RunSummaryDTO{
		ID:             run.ID,
		OrganisationID: run.OrganisationID,
		PayPeriod:      run.PayPeriod,
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
		Cancelled:      run.Cancelled,
		Stats:          stats,
		RootCauses:     stats.RootCauseRanking(),
	}
}

// ResultsResponse lists a run's compliance results filtered by report mode.
type ResultsResponse struct {
	RunID   compliance.RunID              `json:"run_id"`
	Mode    export.ReportMode             `json:"mode"`
	Results []compliance.ComplianceResult `json:"results"`
}

// =============================================================================
// REVIEW CASES
// =============================================================================

// CaseDTO is a case's replayed state plus whether it is past its SLA.
type CaseDTO struct {
	compliance.CaseState
	Overdue   bool            `json:"overdue"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

func toCaseDTO(s compliance.CaseState, now time.Time) CaseDTO {
	return CaseDTO{CaseState: s, Overdue: s.Overdue(now), Shortfall: s.Case.Shortfall}
}

// AssignRequest hands a case to a reviewer.
type AssignRequest struct {
	Actor    string `json:"actor"`
	Reviewer string `json:"reviewer"`
}

// DecisionRequest records a reviewer decision.
type DecisionRequest struct {
	Action compliance.DecisionAction `json:"action"`
	Actor  string                    `json:"actor"`
	Note   string                    `json:"note,omitempty"`
}

// RescoreRequest links the newest stored result for the case's employee and
// pay period.
type RescoreRequest struct {
	Actor string `json:"actor"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
