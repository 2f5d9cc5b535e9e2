/*
handlers.go - HTTP API handlers for the wage compliance engine

PURPOSE:
  Exposes audit runs, remediation reports and the review queue via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the compliance package.

ENDPOINTS:
  Awards:
    GET    /api/awards                        List award rule set versions
    POST   /api/awards                        Register a rule set version (JSON)

  Holidays:
    GET    /api/holidays?region=              National plus regional holidays
    POST   /api/holidays                      Add a holiday

  Audits:
    POST   /api/audits?region=                Run an audit over an audit request
    GET    /api/audits                        List runs (summaries, newest first)
    GET    /api/audits/{id}                   Run with outcomes and stats
    GET    /api/audits/{id}/results?mode=     Results filtered by report mode
    GET    /api/audits/{id}/remediation.csv   Remediation report as CSV
    GET    /api/audits/{id}/remediation.xlsx  Remediation report as a workbook

  Reviews:
    GET    /api/reviews?status=               Cases ordered by SLA deadline
    GET    /api/reviews/{id}                  One case with its decisions
    POST   /api/reviews/{id}/assign           Assign to a reviewer
    POST   /api/reviews/{id}/decisions        approve | mark_ok | request_more_data | escalate
    POST   /api/reviews/{id}/rescore          Link the newest result for the case
    POST   /api/reviews/escalate              Escalate overdue cases now

ARCHITECTURE:
  Handler holds every dependency. The rule table is replaced, never
  mutated, when a rule set is registered, so engines built for runs in
  flight keep the table they started with.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid decisions
  - 404: Run, case, result or award not found
  - 409: Duplicate result or review case
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Actors on review decisions are taken
  from the request body as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Periodic SLA escalation
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/export"
	"github.com/warp/wage-compliance/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// CatalogStore persists the reference data an audit is evaluated against.
type CatalogStore interface {
	SaveRuleSet(ctx context.Context, set compliance.AwardRuleSet) error
	SaveHoliday(ctx context.Context, h compliance.Holiday) error
	Holidays(ctx context.Context, region string) ([]compliance.Holiday, error)
}

// Options are the run settings shared by every audit.
type Options struct {
	Engine  compliance.EngineConfig
	Workers int
	Mode    export.ReportMode
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   compliance.Store
	Catalog CatalogStore
	Reviews *compliance.ReviewQueue

	opts Options
	log  *zap.Logger
	now  func() time.Time

	mu    sync.RWMutex
	rules *compliance.RuleTable
}

// NewHandler creates a handler. rules is the table audits are evaluated
// against until a new rule set is registered.
func NewHandler(store compliance.Store, catalog CatalogStore, rules *compliance.RuleTable, reviews *compliance.ReviewQueue, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = export.AllEmployees
	}
	return &Handler{
		Store:   store,
		Catalog: catalog,
		Reviews: reviews,
		opts:    opts,
		log:     log,
		now:     time.Now,
		rules:   rules,
	}
}

// WithClock replaces the clock used for overdue flags.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func (h *Handler) ruleTable() *compliance.RuleTable {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rules
}

// =============================================================================
// HEALTH & AWARDS
// =============================================================================

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListAwards returns every registered award version.
func (h *Handler) ListAwards(w http.ResponseWriter, r *http.Request) {
	sets := h.ruleTable().All()
	dtos := make([]AwardDTO, 0, len(sets))
	for _, s := range sets {
		dtos = append(dtos, toAwardDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAward registers a new award rule set version.
func (h *Handler) CreateAward(w http.ResponseWriter, r *http.Request) {
	var doc factory.RuleSetDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	set, err := factory.FromDoc(doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule set", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := compliance.NewRuleTable(append(h.rules.All(), *set)...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Rule set conflicts with the table", err)
		return
	}
	if err := h.Catalog.SaveRuleSet(r.Context(), *set); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule set", err)
		return
	}
	h.rules = next

	h.log.Info("award rule set registered",
		zap.String("award_id", string(set.AwardID)),
		zap.String("version", set.Version))
	writeJSON(w, http.StatusCreated, toAwardDTO(*set))
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ListHolidays returns national holidays plus those of ?region=.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Catalog.Holidays(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	if holidays == nil {
		holidays = []compliance.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

// CreateHoliday adds a public holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var holiday compliance.Holiday
	if err := json.NewDecoder(r.Body).Decode(&holiday); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if holiday.Date.IsZero() || holiday.Name == "" {
		writeError(w, http.StatusBadRequest, "date and name are required", nil)
		return
	}
	if err := h.Catalog.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

// =============================================================================
// AUDIT RUNS
// =============================================================================

// CreateAudit evaluates an audit request and returns the completed run.
// Holidays stored for ?region= are merged with those in the request.
func (h *Handler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := factory.DecodeAudit(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid audit request", err)
		return
	}

	stored, err := h.Catalog.Holidays(ctx, r.URL.Query().Get("region"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load holidays", err)
		return
	}
	calendar := compliance.NewHolidaySet(append(stored, req.Holidays...)...)

	engine, err := compliance.NewEngine(h.ruleTable(), calendar, h.opts.Engine)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build engine", err)
		return
	}
	coordinator := compliance.NewCoordinator(engine, h.Store, h.Reviews, h.opts.Workers, h.log)

	run, err := coordinator.Run(ctx, req.OrganisationID, req.Period, req.Inputs)
	if err != nil {
		writeDomainError(w, "Audit run failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// ListAudits returns run summaries, newest first.
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunSummaryDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunSummary(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAudit returns one run with its outcomes and stats.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), compliance.RunID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetAuditResults returns a run's results filtered by ?mode=.
func (h *Handler) GetAuditResults(w http.ResponseWriter, r *http.Request) {
	run, mode, ok := h.runForReport(w, r)
	if !ok {
		return
	}
	results := mode.Filter(run.Results())
	if results == nil {
		results = []compliance.ComplianceResult{}
	}
	writeJSON(w, http.StatusOK, ResultsResponse{RunID: run.ID, Mode: mode, Results: results})
}

// GetRemediationCSV streams the remediation report as CSV.
func (h *Handler) GetRemediationCSV(w http.ResponseWriter, r *http.Request) {
	run, mode, ok := h.runForReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="remediation-%s.csv"`, run.ID))
	if err := export.WriteRemediationCSV(w, run.Results(), mode); err != nil {
		h.log.Error("remediation csv write failed", zap.String("run_id", string(run.ID)), zap.Error(err))
	}
}

// GetRemediationXLSX streams the remediation report as a workbook.
func (h *Handler) GetRemediationXLSX(w http.ResponseWriter, r *http.Request) {
	run, mode, ok := h.runForReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="remediation-%s.xlsx"`, run.ID))
	if err := export.WriteRemediationXLSX(w, run.Results(), mode); err != nil {
		h.log.Error("remediation xlsx write failed", zap.String("run_id", string(run.ID)), zap.Error(err))
	}
}

// runForReport loads the run named in the path and the report mode from the
// query, writing the error response itself when either fails.
func (h *Handler) runForReport(w http.ResponseWriter, r *http.Request) (*compliance.AuditRun, export.ReportMode, bool) {
	mode := h.opts.Mode
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, err := export.ParseReportMode(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid report mode", err)
			return nil, "", false
		}
		mode = m
	}
	run, err := h.Store.GetRun(r.Context(), compliance.RunID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return nil, "", false
	}
	return run, mode, true
}

// =============================================================================
// REVIEW CASES
// =============================================================================

// ListReviews returns cases ordered by SLA deadline, optionally by ?status=.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	status := compliance.CaseStatus(r.URL.Query().Get("status"))
	states, err := h.Reviews.List(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list review cases", err)
		return
	}
	now := h.now()
	dtos := make([]CaseDTO, 0, len(states))
	for _, s := range states {
		dtos = append(dtos, toCaseDTO(s, now))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReview returns one case.
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	state, err := h.Reviews.Get(r.Context(), caseID(r))
	if err != nil {
		writeDomainError(w, "Failed to get review case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(state, h.now()))
}

// AssignReview hands a case to a reviewer.
func (h *Handler) AssignReview(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required", nil)
		return
	}
	state, err := h.Reviews.Assign(r.Context(), caseID(r), req.Actor, req.Reviewer)
	if err != nil {
		writeDomainError(w, "Failed to assign review case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(state, h.now()))
}

// DecideReview records a reviewer decision.
func (h *Handler) DecideReview(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required", nil)
		return
	}
	state, err := h.Reviews.Decide(r.Context(), caseID(r), req.Action, req.Actor, req.Note)
	if err != nil {
		writeDomainError(w, "Failed to record decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(state, h.now()))
}

// RescoreReview links the newest stored result for the case's employee and
// pay period. It is rejected when no newer result exists.
func (h *Handler) RescoreReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RescoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required", nil)
		return
	}

	id := caseID(r)
	state, err := h.Reviews.Get(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get review case", err)
		return
	}
	latest, err := h.Store.LatestResult(ctx, state.Case.EmployeeID, state.Case.PayPeriodID)
	if err != nil {
		writeDomainError(w, "Failed to load latest result", err)
		return
	}
	if latest.Key() == state.CurrentResult {
		writeError(w, http.StatusBadRequest, "No newer result for this case", nil)
		return
	}

	next, err := h.Reviews.Rescore(ctx, id, req.Actor, latest.Result)
	if err != nil {
		writeDomainError(w, "Failed to rescore review case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(next, h.now()))
}

// EscalateOverdue runs the SLA sweep immediately.
func (h *Handler) EscalateOverdue(w http.ResponseWriter, r *http.Request) {
	escalated, err := h.Reviews.EscalateOverdue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to escalate overdue cases", err)
		return
	}
	now := h.now()
	dtos := make([]CaseDTO, 0, len(escalated))
	for _, s := range escalated {
		dtos = append(dtos, toCaseDTO(s, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"escalated": dtos})
}

func caseID(r *http.Request) compliance.ReviewCaseID {
	return compliance.ReviewCaseID(chi.URLParam(r, "id"))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps compliance errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case compliance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, compliance.ErrDuplicateResult), errors.Is(err, compliance.ErrDuplicateReviewCase):
		writeError(w, http.StatusConflict, message, err)
	case compliance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
