/*
review.go - Review cases, decision records and the review queue

PURPOSE:
  A ComplianceResult classified needs_review opens a ReviewCase. Reviewers
  act on the case by appending DecisionRecords; the case's current state is
  never stored, it is derived by replaying its records in order.

STATE MACHINE (derived):
  pending ──assign──▶ in_review ──approve──▶ approved   (terminal)
     ▲                    │      ──mark_ok──▶ marked_ok  (terminal)
     │                    │      ──escalate─▶ escalated
     └─request_more_data──┘
  any open state ──rescore──▶ closed (new result no longer needs review)
                           └─▶ pending (still needs review, new priority/SLA)

PRIORITY:
  high   shortfall ≥ HighLiability, or remediation due within ImminentDays
  medium shortfall ≥ MediumLiability, or a rule coverage gap
  low    everything else
  SLA deadline = creation + SLADays[priority] business days.

THE ORIGINAL RESULT IS NEVER TOUCHED:
  Decisions and rescoring append records. A rescore links a newer result;
  the old result stays in the store as the earlier version.
*/
package compliance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// TYPES
// =============================================================================

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type CaseStatus string

const (
	StatusPending   CaseStatus = "pending"
	StatusInReview  CaseStatus = "in_review"
	StatusEscalated CaseStatus = "escalated"
	StatusApproved  CaseStatus = "approved"
	StatusMarkedOK  CaseStatus = "marked_ok"
	StatusClosed    CaseStatus = "closed"
)

// IsOpen reports whether reviewers can still act on the case.
func (s CaseStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInReview || s == StatusEscalated
}

type DecisionAction string

const (
	ActionAssign          DecisionAction = "assign"
	ActionApprove         DecisionAction = "approve"
	ActionMarkOK          DecisionAction = "mark_ok"
	ActionRequestMoreData DecisionAction = "request_more_data"
	ActionEscalate        DecisionAction = "escalate"
	ActionRescore         DecisionAction = "rescore"
)

// ReviewCase is created once and never modified.
type ReviewCase struct {
	ID          ReviewCaseID    `json:"id"`
	RunID       RunID           `json:"run_id"`
	ResultKey   ResultKey       `json:"result_key"`
	EmployeeID  EmployeeID      `json:"employee_id"`
	PayPeriodID PayPeriodID     `json:"pay_period_id"`
	Uncertainty []string        `json:"uncertainty"`
	Shortfall   decimal.Decimal `json:"shortfall"`
	Priority    Priority        `json:"priority"`
	CreatedAt   time.Time       `json:"created_at"`
	SLADeadline time.Time       `json:"sla_deadline"`
}

// DecisionRecord is one appended reviewer or system action.
type DecisionRecord struct {
	ID       string         `json:"id"`
	CaseID   ReviewCaseID   `json:"case_id"`
	Action   DecisionAction `json:"action"`
	Actor    string         `json:"actor"`
	Reviewer string         `json:"reviewer,omitempty"` // assign
	Note     string         `json:"note,omitempty"`
	At       time.Time      `json:"at"`

	// Set by escalate and rescore.
	ResultKey   *ResultKey `json:"result_key,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	SLADeadline *time.Time `json:"sla_deadline,omitempty"`
	Close       bool       `json:"close,omitempty"`
}

// CaseState is the derived view of a case after replaying its decisions.
type CaseState struct {
	Case          ReviewCase       `json:"case"`
	Status        CaseStatus       `json:"status"`
	Reviewer      string           `json:"reviewer,omitempty"`
	Priority      Priority         `json:"priority"`
	SLADeadline   time.Time        `json:"sla_deadline"`
	CurrentResult ResultKey        `json:"current_result"`
	Decisions     []DecisionRecord `json:"decisions"`
}

// Overdue reports whether an open case has passed its SLA deadline.
func (s CaseState) Overdue(now time.Time) bool {
	return s.Status.IsOpen() && now.After(s.SLADeadline)
}

// Replay derives a case's state from its decision records.
// Records that are not valid for the state they land on are ignored; the
// queue never appends one, but a replay must not depend on that.
func Replay(c ReviewCase, records []DecisionRecord) CaseState {
	s := CaseState{
		Case:          c,
		Status:        StatusPending,
		Priority:      c.Priority,
		SLADeadline:   c.SLADeadline,
		CurrentResult: c.ResultKey,
	}
	for _, r := range records {
		if checkDecision(s, r.Action) != nil {
			continue
		}
		s.apply(r)
	}
	return s
}

func (s *CaseState) apply(r DecisionRecord) {
	switch r.Action {
	case ActionAssign:
		s.Status, s.Reviewer = StatusInReview, r.Reviewer
	case ActionApprove:
		s.Status = StatusApproved
	case ActionMarkOK:
		s.Status = StatusMarkedOK
	case ActionRequestMoreData:
		s.Status = StatusPending
	case ActionEscalate:
		s.Status = StatusEscalated
		s.setPriority(r)
	case ActionRescore:
		if r.ResultKey != nil {
			s.CurrentResult = *r.ResultKey
		}
		if r.Close {
			s.Status = StatusClosed
			break
		}
		s.Status = StatusPending
		s.setPriority(r)
	}
	s.Decisions = append(s.Decisions, r)
}

func (s *CaseState) setPriority(r DecisionRecord) {
	if r.Priority != "" {
		s.Priority = r.Priority
	}
	if r.SLADeadline != nil {
		s.SLADeadline = *r.SLADeadline
	}
}

// checkDecision rejects actions on closed cases and unknown actions.
func checkDecision(s CaseState, action DecisionAction) error {
	if !s.Status.IsOpen() {
		return fmt.Errorf("%w: case %s is %s", ErrInvalidDecision, s.Case.ID, s.Status)
	}
	switch action {
	case ActionAssign, ActionApprove, ActionMarkOK, ActionRequestMoreData, ActionEscalate, ActionRescore:
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidDecision, action)
	}
}

// =============================================================================
// PRIORITY & SLA
// =============================================================================

type ReviewConfig struct {
	HighLiability   decimal.Decimal
	MediumLiability decimal.Decimal
	// ImminentDays is how many business days before a remediation due date
	// a case counts as at imminent SLA risk.
	ImminentDays int
	SLADays      map[Priority]int
}

func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		HighLiability:   MustDecimal("500"),
		MediumLiability: MustDecimal("100"),
		ImminentDays:    5,
		SLADays:         map[Priority]int{PriorityHigh: 1, PriorityMedium: 3, PriorityLow: 5},
	}
}

// PriorityFor ranks a case by liability, coverage gaps and remediation risk.
func PriorityFor(shortfall decimal.Decimal, gaps int, due *Date, now time.Time, cfg ReviewConfig, cal HolidayCalendar) Priority {
	if shortfall.GreaterThanOrEqual(cfg.HighLiability) {
		return PriorityHigh
	}
	if due != nil {
		if !due.After(DateOf(now)) || BusinessDaysBetween(now, due.In(now.Location()), cal) <= cfg.ImminentDays {
			return PriorityHigh
		}
	}
	if shortfall.GreaterThanOrEqual(cfg.MediumLiability) || gaps > 0 {
		return PriorityMedium
	}
	return PriorityLow
}

// SLADeadlineFor returns the deadline for a case opened at t.
func SLADeadlineFor(t time.Time, p Priority, cfg ReviewConfig, cal HolidayCalendar) time.Time {
	return AddBusinessDays(t, cfg.SLADays[p], cal)
}

// raise moves a priority one tier up.
func raise(p Priority) Priority {
	if p == PriorityLow {
		return PriorityMedium
	}
	return PriorityHigh
}

// =============================================================================
// REVIEW QUEUE
// =============================================================================

// ReviewQueue opens cases and records decisions.
type ReviewQueue struct {
	store    ReviewStore
	cfg      ReviewConfig
	calendar HolidayCalendar
	log      *zap.Logger
	now      func() time.Time
}

func NewReviewQueue(store ReviewStore, cfg ReviewConfig, cal HolidayCalendar, log *zap.Logger) *ReviewQueue {
	if log == nil {
		log = zap.NewNop()
	}
	if cal == nil {
		cal = NoHolidays{}
	}
	return &ReviewQueue{store: store, cfg: cfg, calendar: cal, log: log, now: time.Now}
}

// WithClock replaces the queue's clock. Used by tests and the SLA monitor.
func (q *ReviewQueue) WithClock(now func() time.Time) *ReviewQueue {
	q.now = now
	return q
}

// caseNamespace scopes review case ids, which are derived from result keys so
// that reruns land on the same case.
var caseNamespace = uuid.MustParse("6f1c8e2a-3d4b-5e6f-8a9b-0c1d2e3f4a5b")

// CaseIDFor returns the review case id for a result.
func CaseIDFor(key ResultKey) ReviewCaseID {
	return ReviewCaseID(uuid.NewSHA1(caseNamespace, []byte(key.String())).String())
}

// Open creates the review case for a needs_review result. Opening the same
// result twice returns the existing case.
func (q *ReviewQueue) Open(ctx context.Context, run RunID, r ComplianceResult) (CaseState, error) {
	if r.Classification != ClassNeedsReview {
		return CaseState{}, fmt.Errorf("%w: result %s is %s", ErrInvalidDecision, r.Key(), r.Classification)
	}
	now := q.now()
	shortfall := r.Lines.Shortfall()
	p := PriorityFor(shortfall, len(r.CoverageGaps), r.RemediationDue, now, q.cfg, q.calendar)
	c := ReviewCase{
		ID:          CaseIDFor(r.Key()),
		RunID:       run,
		ResultKey:   r.Key(),
		EmployeeID:  r.EmployeeID,
		PayPeriodID: r.PayPeriodID,
		Uncertainty: append([]string(nil), r.Reasons...),
		Shortfall:   shortfall,
		Priority:    p,
		CreatedAt:   now,
		SLADeadline: SLADeadlineFor(now, p, q.cfg, q.calendar),
	}
	if err := q.store.SaveReviewCase(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateReviewCase) {
			return q.Get(ctx, c.ID)
		}
		return CaseState{}, err
	}
	q.log.Info("review case opened",
		zap.String("case_id", string(c.ID)),
		zap.String("employee_id", string(c.EmployeeID)),
		zap.String("priority", string(p)),
		zap.Time("sla_deadline", c.SLADeadline))
	return Replay(c, nil), nil
}

// OpenCaseFor returns the most recently created open case for an employee
// and pay period, if any.
func (q *ReviewQueue) OpenCaseFor(ctx context.Context, employee EmployeeID, period PayPeriodID) (CaseState, bool, error) {
	states, err := q.List(ctx, "")
	if err != nil {
		return CaseState{}, false, err
	}
	var found *CaseState
	for i := range states {
		s := &states[i]
		if s.Case.EmployeeID != employee || s.Case.PayPeriodID != period || !s.Status.IsOpen() {
			continue
		}
		if found == nil || s.Case.CreatedAt.After(found.Case.CreatedAt) {
			found = s
		}
	}
	if found == nil {
		return CaseState{}, false, nil
	}
	return *found, true, nil
}

// Track routes a fresh result to the review queue. An open case for the same
// employee and pay period is rescored with it, which closes the case when the
// result no longer needs review. Without one, a case is opened for a
// needs_review result and nothing happens otherwise. The bool reports whether
// a case was touched.
func (q *ReviewQueue) Track(ctx context.Context, run RunID, actor string, r ComplianceResult) (CaseState, bool, error) {
	open, ok, err := q.OpenCaseFor(ctx, r.EmployeeID, r.PayPeriodID)
	if err != nil {
		return CaseState{}, false, err
	}
	switch {
	case ok && open.CurrentResult == r.Key():
		return open, true, nil
	case ok:
		state, err := q.Rescore(ctx, open.Case.ID, actor, r)
		return state, err == nil, err
	case r.Classification == ClassNeedsReview:
		state, err := q.Open(ctx, run, r)
		return state, err == nil, err
	default:
		return CaseState{}, false, nil
	}
}

// Get returns a case's current state.
func (q *ReviewQueue) Get(ctx context.Context, id ReviewCaseID) (CaseState, error) {
	c, err := q.store.GetReviewCase(ctx, id)
	if err != nil {
		return CaseState{}, err
	}
	records, err := q.store.Decisions(ctx, id)
	if err != nil {
		return CaseState{}, err
	}
	return Replay(c, records), nil
}

// List returns the state of every case, optionally filtered by status.
func (q *ReviewQueue) List(ctx context.Context, status CaseStatus) ([]CaseState, error) {
	cases, err := q.store.ListReviewCases(ctx)
	if err != nil {
		return nil, err
	}
	var out []CaseState
	for _, c := range cases {
		records, err := q.store.Decisions(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		s := Replay(c, records)
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SLADeadline.Before(out[j].SLADeadline) })
	return out, nil
}

// Assign hands an open case to a reviewer.
func (q *ReviewQueue) Assign(ctx context.Context, id ReviewCaseID, actor, reviewer string) (CaseState, error) {
	if reviewer == "" {
		return CaseState{}, fmt.Errorf("%w: reviewer required", ErrInvalidDecision)
	}
	return q.append(ctx, id, DecisionRecord{Action: ActionAssign, Actor: actor, Reviewer: reviewer})
}

// Decide records a reviewer decision: approve, mark_ok, request_more_data or
// escalate. Escalation raises the priority one tier and restarts the SLA.
func (q *ReviewQueue) Decide(ctx context.Context, id ReviewCaseID, action DecisionAction, actor, note string) (CaseState, error) {
	switch action {
	case ActionApprove, ActionMarkOK, ActionRequestMoreData, ActionEscalate:
	default:
		return CaseState{}, fmt.Errorf("%w: %q is not a reviewer decision", ErrInvalidDecision, action)
	}
	return q.append(ctx, id, DecisionRecord{Action: action, Actor: actor, Note: note})
}

// Rescore links a newer result for the same employee and pay period. The case
// closes when the new result no longer needs review; otherwise it goes back
// to pending with priority and SLA recomputed.
func (q *ReviewQueue) Rescore(ctx context.Context, id ReviewCaseID, actor string, r ComplianceResult) (CaseState, error) {
	state, err := q.Get(ctx, id)
	if err != nil {
		return CaseState{}, err
	}
	if r.EmployeeID != state.Case.EmployeeID || r.PayPeriodID != state.Case.PayPeriodID {
		return CaseState{}, fmt.Errorf("%w: result %s does not belong to case %s", ErrInvalidDecision, r.Key(), id)
	}
	key := r.Key()
	if key == state.CurrentResult {
		return CaseState{}, fmt.Errorf("%w: case %s already reflects result %s", ErrInvalidDecision, id, key)
	}
	rec := DecisionRecord{
		Action:    ActionRescore,
		Actor:     actor,
		ResultKey: &key,
		Close:     r.Classification != ClassNeedsReview,
		Note:      fmt.Sprintf("rescored as %s", r.Classification),
	}
	if !rec.Close {
		now := q.now()
		p := PriorityFor(r.Lines.Shortfall(), len(r.CoverageGaps), r.RemediationDue, now, q.cfg, q.calendar)
		deadline := SLADeadlineFor(now, p, q.cfg, q.calendar)
		rec.Priority, rec.SLADeadline = p, &deadline
	}
	return q.append(ctx, id, rec)
}

// EscalateOverdue escalates every open case past its SLA deadline. Already
// escalated cases at high priority are left alone.
func (q *ReviewQueue) EscalateOverdue(ctx context.Context) ([]CaseState, error) {
	states, err := q.List(ctx, "")
	if err != nil {
		return nil, err
	}
	now := q.now()
	var escalated []CaseState
	for _, s := range states {
		if !s.Overdue(now) {
			continue
		}
		if s.Status == StatusEscalated && s.Priority == PriorityHigh {
			continue
		}
		next, err := q.append(ctx, s.Case.ID, DecisionRecord{
			Action: ActionEscalate,
			Actor:  "sla-monitor",
			Note:   fmt.Sprintf("SLA deadline %s passed", s.SLADeadline.Format(time.RFC3339)),
		})
		if err != nil {
			return escalated, err
		}
		escalated = append(escalated, next)
	}
	return escalated, nil
}

// append validates a record against the current state and persists it.
func (q *ReviewQueue) append(ctx context.Context, id ReviewCaseID, rec DecisionRecord) (CaseState, error) {
	state, err := q.Get(ctx, id)
	if err != nil {
		return CaseState{}, err
	}
	if err := checkDecision(state, rec.Action); err != nil {
		return CaseState{}, err
	}

	now := q.now()
	rec.ID = uuid.NewString()
	rec.CaseID = id
	rec.At = now

	if rec.Action == ActionEscalate {
		p := raise(state.Priority)
		deadline := SLADeadlineFor(now, p, q.cfg, q.calendar)
		rec.Priority, rec.SLADeadline = p, &deadline
	}

	if err := q.store.AppendDecision(ctx, rec); err != nil {
		return CaseState{}, err
	}
	q.log.Info("review decision recorded",
		zap.String("case_id", string(id)),
		zap.String("action", string(rec.Action)),
		zap.String("actor", rec.Actor))

	state.apply(rec)
	return state, nil
}
