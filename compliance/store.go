/*
store.go - Persistence interface for compliance results and review cases

PURPOSE:
  Defines the interface between the engine and the database. Results,
  exclusions, review cases and decision records are append-only: there is
  no Update or Delete anywhere in this file.

KEY INTERFACES:
  ResultStore: Compliance results and exclusions, keyed for idempotence
  RunStore:    Completed audit runs
  ReviewStore: Review cases and their decision records

IDEMPOTENCY:
  A result is keyed by (employee, pay period, input hash). Saving a key that
  already exists fails with ErrDuplicateResult; the batch coordinator checks
  ResultExists first and reuses the stored result, so reruns on unchanged
  inputs write nothing.

VERSIONS:
  A corrected input produces a new hash and therefore a new result. The
  store numbers results per (employee, pay period) in the order they were
  saved; LatestResult returns the highest version.

IMPLEMENTATIONS:
  - compliance/store/memory.go: In-memory for tests and one-shot CLI runs
  - store/sqlite/sqlite.go: SQLite
*/
package compliance

import (
	"context"
	"fmt"
	"time"
)

// ResultKey identifies one immutable compliance result.
type ResultKey struct {
	EmployeeID  EmployeeID  `json:"employee_id"`
	PayPeriodID PayPeriodID `json:"pay_period_id"`
	InputHash   string      `json:"input_hash"`
}

func (k ResultKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EmployeeID, k.PayPeriodID, k.InputHash)
}

// StoredResult wraps a result with the bookkeeping that must stay out of the
// result itself to keep reruns byte-identical.
type StoredResult struct {
	Result     ComplianceResult `json:"result"`
	RunID      RunID            `json:"run_id"`
	Version    int              `json:"version"`
	RecordedAt time.Time        `json:"recorded_at"`
}

func (s StoredResult) Key() ResultKey { return s.Result.Key() }

// =============================================================================
// STORE INTERFACES
// =============================================================================

type ResultStore interface {
	// SaveResult persists a result. Version is assigned by the store.
	// Returns ErrDuplicateResult if the key exists.
	SaveResult(ctx context.Context, rec StoredResult) (StoredResult, error)

	// GetResult returns the result for a key or ErrResultNotFound.
	GetResult(ctx context.Context, key ResultKey) (StoredResult, error)

	// ResultExists checks the idempotency key.
	ResultExists(ctx context.Context, key ResultKey) (bool, error)

	// LatestResult returns the newest version for an employee and pay period.
	LatestResult(ctx context.Context, employee EmployeeID, period PayPeriodID) (StoredResult, error)

	// SaveExclusion records an employee excluded from a run.
	SaveExclusion(ctx context.Context, run RunID, ex Exclusion) error
}

type RunStore interface {
	// SaveRun persists a finished run with its outcomes. Runs are written once.
	SaveRun(ctx context.Context, run *AuditRun) error

	// GetRun returns a run or ErrRunNotFound.
	GetRun(ctx context.Context, id RunID) (*AuditRun, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]*AuditRun, error)
}

type ReviewStore interface {
	// SaveReviewCase persists a new case. Returns ErrDuplicateReviewCase if the
	// id exists.
	SaveReviewCase(ctx context.Context, c ReviewCase) error

	// GetReviewCase returns a case or ErrReviewCaseNotFound.
	GetReviewCase(ctx context.Context, id ReviewCaseID) (ReviewCase, error)

	// ListReviewCases returns all cases ordered by creation time.
	ListReviewCases(ctx context.Context) ([]ReviewCase, error)

	// AppendDecision appends a decision record. This is the only way a case
	// changes.
	AppendDecision(ctx context.Context, rec DecisionRecord) error

	// Decisions returns a case's decision records in append order.
	Decisions(ctx context.Context, id ReviewCaseID) ([]DecisionRecord, error)
}

// Store is everything the engine persists.
type Store interface {
	ResultStore
	RunStore
	ReviewStore
}
