/*
errors.go - Centralized error types for the compliance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is against the sentinels and errors.As against
  the structured types when they need the details.

ERROR CATEGORIES:
  1. Determination errors - RuleResolutionError, DataIncompleteError,
     CurrencyPrecisionError. These never escape the batch boundary; they are
     attached to the employee's outcome record.
  2. Store errors - duplicate results, missing runs or review cases
  3. Review errors - invalid decisions for a case's current state

SEE ALSO:
  - pipeline.go: Converts determination errors into outcomes
  - store.go: Uses the store sentinels
*/
package compliance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRuleResolution is returned when no award rule covers a worked interval.
	ErrRuleResolution = errors.New("rule resolution failed")

	// ErrDataIncomplete is returned when a contract, timesheet or payslip is missing.
	ErrDataIncomplete = errors.New("data incomplete")

	// ErrCurrencyPrecision is returned when amounts cannot be reconciled to the cent.
	ErrCurrencyPrecision = errors.New("currency precision mismatch")

	// ErrDuplicateResult is returned when a result with the same
	// (employee, pay period, input hash) key already exists. Safe to ignore on reruns.
	ErrDuplicateResult = errors.New("duplicate compliance result")

	// ErrDuplicateReviewCase is returned when a review case already exists for a result.
	ErrDuplicateReviewCase = errors.New("duplicate review case")

	// ErrRunNotFound is returned when an audit run id is unknown.
	ErrRunNotFound = errors.New("audit run not found")

	// ErrReviewCaseNotFound is returned when a review case id is unknown.
	ErrReviewCaseNotFound = errors.New("review case not found")

	// ErrResultNotFound is returned when a result key is unknown.
	ErrResultNotFound = errors.New("compliance result not found")

	// ErrInvalidDecision is returned when a decision is not allowed in the case's state.
	ErrInvalidDecision = errors.New("invalid review decision")

	// ErrAwardNotFound is returned when a rule table has no rule set for an award.
	ErrAwardNotFound = errors.New("award not found")

	// ErrInvalidPeriod is returned when a pay period is malformed.
	ErrInvalidPeriod = errors.New("invalid pay period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleResolutionError reports a worked interval no award rule covers.
type RuleResolutionError struct {
	EmployeeID EmployeeID `json:"employee_id"`
	AwardID    AwardID    `json:"award_id,omitempty"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	DayType    DayType    `json:"day_type,omitempty"`
	Window     TimeWindow `json:"window,omitempty"`
	Reason     string     `json:"reason"`
}

func (e *RuleResolutionError) Error() string {
	return fmt.Sprintf("no award rule for %s %s-%s (%s/%s): %s",
		e.EmployeeID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339),
		e.DayType, e.Window, e.Reason)
}

func (e *RuleResolutionError) Unwrap() error { return ErrRuleResolution }

// DataIncompleteError lists the documents missing for an employee.
type DataIncompleteError struct {
	EmployeeID EmployeeID
	Missing    []string // "contract", "timesheet", "payslip"
}

func (e *DataIncompleteError) Error() string {
	return fmt.Sprintf("insufficient data for %s: missing %s", e.EmployeeID, strings.Join(e.Missing, ", "))
}

func (e *DataIncompleteError) Unwrap() error { return ErrDataIncomplete }

// CurrencyPrecisionError reports an amount that does not reconcile to the cent.
type CurrencyPrecisionError struct {
	EmployeeID EmployeeID
	Component  ComponentKey
	Amount     string
	Detail     string
}

func (e *CurrencyPrecisionError) Error() string {
	return fmt.Sprintf("precision mismatch for %s on %s (%s): %s",
		e.EmployeeID, e.Component, e.Amount, e.Detail)
}

func (e *CurrencyPrecisionError) Unwrap() error { return ErrCurrencyPrecision }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDuplicateResult) ||
		errors.Is(err, ErrDuplicateReviewCase)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrReviewCaseNotFound) ||
		errors.Is(err, ErrResultNotFound) ||
		errors.Is(err, ErrAwardNotFound)
}
