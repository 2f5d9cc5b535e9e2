/*
Package sqlite provides a SQLite-backed implementation of compliance.Store.

PURPOSE:
  Persists compliance results, exclusions, audit runs, review cases and
  their decision records, plus the award rule sets and holiday calendar
  the server evaluates against.

INTERFACES IMPLEMENTED:
  compliance.ResultStore: Results keyed by (employee, pay period, input hash)
  compliance.RunStore:    Completed audit runs
  compliance.ReviewStore: Review cases and decision records

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE on compliance_results, review_cases or
    review_decisions
  - A corrected input is a new row with the next version
  - A case changes only by appending to review_decisions

KEY TABLES:
  compliance_results: Immutable results, UNIQUE(employee, period, hash)
  exclusions:         Employees a run could not classify
  audit_runs:         One row per finished run, outcomes as JSON
  review_cases:       One row per needs_review result
  review_decisions:   Append-only decision log, ordered by seq
  award_rule_sets:    Rule set versions, UNIQUE(award, version)
  holidays:           Public holidays by region

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Version assignment happens inside a
  SQL transaction under the write lock.

WAL MODE:
  File databases are opened with WAL. ":memory:" is pinned to a single
  connection, otherwise every pooled connection would see its own empty
  database.

USAGE:
  store, err := sqlite.New("./data/wagecheck.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  coordinator := compliance.NewCoordinator(engine, store, reviews, 8, logger)

SEE ALSO:
  - compliance/store.go: Interface definitions
  - compliance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/wage-compliance/compliance"
)

const memoryDB = ":memory:"

// Store implements compliance.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ compliance.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == memoryDB {
		dsn = dbPath + "?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryDB {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Compliance results (append-only, versioned per employee and period)
	CREATE TABLE IF NOT EXISTS compliance_results (
		employee_id TEXT NOT NULL,
		pay_period_id TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		version INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		classification TEXT NOT NULL,
		result_json TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, pay_period_id, input_hash),
		UNIQUE (employee_id, pay_period_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run
		ON compliance_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_classification
		ON compliance_results(classification);

	-- Exclusions (insufficient data, precision failures)
	CREATE TABLE IF NOT EXISTS exclusions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		pay_period_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		exclusion_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exclusions_run
		ON exclusions(run_id);

	-- Audit runs
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		pay_period_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started
		ON audit_runs(started_at DESC);

	-- Review cases
	CREATE TABLE IF NOT EXISTS review_cases (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		run_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		pay_period_id TEXT NOT NULL,
		priority TEXT NOT NULL,
		sla_deadline TEXT NOT NULL,
		case_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cases_employee
		ON review_cases(employee_id, pay_period_id);

	-- Review decisions (append-only)
	CREATE TABLE IF NOT EXISTS review_decisions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL REFERENCES review_cases(id),
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		decision_json TEXT NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_case
		ON review_decisions(case_id, seq);

	-- Award rule sets (one row per version)
	CREATE TABLE IF NOT EXISTS award_rule_sets (
		award_id TEXT NOT NULL,
		version TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		name TEXT NOT NULL,
		rule_set_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (award_id, version)
	);

	-- Holidays (region-specific and national)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		region TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(region, date, name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RESULT STORE (compliance.ResultStore interface)
// =============================================================================

// SaveResult adds a result with the next version for its employee and
// period. Append-only.
func (s *Store) SaveResult(ctx context.Context, rec compliance.StoredResult) (compliance.StoredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return compliance.StoredResult{}, fmt.Errorf("failed to encode result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return compliance.StoredResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	key := rec.Key()
	var version int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM compliance_results WHERE employee_id = ? AND pay_period_id = ?",
		key.EmployeeID, key.PayPeriodID,
	).Scan(&version)
	if err != nil {
		return compliance.StoredResult{}, fmt.Errorf("failed to read result version: %w", err)
	}
	rec.Version = version

	_, err = tx.ExecContext(ctx, `
		INSERT INTO compliance_results
		(employee_id, pay_period_id, input_hash, version, run_id, classification, result_json, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		key.EmployeeID,
		key.PayPeriodID,
		key.InputHash,
		rec.Version,
		rec.RunID,
		rec.Result.Classification,
		string(resultJSON),
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return compliance.StoredResult{}, compliance.ErrDuplicateResult
		}
		return compliance.StoredResult{}, fmt.Errorf("failed to save result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return compliance.StoredResult{}, err
	}
	return rec, nil
}

const resultColumns = "result_json, run_id, version, recorded_at"

// GetResult retrieves a result by key.
func (s *Store) GetResult(ctx context.Context, key compliance.ResultKey) (compliance.StoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+resultColumns+" FROM compliance_results WHERE employee_id = ? AND pay_period_id = ? AND input_hash = ?",
		key.EmployeeID, key.PayPeriodID, key.InputHash,
	)
	rec, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", compliance.ErrResultNotFound, key)
	}
	return rec, err
}

// ResultExists checks the idempotency key.
func (s *Store) ResultExists(ctx context.Context, key compliance.ResultKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM compliance_results WHERE employee_id = ? AND pay_period_id = ? AND input_hash = ?",
		key.EmployeeID, key.PayPeriodID, key.InputHash,
	).Scan(&count)

	return count > 0, err
}

// LatestResult returns the highest version for an employee and period.
func (s *Store) LatestResult(ctx context.Context, employee compliance.EmployeeID, period compliance.PayPeriodID) (compliance.StoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+resultColumns+" FROM compliance_results WHERE employee_id = ? AND pay_period_id = ? ORDER BY version DESC LIMIT 1",
		employee, period,
	)
	rec, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s/%s", compliance.ErrResultNotFound, employee, period)
	}
	return rec, err
}

// ResultsByRun returns the results first recorded by a run.
func (s *Store) ResultsByRun(ctx context.Context, run compliance.RunID) ([]compliance.StoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+resultColumns+" FROM compliance_results WHERE run_id = ? ORDER BY employee_id",
		run,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []compliance.StoredResult
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (compliance.StoredResult, error) {
	var (
		rec        compliance.StoredResult
		resultJSON string
		recordedAt string
	)
	if err := row.Scan(&resultJSON, &rec.RunID, &rec.Version, &recordedAt); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return rec, fmt.Errorf("failed to decode result: %w", err)
	}
	rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
	return rec, nil
}

// SaveExclusion records an employee a run could not classify.
func (s *Store) SaveExclusion(ctx context.Context, run compliance.RunID, ex compliance.Exclusion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exJSON, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("failed to encode exclusion: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO exclusions (run_id, employee_id, pay_period_id, kind, exclusion_json) VALUES (?, ?, ?, ?, ?)",
		run, ex.EmployeeID, ex.PayPeriodID, ex.Kind, string(exJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save exclusion: %w", err)
	}
	return nil
}

// Exclusions returns the exclusions recorded for a run.
func (s *Store) Exclusions(ctx context.Context, run compliance.RunID) ([]compliance.Exclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT exclusion_json FROM exclusions WHERE run_id = ? ORDER BY seq",
		run,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []compliance.Exclusion
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ex compliance.Exclusion
		if err := json.Unmarshal([]byte(raw), &ex); err != nil {
			return nil, fmt.Errorf("failed to decode exclusion: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// =============================================================================
// RUN STORE (compliance.RunStore interface)
// =============================================================================

// SaveRun stores a finished run. Runs are written once.
func (s *Store) SaveRun(ctx context.Context, run *compliance.AuditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_runs (id, organisation_id, pay_period_id, started_at, completed_at, cancelled, run_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.OrganisationID,
		run.PayPeriod.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.CompletedAt.UTC().Format(time.RFC3339Nano),
		run.Cancelled,
		string(runJSON),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("run %s already saved", run.ID)
		}
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id compliance.RunID) (*compliance.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT run_json FROM audit_runs WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", compliance.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeRun(raw)
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*compliance.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT run_json FROM audit_runs ORDER BY started_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*compliance.AuditRun
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		run, err := decodeRun(raw)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func decodeRun(raw string) (*compliance.AuditRun, error) {
	run := &compliance.AuditRun{}
	if err := json.Unmarshal([]byte(raw), run); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return run, nil
}

// =============================================================================
// REVIEW STORE (compliance.ReviewStore interface)
// =============================================================================

// SaveReviewCase stores a new case.
func (s *Store) SaveReviewCase(ctx context.Context, c compliance.ReviewCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	caseJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode review case: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_cases (id, run_id, employee_id, pay_period_id, priority, sla_deadline, case_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.RunID,
		c.EmployeeID,
		c.PayPeriodID,
		c.Priority,
		c.SLADeadline.UTC().Format(time.RFC3339Nano),
		string(caseJSON),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return compliance.ErrDuplicateReviewCase
		}
		return fmt.Errorf("failed to save review case: %w", err)
	}
	return nil
}

// GetReviewCase retrieves a case by ID.
func (s *Store) GetReviewCase(ctx context.Context, id compliance.ReviewCaseID) (compliance.ReviewCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT case_json FROM review_cases WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return compliance.ReviewCase{}, fmt.Errorf("%w: %s", compliance.ErrReviewCaseNotFound, id)
	}
	if err != nil {
		return compliance.ReviewCase{}, err
	}
	var c compliance.ReviewCase
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, fmt.Errorf("failed to decode review case: %w", err)
	}
	return c, nil
}

// ListReviewCases returns all cases in creation order.
func (s *Store) ListReviewCases(ctx context.Context) ([]compliance.ReviewCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT case_json FROM review_cases ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []compliance.ReviewCase
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var c compliance.ReviewCase
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("failed to decode review case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// AppendDecision adds a decision record. Append-only.
func (s *Store) AppendDecision(ctx context.Context, rec compliance.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_cases WHERE id = ?", rec.CaseID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", compliance.ErrReviewCaseNotFound, rec.CaseID)
	}

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO review_decisions (id, case_id, action, actor, decision_json, at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.CaseID, rec.Action, rec.Actor, string(recJSON), rec.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	return nil
}

// Decisions returns a case's decision records in append order.
func (s *Store) Decisions(ctx context.Context, id compliance.ReviewCaseID) ([]compliance.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT decision_json FROM review_decisions WHERE case_id = ? ORDER BY seq",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []compliance.DecisionRecord{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec compliance.DecisionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// AWARD RULE SETS
// =============================================================================

// SaveRuleSet stores a rule set version. Re-saving the same version replaces
// it; a published correction should carry a new version instead.
func (s *Store) SaveRuleSet(ctx context.Context, set compliance.AwardRuleSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	setJSON, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode rule set: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO award_rule_sets (award_id, version, effective_from, name, rule_set_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(award_id, version) DO UPDATE SET
			effective_from = excluded.effective_from,
			name = excluded.name,
			rule_set_json = excluded.rule_set_json
	`,
		set.AwardID, set.Version, set.EffectiveFrom.String(), set.Name, string(setJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RuleSets returns every stored rule set version, oldest first per award.
func (s *Store) RuleSets(ctx context.Context) ([]compliance.AwardRuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT rule_set_json FROM award_rule_sets ORDER BY award_id, effective_from",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []compliance.AwardRuleSet
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var set compliance.AwardRuleSet
		if err := json.Unmarshal([]byte(raw), &set); err != nil {
			return nil, fmt.Errorf("failed to decode rule set: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday stores a holiday. An ID is derived when empty.
func (s *Store) SaveHoliday(ctx context.Context, h compliance.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = h.Region + ":" + h.Date.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, region, date, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`,
		h.ID, h.Region, h.Date.String(), h.Name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// Holidays returns the holidays of a region plus the national ones.
func (s *Store) Holidays(ctx context.Context, region string) ([]compliance.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, region, date, name FROM holidays WHERE region = '' OR region = ? ORDER BY date",
		region,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []compliance.Holiday
	for rows.Next() {
		var h compliance.Holiday
		var date string
		if err := rows.Scan(&h.ID, &h.Region, &date, &h.Name); err != nil {
			return nil, err
		}
		d, err := compliance.ParseDate(date)
		if err != nil {
			return nil, err
		}
		h.Date = d
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
