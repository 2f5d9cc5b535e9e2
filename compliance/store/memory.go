// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/wage-compliance/compliance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	results    map[compliance.ResultKey]compliance.StoredResult
	versions   map[versionKey][]compliance.ResultKey
	exclusions map[compliance.RunID][]compliance.Exclusion
	runs       map[compliance.RunID]*compliance.AuditRun
	cases      map[compliance.ReviewCaseID]compliance.ReviewCase
	caseOrder  []compliance.ReviewCaseID
	decisions  map[compliance.ReviewCaseID][]compliance.DecisionRecord
}

type versionKey struct {
	EmployeeID  compliance.EmployeeID
	PayPeriodID compliance.PayPeriodID
}

var _ compliance.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		results:    make(map[compliance.ResultKey]compliance.StoredResult),
		versions:   make(map[versionKey][]compliance.ResultKey),
		exclusions: make(map[compliance.RunID][]compliance.Exclusion),
		runs:       make(map[compliance.RunID]*compliance.AuditRun),
		cases:      make(map[compliance.ReviewCaseID]compliance.ReviewCase),
		decisions:  make(map[compliance.ReviewCaseID][]compliance.DecisionRecord),
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// SaveResult adds a result. Append-only.
func (m *Memory) SaveResult(_ context.Context, rec compliance.StoredResult) (compliance.StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.Key()
	if _, ok := m.results[key]; ok {
		return compliance.StoredResult{}, compliance.ErrDuplicateResult
	}
	vk := versionKey{EmployeeID: key.EmployeeID, PayPeriodID: key.PayPeriodID}
	m.versions[vk] = append(m.versions[vk], key)
	rec.Version = len(m.versions[vk])
	m.results[key] = rec
	return rec, nil
}

func (m *Memory) GetResult(_ context.Context, key compliance.ResultKey) (compliance.StoredResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.results[key]
	if !ok {
		return compliance.StoredResult{}, fmt.Errorf("%w: %s", compliance.ErrResultNotFound, key)
	}
	return rec, nil
}

func (m *Memory) ResultExists(_ context.Context, key compliance.ResultKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.results[key]
	return ok, nil
}

func (m *Memory) LatestResult(_ context.Context, employee compliance.EmployeeID, period compliance.PayPeriodID) (compliance.StoredResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.versions[versionKey{EmployeeID: employee, PayPeriodID: period}]
	if len(keys) == 0 {
		return compliance.StoredResult{}, fmt.Errorf("%w: %s/%s", compliance.ErrResultNotFound, employee, period)
	}
	return m.results[keys[len(keys)-1]], nil
}

func (m *Memory) SaveExclusion(_ context.Context, run compliance.RunID, ex compliance.Exclusion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exclusions[run] = append(m.exclusions[run], ex)
	return nil
}

// Exclusions returns the exclusions recorded for a run.
func (m *Memory) Exclusions(run compliance.RunID) []compliance.Exclusion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]compliance.Exclusion(nil), m.exclusions[run]...)
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run *compliance.AuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s already saved", run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id compliance.RunID) (*compliance.AuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", compliance.ErrRunNotFound, id)
	}
	return run, nil
}

func (m *Memory) ListRuns(_ context.Context) ([]*compliance.AuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*compliance.AuditRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// =============================================================================
// REVIEW CASES
// =============================================================================

func (m *Memory) SaveReviewCase(_ context.Context, c compliance.ReviewCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[c.ID]; ok {
		return compliance.ErrDuplicateReviewCase
	}
	m.cases[c.ID] = c
	m.caseOrder = append(m.caseOrder, c.ID)
	return nil
}

func (m *Memory) GetReviewCase(_ context.Context, id compliance.ReviewCaseID) (compliance.ReviewCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[id]
	if !ok {
		return compliance.ReviewCase{}, fmt.Errorf("%w: %s", compliance.ErrReviewCaseNotFound, id)
	}
	return c, nil
}

func (m *Memory) ListReviewCases(_ context.Context) ([]compliance.ReviewCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]compliance.ReviewCase, 0, len(m.caseOrder))
	for _, id := range m.caseOrder {
		out = append(out, m.cases[id])
	}
	return out, nil
}

// AppendDecision adds a decision record. Append-only.
func (m *Memory) AppendDecision(_ context.Context, rec compliance.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[rec.CaseID]; !ok {
		return fmt.Errorf("%w: %s", compliance.ErrReviewCaseNotFound, rec.CaseID)
	}
	m.decisions[rec.CaseID] = append(m.decisions[rec.CaseID], rec)
	return nil
}

func (m *Memory) Decisions(_ context.Context, id compliance.ReviewCaseID) ([]compliance.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]compliance.DecisionRecord, len(m.decisions[id]))
	copy(result, m.decisions[id])
	return result, nil
}
