package compliance

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AUDIT RUN - one organisation, one pay period
// =============================================================================

// AuditRun collects the outcomes of one batch. Aggregates are never stored;
// Stats derives them and caches the answer until the next Append.
type AuditRun struct {
	ID             RunID        `json:"id"`
	OrganisationID string       `json:"organisation_id"`
	PayPeriod      PayPeriod    `json:"pay_period"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    time.Time    `json:"completed_at"`
	Cancelled      bool         `json:"cancelled"`
	NotRun         []EmployeeID `json:"not_run,omitempty"`

	mu       sync.Mutex
	outcomes []Outcome
	stats    *RunStats
}

func NewAuditRun(id RunID, org string, period PayPeriod, started time.Time) *AuditRun {
	return &AuditRun{ID: id, OrganisationID: org, PayPeriod: period, StartedAt: started}
}

// Append adds outcomes and invalidates the cached stats.
func (r *AuditRun) Append(outcomes ...Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcomes...)
	r.stats = nil
}

// Outcomes returns a copy of the run's outcomes in append order.
func (r *AuditRun) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// Results returns the compliance results of the run, skipping exclusions.
func (r *AuditRun) Results() []ComplianceResult {
	var out []ComplianceResult
	for _, o := range r.Outcomes() {
		if o.Result != nil {
			out = append(out, *o.Result)
		}
	}
	return out
}

// RunStats are the run-level aggregates.
type RunStats struct {
	Employees      int                    `json:"employees"`
	ByClass        map[Classification]int `json:"by_classification"`
	Excluded       map[ExclusionKind]int  `json:"excluded"`
	Skipped        int                    `json:"skipped"`
	NotRun         int                    `json:"not_run"`
	TotalEntitled  decimal.Decimal        `json:"total_entitled"`
	TotalPaid      decimal.Decimal        `json:"total_paid"`
	TotalLiability decimal.Decimal        `json:"total_liability"`
	RootCauses     map[ComponentKey]int   `json:"root_causes"`
}

// Stats returns the aggregates, computing them at most once per Append.
func (r *AuditRun) Stats() RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		s := computeStats(r.outcomes)
		s.NotRun = len(r.NotRun)
		r.stats = &s
	}
	return *r.stats
}

// computeStats is the reduction over per-employee outcomes. Total liability
// counts only underpaid results; the root-cause histogram counts the primary
// reason of every result that has one.
func computeStats(outcomes []Outcome) RunStats {
	s := RunStats{
		ByClass:        make(map[Classification]int),
		Excluded:       make(map[ExclusionKind]int),
		RootCauses:     make(map[ComponentKey]int),
		TotalEntitled:  decimal.Zero,
		TotalPaid:      decimal.Zero,
		TotalLiability: decimal.Zero,
	}
	for _, o := range outcomes {
		s.Employees++
		if o.Skipped {
			s.Skipped++
		}
		if o.Exclusion != nil {
			s.Excluded[o.Exclusion.Kind]++
			continue
		}
		if o.Result == nil {
			continue
		}
		r := o.Result
		s.ByClass[r.Classification]++
		s.TotalEntitled = s.TotalEntitled.Add(r.TotalEntitled())
		s.TotalPaid = s.TotalPaid.Add(r.TotalPaid())
		if r.Classification == ClassUnderpaid {
			s.TotalLiability = s.TotalLiability.Add(r.Shortfall())
		}
		if r.PrimaryReason != "" {
			s.RootCauses[r.PrimaryReason]++
		}
	}
	return s
}

// RootCauseRanking returns histogram keys ordered by count, then key.
func (s RunStats) RootCauseRanking() []ComponentKey {
	keys := make([]ComponentKey, 0, len(s.RootCauses))
	for k := range s.RootCauses {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s.RootCauses[keys[i]] != s.RootCauses[keys[j]] {
			return s.RootCauses[keys[i]] > s.RootCauses[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// MarshalJSON writes the run header, outcomes and stats.
func (r *AuditRun) MarshalJSON() ([]byte, error) {
	type header struct {
		ID             RunID        `json:"id"`
		OrganisationID string       `json:"organisation_id"`
		PayPeriod      PayPeriod    `json:"pay_period"`
		StartedAt      time.Time    `json:"started_at"`
		CompletedAt    time.Time    `json:"completed_at"`
		Cancelled      bool         `json:"cancelled"`
		NotRun         []EmployeeID `json:"not_run,omitempty"`
		Outcomes       []Outcome    `json:"outcomes"`
		Stats          RunStats     `json:"stats"`
	}
	return json.Marshal(header{
		ID: r.ID, OrganisationID: r.OrganisationID, PayPeriod: r.PayPeriod,
		StartedAt: r.StartedAt, CompletedAt: r.CompletedAt, Cancelled: r.Cancelled,
		NotRun: r.NotRun, Outcomes: r.Outcomes(), Stats: r.Stats(),
	})
}

// UnmarshalJSON restores a run saved with MarshalJSON. Stats are recomputed.
func (r *AuditRun) UnmarshalJSON(b []byte) error {
	var h struct {
		ID             RunID        `json:"id"`
		OrganisationID string       `json:"organisation_id"`
		PayPeriod      PayPeriod    `json:"pay_period"`
		StartedAt      time.Time    `json:"started_at"`
		CompletedAt    time.Time    `json:"completed_at"`
		Cancelled      bool         `json:"cancelled"`
		NotRun         []EmployeeID `json:"not_run"`
		Outcomes       []Outcome    `json:"outcomes"`
	}
	if err := json.Unmarshal(b, &h); err != nil {
		return err
	}
	r.ID, r.OrganisationID, r.PayPeriod = h.ID, h.OrganisationID, h.PayPeriod
	r.StartedAt, r.CompletedAt, r.Cancelled, r.NotRun = h.StartedAt, h.CompletedAt, h.Cancelled, h.NotRun
	r.Append(h.Outcomes...)
	return nil
}
