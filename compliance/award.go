/*
award.go - Award rule table: pay rates, penalties, loadings and allowances

PURPOSE:
  Encodes the parts of a labor award the engine can apply mechanically:
  minimum hourly rates per classification, time-of-day windows, penalty
  multipliers per day type and time window, casual loading, and flat
  allowances. A rule set is versioned by effective date; the RuleTable
  returns exactly one version for any date.

RULE KINDS (highest precedence first for a worked interval):
  day_penalty:  Saturday, Sunday, public holiday multipliers
  time_penalty: evening / night multipliers
  base:         ordinary time (multiplier 1.0)
  loading:      applied on top of the selected rate (casual loading)
  split_shift:  flat amount per day worked as a split shift

EXAMPLE:
  one, evening := MustDecimal("1"), MustDecimal("1.10")
  set := AwardRuleSet{
      AwardID:       "MA000120",
      EffectiveFrom: NewDate(2025, time.July, 1),
      Windows:       []WindowSpan{{Window: WindowEvening, From: 18 * 60, To: EndOfDay}},
      Rules: []AwardRule{
          {Key: "ordinary", Kind: KindBase, Multiplier: &one},
          {Key: "evening-penalty", Kind: KindTimePenalty, Multiplier: &evening, Applies: Applicability{
              DayTypes: []DayType{DayWeekday}, Windows: []TimeWindow{WindowEvening}}},
      },
  }

SEE ALSO:
  - resolver.go: Applies rule sets to shift segments
  - factory/award.go: YAML/JSON rule set definitions
  - awards/: Preset rule sets
*/
package compliance

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AWARD RULE
// =============================================================================

type RuleKind string

const (
	KindBase        RuleKind = "base"
	KindTimePenalty RuleKind = "time_penalty"
	KindDayPenalty  RuleKind = "day_penalty"
	KindLoading     RuleKind = "loading"
	KindSplitShift  RuleKind = "split_shift"
)

// precedence orders the rate-selecting kinds. Loadings and split-shift allowances never
// compete for a sub-interval.
func (k RuleKind) precedence() int {
	switch k {
	case KindDayPenalty:
		return 3
	case KindTimePenalty:
		return 2
	case KindBase:
		return 1
	default:
		return 0
	}
}

// Applicability is the predicate a rule must satisfy. Empty lists match anything.
type Applicability struct {
	DayTypes        []DayType        `json:"day_types,omitempty"`
	Windows         []TimeWindow     `json:"windows,omitempty"`
	EmploymentTypes []EmploymentType `json:"employment_types,omitempty"`
}

func (a Applicability) Matches(day DayType, window TimeWindow, et EmploymentType) bool {
	if len(a.DayTypes) > 0 && !slices.Contains(a.DayTypes, day) {
		return false
	}
	if len(a.Windows) > 0 && !slices.Contains(a.Windows, window) {
		return false
	}
	return a.MatchesEmployment(et)
}

func (a Applicability) MatchesEmployment(et EmploymentType) bool {
	return len(a.EmploymentTypes) == 0 || slices.Contains(a.EmploymentTypes, et)
}

// AwardRule is one mechanically applicable award provision.
type AwardRule struct {
	Key        ComponentKey     `json:"key"`
	Kind       RuleKind         `json:"kind"`
	Multiplier *decimal.Decimal `json:"multiplier,omitempty"`
	FlatAmount *decimal.Decimal `json:"flat_amount,omitempty"`
	Applies    Applicability    `json:"applies"`
	Clause     string           `json:"clause,omitempty"` // citation, opaque
}

// IsRateRule reports whether the rule competes to set the rate of worked time.
func (r AwardRule) IsRateRule() bool { return r.Kind.precedence() > 0 }

// =============================================================================
// AWARD RULE SET - one version of an award
// =============================================================================

// WindowSpan assigns a time window to [From, To) of every day.
// Minutes not covered by any span are ordinary time.
type WindowSpan struct {
	Window TimeWindow `json:"window"`
	From   ClockTime  `json:"from"`
	To     ClockTime  `json:"to"`
}

// ClassificationRate is the award minimum hourly rate for a classification.
type ClassificationRate struct {
	Classification string          `json:"classification"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`
}

type AwardRuleSet struct {
	AwardID          AwardID              `json:"award_id"`
	Name             string               `json:"name"`
	Version          string               `json:"version"`
	EffectiveFrom    Date                 `json:"effective_from"`
	Windows          []WindowSpan         `json:"windows"`
	Classifications  []ClassificationRate `json:"classifications"`
	Rules            []AwardRule          `json:"rules"`
	SplitShiftMinGap time.Duration        `json:"split_shift_min_gap"`
}

// Validate checks structural consistency of the rule set.
func (rs AwardRuleSet) Validate() error {
	if rs.AwardID == "" {
		return fmt.Errorf("rule set: award id required")
	}
	spans := append([]WindowSpan(nil), rs.Windows...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].From < spans[j].From })
	for i, w := range spans {
		if w.From < 0 || w.To > EndOfDay || w.From >= w.To {
			return fmt.Errorf("rule set %s: window %s has invalid span %s-%s", rs.AwardID, w.Window, w.From, w.To)
		}
		if i > 0 && spans[i-1].To > w.From {
			return fmt.Errorf("rule set %s: windows %s and %s overlap", rs.AwardID, spans[i-1].Window, w.Window)
		}
	}
	seen := make(map[ComponentKey]bool)
	for _, r := range rs.Rules {
		if r.Key == "" {
			return fmt.Errorf("rule set %s: rule without key", rs.AwardID)
		}
		if strings.ContainsAny(string(r.Key), ";=") {
			return fmt.Errorf("rule set %s: rule key %q may not contain ';' or '='", rs.AwardID, r.Key)
		}
		if seen[r.Key] {
			return fmt.Errorf("rule set %s: duplicate rule key %s", rs.AwardID, r.Key)
		}
		seen[r.Key] = true
		switch r.Kind {
		case KindSplitShift:
			if r.FlatAmount == nil {
				return fmt.Errorf("rule set %s: split-shift rule %s needs flat_amount", rs.AwardID, r.Key)
			}
		case KindBase, KindTimePenalty, KindDayPenalty, KindLoading:
			if r.Multiplier == nil || !r.Multiplier.IsPositive() {
				return fmt.Errorf("rule set %s: rule %s needs a positive multiplier", rs.AwardID, r.Key)
			}
		default:
			return fmt.Errorf("rule set %s: rule %s has unknown kind %q", rs.AwardID, r.Key, r.Kind)
		}
	}
	return nil
}

// WindowAt returns the time window in force at clock time c.
func (rs AwardRuleSet) WindowAt(c ClockTime) TimeWindow {
	for _, w := range rs.Windows {
		if c >= w.From && c < w.To {
			return w.Window
		}
	}
	return WindowOrdinary
}

// boundaries returns the sorted distinct window edges strictly inside a day.
func (rs AwardRuleSet) boundaries() []ClockTime {
	var out []ClockTime
	for _, w := range rs.Windows {
		for _, c := range []ClockTime{w.From, w.To} {
			if c > 0 && c < EndOfDay && !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	slices.Sort(out)
	return out
}

// MinimumRate returns the award minimum hourly rate for a classification.
func (rs AwardRuleSet) MinimumRate(classification string) (decimal.Decimal, bool) {
	for _, c := range rs.Classifications {
		if c.Classification == classification {
			return c.HourlyRate, true
		}
	}
	return decimal.Zero, false
}

// RulesOfKind returns rules of the given kind applicable to the employment type.
func (rs AwardRuleSet) RulesOfKind(kind RuleKind, et EmploymentType) []AwardRule {
	var out []AwardRule
	for _, r := range rs.Rules {
		if r.Kind == kind && r.Applies.MatchesEmployment(et) {
			out = append(out, r)
		}
	}
	return out
}

// SelectRateRule picks the single highest-precedence rate rule for a
// sub-interval. Ties go to the higher multiplier, then the lower key.
func (rs AwardRuleSet) SelectRateRule(day DayType, window TimeWindow, et EmploymentType) (AwardRule, bool) {
	var best AwardRule
	found := false
	for _, r := range rs.Rules {
		if !r.IsRateRule() || !r.Applies.Matches(day, window, et) {
			continue
		}
		if !found || betterRule(r, best) {
			best, found = r, true
		}
	}
	return best, found
}

func betterRule(a, b AwardRule) bool {
	if pa, pb := a.Kind.precedence(), b.Kind.precedence(); pa != pb {
		return pa > pb
	}
	if c := a.Multiplier.Cmp(*b.Multiplier); c != 0 {
		return c > 0
	}
	return a.Key < b.Key
}

// =============================================================================
// RULE TABLE - all versions of all awards
// =============================================================================

// RuleTable holds versioned rule sets. Exactly one version is active at a date:
// the latest whose EffectiveFrom is on or before it.
type RuleTable struct {
	sets map[AwardID][]AwardRuleSet
}

func NewRuleTable(sets ...AwardRuleSet) (*RuleTable, error) {
	t := &RuleTable{sets: make(map[AwardID][]AwardRuleSet)}
	for _, s := range sets {
		if err := t.Add(s); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add registers a rule set version. Two versions of one award may not share an
// effective date.
func (t *RuleTable) Add(set AwardRuleSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	versions := t.sets[set.AwardID]
	for _, v := range versions {
		if v.EffectiveFrom == set.EffectiveFrom {
			return fmt.Errorf("rule set %s: version already effective from %s", set.AwardID, set.EffectiveFrom)
		}
	}
	versions = append(versions, set)
	sort.Slice(versions, func(i, j int) bool { return versions[i].EffectiveFrom.Before(versions[j].EffectiveFrom) })
	t.sets[set.AwardID] = versions
	return nil
}

// ActiveAt returns the version of an award in force on date d.
func (t *RuleTable) ActiveAt(award AwardID, d Date) (*AwardRuleSet, error) {
	versions, ok := t.sets[award]
	if !ok || len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAwardNotFound, award)
	}
	var active *AwardRuleSet
	for i := range versions {
		if versions[i].EffectiveFrom.After(d) {
			break
		}
		active = &versions[i]
	}
	if active == nil {
		return nil, fmt.Errorf("%w: %s has no version effective on %s", ErrAwardNotFound, award, d)
	}
	return active, nil
}

// All returns every registered version ordered by award then effective date.
func (t *RuleTable) All() []AwardRuleSet {
	ids := make([]AwardID, 0, len(t.sets))
	for id := range t.sets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	var out []AwardRuleSet
	for _, id := range ids {
		out = append(out, t.sets[id]...)
	}
	return out
}
