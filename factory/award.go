/*
Package factory converts award rule set documents and audit request
documents into compliance engine types.

PURPOSE:
  Award rule sets change every financial year. Keeping them in YAML lets
  payroll specialists publish a new version without code changes; the
  factory validates the document and builds a compliance.AwardRuleSet.

DOCUMENT SCHEMA (YAML; JSON is accepted as well):
  award_id: MA000120
  name: Children's Services Award 2010
  version: "2025-07-01"
  effective_from: "2025-07-01"
  split_shift_min_gap: 1h
  windows:
    - {window: evening, from: "18:00", to: "24:00"}
    - {window: night, from: "00:00", to: "06:00"}
  classifications:
    - {classification: level-3.1, hourly_rate: "30.38"}
  rules:
    - {key: ordinary, kind: base, multiplier: "1.00", clause: "14.1"}
    - key: evening-penalty
      kind: time_penalty
      multiplier: "1.10"
      day_types: [weekday]
      windows: [evening]
    - {key: split-shift-allowance, kind: split_shift, flat_amount: "18.79"}

  Money, rates and multipliers are strings so they reach decimal.Decimal
  without passing through float64.

USAGE:
  set, err := factory.ParseRuleSet(data)
  table, err := compliance.NewRuleTable(awards.ChildrensServices(), *set)

SEE ALSO:
  - compliance/award.go: AwardRuleSet type definition
  - awards/: Go-based presets
  - input.go: Audit request documents
*/
package factory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/wage-compliance/compliance"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// RuleSetDoc is the document form of an award rule set.
type RuleSetDoc struct {
	AwardID          string              `yaml:"award_id" json:"award_id"`
	Name             string              `yaml:"name" json:"name"`
	Version          string              `yaml:"version" json:"version"`
	EffectiveFrom    string              `yaml:"effective_from" json:"effective_from"`
	SplitShiftMinGap string              `yaml:"split_shift_min_gap,omitempty" json:"split_shift_min_gap,omitempty"`
	Windows          []WindowDoc         `yaml:"windows,omitempty" json:"windows,omitempty"`
	Classifications  []ClassificationDoc `yaml:"classifications,omitempty" json:"classifications,omitempty"`
	Rules            []RuleDoc           `yaml:"rules" json:"rules"`
}

type WindowDoc struct {
	Window string `yaml:"window" json:"window"`
	From   string `yaml:"from" json:"from"`
	To     string `yaml:"to" json:"to"`
}

type ClassificationDoc struct {
	Classification string `yaml:"classification" json:"classification"`
	HourlyRate     string `yaml:"hourly_rate" json:"hourly_rate"`
}

type RuleDoc struct {
	Key             string   `yaml:"key" json:"key"`
	Kind            string   `yaml:"kind" json:"kind"`
	Multiplier      string   `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	FlatAmount      string   `yaml:"flat_amount,omitempty" json:"flat_amount,omitempty"`
	DayTypes        []string `yaml:"day_types,omitempty" json:"day_types,omitempty"`
	Windows         []string `yaml:"windows,omitempty" json:"windows,omitempty"`
	EmploymentTypes []string `yaml:"employment_types,omitempty" json:"employment_types,omitempty"`
	Clause          string   `yaml:"clause,omitempty" json:"clause,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseRuleSet parses a YAML or JSON rule set document.
func ParseRuleSet(data []byte) (*compliance.AwardRuleSet, error) {
	var doc RuleSetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	return FromDoc(doc)
}

// ParseRuleSets parses a file holding one rule set, or a YAML stream of
// several separated by "---".
func ParseRuleSets(data []byte) ([]compliance.AwardRuleSet, error) {
	var sets []compliance.AwardRuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc RuleSetDoc
		err := dec.Decode(&doc)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse rule set %d: %w", len(sets)+1, err)
		}
		set, err := FromDoc(doc)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *set)
	}
	return sets, nil
}

// LoadRuleSets reads rule sets from a file.
func LoadRuleSets(path string) ([]compliance.AwardRuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read award file: %w", err)
	}
	return ParseRuleSets(data)
}

// FromDoc converts and validates a rule set document.
func FromDoc(doc RuleSetDoc) (*compliance.AwardRuleSet, error) {
	effective, err := compliance.ParseDate(doc.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("rule set %s: effective_from: %w", doc.AwardID, err)
	}
	set := &compliance.AwardRuleSet{
		AwardID:       compliance.AwardID(doc.AwardID),
		Name:          doc.Name,
		Version:       doc.Version,
		EffectiveFrom: effective,
	}
	if set.Version == "" {
		set.Version = effective.String()
	}
	if doc.SplitShiftMinGap != "" {
		gap, err := time.ParseDuration(doc.SplitShiftMinGap)
		if err != nil {
			return nil, fmt.Errorf("rule set %s: split_shift_min_gap: %w", doc.AwardID, err)
		}
		set.SplitShiftMinGap = gap
	}

	for _, w := range doc.Windows {
		span, err := parseWindow(w)
		if err != nil {
			return nil, fmt.Errorf("rule set %s: %w", doc.AwardID, err)
		}
		set.Windows = append(set.Windows, span)
	}
	for _, c := range doc.Classifications {
		rate, err := decimal.NewFromString(c.HourlyRate)
		if err != nil {
			return nil, fmt.Errorf("rule set %s: classification %s: hourly_rate: %w", doc.AwardID, c.Classification, err)
		}
		set.Classifications = append(set.Classifications, compliance.ClassificationRate{
			Classification: c.Classification,
			HourlyRate:     rate,
		})
	}
	for _, r := range doc.Rules {
		rule, err := parseRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule set %s: %w", doc.AwardID, err)
		}
		set.Rules = append(set.Rules, rule)
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// ToDoc converts a rule set back to its document form.
func ToDoc(set compliance.AwardRuleSet) RuleSetDoc {
	doc := RuleSetDoc{
		AwardID:       string(set.AwardID),
		Name:          set.Name,
		Version:       set.Version,
		EffectiveFrom: set.EffectiveFrom.String(),
	}
	if set.SplitShiftMinGap > 0 {
		doc.SplitShiftMinGap = set.SplitShiftMinGap.String()
	}
	for _, w := range set.Windows {
		doc.Windows = append(doc.Windows, WindowDoc{Window: string(w.Window), From: w.From.String(), To: w.To.String()})
	}
	for _, c := range set.Classifications {
		doc.Classifications = append(doc.Classifications, ClassificationDoc{Classification: c.Classification, HourlyRate: c.HourlyRate.String()})
	}
	for _, r := range set.Rules {
		rd := RuleDoc{Key: string(r.Key), Kind: string(r.Kind), Clause: r.Clause}
		if r.Multiplier != nil {
			rd.Multiplier = r.Multiplier.String()
		}
		if r.FlatAmount != nil {
			rd.FlatAmount = r.FlatAmount.String()
		}
		for _, d := range r.Applies.DayTypes {
			rd.DayTypes = append(rd.DayTypes, string(d))
		}
		for _, w := range r.Applies.Windows {
			rd.Windows = append(rd.Windows, string(w))
		}
		for _, et := range r.Applies.EmploymentTypes {
			rd.EmploymentTypes = append(rd.EmploymentTypes, string(et))
		}
		doc.Rules = append(doc.Rules, rd)
	}
	return doc
}

// MarshalRuleSet renders a rule set as a YAML document.
func MarshalRuleSet(set compliance.AwardRuleSet) ([]byte, error) {
	return yaml.Marshal(ToDoc(set))
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseWindow(w WindowDoc) (compliance.WindowSpan, error) {
	window, err := parseTimeWindow(w.Window)
	if err != nil {
		return compliance.WindowSpan{}, err
	}
	from, err := compliance.ParseClock(w.From)
	if err != nil {
		return compliance.WindowSpan{}, fmt.Errorf("window %s: %w", w.Window, err)
	}
	to, err := compliance.ParseClock(w.To)
	if err != nil {
		return compliance.WindowSpan{}, fmt.Errorf("window %s: %w", w.Window, err)
	}
	return compliance.WindowSpan{Window: window, From: from, To: to}, nil
}

func parseRule(r RuleDoc) (compliance.AwardRule, error) {
	rule := compliance.AwardRule{
		Key:    compliance.ComponentKey(r.Key),
		Kind:   compliance.RuleKind(r.Kind),
		Clause: r.Clause,
	}
	if r.Multiplier != "" {
		m, err := decimal.NewFromString(r.Multiplier)
		if err != nil {
			return rule, fmt.Errorf("rule %s: multiplier: %w", r.Key, err)
		}
		rule.Multiplier = &m
	}
	if r.FlatAmount != "" {
		a, err := decimal.NewFromString(r.FlatAmount)
		if err != nil {
			return rule, fmt.Errorf("rule %s: flat_amount: %w", r.Key, err)
		}
		rule.FlatAmount = &a
	}
	for _, d := range r.DayTypes {
		day, err := parseDayType(d)
		if err != nil {
			return rule, fmt.Errorf("rule %s: %w", r.Key, err)
		}
		rule.Applies.DayTypes = append(rule.Applies.DayTypes, day)
	}
	for _, w := range r.Windows {
		window, err := parseTimeWindow(w)
		if err != nil {
			return rule, fmt.Errorf("rule %s: %w", r.Key, err)
		}
		rule.Applies.Windows = append(rule.Applies.Windows, window)
	}
	for _, e := range r.EmploymentTypes {
		et := compliance.EmploymentType(e)
		if !et.Valid() {
			return rule, fmt.Errorf("rule %s: unknown employment type %q", r.Key, e)
		}
		rule.Applies.EmploymentTypes = append(rule.Applies.EmploymentTypes, et)
	}
	return rule, nil
}

func parseDayType(s string) (compliance.DayType, error) {
	switch d := compliance.DayType(s); d {
	case compliance.DayWeekday, compliance.DaySaturday, compliance.DaySunday, compliance.DayPublicHoliday:
		return d, nil
	}
	return "", fmt.Errorf("unknown day type %q", s)
}

func parseTimeWindow(s string) (compliance.TimeWindow, error) {
	switch w := compliance.TimeWindow(s); w {
	case compliance.WindowOrdinary, compliance.WindowEvening, compliance.WindowNight:
		return w, nil
	}
	return "", fmt.Errorf("unknown time window %q", s)
}
