package factory_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wage-compliance/awards"
	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/factory"
)

const childrensServicesYAML = `
award_id: MA000120
name: Children's Services Award 2010
version: "2025-07-01"
effective_from: "2025-07-01"
split_shift_min_gap: 1h
windows:
  - {window: night, from: "00:00", to: "06:00"}
  - {window: evening, from: "18:00", to: "24:00"}
classifications:
  - {classification: level-3.1, hourly_rate: "28.50"}
rules:
  - {key: ordinary, kind: base, multiplier: "1.00", clause: "14.1"}
  - key: evening-penalty
    kind: time_penalty
    multiplier: "1.10"
    day_types: [weekday]
    windows: [evening]
  - key: casual-loading
    kind: loading
    multiplier: "1.25"
    employment_types: [casual]
  - {key: split-shift-allowance, kind: split_shift, flat_amount: "18.79", day_types: [weekday]}
`

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// =============================================================================
// PARSING
// =============================================================================

func TestParseRuleSet(t *testing.T) {
	// GIVEN: A YAML rule set document
	// WHEN: Parsing it
	// THEN: Windows, rates and rules reach the rule set intact

	set, err := factory.ParseRuleSet([]byte(childrensServicesYAML))
	require.NoError(t, err)

	assert.Equal(t, compliance.AwardID("MA000120"), set.AwardID)
	assert.Equal(t, "2025-07-01", set.Version)
	assert.Equal(t, compliance.NewDate(2025, time.July, 1), set.EffectiveFrom)
	assert.Equal(t, time.Hour, set.SplitShiftMinGap)

	assert.Equal(t, compliance.WindowEvening, set.WindowAt(19*60))
	assert.Equal(t, compliance.WindowNight, set.WindowAt(5*60))
	assert.Equal(t, compliance.WindowOrdinary, set.WindowAt(12*60))

	minimum, ok := set.MinimumRate("level-3.1")
	require.True(t, ok)
	assert.True(t, minimum.Equal(decimal.RequireFromString("28.50")))

	rule, ok := set.SelectRateRule(compliance.DayWeekday, compliance.WindowEvening, compliance.Casual)
	require.True(t, ok)
	assert.Equal(t, compliance.ComponentKey("evening-penalty"), rule.Key)

	loadings := set.RulesOfKind(compliance.KindLoading, compliance.Casual)
	require.Len(t, loadings, 1)
	assert.Empty(t, set.RulesOfKind(compliance.KindLoading, compliance.FullTime))

	require.Len(t, set.Rules, 4)
	assert.True(t, set.Rules[3].FlatAmount.Equal(decimal.RequireFromString("18.79")))
	assert.Equal(t, "14.1", set.Rules[0].Clause)
}

func TestParseRuleSet_JSON(t *testing.T) {
	doc := `{"award_id": "TEST", "effective_from": "2025-01-01", "rules": [{"key": "ordinary", "kind": "base", "multiplier": "1"}]}`

	set, err := factory.ParseRuleSet([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, compliance.AwardID("TEST"), set.AwardID)
	assert.Equal(t, "2025-01-01", set.Version, "version defaults to the effective date")
}

func TestParseRuleSet_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "bad effective date",
			doc:  `{award_id: X, effective_from: "1 July", rules: []}`,
			want: "effective_from",
		},
		{
			name: "bad split shift gap",
			doc:  `{award_id: X, effective_from: "2025-07-01", split_shift_min_gap: soon, rules: []}`,
			want: "split_shift_min_gap",
		},
		{
			name: "unknown window",
			doc:  `{award_id: X, effective_from: "2025-07-01", windows: [{window: dusk, from: "17:00", to: "18:00"}], rules: []}`,
			want: `unknown time window "dusk"`,
		},
		{
			name: "bad window clock",
			doc:  `{award_id: X, effective_from: "2025-07-01", windows: [{window: evening, from: "6pm", to: "24:00"}], rules: []}`,
			want: "window evening",
		},
		{
			name: "overlapping windows",
			doc:  `{award_id: X, effective_from: "2025-07-01", rules: [], windows: [{window: evening, from: "18:00", to: "24:00"}, {window: night, from: "17:00", to: "19:00"}]}`,
			want: "overlap",
		},
		{
			name: "bad hourly rate",
			doc:  `{award_id: X, effective_from: "2025-07-01", classifications: [{classification: l1, hourly_rate: lots}], rules: []}`,
			want: "hourly_rate",
		},
		{
			name: "bad multiplier",
			doc:  `{award_id: X, effective_from: "2025-07-01", rules: [{key: ordinary, kind: base, multiplier: double}]}`,
			want: "rule ordinary: multiplier",
		},
		{
			name: "unknown day type",
			doc:  `{award_id: X, effective_from: "2025-07-01", rules: [{key: p, kind: day_penalty, multiplier: "2", day_types: [funday]}]}`,
			want: `unknown day type "funday"`,
		},
		{
			name: "unknown employment type",
			doc:  `{award_id: X, effective_from: "2025-07-01", rules: [{key: l, kind: loading, multiplier: "1.25", employment_types: [intern]}]}`,
			want: `unknown employment type "intern"`,
		},
		{
			name: "split shift without amount",
			doc:  `{award_id: X, effective_from: "2025-07-01", rules: [{key: s, kind: split_shift}]}`,
			want: "needs flat_amount",
		},
		{
			name: "unknown kind",
			doc:  `{award_id: X, effective_from: "2025-07-01", rules: [{key: b, kind: bonus, multiplier: "1"}]}`,
			want: `unknown kind "bonus"`,
		},
		{
			name: "rule key with export separator",
			doc:  `{award_id: X, effective_from: "2025-07-01", rules: [{key: "evening;night", kind: base, multiplier: "1"}]}`,
			want: "may not contain",
		},
		{
			name: "missing award id",
			doc:  `{effective_from: "2025-07-01", rules: []}`,
			want: "award id required",
		},
		{
			name: "not yaml",
			doc:  "award_id: [",
			want: "failed to parse rule set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseRuleSet([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseRuleSets_Stream(t *testing.T) {
	// GIVEN: Two versions of one award in a single YAML stream
	// WHEN: Parsing the stream
	// THEN: Both versions are returned in document order

	stream := `
award_id: TEST
effective_from: "2024-07-01"
rules: [{key: ordinary, kind: base, multiplier: "1"}]
---
award_id: TEST
effective_from: "2025-07-01"
rules: [{key: ordinary, kind: base, multiplier: "1"}]
`
	sets, err := factory.ParseRuleSets([]byte(stream))
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "2024-07-01", sets[0].Version)
	assert.Equal(t, "2025-07-01", sets[1].Version)

	table, err := compliance.NewRuleTable(sets...)
	require.NoError(t, err)
	active, err := table.ActiveAt("TEST", compliance.NewDate(2025, time.March, 11))
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", active.Version)
}

func TestParseRuleSets_ReportsFailingDocument(t *testing.T) {
	stream := "award_id: A\neffective_from: \"2025-07-01\"\nrules: []\n---\naward_id: [\n"

	_, err := factory.ParseRuleSets([]byte(stream))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule set 2")
}

func TestLoadRuleSets_MissingFile(t *testing.T) {
	_, err := factory.LoadRuleSets(t.TempDir() + "/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read award file")
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestMarshalRuleSet_PresetsSurviveRoundTrip(t *testing.T) {
	// GIVEN: Every preset rule set
	// WHEN: Rendering it to YAML and parsing it back
	// THEN: The parsed set matches the preset

	for _, preset := range awards.All() {
		t.Run(preset.Version, func(t *testing.T) {
			data, err := factory.MarshalRuleSet(preset)
			require.NoError(t, err)

			sets, err := factory.ParseRuleSets(data)
			require.NoError(t, err)
			require.Len(t, sets, 1)

			if diff := cmp.Diff(preset, sets[0], decimalEqual); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
