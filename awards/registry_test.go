package awards_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wage-compliance/awards"
	"github.com/warp/wage-compliance/compliance"
)

func TestPresetsAreValid(t *testing.T) {
	for _, set := range awards.All() {
		t.Run(set.Version, func(t *testing.T) {
			assert.NoError(t, set.Validate())
		})
	}
}

func TestTable_PresetVersions(t *testing.T) {
	table, err := awards.Table()
	require.NoError(t, err)

	tests := []struct {
		date    compliance.Date
		version string
		level31 string
	}{
		{compliance.NewDate(2025, time.March, 11), "2024-07-01", "27.54"},
		{compliance.NewDate(2025, time.June, 30), "2024-07-01", "27.54"},
		{compliance.NewDate(2025, time.July, 1), "2025-07-01", "28.50"},
	}
	for _, tt := range tests {
		t.Run(tt.date.String(), func(t *testing.T) {
			set, err := table.ActiveAt(awards.ChildrensServicesID, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.version, set.Version)

			rate, ok := set.MinimumRate("level-3.1")
			require.True(t, ok)
			assert.Equal(t, tt.level31, rate.StringFixed(2))
		})
	}

	_, err = table.ActiveAt(awards.ChildrensServicesID, compliance.NewDate(2024, time.June, 30))
	assert.ErrorIs(t, err, compliance.ErrAwardNotFound)
}

func TestTable_ExtraSetOnSameDateReplacesPreset(t *testing.T) {
	// GIVEN: A corrected copy of the 2025 preset with a higher level-3.1 rate
	// WHEN: Building the table with it
	// THEN: The copy replaces the preset instead of clashing with it

	corrected := awards.ChildrensServices()
	corrected.Version = "2025-07-01-corrected"
	corrected.Classifications[2].HourlyRate = compliance.MustDecimal("28.75")

	table, err := awards.Table(corrected)
	require.NoError(t, err)
	assert.Len(t, table.All(), 2)

	set, err := table.ActiveAt(awards.ChildrensServicesID, compliance.NewDate(2025, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01-corrected", set.Version)
	rate, ok := set.MinimumRate("level-3.1")
	require.True(t, ok)
	assert.Equal(t, "28.75", rate.StringFixed(2))
}

func TestTable_ExtraSetOnNewDateIsAppended(t *testing.T) {
	next := awards.ChildrensServices()
	next.Version = "2026-07-01"
	next.EffectiveFrom = compliance.NewDate(2026, time.July, 1)

	table, err := awards.Table(next)
	require.NoError(t, err)
	assert.Len(t, table.All(), 3)

	set, err := table.ActiveAt(awards.ChildrensServicesID, compliance.NewDate(2026, time.July, 1))
	require.NoError(t, err)
	assert.Equal(t, "2026-07-01", set.Version)
}
