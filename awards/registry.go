package awards

import (
	"github.com/shopspring/decimal"

	"github.com/warp/wage-compliance/compliance"
)

// All returns every preset rule set version.
func All() []compliance.AwardRuleSet {
	return []compliance.AwardRuleSet{
		ChildrensServices2024(),
		ChildrensServices(),
	}
}

// Table returns a rule table holding all presets plus any extra sets. An
// extra set effective on the same date as an earlier one for the same award
// replaces it, so a stored or file copy of a preset overrides the preset.
func Table(extra ...compliance.AwardRuleSet) (*compliance.RuleTable, error) {
	sets := All()
next:
	for _, e := range extra {
		for i := range sets {
			if sets[i].AwardID == e.AwardID && sets[i].EffectiveFrom == e.EffectiveFrom {
				sets[i] = e
				continue next
			}
		}
		sets = append(sets, e)
	}
	return compliance.NewRuleTable(sets...)
}

func decPtr(s string) *decimal.Decimal {
	d := compliance.MustDecimal(s)
	return &d
}
