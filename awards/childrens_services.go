/*
Package awards provides pre-built award rule sets.

PURPOSE:
  Ready-to-use rule sets for the awards the engine is most often run
  against. They are ordinary compliance.AwardRuleSet values; anything a
  preset can express can also be loaded from YAML through factory.

AVAILABLE AWARDS:
  ChildrensServices: Children's Services Award (MA000120), two versions

RATES:
  Minimum hourly rates are illustrative figures for the classification
  levels, not a copy of the published pay guide. Check the current pay
  guide before relying on them for a real remediation.

EXAMPLE:
  table, err := awards.Table()
  engine, err := compliance.NewEngine(table, holidays, compliance.DefaultEngineConfig())

SEE ALSO:
  - compliance/award.go: Rule set type definition
  - factory/award.go: YAML-based rule sets
*/
package awards

import (
	"time"

	"github.com/warp/wage-compliance/compliance"
)

const ChildrensServicesID compliance.AwardID = "MA000120"

// Rule keys of the Children's Services award. They double as payslip
// component keys.
const (
	KeyOrdinary      compliance.ComponentKey = "ordinary"
	KeyEvening       compliance.ComponentKey = "evening-penalty"
	KeyNight         compliance.ComponentKey = "night-penalty"
	KeySaturday      compliance.ComponentKey = "saturday-penalty"
	KeySunday        compliance.ComponentKey = "sunday-penalty"
	KeyPublicHoliday compliance.ComponentKey = "public-holiday-penalty"
	KeyCasualLoading compliance.ComponentKey = "casual-loading"
	KeySplitShift    compliance.ComponentKey = "split-shift-allowance"
)

// ChildrensServices returns the rule set in force from 1 July 2025.
func ChildrensServices() compliance.AwardRuleSet {
	return childrensServices("2025-07-01", compliance.NewDate(2025, time.July, 1), map[string]string{
		"level-1.1": "24.95",
		"level-2.1": "26.23",
		"level-3.1": "28.50",
		"level-4.1": "30.65",
		"level-5.1": "33.19",
		"level-6.1": "35.16",
	}, "18.79")
}

// ChildrensServices2024 returns the rule set in force from 1 July 2024 until
// the 2025 increase.
func ChildrensServices2024() compliance.AwardRuleSet {
	return childrensServices("2024-07-01", compliance.NewDate(2024, time.July, 1), map[string]string{
		"level-1.1": "24.11",
		"level-2.1": "25.34",
		"level-3.1": "27.54",
		"level-4.1": "29.61",
		"level-5.1": "32.07",
		"level-6.1": "33.97",
	}, "18.15")
}

func childrensServices(version string, from compliance.Date, rates map[string]string, splitShift string) compliance.AwardRuleSet {
	set := compliance.AwardRuleSet{
		AwardID:       ChildrensServicesID,
		Name:          "Children's Services Award 2010",
		Version:       version,
		EffectiveFrom: from,
		Windows: []compliance.WindowSpan{
			{Window: compliance.WindowNight, From: 0, To: 6 * 60},
			{Window: compliance.WindowEvening, From: 18 * 60, To: compliance.EndOfDay},
		},
		SplitShiftMinGap: time.Hour,
		Rules: []compliance.AwardRule{
			rate(KeyOrdinary, compliance.KindBase, "1.00", "14.1", compliance.Applicability{}),
			rate(KeyEvening, compliance.KindTimePenalty, "1.10", "23.2(a)", compliance.Applicability{
				DayTypes: []compliance.DayType{compliance.DayWeekday},
				Windows:  []compliance.TimeWindow{compliance.WindowEvening},
			}),
			rate(KeyNight, compliance.KindTimePenalty, "1.15", "23.2(b)", compliance.Applicability{
				DayTypes: []compliance.DayType{compliance.DayWeekday},
				Windows:  []compliance.TimeWindow{compliance.WindowNight},
			}),
			rate(KeySaturday, compliance.KindDayPenalty, "1.50", "23.3", compliance.Applicability{
				DayTypes: []compliance.DayType{compliance.DaySaturday},
			}),
			rate(KeySunday, compliance.KindDayPenalty, "2.00", "23.3", compliance.Applicability{
				DayTypes: []compliance.DayType{compliance.DaySunday},
			}),
			rate(KeyPublicHoliday, compliance.KindDayPenalty, "2.50", "23.4", compliance.Applicability{
				DayTypes: []compliance.DayType{compliance.DayPublicHoliday},
			}),
			rate(KeyCasualLoading, compliance.KindLoading, "1.25", "10.4(b)", compliance.Applicability{
				EmploymentTypes: []compliance.EmploymentType{compliance.Casual},
			}),
			{
				Key:        KeySplitShift,
				Kind:       compliance.KindSplitShift,
				FlatAmount: decPtr(splitShift),
				Applies: compliance.Applicability{
					DayTypes: []compliance.DayType{compliance.DayWeekday},
				},
				Clause: "20.5",
			},
		},
	}
	for _, level := range []string{"level-1.1", "level-2.1", "level-3.1", "level-4.1", "level-5.1", "level-6.1"} {
		set.Classifications = append(set.Classifications, compliance.ClassificationRate{
			Classification: level,
			HourlyRate:     compliance.MustDecimal(rates[level]),
		})
	}
	return set
}

func rate(key compliance.ComponentKey, kind compliance.RuleKind, multiplier, clause string, applies compliance.Applicability) compliance.AwardRule {
	return compliance.AwardRule{Key: key, Kind: kind, Multiplier: decPtr(multiplier), Applies: applies, Clause: clause}
}
