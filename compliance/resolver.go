/*
resolver.go - Rate resolution for worked shift segments

PURPOSE:
  Turns one ShiftSegment plus the employee's profile into an ordered list of
  rate tuples (rule key, duration, rate) that covers the whole segment with
  no gaps and no overlaps.

ALGORITHM:
  1. Split the segment at every midnight (each piece lies inside one date,
     so it has one day type and one active rule set version).
  2. Split each piece at the rule set's time-window edges and merge adjacent
     pieces with the same window: maximal sub-intervals of constant
     (day type, window).
  3. For each sub-interval select the single highest-precedence rate rule:
     day penalties, then time penalties, then base.
  4. For casual employees add the loading as its own tuple on top of the
     selected rate: rate × (loading − 1). Penalty first, then loading.

  Example: casual, $28.50, Tuesday 17:00-20:00, evening from 18:00
    ordinary        1h  @ 28.50
    casual-loading  1h  @  7.125  (applies to ordinary)
    evening-penalty 2h  @ 31.35
    casual-loading  2h  @  7.8375 (applies to evening-penalty)

FAILURE:
  A missing award id, an unknown award, an unknown classification with no
  contract rate, or a sub-interval with no rate rule fails the segment with
  RuleResolutionError. The caller records the gap; it is never a zero.

SEE ALSO:
  - award.go: Rule selection and window lookup
  - entitlement.go: Aggregates tuples into pay component lines
*/
package compliance

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// =============================================================================
// RATE TUPLE - resolver output
// =============================================================================

// RateTuple is one resolved piece of entitlement.
// Hourly tuples carry a Duration; split-shift tuples carry Units instead.
type RateTuple struct {
	Key       ComponentKey
	Kind      RuleKind
	Start     time.Time
	Duration  time.Duration
	Rate      decimal.Decimal
	Units     int64
	AppliesTo ComponentKey // loading tuples: the rate rule they load
	DayType   DayType
	Window    TimeWindow
	Version   string
	Clause    string
}

// IsHourly reports whether the tuple is priced by time worked.
func (t RateTuple) IsHourly() bool { return t.Kind != KindSplitShift }

// CoversTime reports whether the tuple accounts for worked time itself rather
// than an uplift on time already covered.
func (t RateTuple) CoversTime() bool { return t.Kind.precedence() > 0 }

// =============================================================================
// RESOLVER
// =============================================================================

type Resolver struct {
	Rules    *RuleTable
	Calendar HolidayCalendar
}

// subInterval is a piece of a segment with constant day type and window.
type subInterval struct {
	start, end time.Time
	day        DayType
	window     TimeWindow
	set        *AwardRuleSet
}

// ResolveSegment resolves one segment. Either every minute of the segment is
// covered, or a RuleResolutionError is returned and no tuples are.
func (r *Resolver) ResolveSegment(seg ShiftSegment, profile EmploymentProfile) ([]RateTuple, []QualityFlag, error) {
	fail := func(reason string) error {
		return &RuleResolutionError{
			EmployeeID: seg.EmployeeID, AwardID: profile.AwardID,
			Start: seg.Start, End: seg.End, Reason: reason,
		}
	}
	if profile.AwardID == "" {
		return nil, nil, fail("no award identifier on employment profile")
	}
	if !seg.End.After(seg.Start) {
		return nil, nil, fail("segment ends before it starts")
	}

	pieces, err := r.partition(seg, profile.AwardID)
	if err != nil {
		return nil, nil, fail(err.Error())
	}

	var (
		tuples []RateTuple
		flags  []QualityFlag
	)
	for _, p := range pieces {
		base, flag, err := baseRate(*p.set, profile)
		if err != nil {
			return nil, nil, fail(err.Error())
		}
		if flag != nil {
			flags = appendFlag(flags, *flag)
		}

		rule, ok := p.set.SelectRateRule(p.day, p.window, profile.EmploymentType)
		if !ok {
			e := fail(fmt.Sprintf("no rate rule for %s %s work", p.day, p.window)).(*RuleResolutionError)
			e.Start, e.End, e.DayType, e.Window = p.start, p.end, p.day, p.window
			return nil, nil, e
		}
		rate := base.Mul(*rule.Multiplier)
		tuples = append(tuples, RateTuple{
			Key: rule.Key, Kind: rule.Kind, Start: p.start, Duration: p.end.Sub(p.start),
			Rate: rate, DayType: p.day, Window: p.window, Version: p.set.Version, Clause: rule.Clause,
		})

		for _, l := range p.set.RulesOfKind(KindLoading, profile.EmploymentType) {
			if !l.Applies.Matches(p.day, p.window, profile.EmploymentType) {
				continue
			}
			tuples = append(tuples, RateTuple{
				Key: l.Key, Kind: KindLoading, Start: p.start, Duration: p.end.Sub(p.start),
				Rate: rate.Mul(l.Multiplier.Sub(one)), AppliesTo: rule.Key,
				DayType: p.day, Window: p.window, Version: p.set.Version, Clause: l.Clause,
			})
		}
	}
	return tuples, flags, nil
}

// partition splits a segment at midnights and window edges.
func (r *Resolver) partition(seg ShiftSegment, award AwardID) ([]subInterval, error) {
	loc := seg.Start.Location()
	var out []subInterval

	for cur := seg.Start; cur.Before(seg.End); {
		d := DateOf(cur)
		set, err := r.Rules.ActiveAt(award, d)
		if err != nil {
			return nil, err
		}
		pieceEnd := d.AddDays(1).In(loc)
		if seg.End.Before(pieceEnd) {
			pieceEnd = seg.End
		}
		day := DayTypeOf(d, r.Calendar)

		cuts := []time.Time{cur}
		for _, b := range set.boundaries() {
			if t := b.On(d, loc); t.After(cur) && t.Before(pieceEnd) {
				cuts = append(cuts, t)
			}
		}
		cuts = append(cuts, pieceEnd)

		first := len(out)
		for i := 0; i+1 < len(cuts); i++ {
			window := set.WindowAt(clockOf(cuts[i]))
			if n := len(out); n > first && out[n-1].window == window {
				out[n-1].end = cuts[i+1]
				continue
			}
			out = append(out, subInterval{start: cuts[i], end: cuts[i+1], day: day, window: window, set: set})
		}
		cur = pieceEnd
	}
	return out, nil
}

// baseRate is the higher of the contract rate and the award minimum for the
// classification. An unknown classification falls back to the contract rate
// and raises a flag; with no contract rate either, resolution fails.
func baseRate(set AwardRuleSet, profile EmploymentProfile) (decimal.Decimal, *QualityFlag, error) {
	minimum, ok := set.MinimumRate(profile.Classification)
	if ok {
		return decimal.Max(minimum, profile.BaseRate), nil, nil
	}
	if profile.BaseRate.IsPositive() {
		return profile.BaseRate, &QualityFlag{
			Kind:   FlagUnmatchedClassification,
			Source: "resolver",
			Detail: fmt.Sprintf("classification %q not in award %s %s", profile.Classification, set.AwardID, set.Version),
		}, nil
	}
	return decimal.Zero, nil, fmt.Errorf("classification %q has no award rate and no contract base rate", profile.Classification)
}

// =============================================================================
// PERIOD RESOLUTION
// =============================================================================

// Resolution is the resolver output for every segment in a pay period.
type Resolution struct {
	Tuples   []RateTuple
	Gaps     []RuleResolutionError
	Flags    []QualityFlag
	Versions []string
}

// ResolvePeriod resolves all segments of one employee. Failed segments are
// recorded as gaps and contribute no tuples; the rest resolve normally.
// Split-shift allowances are added per date once segments are known.
func (r *Resolver) ResolvePeriod(segments []ShiftSegment, profile EmploymentProfile) Resolution {
	var res Resolution
	sorted := SortSegments(segments)
	var resolved []ShiftSegment

	for _, seg := range sorted {
		tuples, flags, err := r.ResolveSegment(seg, profile)
		if err != nil {
			if rre, ok := err.(*RuleResolutionError); ok {
				res.Gaps = append(res.Gaps, *rre)
				res.Flags = append(res.Flags, QualityFlag{Kind: FlagRuleCoverageGap, Source: "resolver", Detail: rre.Error()})
				continue
			}
			res.Gaps = append(res.Gaps, RuleResolutionError{EmployeeID: seg.EmployeeID, Start: seg.Start, End: seg.End, Reason: err.Error()})
			continue
		}
		for _, f := range flags {
			res.Flags = appendFlag(res.Flags, f)
		}
		for _, t := range tuples {
			res.Versions = appendVersion(res.Versions, t.Version)
		}
		res.Tuples = append(res.Tuples, tuples...)
		resolved = append(resolved, seg)
	}

	res.Tuples = append(res.Tuples, r.splitShifts(resolved, profile)...)
	return res
}

// splitShifts pays the split-shift allowance once for every date on which two
// worked segments are separated by at least the award's minimum gap.
func (r *Resolver) splitShifts(sorted []ShiftSegment, profile EmploymentProfile) []RateTuple {
	var out []RateTuple
	for i := 0; i < len(sorted); {
		d := sorted[i].Date()
		j := i + 1
		split := false
		for ; j < len(sorted) && sorted[j].Date() == d; j++ {
			set, err := r.Rules.ActiveAt(profile.AwardID, d)
			if err != nil || set.SplitShiftMinGap <= 0 {
				continue
			}
			if sorted[j].Start.Sub(sorted[j-1].End) >= set.SplitShiftMinGap {
				split = true
			}
		}
		if split {
			set, _ := r.Rules.ActiveAt(profile.AwardID, d)
			day := DayTypeOf(d, r.Calendar)
			for _, rule := range set.RulesOfKind(KindSplitShift, profile.EmploymentType) {
				if len(rule.Applies.DayTypes) > 0 && !slices.Contains(rule.Applies.DayTypes, day) {
					continue
				}
				out = append(out, RateTuple{
					Key: rule.Key, Kind: KindSplitShift, Start: sorted[i].Start,
					Rate: *rule.FlatAmount, Units: 1, DayType: day, Version: set.Version, Clause: rule.Clause,
				})
			}
		}
		i = j
	}
	return out
}

func appendFlag(flags []QualityFlag, f QualityFlag) []QualityFlag {
	for _, existing := range flags {
		if existing == f {
			return flags
		}
	}
	return append(flags, f)
}

func appendVersion(versions []string, v string) []string {
	for _, existing := range versions {
		if existing == v {
			return versions
		}
	}
	return append(versions, v)
}
