package compliance

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY COMPONENT LINE
// =============================================================================

// LineBasis records how a line's paid amount was matched.
type LineBasis string

const (
	BasisEntitlement  LineBasis = "entitlement"    // not yet compared with a payslip
	BasisMatched      LineBasis = "matched"        // payslip itemizes this component
	BasisUnpaid       LineBasis = "unpaid"         // payslip silent on an entitled component
	BasisAggregated   LineBasis = "aggregated"     // aggregate payslip amount allocated to ordinary
	BasisNoAwardBasis LineBasis = "no_award_basis" // paid with nothing entitled
)

// PayComponentLine is one itemized pay component for a pay period.
// Difference is always derived from Entitled and Paid, never stored.
type PayComponentLine struct {
	PayPeriodID PayPeriodID      `json:"pay_period_id"`
	Component   ComponentKey     `json:"component"`
	AppliesTo   ComponentKey     `json:"applies_to,omitempty"`
	Hours       *decimal.Decimal `json:"hours,omitempty"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	Entitled    decimal.Decimal  `json:"entitled"`
	Paid        decimal.Decimal  `json:"paid"`
	Basis       LineBasis        `json:"basis"`
}

// Difference is signed from the employee's side: paid − entitled.
// Negative means underpaid, positive means overpaid.
func (l PayComponentLine) Difference() decimal.Decimal { return l.Paid.Sub(l.Entitled) }

func (l PayComponentLine) MarshalJSON() ([]byte, error) {
	type line PayComponentLine
	return json.Marshal(struct {
		line
		Difference decimal.Decimal `json:"difference"`
	}{line: line(l), Difference: l.Difference()})
}

// =============================================================================
// ENTITLEMENT CALCULATOR
// =============================================================================

// Entitlement is the itemized amount an employee was owed for a pay period.
type Entitlement struct {
	PayPeriodID PayPeriodID
	Lines       []PayComponentLine
}

// Total is the sum of the line amounts. Downstream totals always use this.
func (e Entitlement) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Entitled)
	}
	return total
}

type lineKey struct {
	key       ComponentKey
	appliesTo ComponentKey
	rate      string
	hourly    bool
}

type lineAcc struct {
	key      lineKey
	rate     decimal.Decimal
	duration time.Duration
	units    int64
}

// CalculateEntitlement collapses resolved tuples into one line per distinct
// (rule key, rate, loaded component). The same key at two rates (a mid-period
// rate increase) stays as two lines; rates are never averaged. Lines keep the
// order in which they first appear.
func CalculateEntitlement(period PayPeriodID, tuples []RateTuple) Entitlement {
	var order []*lineAcc
	index := make(map[lineKey]*lineAcc)

	for _, t := range tuples {
		k := lineKey{key: t.Key, appliesTo: t.AppliesTo, rate: t.Rate.String(), hourly: t.IsHourly()}
		acc, ok := index[k]
		if !ok {
			acc = &lineAcc{key: k, rate: t.Rate}
			index[k] = acc
			order = append(order, acc)
		}
		acc.duration += t.Duration
		acc.units += t.Units
	}

	ent := Entitlement{PayPeriodID: period}
	for _, acc := range order {
		line := PayComponentLine{
			PayPeriodID: period,
			Component:   acc.key.key,
			AppliesTo:   acc.key.appliesTo,
			Rate:        decPtr(acc.rate),
			Paid:        decimal.Zero,
			Basis:       BasisEntitlement,
		}
		if acc.key.hourly {
			line.Hours = decPtr(HoursOf(acc.duration).Round(4))
			line.Entitled = AmountFor(acc.rate, acc.duration)
		} else {
			line.Entitled = RoundCents(acc.rate.Mul(decimal.NewFromInt(acc.units)))
		}
		ent.Lines = append(ent.Lines, line)
	}
	return ent
}
