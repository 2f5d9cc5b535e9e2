/*
discrepancy.go - Entitled vs paid comparison per pay component

PURPOSE:
  Lines up the itemized entitlement with the payslip and produces one
  PayComponentLine per component with both amounts filled in. Differences
  are signed (paid − entitled, negative is underpaid) and never netted
  across components.

MATCHING POLICY:
  - Itemized payslip lines match entitled lines by component key.
  - A payslip line marked IncludesLoading pays a component at its loaded
    rate; the loading lines applying to that component are folded into it.
  - Aggregated payslip lines (one "gross wages" figure) are allocated
    against ordinary: every entitled line the payslip does not itemize is
    folded into the ordinary line. Raises aggregated_payslip.
  - Entitled with no payslip line: fully unpaid (basis unpaid).
  - Paid with no entitlement: overpayment (basis no_award_basis). It shows
    in TotalDifference but never reduces the Shortfall.

PRECISION:
  Payslip amounts carrying fractions of a cent, or whose hours × rate does
  not reconcile to the amount, fail with CurrencyPrecisionError beyond the
  configured tolerance.

EXAMPLE (casual, 2h evening, paid at the loaded ordinary rate):
  entitled  evening-penalty 62.70 + casual-loading 15.68 = 78.38
  paid      evening-penalty (includes loading)             71.25
  line      evening-penalty  difference                   -7.13
*/
package compliance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PaidLine is one payslip line as parsed by ingestion.
type PaidLine struct {
	Component       ComponentKey     `json:"component"`
	Hours           *decimal.Decimal `json:"hours,omitempty"`
	Rate            *decimal.Decimal `json:"rate,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	IncludesLoading bool             `json:"includes_loading,omitempty"`
	Aggregated      bool             `json:"aggregated,omitempty"`
}

// =============================================================================
// PAY LINES - totals are always derived from the lines
// =============================================================================

type PayLines []PayComponentLine

func (ls PayLines) TotalEntitled() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Entitled)
	}
	return total
}

func (ls PayLines) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Paid)
	}
	return total
}

// TotalDifference is the sum of line differences.
func (ls PayLines) TotalDifference() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Difference())
	}
	return total
}

// Shortfall is the liability: the magnitude of all negative line differences.
// Overpaid components never offset it.
func (ls PayLines) Shortfall() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		if d := l.Difference(); d.IsNegative() {
			total = total.Sub(d)
		}
	}
	return total
}

// Overpayment is the sum of positive line differences.
func (ls PayLines) Overpayment() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		if d := l.Difference(); d.IsPositive() {
			total = total.Add(d)
		}
	}
	return total
}

// Underpaid returns the lines paid short by more than tolerance, in line order.
func (ls PayLines) Underpaid(tolerance decimal.Decimal) PayLines {
	var out PayLines
	for _, l := range ls {
		if l.Difference().Neg().GreaterThan(tolerance) {
			out = append(out, l)
		}
	}
	return out
}

// PrimaryReason is the component with the largest underpayment. The first
// line wins a tie. Empty when nothing is underpaid.
func (ls PayLines) PrimaryReason() ComponentKey {
	var (
		key   ComponentKey
		worst decimal.Decimal
	)
	for _, l := range ls {
		if d := l.Difference(); d.LessThan(worst) {
			key, worst = l.Component, d
		}
	}
	return key
}

// =============================================================================
// DISCREPANCY DETECTOR
// =============================================================================

// Discrepancy is the detector output.
type Discrepancy struct {
	Lines PayLines
	Flags []QualityFlag
}

// componentGroup accumulates the entitled lines compared as one component.
type componentGroup struct {
	key      ComponentKey
	entitled decimal.Decimal
	hours    *decimal.Decimal
	rates    []decimal.Decimal // distinct rates of the component's own lines
	loadings []decimal.Decimal // distinct rates of folded loading lines
	folded   bool              // absorbed other components of an aggregate payslip
}

func (g *componentGroup) add(l PayComponentLine, own bool) {
	g.entitled = g.entitled.Add(l.Entitled)
	if !own {
		if l.Rate != nil {
			g.loadings = appendRate(g.loadings, *l.Rate)
		}
		return
	}
	if l.Hours != nil {
		h := decimal.Zero
		if g.hours != nil {
			h = *g.hours
		}
		g.hours = decPtr(h.Add(*l.Hours))
	}
	if l.Rate != nil {
		g.rates = appendRate(g.rates, *l.Rate)
	}
}

// rate is the single rate the component was entitled at, nil if mixed.
func (g *componentGroup) rate() *decimal.Decimal {
	if g.folded || len(g.rates) != 1 || len(g.loadings) > 1 {
		return nil
	}
	r := g.rates[0]
	if len(g.loadings) == 1 {
		r = r.Add(g.loadings[0])
	}
	return &r
}

func appendRate(rates []decimal.Decimal, r decimal.Decimal) []decimal.Decimal {
	for _, existing := range rates {
		if existing.Equal(r) {
			return rates
		}
	}
	return append(rates, r)
}

// DetectDiscrepancies compares an entitlement with payslip lines.
// tolerance bounds how far a payslip amount may stray from whole cents.
func DetectDiscrepancies(employee EmployeeID, ent Entitlement, paid []PaidLine, tolerance decimal.Decimal) (Discrepancy, error) {
	if err := checkPaidPrecision(employee, paid, tolerance); err != nil {
		return Discrepancy{}, err
	}

	var (
		itemized   []PaidLine
		aggregate  = decimal.Zero
		aggregated bool
		loaded     = make(map[ComponentKey]bool)
		paidKeys   = make(map[ComponentKey]bool)
		out        Discrepancy
	)
	for _, p := range paid {
		if p.Aggregated {
			aggregate = aggregate.Add(p.Amount)
			aggregated = true
			continue
		}
		itemized = append(itemized, p)
		paidKeys[p.Component] = true
		if p.IncludesLoading {
			loaded[p.Component] = true
		}
	}

	// Group entitled lines into the components the payslip is compared by.
	var groups []*componentGroup
	index := make(map[ComponentKey]*componentGroup)
	group := func(key ComponentKey) *componentGroup {
		g, ok := index[key]
		if !ok {
			g = &componentGroup{key: key, entitled: decimal.Zero}
			index[key] = g
			groups = append(groups, g)
		}
		return g
	}
	for _, l := range ent.Lines {
		if l.AppliesTo != "" && loaded[l.AppliesTo] {
			group(l.AppliesTo).add(l, false)
			continue
		}
		group(l.Component).add(l, true)
	}

	if aggregated {
		groups = allocateToOrdinary(groups, paidKeys)
		out.Flags = append(out.Flags, QualityFlag{
			Kind:   FlagAggregatedPayslip,
			Source: "discrepancy",
			Detail: fmt.Sprintf("aggregate payslip amount %s allocated against %s", aggregate.StringFixed(Cents), ComponentOrdinary),
		})
	}

	paidBy := make(map[ComponentKey]decimal.Decimal)
	for _, p := range itemized {
		paidBy[p.Component] = paidBy[p.Component].Add(p.Amount)
	}

	matched := make(map[ComponentKey]bool)
	for _, g := range groups {
		line := PayComponentLine{
			PayPeriodID: ent.PayPeriodID,
			Component:   g.key,
			Rate:        g.rate(),
			Entitled:    g.entitled,
			Paid:        decimal.Zero,
			Basis:       BasisUnpaid,
		}
		if !g.folded {
			line.Hours = g.hours
		}
		if paidKeys[g.key] {
			line.Paid = paidBy[g.key]
			line.Basis = BasisMatched
			matched[g.key] = true
		}
		if aggregated && g.key == ComponentOrdinary {
			line.Paid = line.Paid.Add(aggregate)
			line.Basis = BasisAggregated
		}
		out.Lines = append(out.Lines, line)
	}

	// Payslip lines with nothing to compare against.
	for _, p := range itemized {
		if matched[p.Component] {
			continue
		}
		matched[p.Component] = true
		line := PayComponentLine{
			PayPeriodID: ent.PayPeriodID,
			Component:   p.Component,
			Entitled:    decimal.Zero,
			Paid:        paidBy[p.Component],
			Basis:       BasisNoAwardBasis,
		}
		if line.Paid.Equal(p.Amount) {
			line.Hours, line.Rate = p.Hours, p.Rate
		}
		out.Lines = append(out.Lines, line)
	}

	if err := checkTotals(employee, ent, paid, out.Lines); err != nil {
		return Discrepancy{}, err
	}
	return out, nil
}

// allocateToOrdinary folds every group the payslip does not itemize into the
// ordinary group, creating it where the first folded group stood if needed.
func allocateToOrdinary(groups []*componentGroup, itemized map[ComponentKey]bool) []*componentGroup {
	var ordinary *componentGroup
	for _, g := range groups {
		if g.key == ComponentOrdinary {
			ordinary = g
			break
		}
	}
	var out []*componentGroup
	for _, g := range groups {
		if g == ordinary || itemized[g.key] {
			out = append(out, g)
			continue
		}
		if ordinary == nil {
			ordinary = &componentGroup{key: ComponentOrdinary, entitled: decimal.Zero}
			out = append(out, ordinary)
		}
		ordinary.entitled = ordinary.entitled.Add(g.entitled)
		ordinary.folded = true
	}
	if ordinary == nil {
		out = append(out, &componentGroup{key: ComponentOrdinary, entitled: decimal.Zero})
	}
	return out
}

func checkPaidPrecision(employee EmployeeID, paid []PaidLine, tolerance decimal.Decimal) error {
	for _, p := range paid {
		if p.Amount.Sub(RoundCents(p.Amount)).Abs().GreaterThan(tolerance) {
			return &CurrencyPrecisionError{
				EmployeeID: employee, Component: p.Component, Amount: p.Amount.String(),
				Detail: "amount has fractions of a cent",
			}
		}
		if p.Hours == nil || p.Rate == nil {
			continue
		}
		if RoundCents(p.Hours.Mul(*p.Rate)).Sub(p.Amount).Abs().GreaterThan(tolerance) {
			return &CurrencyPrecisionError{
				EmployeeID: employee, Component: p.Component, Amount: p.Amount.String(),
				Detail: fmt.Sprintf("%s hours at %s does not reconcile", p.Hours, p.Rate),
			}
		}
	}
	return nil
}

// checkTotals guards the line-level sums against the inputs. A mismatch means
// an amount was dropped or counted twice while grouping.
func checkTotals(employee EmployeeID, ent Entitlement, paid []PaidLine, lines PayLines) error {
	if want, got := ent.Total(), lines.TotalEntitled(); !want.Equal(got) {
		return &CurrencyPrecisionError{
			EmployeeID: employee, Amount: got.String(),
			Detail: fmt.Sprintf("entitled lines sum to %s, entitlement total is %s", got, want),
		}
	}
	want := decimal.Zero
	for _, p := range paid {
		want = want.Add(p.Amount)
	}
	if got := lines.TotalPaid(); !want.Equal(got) {
		return &CurrencyPrecisionError{
			EmployeeID: employee, Amount: got.String(),
			Detail: fmt.Sprintf("paid lines sum to %s, payslip total is %s", got, want),
		}
	}
	return nil
}
