/*
Package export renders compliance results as remediation reports.

FORMATS:
  CSV:  one row per employee, fixed columns, header always present
  XLSX: a "Remediation" sheet with the CSV columns plus a "Components"
        sheet with one row per pay component line

COLUMNS:
  employee_id, pay_period_id, classification, total_entitled, total_paid,
  total_difference, shortfall, primary_reason, components

  components holds "key=difference" pairs joined by ";" in line order,
  e.g. "evening-penalty=-1.55;casual-loading=-5.58".

REPORT MODE:
  all_employees:  every result
  underpaid_only: results classified underpaid

  The mode filters the export only. Results and stats are never affected.
*/
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/wage-compliance/compliance"
)

type ReportMode string

const (
	AllEmployees  ReportMode = "all_employees"
	UnderpaidOnly ReportMode = "underpaid_only"
)

// ParseReportMode accepts "" as all_employees.
func ParseReportMode(s string) (ReportMode, error) {
	switch m := ReportMode(s); m {
	case "", AllEmployees:
		return AllEmployees, nil
	case UnderpaidOnly:
		return m, nil
	}
	return "", fmt.Errorf("unknown report mode %q", s)
}

// Filter returns the results the mode includes, in input order.
func (m ReportMode) Filter(results []compliance.ComplianceResult) []compliance.ComplianceResult {
	if m != UnderpaidOnly {
		return results
	}
	var out []compliance.ComplianceResult
	for _, r := range results {
		if r.Classification == compliance.ClassUnderpaid {
			out = append(out, r)
		}
	}
	return out
}

// Columns is the fixed CSV header.
var Columns = []string{
	"employee_id",
	"pay_period_id",
	"classification",
	"total_entitled",
	"total_paid",
	"total_difference",
	"shortfall",
	"primary_reason",
	"components",
}

// =============================================================================
// ROWS
// =============================================================================

// ComponentAmount is one "key=difference" pair of the components column.
type ComponentAmount struct {
	Component  compliance.ComponentKey
	Difference decimal.Decimal
}

// Row is one line of the remediation report.
type Row struct {
	EmployeeID      compliance.EmployeeID
	PayPeriodID     compliance.PayPeriodID
	Classification  compliance.Classification
	TotalEntitled   decimal.Decimal
	TotalPaid       decimal.Decimal
	TotalDifference decimal.Decimal
	Shortfall       decimal.Decimal
	PrimaryReason   compliance.ComponentKey
	Components      []ComponentAmount
}

// RowFor flattens a result into a report row.
func RowFor(r compliance.ComplianceResult) Row {
	row := Row{
		EmployeeID:      r.EmployeeID,
		PayPeriodID:     r.PayPeriodID,
		Classification:  r.Classification,
		TotalEntitled:   r.TotalEntitled(),
		TotalPaid:       r.TotalPaid(),
		TotalDifference: r.TotalDifference(),
		Shortfall:       r.Shortfall(),
		PrimaryReason:   r.PrimaryReason,
	}
	for _, l := range r.Lines {
		row.Components = append(row.Components, ComponentAmount{Component: l.Component, Difference: l.Difference()})
	}
	return row
}

func (r Row) record() []string {
	return []string{
		string(r.EmployeeID),
		string(r.PayPeriodID),
		string(r.Classification),
		money(r.TotalEntitled),
		money(r.TotalPaid),
		money(r.TotalDifference),
		money(r.Shortfall),
		string(r.PrimaryReason),
		formatComponents(r.Components),
	}
}

func money(d decimal.Decimal) string { return d.StringFixed(compliance.Cents) }

func formatComponents(cs []ComponentAmount) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c.Component) + "=" + money(c.Difference)
	}
	return strings.Join(parts, ";")
}

func parseComponents(s string) ([]ComponentAmount, error) {
	if s == "" {
		return nil, nil
	}
	var out []ComponentAmount
	for _, part := range strings.Split(s, ";") {
		key, amount, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed component %q", part)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", key, err)
		}
		out = append(out, ComponentAmount{Component: compliance.ComponentKey(key), Difference: d})
	}
	return out, nil
}

// =============================================================================
// CSV
// =============================================================================

// WriteRemediationCSV writes the report. The header is written even when no
// result passes the mode filter.
func WriteRemediationCSV(w io.Writer, results []compliance.ComplianceResult, mode ReportMode) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range mode.Filter(results) {
		if err := cw.Write(RowFor(r).record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseRemediationCSV reads a report written by WriteRemediationCSV.
func ParseRemediationCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("remediation csv: missing header")
		}
		return nil, fmt.Errorf("remediation csv: %w", err)
	}
	for i, col := range Columns {
		if header[i] != col {
			return nil, fmt.Errorf("remediation csv: column %d is %q, want %q", i+1, header[i], col)
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("remediation csv: %w", err)
		}
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("remediation csv: row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(rec []string) (Row, error) {
	row := Row{
		EmployeeID:     compliance.EmployeeID(rec[0]),
		PayPeriodID:    compliance.PayPeriodID(rec[1]),
		Classification: compliance.Classification(rec[2]),
		PrimaryReason:  compliance.ComponentKey(rec[7]),
	}
	amounts := []*decimal.Decimal{&row.TotalEntitled, &row.TotalPaid, &row.TotalDifference, &row.Shortfall}
	for i, dst := range amounts {
		d, err := decimal.NewFromString(rec[3+i])
		if err != nil {
			return row, fmt.Errorf("%s: %w", Columns[3+i], err)
		}
		*dst = d
	}
	components, err := parseComponents(rec[8])
	if err != nil {
		return row, err
	}
	row.Components = components
	return row, nil
}
