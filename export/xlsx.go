package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/wage-compliance/compliance"
)

const (
	RemediationSheet = "Remediation"
	ComponentsSheet  = "Components"
)

// ComponentColumns is the header of the Components sheet.
var ComponentColumns = []string{
	"employee_id",
	"pay_period_id",
	"component",
	"applies_to",
	"basis",
	"entitled",
	"paid",
	"difference",
}

// XLSXContentType is the media type of the workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteRemediationXLSX writes the report as a workbook. The Remediation sheet
// carries the CSV columns; the Components sheet has one row per line.
func WriteRemediationXLSX(w io.Writer, results []compliance.ComplianceResult, mode ReportMode) error {
	f, err := buildWorkbook(mode.Filter(results))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(results []compliance.ComplianceResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", RemediationSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ComponentsSheet); err != nil {
		f.Close()
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeHeader(f, RemediationSheet, Columns, header); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeader(f, ComponentsSheet, ComponentColumns, header); err != nil {
		f.Close()
		return nil, err
	}

	componentRow := 2
	for i, r := range results {
		row := RowFor(r)
		values := []interface{}{
			string(row.EmployeeID),
			string(row.PayPeriodID),
			string(row.Classification),
			row.TotalEntitled.InexactFloat64(),
			row.TotalPaid.InexactFloat64(),
			row.TotalDifference.InexactFloat64(),
			row.Shortfall.InexactFloat64(),
			string(row.PrimaryReason),
			formatComponents(row.Components),
		}
		if err := setRow(f, RemediationSheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}

		for _, l := range r.Lines {
			values := []interface{}{
				string(r.EmployeeID),
				string(r.PayPeriodID),
				string(l.Component),
				string(l.AppliesTo),
				string(l.Basis),
				l.Entitled.InexactFloat64(),
				l.Paid.InexactFloat64(),
				l.Difference().InexactFloat64(),
			}
			if err := setRow(f, ComponentsSheet, componentRow, values); err != nil {
				f.Close()
				return nil, err
			}
			componentRow++
		}
	}

	if err := f.SetColStyle(RemediationSheet, "D:G", money); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColStyle(ComponentsSheet, "F:H", money); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
