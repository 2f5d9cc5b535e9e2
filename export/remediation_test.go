package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/export"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return compliance.MustDecimal(s) }

func line(key compliance.ComponentKey, entitled, paid string) compliance.PayComponentLine {
	return compliance.PayComponentLine{
		PayPeriodID: "2025-03-F1",
		Component:   key,
		Entitled:    dec(entitled),
		Paid:        dec(paid),
		Basis:       compliance.BasisMatched,
	}
}

func underpaidResult() compliance.ComplianceResult {
	return compliance.ComplianceResult{
		EmployeeID:     "E-1001",
		PayPeriodID:    "2025-03-F1",
		Classification: compliance.ClassUnderpaid,
		Lines: compliance.PayLines{
			line("evening-penalty", "78.38", "71.25"),
			line("ordinary", "100.00", "100.00"),
		},
		PrimaryReason: "evening-penalty",
		Confidence:    dec("0.95"),
	}
}

func okResult() compliance.ComplianceResult {
	return compliance.ComplianceResult{
		EmployeeID:     "E-1002",
		PayPeriodID:    "2025-03-F1",
		Classification: compliance.ClassOK,
		Lines:          compliance.PayLines{line("ordinary", "249.50", "249.50")},
		Confidence:     dec("0.95"),
	}
}

// decimalEqual makes cmp compare decimals by value.
var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// =============================================================================
// CSV
// =============================================================================

func TestWriteRemediationCSV_HeaderAndRows(t *testing.T) {
	// GIVEN: one underpaid and one ok result
	// WHEN: Writing all employees
	// THEN: Header plus one row each, components in line order

	var buf bytes.Buffer
	err := export.WriteRemediationCSV(&buf, []compliance.ComplianceResult{underpaidResult(), okResult()}, export.AllEmployees)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "employee_id,pay_period_id,classification,total_entitled,total_paid,total_difference,shortfall,primary_reason,components", lines[0])
	assert.Equal(t, "E-1001,2025-03-F1,underpaid,178.38,171.25,-7.13,7.13,evening-penalty,evening-penalty=-7.13;ordinary=0.00", lines[1])
	assert.Equal(t, "E-1002,2025-03-F1,ok,249.50,249.50,0.00,0.00,,ordinary=0.00", lines[2])
}

func TestWriteRemediationCSV_UnderpaidOnly_HeaderAlwaysPresent(t *testing.T) {
	// GIVEN: only ok results
	// WHEN: Writing in underpaid_only mode
	// THEN: The header is still written

	var buf bytes.Buffer
	err := export.WriteRemediationCSV(&buf, []compliance.ComplianceResult{okResult()}, export.UnderpaidOnly)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(export.Columns, ",")+"\n", buf.String())
}

func TestRemediationCSV_RoundTrip(t *testing.T) {
	results := []compliance.ComplianceResult{underpaidResult(), okResult()}

	var buf bytes.Buffer
	require.NoError(t, export.WriteRemediationCSV(&buf, results, export.AllEmployees))

	rows, err := export.ParseRemediationCSV(&buf)
	require.NoError(t, err)

	want := []export.Row{export.RowFor(results[0]), export.RowFor(results[1])}
	if diff := cmp.Diff(want, rows, decimalEqual); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRemediationCSV_RejectsWrongHeader(t *testing.T) {
	_, err := export.ParseRemediationCSV(strings.NewReader("a,b,c,d,e,f,g,h,i\n"))
	assert.Error(t, err)

	_, err = export.ParseRemediationCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseRemediationCSV_RejectsMalformedComponents(t *testing.T) {
	input := strings.Join(export.Columns, ",") + "\n" +
		"E-1,P,ok,1.00,1.00,0.00,0.00,,ordinary\n"
	_, err := export.ParseRemediationCSV(strings.NewReader(input))
	assert.Error(t, err)
}

func TestParseReportMode(t *testing.T) {
	m, err := export.ParseReportMode("")
	require.NoError(t, err)
	assert.Equal(t, export.AllEmployees, m)

	m, err = export.ParseReportMode("underpaid_only")
	require.NoError(t, err)
	assert.Equal(t, export.UnderpaidOnly, m)

	_, err = export.ParseReportMode("some")
	assert.Error(t, err)
}

// =============================================================================
// XLSX
// =============================================================================

func TestWriteRemediationXLSX_Sheets(t *testing.T) {
	// GIVEN: two results with three lines in total
	// WHEN: Writing the workbook
	// THEN: Remediation has one row per employee, Components one per line

	var buf bytes.Buffer
	err := export.WriteRemediationXLSX(&buf, []compliance.ComplianceResult{underpaidResult(), okResult()}, export.AllEmployees)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.RemediationSheet, export.ComponentsSheet}, f.GetSheetList())

	rows, err := f.GetRows(export.RemediationSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.Columns, rows[0])
	assert.Equal(t, "E-1001", rows[1][0])
	assert.Equal(t, "underpaid", rows[1][2])
	assert.Equal(t, "evening-penalty=-7.13;ordinary=0.00", rows[1][8])

	components, err := f.GetRows(export.ComponentsSheet)
	require.NoError(t, err)
	require.Len(t, components, 4)
	assert.Equal(t, export.ComponentColumns, components[0])
	assert.Equal(t, "evening-penalty", components[1][2])
	assert.Equal(t, "E-1002", components[3][0])
}

func TestWriteRemediationXLSX_UnderpaidOnly(t *testing.T) {
	var buf bytes.Buffer
	err := export.WriteRemediationXLSX(&buf, []compliance.ComplianceResult{underpaidResult(), okResult()}, export.UnderpaidOnly)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.RemediationSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
