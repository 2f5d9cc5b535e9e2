package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/wage-compliance/awards"
	"github.com/warp/wage-compliance/compliance"
	memstore "github.com/warp/wage-compliance/compliance/store"
	"github.com/warp/wage-compliance/export"
	"github.com/warp/wage-compliance/factory"
	"github.com/warp/wage-compliance/store/sqlite"
)

var auditFlags struct {
	input  string
	output string
	mode   string
	dbPath string
	region string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run one audit from a request file and write the remediation report",
	Long: `Evaluates every employee in an audit request and writes the remediation
report. The report is CSV unless the output path ends in .xlsx; with no
output path the CSV goes to stdout. A run summary is printed to stderr.

Usage:
  wagecheck audit -f request.json
  wagecheck audit -f request.json -o remediation.xlsx --mode underpaid_only
  wagecheck audit -f request.json --db wagecheck.db     # persist, skip unchanged inputs

Without --db the run uses an in-memory store and nothing is kept.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVarP(&auditFlags.input, "file", "f", "", "Audit request JSON (- for stdin)")
	f.StringVarP(&auditFlags.output, "output", "o", "", "Report path, .csv or .xlsx (default: CSV to stdout)")
	f.StringVar(&auditFlags.mode, "mode", "", "Report mode: all_employees or underpaid_only (default: from config)")
	f.StringVar(&auditFlags.dbPath, "db", "", "SQLite database to persist results in")
	f.StringVar(&auditFlags.region, "region", "", "Include holidays stored for this region (needs --db)")
	_ = auditCmd.MarkFlagRequired("file")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	mode := cfg.ReportMode()
	if auditFlags.mode != "" {
		if mode, err = export.ParseReportMode(auditFlags.mode); err != nil {
			return err
		}
	}
	engineCfg, err := cfg.EngineSettings()
	if err != nil {
		return err
	}
	reviewCfg, err := cfg.ReviewSettings()
	if err != nil {
		return err
	}

	req, err := readAuditRequest(auditFlags.input)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	extra, err := extraRuleSets()
	if err != nil {
		return err
	}

	var (
		store    compliance.Store = memstore.NewMemory()
		holidays                  = req.Holidays
	)
	if auditFlags.dbPath != "" {
		db, err := sqlite.New(auditFlags.dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		stored, err := db.RuleSets(ctx)
		if err != nil {
			return fmt.Errorf("load rule sets: %w", err)
		}
		extra = append(stored, extra...)
		regional, err := db.Holidays(ctx, auditFlags.region)
		if err != nil {
			return fmt.Errorf("load holidays: %w", err)
		}
		holidays = append(regional, holidays...)
		store = db
	} else if auditFlags.region != "" {
		return fmt.Errorf("--region needs --db")
	}

	rules, err := awards.Table(extra...)
	if err != nil {
		return fmt.Errorf("build rule table: %w", err)
	}
	calendar := compliance.NewHolidaySet(holidays...)
	engine, err := compliance.NewEngine(rules, calendar, engineCfg)
	if err != nil {
		return err
	}
	reviews := compliance.NewReviewQueue(store, reviewCfg, calendar, log.Named("review"))
	coordinator := compliance.NewCoordinator(engine, store, reviews, cfg.Batch.Workers, log.Named("batch"))

	run, err := coordinator.Run(ctx, req.OrganisationID, req.Period, req.Inputs)
	if err != nil {
		return err
	}

	if err := writeReport(auditFlags.output, run.Results(), mode); err != nil {
		return err
	}
	printSummary(os.Stderr, run)

	log.Info("audit written",
		zap.String("run_id", string(run.ID)),
		zap.String("output", auditFlags.output),
		zap.String("mode", string(mode)))
	return nil
}

func readAuditRequest(path string) (*factory.AuditRequest, error) {
	if path == "-" {
		return factory.DecodeAudit(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit request: %w", err)
	}
	defer f.Close()
	return factory.DecodeAudit(f)
}

func writeReport(path string, results []compliance.ComplianceResult, mode export.ReportMode) error {
	if path == "" {
		return export.WriteRemediationCSV(os.Stdout, results, mode)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		err = export.WriteRemediationXLSX(f, results, mode)
	} else {
		err = export.WriteRemediationCSV(f, results, mode)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// printSummary writes the run aggregates as an aligned table.
func printSummary(w io.Writer, run *compliance.AuditRun) {
	stats := run.Stats()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", run.ID)
	fmt.Fprintf(tw, "pay period\t%s\n", run.PayPeriod)
	fmt.Fprintf(tw, "employees\t%d\n", stats.Employees)
	for _, c := range []compliance.Classification{compliance.ClassOK, compliance.ClassUnderpaid, compliance.ClassNeedsReview} {
		fmt.Fprintf(tw, "  %s\t%d\n", c, stats.ByClass[c])
	}
	for _, k := range []compliance.ExclusionKind{compliance.ExcludedInsufficientData, compliance.ExcludedPrecisionFailure} {
		fmt.Fprintf(tw, "  %s\t%d\n", k, stats.Excluded[k])
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(tw, "unchanged (reused)\t%d\n", stats.Skipped)
	}
	if run.Cancelled {
		fmt.Fprintf(tw, "not run\t%d\n", stats.NotRun)
	}
	fmt.Fprintf(tw, "total entitled\t%s\n", stats.TotalEntitled.StringFixed(compliance.Cents))
	fmt.Fprintf(tw, "total paid\t%s\n", stats.TotalPaid.StringFixed(compliance.Cents))
	fmt.Fprintf(tw, "total liability\t%s\n", stats.TotalLiability.StringFixed(compliance.Cents))
	for i, key := range stats.RootCauseRanking() {
		if i == 3 {
			break
		}
		fmt.Fprintf(tw, "root cause %d\t%s (%d)\n", i+1, key, stats.RootCauses[key])
	}
	tw.Flush()
}
