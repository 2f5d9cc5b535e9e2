// wagecheck audits pay against award entitlements and routes uncertain
// results to human review.
//
// Usage:
//
//	wagecheck serve [--config wagecheck.yaml]
//	wagecheck audit -f request.json [-o remediation.csv|.xlsx] [--mode underpaid_only]
//	wagecheck awards [--awards rules.yaml] [--yaml]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/config"
	"github.com/warp/wage-compliance/factory"
	"github.com/warp/wage-compliance/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	awardsPath string
}

var rootCmd = &cobra.Command{
	Use:   "wagecheck",
	Short: "Wage compliance calculation and review routing",
	Long: "wagecheck computes award entitlements from timesheets, compares them with\n" +
		"payslips line by line, and classifies each employee as ok, underpaid or\n" +
		"needs_review.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Config file (default: $WAGECHECK_CONFIG)")
	pf.StringVar(&rootFlags.awardsPath, "awards", "", "Extra award rule sets (YAML, documents separated by ---)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(awardsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// extraRuleSets reads --awards when given.
func extraRuleSets() ([]compliance.AwardRuleSet, error) {
	if rootFlags.awardsPath == "" {
		return nil, nil
	}
	return factory.LoadRuleSets(rootFlags.awardsPath)
}
