package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/wage-compliance/awards"
	"github.com/warp/wage-compliance/factory"
)

var awardsFlags struct {
	asYAML bool
}

var awardsCmd = &cobra.Command{
	Use:   "awards",
	Short: "List award rule set versions, presets plus --awards",
	Long: `Lists every award rule set version the engine would evaluate against.
With --yaml the rule sets are printed as a YAML stream that --awards accepts,
which is the starting point for maintaining a rule set outside the presets.`,
	Args: cobra.NoArgs,
	RunE: runAwards,
}

func init() {
	awardsCmd.Flags().BoolVar(&awardsFlags.asYAML, "yaml", false, "Print the rule sets as YAML documents")
}

func runAwards(_ *cobra.Command, _ []string) error {
	extra, err := extraRuleSets()
	if err != nil {
		return err
	}
	table, err := awards.Table(extra...)
	if err != nil {
		return err
	}
	sets := table.All()

	if awardsFlags.asYAML {
		for i, set := range sets {
			data, err := factory.MarshalRuleSet(set)
			if err != nil {
				return err
			}
			if i > 0 {
				fmt.Fprintln(os.Stdout, "---")
			}
			os.Stdout.Write(data)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AWARD\tVERSION\tEFFECTIVE\tRULES\tCLASSIFICATIONS\tNAME")
	for _, set := range sets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			set.AwardID, set.Version, set.EffectiveFrom, len(set.Rules), len(set.Classifications), set.Name)
	}
	return tw.Flush()
}
