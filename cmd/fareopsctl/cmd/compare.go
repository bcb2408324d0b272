package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
)

func compareCmd() *cobra.Command {
	return compareCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func compareCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Fail when the candidate model scores below the baseline",
		Args:  cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			compareArgs := fareopsctl.CompareArgs{}
			for name, target := range map[string]*string{
				"candidate-metrics": &compareArgs.CandidateMetrics,
				"baseline-metrics":  &compareArgs.BaselineMetrics,
				"metric":            &compareArgs.Metric,
				"compare-output":    &compareArgs.CompareOutput,
			} {
				value, err := cmd.Flags().GetString(name)
				if err != nil {
					return fmt.Errorf("error reading %s: %s", name, err)
				}
				*target = value
			}
			lowerIsBetter, err := cmd.Flags().GetBool("lower-is-better")
			if err != nil {
				return fmt.Errorf("error reading lower-is-better: %s", err)
			}
			compareArgs.LowerIsBetter = lowerIsBetter
			return a.Compare(compareArgs)
		},
	}
	cmd.Flags().String("candidate-metrics", "", "JSON or YAML metrics of the candidate model")
	cmd.Flags().String("baseline-metrics", "", "JSON or YAML metrics of the deployed model; missing means no baseline")
	cmd.Flags().String("metric", fareopsctl.DefaultCompareMetric, "Metric to compare")
	cmd.Flags().Bool("lower-is-better", false, "Treat the metric as an error measure such as rmse or mae")
	cmd.Flags().String("compare-output", "", "Folder receiving compare.txt")
	_ = cmd.MarkFlagRequired("candidate-metrics")
	return cmd
}
