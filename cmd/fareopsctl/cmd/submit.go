package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
)

func submitCmd() *cobra.Command {
	return submitCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func submitCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <job-file>",
		Short: "Submit a pipeline job definition to the workspace",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := cmd.Flags().GetString("name")
			if err != nil {
				return fmt.Errorf("error reading name: %s", err)
			}
			experiment, err := cmd.Flags().GetString("experiment-name")
			if err != nil {
				return fmt.Errorf("error reading experiment-name: %s", err)
			}
			return a.Submit(fareopsctl.SubmitArgs{
				JobFile:        args[0],
				Name:           name,
				ExperimentName: experiment,
			})
		},
	}
	cmd.Flags().String("name", "", "Job name (default: generated)")
	cmd.Flags().String("experiment-name", "", "Experiment the job is grouped under")
	return cmd
}
