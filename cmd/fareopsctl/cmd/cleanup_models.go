package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
)

func cleanupModelsCmd() *cobra.Command {
	return cleanupModelsCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func cleanupModelsCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup-models",
		Short: "Delete old model versions from the workspace and registry",
		Long: `Deletes old versions of a model. The version recorded in the deployment state is
always kept, as are the newest --retain-versions versions of each scope.`,
		Args: cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cleanupArgs := fareopsctl.CleanupModelsArgs{}
			for name, target := range map[string]*string{
				"model-name":    &cleanupArgs.ModelName,
				"registry":      &cleanupArgs.Registry,
				"deploy-state":  &cleanupArgs.DeployState,
				"scope":         &cleanupArgs.Scope,
				"output-folder": &cleanupArgs.OutputFolder,
			} {
				value, err := cmd.Flags().GetString(name)
				if err != nil {
					return fmt.Errorf("error reading %s: %s", name, err)
				}
				*target = value
			}

			retain, err := cmd.Flags().GetInt("retain-versions")
			if err != nil {
				return fmt.Errorf("error reading retain-versions: %s", err)
			}
			cleanupArgs.RetainVersions = retain

			dryRun, err := cmd.Flags().GetBool("dry-run")
			if err != nil {
				return fmt.Errorf("error reading dry-run: %s", err)
			}
			cleanupArgs.DryRun = dryRun

			return a.CleanupModels(cleanupArgs)
		},
	}
	cmd.Flags().String("model-name", "", "Name of the registered model")
	cmd.Flags().String("registry", "", "Model registry to clean up")
	cmd.Flags().Int("retain-versions", 1, "Minimum number of versions kept per scope")
	cmd.Flags().String("deploy-state", "", "Folder holding the deployment state; its model version is kept")
	cmd.Flags().String("scope", fareopsctl.CleanupScopeBoth, "workspace, registry or both")
	cmd.Flags().String("output-folder", "", "Folder receiving cleanup_report.json and summary.txt")
	cmd.Flags().Bool("dry-run", false, "Report what would be deleted without deleting")
	_ = cmd.MarkFlagRequired("model-name")
	return cmd
}
