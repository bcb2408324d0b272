package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
	"github.com/taxifare/fareops/pkg/client"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fareopsctl",
		Short: "fareopsctl runs the deployment stages of the taxi fare MLOps pipeline.",
		Long: `fareopsctl runs the deployment stages of the taxi fare MLOps pipeline against an
Azure Machine Learning workspace and, optionally, a shared model registry.

Persistent config can be saved in a config file so it doesn't have to be specified every command.

Example structure:
subscriptionId: 00000000-0000-0000-0000-000000000000
resourceGroup: taxi-rg
workspaceName: taxi-ws
authMethod: managedIdentity

The location of this file can be passed in using the --config argument.
If not provided, $HOME/.fareopsctl.yaml is used. On pipeline compute the workspace
is read from the AZUREML_ARM_* environment variables.`,
		SilenceUsage: true,
	}

	client.AddApiConnectionCommandlineArgs(cmd)
	cmd.PersistentFlags().String("config", "", "config file (default is $HOME/.fareopsctl.yaml)")
	cmd.PersistentFlags().String("metrics-file", "", "node-exporter textfile receiving stage metrics")

	cmd.AddCommand(
		selectSlotCmd(),
		deployCmd(),
		updateTrafficCmd(),
		testEndpointCmd(),
		cleanupModelsCmd(),
		registerCmd(),
		createEnvCmd(),
		compareCmd(),
		submitCmd(),
		versionCmd(),
	)

	return cmd
}

// Execute runs the root command and exits non-zero on failure, which fails the pipeline step.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func initParams(cmd *cobra.Command, params *fareopsctl.Params) error {
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("error reading config: %s", err)
	}
	if err := client.LoadCommandlineArgsFromConfigFile(cfgFile); err != nil {
		return err
	}
	details, err := client.ExtractCommandlineApiConnectionDetails()
	if err != nil {
		return err
	}
	params.ApiConnectionDetails = details

	params.MetricsFile, err = cmd.Flags().GetString("metrics-file")
	if err != nil {
		return fmt.Errorf("error reading metrics-file: %s", err)
	}

	params.ConnectAPIs()
	return nil
}
