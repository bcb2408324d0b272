package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
	"github.com/taxifare/fareops/internal/traffic"
	"github.com/taxifare/fareops/pkg/client/deployment"
)

func deployCmd() *cobra.Command {
	return deployCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func deployCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a model version into a slot of an online endpoint",
		Long: `Deploys the latest (or a pinned) version of a model into a slot of an online
endpoint, creating the endpoint when it does not exist. Live traffic is left as it
is: the slot joins at 0% so it can be tested before promotion. The first
deployment of an endpoint receives all traffic.`,
		Args: cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			deployArgs := fareopsctl.DeployArgs{}
			for name, target := range map[string]*string{
				"model-name":           &deployArgs.ModelName,
				"endpoint-name":        &deployArgs.EndpointName,
				"deployment-name":      &deployArgs.DeploymentName,
				"deployment-name-file": &deployArgs.DeploymentNameFile,
				"default-slot":         &deployArgs.DefaultSlot,
				"registry":             &deployArgs.Registry,
				"model-version":        &deployArgs.ModelVersion,
				"deploy-status":        &deployArgs.DeployStatus,
				"instance-type":        &deployArgs.InstanceType,
			} {
				value, err := cmd.Flags().GetString(name)
				if err != nil {
					return fmt.Errorf("error reading %s: %s", name, err)
				}
				*target = value
			}

			instanceCount, err := cmd.Flags().GetInt("instance-count")
			if err != nil {
				return fmt.Errorf("error reading instance-count: %s", err)
			}
			deployArgs.InstanceCount = instanceCount

			if cmd.Flags().Changed("initial-traffic-percent") {
				percent, err := cmd.Flags().GetInt("initial-traffic-percent")
				if err != nil {
					return fmt.Errorf("error reading initial-traffic-percent: %s", err)
				}
				deployArgs.InitialTrafficPercent = &percent
			}

			return a.Deploy(deployArgs)
		},
	}
	cmd.Flags().String("model-name", "", "Name of the registered model")
	cmd.Flags().String("endpoint-name", "", "Name of the online endpoint")
	cmd.Flags().String("deployment-name", "", "Slot to deploy to; overrides --deployment-name-file")
	cmd.Flags().String("deployment-name-file", "", "File written by select-slot holding the slot to deploy to")
	cmd.Flags().String("default-slot", traffic.DefaultSlot, "Slot used when no slot was given")
	cmd.Flags().String("registry", "", "Model registry to deploy from; the workspace is used as fallback")
	cmd.Flags().String("model-version", "", "Model version to deploy (default: latest)")
	cmd.Flags().String("deploy-status", "", "Folder receiving the deployment log and state")
	cmd.Flags().Int("initial-traffic-percent", traffic.Total, "Traffic given to the first deployment of an endpoint")
	cmd.Flags().String("instance-type", deployment.DefaultInstanceType, "VM size of the deployment")
	cmd.Flags().Int("instance-count", deployment.DefaultInstanceCount, "Number of instances of the deployment")
	_ = cmd.MarkFlagRequired("model-name")
	_ = cmd.MarkFlagRequired("endpoint-name")
	return cmd
}
