package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
	"github.com/taxifare/fareops/internal/traffic"
)

func updateTrafficCmd() *cobra.Command {
	return updateTrafficCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func updateTrafficCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-traffic",
		Short: "Promote the new deployment or roll back to the previous traffic",
		Long: `In promote mode, --traffic-percent of the endpoint traffic moves to the new
deployment and the previous deployments share the rest in proportion to their
previous weights. In rollback mode the traffic recorded by the deploy stage is
restored, and with --delete-on-rollback the new deployment is removed.`,
		Args: cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			updateArgs := fareopsctl.UpdateTrafficArgs{}
			for name, target := range map[string]*string{
				"endpoint-name":           &updateArgs.EndpointName,
				"deployment-name":         &updateArgs.DeploymentName,
				"deployment-name-file":    &updateArgs.DeploymentNameFile,
				"default-slot":            &updateArgs.DefaultSlot,
				"deployment-state":        &updateArgs.DeploymentState,
				"output-deployment-state": &updateArgs.OutputDeploymentState,
			} {
				value, err := cmd.Flags().GetString(name)
				if err != nil {
					return fmt.Errorf("error reading %s: %s", name, err)
				}
				*target = value
			}

			percent, err := cmd.Flags().GetInt("traffic-percent")
			if err != nil {
				return fmt.Errorf("error reading traffic-percent: %s", err)
			}
			updateArgs.TrafficPercent = percent

			mode, err := cmd.Flags().GetString("mode")
			if err != nil {
				return fmt.Errorf("error reading mode: %s", err)
			}
			if updateArgs.Mode, err = traffic.ParseMode(mode); err != nil {
				return err
			}

			deleteOnRollback, err := cmd.Flags().GetString("delete-on-rollback")
			if err != nil {
				return fmt.Errorf("error reading delete-on-rollback: %s", err)
			}
			updateArgs.DeleteOnRollback = fareopsctl.ParseBool(deleteOnRollback)

			return a.UpdateTraffic(updateArgs)
		},
	}
	cmd.Flags().String("endpoint-name", "", "Name of the online endpoint")
	cmd.Flags().String("deployment-name", "", "Slot of the new deployment; overrides --deployment-name-file")
	cmd.Flags().String("deployment-name-file", "", "File written by select-slot holding the slot of the new deployment")
	cmd.Flags().String("default-slot", traffic.DefaultSlot, "Slot used when no slot was given")
	cmd.Flags().String("deployment-state", "", "Folder holding the state written by deploy")
	cmd.Flags().Int("traffic-percent", 30, "Share of the traffic given to the new deployment on promotion")
	cmd.Flags().String("mode", string(traffic.ModePromote), "promote or rollback")
	cmd.Flags().String("delete-on-rollback", "false", "Delete the new deployment after a rollback (true/1/yes/y)")
	cmd.Flags().String("output-deployment-state", "", "Folder receiving the updated state (default: --deployment-state)")
	_ = cmd.MarkFlagRequired("endpoint-name")
	return cmd
}
