package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
)

func createEnvCmd() *cobra.Command {
	return createEnvCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func createEnvCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-env",
		Short: "Register a new version of the training and scoring environment",
		Args:  cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			envArgs := fareopsctl.CreateEnvironmentArgs{}
			for name, target := range map[string]*string{
				"env-name":   &envArgs.EnvName,
				"conda-file": &envArgs.CondaFile,
				"image":      &envArgs.Image,
				"env-status": &envArgs.EnvStatus,
			} {
				value, err := cmd.Flags().GetString(name)
				if err != nil {
					return fmt.Errorf("error reading %s: %s", name, err)
				}
				*target = value
			}
			return a.CreateEnvironment(envArgs)
		},
	}
	cmd.Flags().String("env-name", "", "Name of the environment")
	cmd.Flags().String("conda-file", "", "Conda specification of the environment")
	cmd.Flags().String("image", fareopsctl.DefaultEnvironmentImage, "Base docker image")
	cmd.Flags().String("env-status", "", "Folder receiving done.txt and env_log.txt")
	_ = cmd.MarkFlagRequired("env-name")
	_ = cmd.MarkFlagRequired("conda-file")
	return cmd
}
