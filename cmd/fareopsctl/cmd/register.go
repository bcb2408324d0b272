package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
)

func registerCmd() *cobra.Command {
	return registerCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func registerCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a trained MLflow model",
		Long: `Registers the MLflow model produced by training in the workspace at the next
free version and, with --registry, in the shared registry as well.`,
		Args: cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			registerArgs := fareopsctl.RegisterArgs{}
			for name, target := range map[string]*string{
				"model-input":     &registerArgs.ModelInput,
				"model-name":      &registerArgs.ModelName,
				"model-uri":       &registerArgs.ModelUri,
				"description":     &registerArgs.Description,
				"registry":        &registerArgs.Registry,
				"register-output": &registerArgs.RegisterOutput,
			} {
				value, err := cmd.Flags().GetString(name)
				if err != nil {
					return fmt.Errorf("error reading %s: %s", name, err)
				}
				*target = value
			}
			return a.Register(registerArgs)
		},
	}
	cmd.Flags().String("model-input", "", "Training output folder holding the MLflow model")
	cmd.Flags().String("model-name", "", "Name to register the model under")
	cmd.Flags().String("model-uri", "", "Datastore URI of the model folder, e.g. azureml://datastores/<store>/paths/<path>")
	cmd.Flags().String("description", "", "Model description")
	cmd.Flags().String("registry", "", "Model registry receiving a copy of the model")
	cmd.Flags().String("register-output", "", "Folder receiving model_versions.json")
	_ = cmd.MarkFlagRequired("model-input")
	_ = cmd.MarkFlagRequired("model-name")
	return cmd
}
