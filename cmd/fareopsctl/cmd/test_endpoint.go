package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
)

func testEndpointCmd() *cobra.Command {
	return testEndpointCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func testEndpointCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-endpoint",
		Short: "Score a sample of the test data against a deployment",
		Long: `Sends the first rows of the test data to a deployment and writes a report with
the status code, the predictions and their match rate against the cost column.
A failed invocation fails the command so the pipeline can roll back.`,
		Args: cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			testArgs := fareopsctl.TestEndpointArgs{}
			for name, target := range map[string]*string{
				"endpoint-name":        &testArgs.EndpointName,
				"deployment-name":      &testArgs.DeploymentName,
				"deployment-name-file": &testArgs.DeploymentNameFile,
				"default-slot":         &testArgs.DefaultSlot,
				"test-data":            &testArgs.TestData,
				"report-folder":        &testArgs.ReportFolder,
				"deploy-status":        &testArgs.DeployStatus,
			} {
				value, err := cmd.Flags().GetString(name)
				if err != nil {
					return fmt.Errorf("error reading %s: %s", name, err)
				}
				*target = value
			}
			return a.TestEndpoint(testArgs)
		},
	}
	cmd.Flags().String("endpoint-name", "", "Name of the online endpoint")
	cmd.Flags().String("deployment-name", "", "Deployment to score; overrides --deployment-name-file")
	cmd.Flags().String("deployment-name-file", "", "File written by select-slot holding the deployment to score")
	cmd.Flags().String("default-slot", "", "Deployment used when none was given; blank lets the endpoint route the request")
	cmd.Flags().String("test-data", "", "CSV file, or folder containing one")
	cmd.Flags().String("report-folder", ".", "Folder receiving the test report")
	cmd.Flags().String("deploy-status", "", "Deploy status folder; orders this stage after deploy")
	_ = cmd.MarkFlagRequired("endpoint-name")
	_ = cmd.MarkFlagRequired("test-data")
	return cmd
}
