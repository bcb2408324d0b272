package cmd

import (
	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
)

func versionCmd() *cobra.Command {
	a := fareopsctl.New()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print client version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Version()
		},
	}
	return cmd
}
