package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxifare/fareops/internal/fareopsctl"
	"github.com/taxifare/fareops/internal/traffic"
)

func selectSlotCmd() *cobra.Command {
	return selectSlotCmdWithApp(fareopsctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func selectSlotCmdWithApp(a *fareopsctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-slot",
		Short: "Pick the deployment slot the next model version should go to",
		Long: `Picks the blue/green slot for the next deployment. A free slot is preferred;
when both slots are live, the one carrying the least traffic is reused. The slot
name is written to --output-slot for later stages.`,
		Args: cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			endpointName, err := cmd.Flags().GetString("endpoint-name")
			if err != nil {
				return fmt.Errorf("error reading endpoint-name: %s", err)
			}
			defaultSlot, err := cmd.Flags().GetString("default-slot")
			if err != nil {
				return fmt.Errorf("error reading default-slot: %s", err)
			}
			alternateSlot, err := cmd.Flags().GetString("alternate-slot")
			if err != nil {
				return fmt.Errorf("error reading alternate-slot: %s", err)
			}
			preferredSlot, err := cmd.Flags().GetString("preferred-slot")
			if err != nil {
				return fmt.Errorf("error reading preferred-slot: %s", err)
			}
			outputSlot, err := cmd.Flags().GetString("output-slot")
			if err != nil {
				return fmt.Errorf("error reading output-slot: %s", err)
			}

			return a.SelectSlot(fareopsctl.SelectSlotArgs{
				EndpointName:  endpointName,
				DefaultSlot:   defaultSlot,
				AlternateSlot: alternateSlot,
				PreferredSlot: preferredSlot,
				OutputSlot:    outputSlot,
			})
		},
	}
	cmd.Flags().String("endpoint-name", "", "Name of the online endpoint")
	cmd.Flags().String("default-slot", traffic.DefaultSlot, "Slot used when the endpoint has no traffic")
	cmd.Flags().String("alternate-slot", traffic.AlternateSlot, "Slot used when the default slot is live")
	cmd.Flags().String("preferred-slot", "", "Slot to use regardless of the current traffic")
	cmd.Flags().String("output-slot", "", "File receiving the selected slot name")
	_ = cmd.MarkFlagRequired("endpoint-name")
	_ = cmd.MarkFlagRequired("output-slot")
	return cmd
}
