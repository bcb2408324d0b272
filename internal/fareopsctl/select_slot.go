package fareopsctl

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/internal/state"
	"github.com/taxifare/fareops/internal/traffic"
)

type SelectSlotArgs struct {
	EndpointName  string
	DefaultSlot   string
	AlternateSlot string
	// PreferredSlot, when set, is used without looking at the endpoint.
	PreferredSlot string
	// OutputSlot is the file receiving the selected slot name.
	OutputSlot string
}

// SelectSlot picks the deployment slot the next deployment should be written to and
// writes its name to args.OutputSlot.
func (a *App) SelectSlot(args SelectSlotArgs) error {
	return a.observe("select-slot", func() error {
		selected, err := a.selectSlot(args)
		if err != nil {
			return err
		}
		if err := state.WriteSlotFile(args.OutputSlot, selected); err != nil {
			return errors.Errorf("[fareopsctl.SelectSlot] error writing slot file %s: %s", args.OutputSlot, err)
		}
		log.Infof("Slot selection written to %s", args.OutputSlot)
		fmt.Fprintf(a.Out, "Selected slot %s\n", selected)
		return nil
	})
}

func (a *App) selectSlot(args SelectSlotArgs) (string, error) {
	if preferred := strings.TrimSpace(args.PreferredSlot); preferred != "" {
		selected := traffic.NormalizeSlotName(preferred)
		log.Infof("Using preferred slot override: %s", selected)
		return selected, nil
	}

	defaultSlot := traffic.NormalizeSlotName(args.DefaultSlot)
	if defaultSlot == "" {
		defaultSlot = traffic.DefaultSlot
	}
	alternateSlot := traffic.NormalizeSlotName(args.AlternateSlot)
	if alternateSlot == "" {
		alternateSlot = traffic.AlternateSlot
	}

	e, err := a.Params.EndpointAPI.Get(args.EndpointName)
	if platformerrors.IsNotFound(err) {
		log.Infof("Endpoint %s does not exist; defaulting to initial slot %s", args.EndpointName, defaultSlot)
		return defaultSlot, nil
	}
	if err != nil {
		return "", errors.Errorf("[fareopsctl.SelectSlot] error getting endpoint %s: %s", args.EndpointName, err)
	}
	selected := traffic.DetermineSlot(e.Traffic, defaultSlot, alternateSlot)
	log.Infof("Existing traffic map: %s; selected slot: %s", e.Traffic, selected)
	return selected, nil
}
