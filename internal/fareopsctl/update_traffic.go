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

type UpdateTrafficArgs struct {
	EndpointName       string
	DeploymentName     string
	DeploymentNameFile string
	DefaultSlot        string
	// DeploymentState is the folder holding the state written by the deploy stage.
	DeploymentState string
	TrafficPercent  int
	Mode            traffic.Mode
	// DeleteOnRollback removes the new deployment after a rollback when an older one exists.
	DeleteOnRollback bool
	// OutputDeploymentState receives the updated state. Defaults to DeploymentState.
	OutputDeploymentState string
}

// ParseBool accepts the truthy spellings pipeline definitions use for flags passed as strings.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// UpdateTraffic promotes the new deployment or rolls the endpoint back to the traffic
// recorded by the deploy stage, then persists the resulting state.
func (a *App) UpdateTraffic(args UpdateTrafficArgs) error {
	return a.observe("update-traffic", func() error {
		return a.updateTraffic(args)
	})
}

func (a *App) updateTraffic(args UpdateTrafficArgs) error {
	fromFile, err := state.ReadSlotFile(args.DeploymentNameFile)
	if err != nil {
		return err
	}
	slot := traffic.NormalizeSlotName(traffic.ResolveSlot(args.DeploymentName, fromFile, args.DefaultSlot))

	s, err := state.Load(args.DeploymentState)
	if err != nil {
		return errors.Errorf("[fareopsctl.UpdateTraffic] %s", err)
	}
	hasPrior := s.HasPrior()
	if s.NewDeployment == "" {
		s.NewDeployment = slot
	}
	log.Infof("Loaded state: prior traffic=%s, has_prior=%t", s.PreviousTraffic, hasPrior)

	e, err := a.Params.EndpointAPI.Get(args.EndpointName)
	if platformerrors.IsNotFound(err) {
		return errors.Errorf("[fareopsctl.UpdateTraffic] endpoint %s does not exist", args.EndpointName)
	}
	if err != nil {
		return errors.Errorf("[fareopsctl.UpdateTraffic] error getting endpoint %s: %s", args.EndpointName, err)
	}

	var updated traffic.Distribution
	switch args.Mode {
	case traffic.ModePromote:
		updated, err = traffic.Promote(s.PreviousTraffic, slot, args.TrafficPercent, hasPrior)
		if err != nil {
			return err
		}
	case traffic.ModeRollback:
		updated = traffic.Rollback(s.PreviousTraffic, slot)
	default:
		return errors.WithStack(&platformerrors.ErrInvalidArgument{
			Name:    "mode",
			Value:   args.Mode,
			Message: "must be promote or rollback",
		})
	}
	if err := traffic.Validate(updated); err != nil {
		return err
	}
	log.Infof("Resulting traffic distribution: %s", updated)

	e.Traffic = updated
	if err := a.Params.EndpointAPI.CreateOrUpdate(e); err != nil {
		return errors.Errorf("[fareopsctl.UpdateTraffic] error updating traffic of endpoint %s: %s", args.EndpointName, err)
	}
	a.Metrics.RecordTraffic(args.EndpointName, updated)

	if args.Mode == traffic.ModeRollback && args.DeleteOnRollback && hasPrior {
		if err := a.deleteRolledBackDeployment(args.EndpointName, slot, updated, s); err != nil {
			return err
		}
	}

	s.CurrentTraffic = updated
	s.ResolvedDeployment = slot
	target := args.OutputDeploymentState
	if strings.TrimSpace(target) == "" {
		target = args.DeploymentState
	}
	dir, err := s.SaveWithFallback(target, state.DefaultFallbackDir)
	if err != nil {
		return errors.Errorf("[fareopsctl.UpdateTraffic] error persisting deployment state: %s", err)
	}
	log.Infof("Deployment state written to %s", dir)

	fmt.Fprintf(a.Out, "Traffic of endpoint %s is now %s\n", args.EndpointName, updated)
	return nil
}

func (a *App) deleteRolledBackDeployment(endpointName, slot string, restored traffic.Distribution, s *state.DeploymentState) error {
	if traffic.RoutesTo(restored, slot) {
		log.Warnf("Restored traffic still routes to %s; not deleting it", slot)
		return nil
	}
	log.Infof("Deleting deployment %s after rollback", slot)
	err := a.Params.DeploymentAPI.Delete(endpointName, slot)
	if platformerrors.IsNotFound(err) {
		log.Infof("Deployment %s was already removed", slot)
		return nil
	}
	if err != nil {
		return errors.Errorf("[fareopsctl.UpdateTraffic] error deleting deployment %s/%s: %s", endpointName, slot, err)
	}
	s.DeletedNewDeployment = true
	return nil
}
