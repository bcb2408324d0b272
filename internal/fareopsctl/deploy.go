package fareopsctl

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/internal/retention"
	"github.com/taxifare/fareops/internal/state"
	"github.com/taxifare/fareops/internal/traffic"
	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/deployment"
	"github.com/taxifare/fareops/pkg/client/endpoint"
	"github.com/taxifare/fareops/pkg/client/model"
)

type DeployArgs struct {
	ModelName          string
	EndpointName       string
	DeploymentName     string
	DeploymentNameFile string
	DefaultSlot        string
	// Registry to read the model from; blank reads from the workspace.
	Registry string
	// ModelVersion pins the version to deploy; blank deploys the latest.
	ModelVersion string
	// DeployStatus is the folder receiving done.txt, the deployment log and state.
	DeployStatus string
	// InitialTrafficPercent is applied to the first deployment of an endpoint. Nil means 100.
	InitialTrafficPercent *int
	InstanceType          string
	InstanceCount         int
}

// Deploy deploys a model version into a slot of an endpoint, creating the endpoint if
// needed. Live traffic is left untouched; the new slot joins at 0% unless it is the
// endpoint's first deployment.
func (a *App) Deploy(args DeployArgs) error {
	return a.observe("deploy", func() error {
		return a.deploy(args)
	})
}

func (a *App) deploy(args DeployArgs) error {
	fromFile, err := state.ReadSlotFile(args.DeploymentNameFile)
	if err != nil {
		return err
	}
	slot := traffic.NormalizeSlotName(traffic.ResolveSlot(args.DeploymentName, fromFile, args.DefaultSlot))
	log.Infof("Model name: %s", args.ModelName)
	log.Infof("Endpoint name: %s", args.EndpointName)
	log.Infof("Resolved deployment slot: %s", slot)

	if args.InitialTrafficPercent != nil && (*args.InitialTrafficPercent < 0 || *args.InitialTrafficPercent > traffic.Total) {
		return errors.WithStack(&platformerrors.ErrInvalidArgument{
			Name:    "initial-traffic-percent",
			Value:   *args.InitialTrafficPercent,
			Message: fmt.Sprintf("must be between 0 and %d", traffic.Total),
		})
	}

	m, err := a.resolveModel(args.ModelName, args.ModelVersion, args.Registry)
	if err != nil {
		return err
	}
	log.Infof("Selected model version %s from %s", m.Version, m.Scope)

	e, err := a.getOrCreateEndpoint(args.EndpointName)
	if err != nil {
		return err
	}
	previous := e.Traffic.Copy()

	d := deployment.NewDeployment(args.EndpointName, slot, m.Id)
	d.Location = e.Location
	if args.InstanceType != "" {
		d.InstanceType = args.InstanceType
	}
	if args.InstanceCount > 0 {
		d.InstanceCount = args.InstanceCount
	}
	if err := a.Params.DeploymentAPI.CreateOrUpdate(d); err != nil {
		return errors.Errorf("[fareopsctl.Deploy] error deploying %s:%s to %s/%s: %s", m.Name, m.Version, args.EndpointName, slot, err)
	}
	log.Infof("Deployment %s created or updated", slot)

	if len(previous) > 0 {
		log.Infof("Prior deployment detected; keeping traffic %s and adding %s at 0%% for validation", previous, slot)
	}
	updated := traffic.StageDeployment(previous, slot, args.InitialTrafficPercent)
	e.Traffic = updated
	if err := a.Params.EndpointAPI.CreateOrUpdate(e); err != nil {
		return errors.Errorf("[fareopsctl.Deploy] error updating traffic of endpoint %s: %s", args.EndpointName, err)
	}
	log.Infof("Endpoint traffic configuration updated: %s", updated)
	a.Metrics.RecordTraffic(args.EndpointName, updated)

	registry := args.Registry
	if registry == "" {
		registry = "(workspace)"
	}
	lines := []string{
		fmt.Sprintf("Model name: %s", args.ModelName),
		fmt.Sprintf("Endpoint name: %s", args.EndpointName),
		fmt.Sprintf("Deployment name: %s", slot),
		fmt.Sprintf("Registry: %s", registry),
		fmt.Sprintf("Latest model version: %s", m.Version),
		fmt.Sprintf("Endpoint provisioning state: %s", e.ProvisioningState),
		fmt.Sprintf("Traffic configuration after deployment: %s", updated),
	}
	if err := state.WriteStatus(args.DeployStatus, "Deployment complete.", "deployment_log.txt", lines); err != nil {
		return errors.Errorf("[fareopsctl.Deploy] error writing deploy status: %s", err)
	}
	if strings.TrimSpace(args.DeployStatus) != "" {
		s := &state.DeploymentState{
			PreviousTraffic: previous,
			UpdatedTraffic:  updated,
			NewDeployment:   slot,
			EndpointName:    args.EndpointName,
			ModelName:       m.Name,
			ModelVersion:    m.Version,
			ModelSource:     m.Scope.String(),
		}
		s.SetHasPrior(len(previous) > 0)
		if err := s.Save(args.DeployStatus); err != nil {
			return errors.Errorf("[fareopsctl.Deploy] error writing deployment state: %s", err)
		}
	}

	fmt.Fprintf(a.Out, "Deployed %s:%s to %s/%s; traffic %s\n", m.Name, m.Version, args.EndpointName, slot, updated)
	return nil
}

// resolveModel finds the model version to deploy. The registry, when given, is searched
// first and the workspace is the fallback.
func (a *App) resolveModel(name, version, registry string) (*model.Version, error) {
	primary := client.WorkspaceScope()
	if registry != "" {
		primary = client.RegistryScope(registry)
	}

	if version = strings.TrimSpace(version); version != "" {
		m, err := a.Params.ModelAPI.Get(primary, name, version)
		if platformerrors.IsNotFound(err) && primary.IsRegistry() {
			log.Infof("Model %s:%s not found in registry %s; trying workspace fallback", name, version, registry)
			m, err = a.Params.ModelAPI.Get(client.WorkspaceScope(), name, version)
		}
		if platformerrors.IsNotFound(err) {
			return nil, errors.Errorf("[fareopsctl.Deploy] model %s version %s was not found in the registry or workspace; verify the model was registered", name, version)
		}
		if err != nil {
			return nil, errors.Errorf("[fareopsctl.Deploy] error getting model %s:%s: %s", name, version, err)
		}
		return m, nil
	}

	scope := primary
	versions, err := a.Params.ModelAPI.ListVersions(scope, name)
	if err != nil {
		return nil, errors.Errorf("[fareopsctl.Deploy] error listing versions of model %s in %s: %s", name, scope, err)
	}
	if len(versions) == 0 && scope.IsRegistry() {
		log.Infof("No versions of model %s found in registry %s; trying workspace fallback", name, registry)
		scope = client.WorkspaceScope()
		versions, err = a.Params.ModelAPI.ListVersions(scope, name)
		if err != nil {
			return nil, errors.Errorf("[fareopsctl.Deploy] error listing versions of model %s in %s: %s", name, scope, err)
		}
	}
	latest := retention.Latest(model.VersionNumbers(versions))
	if latest == "" {
		return nil, errors.Errorf("[fareopsctl.Deploy] no registered versions of model %s found in the registry or workspace; run the training pipeline before deploying", name)
	}
	log.Infof("Latest model version: %s", latest)
	for _, v := range versions {
		if v.Version == latest && v.Id != "" {
			return v, nil
		}
	}
	m, err := a.Params.ModelAPI.Get(scope, name, latest)
	if err != nil {
		return nil, errors.Errorf("[fareopsctl.Deploy] error getting model %s:%s: %s", name, latest, err)
	}
	return m, nil
}

func (a *App) getOrCreateEndpoint(name string) (*endpoint.Endpoint, error) {
	e, err := a.Params.EndpointAPI.Get(name)
	if err == nil {
		log.Infof("Endpoint %s found with provisioning state %s", e.Name, e.ProvisioningState)
		return e, nil
	}
	if !platformerrors.IsNotFound(err) {
		return nil, errors.Errorf("[fareopsctl.Deploy] error getting endpoint %s: %s", name, err)
	}

	log.Infof("Endpoint %s not found; creating it", name)
	created := &endpoint.Endpoint{
		Name:        name,
		Description: "taxi fare prediction online endpoint",
		AuthMode:    endpoint.AuthModeKey,
		Tags:        map[string]string{"training_dataset": "taxi_fares"},
	}
	if err := a.Params.EndpointAPI.CreateOrUpdate(created); err != nil {
		return nil, errors.Errorf("[fareopsctl.Deploy] error creating endpoint %s: %s", name, err)
	}
	e, err = a.Params.EndpointAPI.Get(name)
	if err != nil {
		return nil, errors.Errorf("[fareopsctl.Deploy] error reading back endpoint %s: %s", name, err)
	}
	return e, nil
}
