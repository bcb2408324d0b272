package fareopsctl

import (
	"crypto/rand"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/common/metrics"
	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/deployment"
	"github.com/taxifare/fareops/pkg/client/endpoint"
	"github.com/taxifare/fareops/pkg/client/environment"
	"github.com/taxifare/fareops/pkg/client/job"
	"github.com/taxifare/fareops/pkg/client/model"
)

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the applications's output.
	Out io.Writer
	// Source of randomness. Tests can use a mocked random source in order to provide
	// deterministic testing behavior.
	Random io.Reader
	// Metrics collected while running a stage; written to Params.MetricsFile when set.
	Metrics *metrics.StageMetrics
}

// Params struct holds all user-customizable parameters.
// Using a single struct for all CLI commands ensures that all flags are distinct
// and that they can be provided either dynamically on a command line, or
// statically in a config file that's reused between command runs.
type Params struct {
	ApiConnectionDetails *client.ApiConnectionDetails
	// Path of a node-exporter textfile receiving stage metrics. Blank disables metrics output.
	MetricsFile string

	EndpointAPI    *EndpointAPI
	DeploymentAPI  *DeploymentAPI
	ModelAPI       *ModelAPI
	EnvironmentAPI *EnvironmentAPI
	JobAPI         *JobAPI
}

// EndpointAPI struct holds pointers to functions that are called by fareopsctl.
// The function pointers can be replaced in tests to verify stage logic without a workspace.
type EndpointAPI struct {
	Get            endpoint.GetAPI
	CreateOrUpdate endpoint.CreateOrUpdateAPI
	Invoke         endpoint.InvokeAPI
}

type DeploymentAPI struct {
	CreateOrUpdate deployment.CreateOrUpdateAPI
	Delete         deployment.DeleteAPI
}

type ModelAPI struct {
	Get            model.GetAPI
	ListVersions   model.ListVersionsAPI
	CreateOrUpdate model.CreateOrUpdateAPI
	Delete         model.DeleteAPI
	CheckAccess    model.CheckAccessAPI
}

type EnvironmentAPI struct {
	ListVersions   environment.ListVersionsAPI
	CreateOrUpdate environment.CreateOrUpdateAPI
}

type JobAPI struct {
	Submit job.SubmitAPI
}

// New instantiates an App with default parameters, including standard output
// and cryptographically secure random source.
func New() *App {
	return &App{
		Params: &Params{
			ApiConnectionDetails: &client.ApiConnectionDetails{},
			EndpointAPI:          &EndpointAPI{},
			DeploymentAPI:        &DeploymentAPI{},
			ModelAPI:             &ModelAPI{},
			EnvironmentAPI:       &EnvironmentAPI{},
			JobAPI:               &JobAPI{},
		},
		Out:     os.Stdout,
		Random:  rand.Reader,
		Metrics: metrics.NewStageMetrics(),
	}
}

// ConnectAPIs points every API at the management API described by Params.ApiConnectionDetails.
func (p *Params) ConnectAPIs() {
	details := func() *client.ApiConnectionDetails { return p.ApiConnectionDetails }

	p.EndpointAPI.Get = endpoint.Get(details)
	p.EndpointAPI.CreateOrUpdate = endpoint.CreateOrUpdate(details)
	p.EndpointAPI.Invoke = endpoint.Invoke(details, endpoint.NewCredentialCache())

	p.DeploymentAPI.CreateOrUpdate = deployment.CreateOrUpdate(details)
	p.DeploymentAPI.Delete = deployment.Delete(details)

	p.ModelAPI.Get = model.Get(details)
	p.ModelAPI.ListVersions = model.ListVersions(details)
	p.ModelAPI.CreateOrUpdate = model.CreateOrUpdate(details)
	p.ModelAPI.Delete = model.Delete(details)
	p.ModelAPI.CheckAccess = model.CheckAccess(details)

	p.EnvironmentAPI.ListVersions = environment.ListVersions(details)
	p.EnvironmentAPI.CreateOrUpdate = environment.CreateOrUpdate(details)

	p.JobAPI.Submit = job.Submit(details)
}

// workspaceConfigured reports whether workspace-scoped calls can be made.
func (a *App) workspaceConfigured() bool {
	d := a.Params.ApiConnectionDetails
	return d != nil && d.SubscriptionId != "" && d.ResourceGroup != "" && d.WorkspaceName != ""
}

// observe runs a stage, records its duration and outcome, and writes the metrics file.
func (a *App) observe(stage string, run func() error) error {
	start := time.Now()
	err := run()
	a.Metrics.RecordStage(stage, time.Since(start), err)
	if writeErr := a.Metrics.WriteToTextfile(a.Params.MetricsFile); writeErr != nil {
		log.Warnf("unable to write metrics: %s", writeErr)
	}
	return err
}
