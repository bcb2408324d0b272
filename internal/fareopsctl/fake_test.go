package fareopsctl

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/internal/traffic"
	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/deployment"
	"github.com/taxifare/fareops/pkg/client/endpoint"
	"github.com/taxifare/fareops/pkg/client/environment"
	"github.com/taxifare/fareops/pkg/client/job"
	"github.com/taxifare/fareops/pkg/client/model"
)

// fakePlatform is an in-memory workspace and registry backing the App's API function
// pointers.
type fakePlatform struct {
	mu sync.Mutex

	endpoints    map[string]*endpoint.Endpoint
	deployments  map[string]*deployment.Deployment
	deleted      []string
	trafficCalls []traffic.Distribution
	// models maps scope then model name to versions.
	models       map[client.Scope]map[string][]string
	modelDeletes []string
	registered   []*model.Version
	environments map[string][]string
	envCreated   []*environment.Version
	jobs         []*job.Job

	invokeResponse []byte
	invokeErr      error
	invoked        []string
	payloads       [][]byte

	listErr   map[client.Scope]error
	deleteErr map[string]error
	accessErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		endpoints:    map[string]*endpoint.Endpoint{},
		deployments:  map[string]*deployment.Deployment{},
		models:       map[client.Scope]map[string][]string{},
		environments: map[string][]string{},
		listErr:      map[client.Scope]error{},
		deleteErr:    map[string]error{},
	}
}

func notFound(kind, name string) error {
	return &platformerrors.ErrNotFound{Type: kind, Value: name}
}

func (f *fakePlatform) addModel(scope client.Scope, name string, versions ...string) {
	if f.models[scope] == nil {
		f.models[scope] = map[string][]string{}
	}
	f.models[scope][name] = append(f.models[scope][name], versions...)
}

func (f *fakePlatform) connect(p *Params) {
	p.EndpointAPI.Get = func(name string) (*endpoint.Endpoint, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		e, ok := f.endpoints[name]
		if !ok {
			return nil, notFound("onlineEndpoint", name)
		}
		cp := *e
		cp.Traffic = e.Traffic.Copy()
		return &cp, nil
	}
	p.EndpointAPI.CreateOrUpdate = func(e *endpoint.Endpoint) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		cp := *e
		cp.Traffic = e.Traffic.Copy()
		if cp.Traffic == nil {
			cp.Traffic = traffic.Distribution{}
		}
		if cp.ProvisioningState == "" {
			cp.ProvisioningState = "Succeeded"
		}
		f.endpoints[e.Name] = &cp
		f.trafficCalls = append(f.trafficCalls, cp.Traffic)
		return nil
	}
	p.EndpointAPI.Invoke = func(endpointName, deploymentName string, payload []byte) ([]byte, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.invoked = append(f.invoked, endpointName+"/"+deploymentName)
		f.payloads = append(f.payloads, payload)
		return f.invokeResponse, f.invokeErr
	}

	p.DeploymentAPI.CreateOrUpdate = func(d *deployment.Deployment) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deployments[d.EndpointName+"/"+d.Name] = d
		return nil
	}
	p.DeploymentAPI.Delete = func(endpointName, name string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		key := endpointName + "/" + name
		if _, ok := f.deployments[key]; !ok {
			return notFound("onlineDeployment", name)
		}
		delete(f.deployments, key)
		f.deleted = append(f.deleted, key)
		return nil
	}

	p.ModelAPI.ListVersions = func(scope client.Scope, name string) ([]*model.Version, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := f.listErr[scope]; err != nil {
			return nil, err
		}
		var out []*model.Version
		for _, v := range f.models[scope][name] {
			out = append(out, &model.Version{Id: fmt.Sprintf("%s/%s/%s", scope, name, v), Name: name, Version: v, Scope: scope})
		}
		return out, nil
	}
	p.ModelAPI.Get = func(scope client.Scope, name, version string) (*model.Version, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, v := range f.models[scope][name] {
			if v == version {
				return &model.Version{Id: fmt.Sprintf("%s/%s/%s", scope, name, v), Name: name, Version: v, Scope: scope}, nil
			}
		}
		return nil, notFound("model", name+":"+version)
	}
	p.ModelAPI.CreateOrUpdate = func(v *model.Version) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.models[v.Scope] == nil {
			f.models[v.Scope] = map[string][]string{}
		}
		f.models[v.Scope][v.Name] = append(f.models[v.Scope][v.Name], v.Version)
		f.registered = append(f.registered, v)
		return nil
	}
	p.ModelAPI.Delete = func(scope client.Scope, name, version string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		key := fmt.Sprintf("%s:%s:%s", scope, name, version)
		if err := f.deleteErr[key]; err != nil {
			return err
		}
		f.modelDeletes = append(f.modelDeletes, key)
		return nil
	}
	p.ModelAPI.CheckAccess = func(scope client.Scope) error {
		return f.accessErr
	}

	p.EnvironmentAPI.ListVersions = func(name string) ([]string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.environments[name], nil
	}
	p.EnvironmentAPI.CreateOrUpdate = func(v *environment.Version) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.environments[v.Name] = append(f.environments[v.Name], v.Version)
		f.envCreated = append(f.envCreated, v)
		return nil
	}

	p.JobAPI.Submit = func(j *job.Job) (*job.Status, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.jobs = append(f.jobs, j)
		return &job.Status{Name: j.Name, Status: "NotStarted", StudioUrl: "https://ml.azure.com/runs/" + j.Name}, nil
	}
}

func newTestApp(t *testing.T) (*App, *fakePlatform, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	a := New()
	a.Out = out
	a.Params.ApiConnectionDetails = &client.ApiConnectionDetails{
		SubscriptionId: "sub",
		ResourceGroup:  "rg",
		WorkspaceName:  "ws",
	}
	f := newFakePlatform()
	f.connect(a.Params)
	return a, f, out
}
