package fareopsctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxifare/fareops/internal/common/testutil"
	"github.com/taxifare/fareops/internal/state"
	"github.com/taxifare/fareops/internal/traffic"
	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/endpoint"
)

func TestDeploy_FirstDeployment(t *testing.T) {
	a, f, out := newTestApp(t)
	f.addModel(client.WorkspaceScope(), "taxi", "1", "2", "10")
	status := filepath.Join(t.TempDir(), "deploy")

	err := a.Deploy(DeployArgs{
		ModelName:    "taxi",
		EndpointName: "fare-ep",
		DefaultSlot:  "blue",
		DeployStatus: status,
	})
	require.NoError(t, err)

	created := f.endpoints["fare-ep"]
	require.NotNil(t, created)
	assert.Equal(t, endpoint.AuthModeKey, created.AuthMode)
	assert.Equal(t, "taxi_fares", created.Tags["training_dataset"])
	assert.Equal(t, traffic.Distribution{"blue": 100}, created.Traffic)

	d := f.deployments["fare-ep/blue"]
	require.NotNil(t, d)
	assert.Equal(t, "workspace/taxi/10", d.ModelId)
	assert.Equal(t, "Standard_F8S_V2", d.InstanceType)
	assert.Equal(t, 1, d.InstanceCount)

	done, err := os.ReadFile(filepath.Join(status, "done.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Deployment complete.", string(done))
	deployLog, err := os.ReadFile(filepath.Join(status, "deployment_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(deployLog), "Latest model version: 10")
	assert.Contains(t, string(deployLog), "Registry: (workspace)")

	s, err := state.Load(status)
	require.NoError(t, err)
	assert.Equal(t, "blue", s.NewDeployment)
	assert.Equal(t, "fare-ep", s.EndpointName)
	assert.Equal(t, "10", s.ModelVersion)
	assert.Equal(t, state.ModelSourceWorkspace, s.ModelSource)
	assert.False(t, s.HasPrior())
	assert.Empty(t, s.PreviousTraffic)
	assert.Equal(t, traffic.Distribution{"blue": 100}, s.UpdatedTraffic)
	assert.Contains(t, out.String(), "Deployed taxi:10 to fare-ep/blue")
}

func TestDeploy_MixedCaseTrafficStagesExistingKey(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.addModel(client.WorkspaceScope(), "taxi", "4")
	f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: traffic.Distribution{"Blue": 70, "Green": 30}}

	err := a.Deploy(DeployArgs{
		ModelName:      "taxi",
		EndpointName:   "fare-ep",
		DeploymentName: "Green",
	})
	require.NoError(t, err)

	testutil.AssertDiffEqual(t, traffic.Distribution{"Blue": 100, "Green": 0}, f.endpoints["fare-ep"].Traffic)
	assert.Contains(t, f.deployments, "fare-ep/green")
}

func TestDeploy_ExistingTrafficIsPreserved(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.addModel(client.WorkspaceScope(), "taxi", "3")
	f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Location: "westeurope", Traffic: traffic.Distribution{"blue": 100}}
	dir := t.TempDir()
	slotFile := filepath.Join(dir, "selected_slot.txt")
	require.NoError(t, os.WriteFile(slotFile, []byte("green\n"), 0o644))
	status := filepath.Join(dir, "deploy")

	err := a.Deploy(DeployArgs{
		ModelName:          "taxi",
		EndpointName:       "fare-ep",
		DeploymentNameFile: slotFile,
		DefaultSlot:        "blue",
		Registry:           "shared",
		DeployStatus:       status,
	})
	require.NoError(t, err)

	d := f.deployments["fare-ep/green"]
	require.NotNil(t, d)
	assert.Equal(t, "workspace/taxi/3", d.ModelId, "empty registry falls back to the workspace")
	assert.Equal(t, "westeurope", d.Location)
	assert.Equal(t, traffic.Distribution{"blue": 100, "green": 0}, f.endpoints["fare-ep"].Traffic)

	s, err := state.Load(status)
	require.NoError(t, err)
	assert.True(t, s.HasPrior())
	assert.Equal(t, traffic.Distribution{"blue": 100}, s.PreviousTraffic)
	assert.Equal(t, "green", s.NewDeployment)
	assert.Equal(t, state.ModelSourceWorkspace, s.ModelSource)
}

func TestDeploy_FromRegistry(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.addModel(client.RegistryScope("shared"), "taxi", "4", "5")
	f.addModel(client.WorkspaceScope(), "taxi", "9")
	status := t.TempDir()

	err := a.Deploy(DeployArgs{ModelName: "taxi", EndpointName: "fare-ep", DefaultSlot: "blue", Registry: "shared", DeployStatus: status})
	require.NoError(t, err)

	assert.Equal(t, "registry/taxi/5", f.deployments["fare-ep/blue"].ModelId)
	s, err := state.Load(status)
	require.NoError(t, err)
	assert.Equal(t, state.ModelSourceRegistry, s.ModelSource)
}

func TestDeploy_PinnedVersion(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.addModel(client.RegistryScope("shared"), "taxi", "1")
	f.addModel(client.WorkspaceScope(), "taxi", "1", "2")

	err := a.Deploy(DeployArgs{ModelName: "taxi", EndpointName: "fare-ep", DeploymentName: "Green", Registry: "shared", ModelVersion: "2"})
	require.NoError(t, err)
	assert.Equal(t, "workspace/taxi/2", f.deployments["fare-ep/green"].ModelId)

	err = a.Deploy(DeployArgs{ModelName: "taxi", EndpointName: "fare-ep", DeploymentName: "green", Registry: "shared", ModelVersion: "7"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 7 was not found")
}

func TestDeploy_NoVersions(t *testing.T) {
	a, f, _ := newTestApp(t)

	err := a.Deploy(DeployArgs{ModelName: "taxi", EndpointName: "fare-ep", DefaultSlot: "blue", Registry: "shared"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no registered versions of model taxi")
	assert.Empty(t, f.deployments)
	assert.Empty(t, f.endpoints)
}

func TestDeploy_InvalidInitialTraffic(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.addModel(client.WorkspaceScope(), "taxi", "1")
	percent := 150

	err := a.Deploy(DeployArgs{ModelName: "taxi", EndpointName: "fare-ep", DefaultSlot: "blue", InitialTrafficPercent: &percent})
	assert.Error(t, err)
	assert.Empty(t, f.deployments)
}

func TestDeploy_InstanceOverrides(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.addModel(client.WorkspaceScope(), "taxi", "1")

	err := a.Deploy(DeployArgs{ModelName: "taxi", EndpointName: "fare-ep", DefaultSlot: "blue", InstanceType: "Standard_DS3_v2", InstanceCount: 3})
	require.NoError(t, err)
	d := f.deployments["fare-ep/blue"]
	assert.Equal(t, "Standard_DS3_v2", d.InstanceType)
	assert.Equal(t, 3, d.InstanceCount)
}
