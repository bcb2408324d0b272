package fareopsctl

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxifare/fareops/internal/common/testutil"
	"github.com/taxifare/fareops/internal/state"
	"github.com/taxifare/fareops/internal/traffic"
	"github.com/taxifare/fareops/pkg/client/deployment"
	"github.com/taxifare/fareops/pkg/client/endpoint"
)

func writeState(t *testing.T, s *state.DeploymentState) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "state")
	require.NoError(t, s.Save(dir))
	return dir
}

func priorState(previous traffic.Distribution, slot string) *state.DeploymentState {
	s := &state.DeploymentState{PreviousTraffic: previous, NewDeployment: slot, EndpointName: "fare-ep"}
	s.SetHasPrior(len(previous) > 0)
	return s
}

func TestUpdateTraffic_Promote(t *testing.T) {
	a, f, out := newTestApp(t)
	f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: traffic.Distribution{"blue": 100, "green": 0}}
	dir := writeState(t, priorState(traffic.Distribution{"blue": 100}, "green"))
	output := filepath.Join(t.TempDir(), "out")

	err := a.UpdateTraffic(UpdateTrafficArgs{
		EndpointName:          "fare-ep",
		DeploymentName:        "green",
		DeploymentState:       dir,
		TrafficPercent:        30,
		Mode:                  traffic.ModePromote,
		OutputDeploymentState: output,
	})
	require.NoError(t, err)

	expected := traffic.Distribution{"blue": 70, "green": 30}
	testutil.AssertDiffEqual(t, expected, f.endpoints["fare-ep"].Traffic)
	assert.Contains(t, out.String(), "{blue:70, green:30}")

	s, err := state.Load(output)
	require.NoError(t, err)
	assert.Equal(t, expected, s.CurrentTraffic)
	assert.Equal(t, "green", s.ResolvedDeployment)
	assert.Equal(t, traffic.Distribution{"blue": 100}, s.PreviousTraffic)
	assert.True(t, s.HasPrior())
}

func TestUpdateTraffic_PromoteWithoutPriorTakesAllTraffic(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: traffic.Distribution{"blue": 100}}
	dir := writeState(t, priorState(nil, "blue"))

	err := a.UpdateTraffic(UpdateTrafficArgs{
		EndpointName:       "fare-ep",
		DeploymentNameFile: filepath.Join(t.TempDir(), "missing.txt"),
		DefaultSlot:        "blue",
		DeploymentState:    dir,
		TrafficPercent:     10,
		Mode:               traffic.ModePromote,
	})
	require.NoError(t, err)
	assert.Equal(t, traffic.Distribution{"blue": 100}, f.endpoints["fare-ep"].Traffic)

	s, err := state.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, traffic.Distribution{"blue": 100}, s.CurrentTraffic, "state is updated in place without an output folder")
}

func TestUpdateTraffic_RollbackDeletesNewDeployment(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: traffic.Distribution{"blue": 70, "green": 30}}
	f.deployments["fare-ep/green"] = &deployment.Deployment{Name: "green", EndpointName: "fare-ep"}
	dir := writeState(t, priorState(traffic.Distribution{"blue": 100}, "green"))

	err := a.UpdateTraffic(UpdateTrafficArgs{
		EndpointName:     "fare-ep",
		DeploymentName:   "green",
		DeploymentState:  dir,
		Mode:             traffic.ModeRollback,
		DeleteOnRollback: true,
	})
	require.NoError(t, err)

	assert.Equal(t, traffic.Distribution{"blue": 100}, f.endpoints["fare-ep"].Traffic)
	assert.Equal(t, []string{"fare-ep/green"}, f.deleted)
	s, err := state.Load(dir)
	require.NoError(t, err)
	assert.True(t, s.DeletedNewDeployment)
}

func TestUpdateTraffic_RollbackKeepsDeployment(t *testing.T) {
	tests := map[string]struct {
		previous traffic.Distribution
		delete   bool
	}{
		"deletion not requested":           {previous: traffic.Distribution{"blue": 100}, delete: false},
		"no prior deployment":              {previous: nil, delete: true},
		"restored traffic still routes to": {previous: traffic.Distribution{"blue": 60, "green": 40}, delete: true},
		"mixed case restored traffic":      {previous: traffic.Distribution{"Blue": 70, "Green": 30}, delete: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, f, _ := newTestApp(t)
			f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: traffic.Distribution{"green": 100}}
			f.deployments["fare-ep/green"] = &deployment.Deployment{Name: "green", EndpointName: "fare-ep"}
			dir := writeState(t, priorState(tc.previous, "green"))

			err := a.UpdateTraffic(UpdateTrafficArgs{
				EndpointName:     "fare-ep",
				DeploymentName:   "green",
				DeploymentState:  dir,
				Mode:             traffic.ModeRollback,
				DeleteOnRollback: tc.delete,
			})
			require.NoError(t, err)
			assert.Empty(t, f.deleted)
			assert.Contains(t, f.deployments, "fare-ep/green")
		})
	}
}

func TestUpdateTraffic_PromoteMixedCaseTraffic(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: traffic.Distribution{"Blue": 100, "Green": 0}}
	dir := writeState(t, priorState(traffic.Distribution{"Blue": 100, "Green": 0}, "green"))

	err := a.UpdateTraffic(UpdateTrafficArgs{
		EndpointName:    "fare-ep",
		DeploymentName:  "Green",
		DeploymentState: dir,
		TrafficPercent:  30,
		Mode:            traffic.ModePromote,
	})
	require.NoError(t, err)
	testutil.AssertDiffEqual(t, traffic.Distribution{"Blue": 70, "Green": 30}, f.endpoints["fare-ep"].Traffic)
}

func TestUpdateTraffic_RollbackToleratesMissingDeployment(t *testing.T) {
	a, f, _ := newTestApp(t)
	f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: traffic.Distribution{"blue": 100, "green": 0}}
	dir := writeState(t, priorState(traffic.Distribution{"blue": 100}, "green"))

	err := a.UpdateTraffic(UpdateTrafficArgs{
		EndpointName:     "fare-ep",
		DeploymentName:   "green",
		DeploymentState:  dir,
		Mode:             traffic.ModeRollback,
		DeleteOnRollback: true,
	})
	require.NoError(t, err)

	s, err := state.Load(dir)
	require.NoError(t, err)
	assert.False(t, s.DeletedNewDeployment)
}

func TestUpdateTraffic_Errors(t *testing.T) {
	tests := map[string]struct {
		endpoint *endpoint.Endpoint
		percent  int
		mode     traffic.Mode
		message  string
	}{
		"missing endpoint": {
			mode:    traffic.ModePromote,
			message: "endpoint fare-ep does not exist",
		},
		"percent out of range": {
			endpoint: &endpoint.Endpoint{Name: "fare-ep"},
			percent:  120,
			mode:     traffic.ModePromote,
			message:  "traffic-percent",
		},
		"unknown mode": {
			endpoint: &endpoint.Endpoint{Name: "fare-ep"},
			mode:     traffic.Mode("canary"),
			message:  "mode",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, f, _ := newTestApp(t)
			if tc.endpoint != nil {
				f.endpoints["fare-ep"] = tc.endpoint
			}
			dir := writeState(t, priorState(traffic.Distribution{"blue": 100}, "green"))

			err := a.UpdateTraffic(UpdateTrafficArgs{
				EndpointName:    "fare-ep",
				DeploymentName:  "green",
				DeploymentState: dir,
				TrafficPercent:  tc.percent,
				Mode:            tc.mode,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
			assert.Empty(t, f.trafficCalls)
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", " 1 ", "yes", "Y"} {
		assert.True(t, ParseBool(v), v)
	}
	for _, v := range []string{"", "false", "0", "no", "maybe"} {
		assert.False(t, ParseBool(v), v)
	}
}
