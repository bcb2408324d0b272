package fareopsctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxifare/fareops/internal/traffic"
	"github.com/taxifare/fareops/pkg/client/endpoint"
)

func TestSelectSlot(t *testing.T) {
	tests := map[string]struct {
		preferred string
		traffic   traffic.Distribution
		noEndpoint bool
		expected  string
	}{
		"preferred slot wins":        {preferred: " Green ", traffic: traffic.Distribution{"green": 100}, expected: "green"},
		"missing endpoint":           {noEndpoint: true, expected: "blue"},
		"empty traffic":              {traffic: traffic.Distribution{}, expected: "blue"},
		"alternate is free":          {traffic: traffic.Distribution{"blue": 100}, expected: "green"},
		"default is free":            {traffic: traffic.Distribution{"green": 100}, expected: "blue"},
		"least loaded alternate":     {traffic: traffic.Distribution{"blue": 70, "green": 30}, expected: "green"},
		"least loaded default":       {traffic: traffic.Distribution{"blue": 30, "green": 70}, expected: "blue"},
		"tie prefers alternate":      {traffic: traffic.Distribution{"blue": 50, "green": 50}, expected: "green"},
		"names are case insensitive": {traffic: traffic.Distribution{"BLUE": 90, "Green": 10}, expected: "green"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, f, out := newTestApp(t)
			if !tc.noEndpoint {
				f.endpoints["fare-ep"] = &endpoint.Endpoint{Name: "fare-ep", Traffic: tc.traffic}
			}
			output := filepath.Join(t.TempDir(), "slot", "selected_slot.txt")

			err := a.SelectSlot(SelectSlotArgs{
				EndpointName:  "fare-ep",
				DefaultSlot:   "blue",
				AlternateSlot: "green",
				PreferredSlot: tc.preferred,
				OutputSlot:    output,
			})
			require.NoError(t, err)

			written, err := os.ReadFile(output)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(written))
			assert.Contains(t, out.String(), tc.expected)
		})
	}
}

func TestSelectSlot_EndpointError(t *testing.T) {
	a, _, _ := newTestApp(t)
	a.Params.EndpointAPI.Get = func(name string) (*endpoint.Endpoint, error) {
		return nil, errors.New("forbidden")
	}

	err := a.SelectSlot(SelectSlotArgs{EndpointName: "fare-ep", OutputSlot: filepath.Join(t.TempDir(), "slot.txt")})
	assert.Error(t, err)
}

func TestSelectSlot_WritesMetrics(t *testing.T) {
	a, _, _ := newTestApp(t)
	dir := t.TempDir()
	a.Params.MetricsFile = filepath.Join(dir, "fareops.prom")

	require.NoError(t, a.SelectSlot(SelectSlotArgs{EndpointName: "fare-ep", OutputSlot: filepath.Join(dir, "slot.txt")}))

	content, err := os.ReadFile(a.Params.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `fareops_stage_succeeded{stage="select-slot"} 1`)
}
