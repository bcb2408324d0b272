package job

import (
	"crypto/rand"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxifare/fareops/internal/common/testutil"
	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/auth/identity"
)

func TestLoad_Unwrapped(t *testing.T) {
	job, err := Load(filepath.Join("testdata", "bare.yaml"))
	require.NoError(t, err)
	assert.Empty(t, job.Name)
	assert.Equal(t, map[string]interface{}{"jobType": "Pipeline", "experimentName": "taxi-fare"}, job.Properties)
}

func TestNewName(t *testing.T) {
	a, err := NewName(rand.Reader)
	require.NoError(t, err)
	b, err := NewName(rand.Reader)
	require.NoError(t, err)
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestSubmit(t *testing.T) {
	server := testutil.NewArmServer(t)
	server.JSON(http.MethodPut, "/workspaces/ws/jobs/run-1", http.StatusCreated, map[string]interface{}{
		"name": "run-1",
		"properties": map[string]interface{}{
			"status": "NotStarted",
			"services": map[string]interface{}{
				"Studio": map[string]string{"endpoint": "https://ml.azure.com/runs/run-1"},
			},
		},
	})
	details := func() *client.ApiConnectionDetails {
		return &client.ApiConnectionDetails{
			ManagementUrl:  server.URL,
			SubscriptionId: "sub",
			ResourceGroup:  "rg",
			WorkspaceName:  "ws",
			AuthMethod:     identity.MethodNone,
			RequestTimeout: time.Second,
		}
	}

	status, err := Submit(details)(&Job{Name: "run-1", Properties: map[string]interface{}{"jobType": "Pipeline"}})
	require.NoError(t, err)
	assert.Equal(t, &Status{Name: "run-1", Status: "NotStarted", StudioUrl: "https://ml.azure.com/runs/run-1"}, status)

	puts := server.Requests(http.MethodPut, "/jobs/run-1")
	require.Len(t, puts, 1)
	var body Job
	puts[0].Decode(t, &body)
	assert.Equal(t, "Pipeline", body.Properties["jobType"])
}

func TestSubmit_RequiresName(t *testing.T) {
	_, err := Submit(func() *client.ApiConnectionDetails { return &client.ApiConnectionDetails{} })(&Job{})
	assert.Error(t, err)
}
