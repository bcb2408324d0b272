package fareopsctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/model"
)

func writeMlflowModel(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MLmodel"), []byte("flavors: {}\n"), 0o644))
}

func TestRegister(t *testing.T) {
	a, f, out := newTestApp(t)
	f.addModel(client.WorkspaceScope(), "taxi", "1", "2")
	input := t.TempDir()
	writeMlflowModel(t, filepath.Join(input, "outputs", "mlflow-model"))
	output := filepath.Join(t.TempDir(), "register")

	err := a.Register(RegisterArgs{
		ModelInput:     input,
		ModelName:      "taxi",
		ModelUri:       "azureml://datastores/workspaceblobstore/paths/train/outputs/mlflow-model",
		Registry:       "shared",
		RegisterOutput: output,
	})
	require.NoError(t, err)

	require.Len(t, f.registered, 2)
	ws, reg := f.registered[0], f.registered[1]
	assert.Equal(t, client.WorkspaceScope(), ws.Scope)
	assert.Equal(t, "3", ws.Version)
	assert.Equal(t, model.TypeMlflow, ws.ModelType)
	assert.Equal(t, "taxi fare regression model", ws.Description)
	assert.Equal(t, client.RegistryScope("shared"), reg.Scope)
	assert.Equal(t, "1", reg.Version)

	versions, err := os.ReadFile(filepath.Join(output, "model_versions.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"model_name":"taxi","workspace_version":"3","registry_version":"1"}`, string(versions))
	marker, err := os.ReadFile(filepath.Join(output, "register.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Model Registered:", string(marker))
	assert.Contains(t, out.String(), "Registered model taxi version 3")
}

func TestRegister_WorkspaceOnly(t *testing.T) {
	a, f, _ := newTestApp(t)
	input := t.TempDir()
	writeMlflowModel(t, input)
	output := t.TempDir()

	err := a.Register(RegisterArgs{ModelInput: input, ModelName: "taxi", ModelUri: "azureml://x", RegisterOutput: output})
	require.NoError(t, err)

	require.Len(t, f.registered, 1)
	versions, err := os.ReadFile(filepath.Join(output, "model_versions.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"model_name":"taxi","workspace_version":"1","registry_version":null}`, string(versions))
}

func TestRegister_Errors(t *testing.T) {
	t.Run("missing MLmodel", func(t *testing.T) {
		a, f, _ := newTestApp(t)
		err := a.Register(RegisterArgs{ModelInput: t.TempDir(), ModelName: "taxi", ModelUri: "azureml://x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MLmodel")
		assert.Empty(t, f.registered)
	})
	t.Run("missing model uri", func(t *testing.T) {
		a, f, _ := newTestApp(t)
		input := t.TempDir()
		writeMlflowModel(t, input)
		err := a.Register(RegisterArgs{ModelInput: input, ModelName: "taxi"})
		assert.Error(t, err)
		assert.Empty(t, f.registered)
	})
	t.Run("registry not accessible", func(t *testing.T) {
		a, f, _ := newTestApp(t)
		f.accessErr = errors.New("AuthorizationFailed")
		input := t.TempDir()
		writeMlflowModel(t, input)
		output := t.TempDir()
		err := a.Register(RegisterArgs{ModelInput: input, ModelName: "taxi", ModelUri: "azureml://x", Registry: "shared", RegisterOutput: output})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot access registry shared")
		assert.Len(t, f.registered, 1)
		assert.NoFileExists(t, filepath.Join(output, "model_versions.json"))
	})
}

func TestFindMlflowModel(t *testing.T) {
	input := t.TempDir()
	writeMlflowModel(t, input)
	found, err := FindMlflowModel(input)
	require.NoError(t, err)
	assert.Equal(t, input, found)

	writeMlflowModel(t, filepath.Join(input, "mlflow-model"))
	found, err = FindMlflowModel(input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(input, "mlflow-model"), found)

	writeMlflowModel(t, filepath.Join(input, "outputs", "mlflow-model"))
	found, err = FindMlflowModel(input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(input, "outputs", "mlflow-model"), found)
}
