package fareopsctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/internal/retention"
	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/model"
)

type RegisterArgs struct {
	// ModelInput is the training output folder holding the MLflow model.
	ModelInput string
	ModelName  string
	// ModelUri is the datastore URI of ModelInput as seen by the platform.
	ModelUri    string
	Description string
	// Registry, when set, receives the model in addition to the workspace.
	Registry       string
	RegisterOutput string
}

type registeredVersions struct {
	ModelName        string  `json:"model_name"`
	WorkspaceVersion *string `json:"workspace_version"`
	RegistryVersion  *string `json:"registry_version"`
}

// FindMlflowModel returns the first of <input>/outputs/mlflow-model, <input>/mlflow-model
// and <input> that contains an MLmodel file.
func FindMlflowModel(input string) (string, error) {
	candidates := []string{
		filepath.Join(input, "outputs", "mlflow-model"),
		filepath.Join(input, "mlflow-model"),
		input,
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(filepath.Join(candidate, "MLmodel")); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", errors.Errorf("could not locate MLflow model artifacts under %s; the folder must contain an MLmodel file", input)
}

// Register registers a trained MLflow model in the workspace and, when a registry is
// given, in the registry too. Both registrations must succeed.
func (a *App) Register(args RegisterArgs) error {
	return a.observe("register", func() error {
		return a.register(args)
	})
}

func (a *App) register(args RegisterArgs) error {
	modelPath, err := FindMlflowModel(args.ModelInput)
	if err != nil {
		return errors.Errorf("[fareopsctl.Register] %s", err)
	}
	log.Infof("Found MLflow model at %s", modelPath)
	if strings.TrimSpace(args.ModelUri) == "" {
		return errors.WithStack(&platformerrors.ErrInvalidArgument{
			Name:    "model-uri",
			Value:   args.ModelUri,
			Message: "the datastore uri of the model folder is required",
		})
	}

	result := registeredVersions{ModelName: args.ModelName}

	ws, err := a.registerIn(client.WorkspaceScope(), args)
	if err != nil {
		return errors.Errorf("[fareopsctl.Register] could not register model to workspace: %s", err)
	}
	result.WorkspaceVersion = &ws.Version
	log.Infof("Model %s:%s registered to workspace", ws.Name, ws.Version)

	if args.Registry != "" {
		scope := client.RegistryScope(args.Registry)
		if err := a.Params.ModelAPI.CheckAccess(scope); err != nil {
			return errors.Errorf("[fareopsctl.Register] cannot access registry %s: %s", args.Registry, err)
		}
		reg, err := a.registerIn(scope, args)
		if err != nil {
			return errors.Errorf("[fareopsctl.Register] could not register model to registry %s: %s", args.Registry, err)
		}
		result.RegistryVersion = &reg.Version
		log.Infof("Model %s:%s registered to registry %s", reg.Name, reg.Version, args.Registry)
	}

	if err := writeRegisterOutput(args.RegisterOutput, &result); err != nil {
		return errors.Errorf("[fareopsctl.Register] %s", err)
	}
	fmt.Fprintf(a.Out, "Registered model %s version %s\n", args.ModelName, ws.Version)
	return nil
}

func (a *App) registerIn(scope client.Scope, args RegisterArgs) (*model.Version, error) {
	existing, err := a.Params.ModelAPI.ListVersions(scope, args.ModelName)
	if err != nil {
		return nil, err
	}
	description := args.Description
	if description == "" {
		description = "taxi fare regression model"
	}
	v := &model.Version{
		Name:        args.ModelName,
		Version:     retention.NextVersion(model.VersionNumbers(existing)),
		Scope:       scope,
		ModelType:   model.TypeMlflow,
		ModelUri:    args.ModelUri,
		Description: description,
	}
	if err := a.Params.ModelAPI.CreateOrUpdate(v); err != nil {
		return nil, err
	}
	return v, nil
}

func writeRegisterOutput(folder string, result *registeredVersions) error {
	if strings.TrimSpace(folder) == "" {
		return nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return errors.WithStack(err)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "model_versions.json"), b, 0o644); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.OpenFile(filepath.Join(folder, "register.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	_, err = f.WriteString("Model Registered:")
	return errors.WithStack(err)
}
