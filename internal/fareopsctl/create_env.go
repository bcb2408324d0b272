package fareopsctl

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/retention"
	"github.com/taxifare/fareops/internal/state"
	"github.com/taxifare/fareops/pkg/client/environment"
)

const DefaultEnvironmentImage = "mcr.microsoft.com/azureml/openmpi4.1.0-ubuntu20.04:20231023.v1"

type CreateEnvironmentArgs struct {
	EnvName   string
	CondaFile string
	Image     string
	// EnvStatus is the folder receiving done.txt and env_log.txt.
	EnvStatus string
}

// CreateEnvironment registers a new version of an environment built from a base image
// and a conda file.
func (a *App) CreateEnvironment(args CreateEnvironmentArgs) error {
	return a.observe("create-env", func() error {
		return a.createEnvironment(args)
	})
}

func (a *App) createEnvironment(args CreateEnvironmentArgs) error {
	log.Infof("Creating environment %s from conda file %s", args.EnvName, args.CondaFile)
	conda, err := os.ReadFile(args.CondaFile)
	if err != nil {
		return errors.Errorf("[fareopsctl.CreateEnvironment] error reading conda file %s: %s", args.CondaFile, err)
	}
	image := args.Image
	if image == "" {
		image = DefaultEnvironmentImage
	}

	existing, err := a.Params.EnvironmentAPI.ListVersions(args.EnvName)
	if err != nil {
		return errors.Errorf("[fareopsctl.CreateEnvironment] error listing versions of environment %s: %s", args.EnvName, err)
	}
	v := &environment.Version{
		Name:        args.EnvName,
		Version:     retention.NextVersion(existing),
		Image:       image,
		CondaFile:   string(conda),
		Description: "Taxi fare production environment",
	}
	if err := a.Params.EnvironmentAPI.CreateOrUpdate(v); err != nil {
		return errors.Errorf("[fareopsctl.CreateEnvironment] error creating environment %s: %s", args.EnvName, err)
	}
	log.Infof("Environment %s:%s created", v.Name, v.Version)

	lines := []string{
		fmt.Sprintf("Environment name: %s", args.EnvName),
		fmt.Sprintf("Environment version: %s", v.Version),
		"Environment created successfully.",
	}
	if err := state.WriteStatus(args.EnvStatus, "Environment creation complete.", "env_log.txt", lines); err != nil {
		return errors.Errorf("[fareopsctl.CreateEnvironment] error writing status: %s", err)
	}
	fmt.Fprintf(a.Out, "Created environment %s version %s\n", v.Name, v.Version)
	return nil
}
