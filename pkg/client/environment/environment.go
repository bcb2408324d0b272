package environment

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/pkg/client"
)

const resourceType = "environment"

// Version is a registered environment version: a base image plus a conda specification.
type Version struct {
	Id          string
	Name        string
	Version     string
	Image       string
	CondaFile   string
	Description string
	Tags        map[string]string
}

type versionProperties struct {
	Image       string            `json:"image"`
	CondaFile   string            `json:"condaFile,omitempty"`
	OsType      string            `json:"osType"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type versionResource struct {
	Id         string            `json:"id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Properties versionProperties `json:"properties"`
}

// ListVersionsAPI returns the version strings of a workspace environment. A missing
// environment has no versions.
type ListVersionsAPI func(name string) ([]string, error)

func ListVersions(getConnectionDetails client.ConnectionDetails) ListVersionsAPI {
	return func(name string) ([]string, error) {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		versionsUrl, err := conn.WorkspaceUrl("environments", name, "versions")
		if err != nil {
			return nil, err
		}
		var versions []string
		err = conn.List(ctx, versionsUrl, resourceType, name, func(item json.RawMessage) error {
			var resource versionResource
			if err := json.Unmarshal(item, &resource); err != nil {
				return errors.Wrapf(err, "error decoding version of environment %s", name)
			}
			versions = append(versions, resource.Name)
			return nil
		})
		if platformerrors.IsNotFound(err) {
			return nil, nil
		}
		return versions, err
	}
}

// CreateOrUpdateAPI registers an environment version in the workspace.
type CreateOrUpdateAPI func(*Version) error

func CreateOrUpdate(getConnectionDetails client.ConnectionDetails) CreateOrUpdateAPI {
	return func(version *Version) error {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		versionUrl, err := conn.WorkspaceUrl("environments", version.Name, "versions", version.Version)
		if err != nil {
			return err
		}
		body := &versionResource{
			Properties: versionProperties{
				Image:       version.Image,
				CondaFile:   version.CondaFile,
				OsType:      "Linux",
				Description: version.Description,
				Tags:        version.Tags,
			},
		}
		var created versionResource
		resp, err := conn.Do(ctx, http.MethodPut, versionUrl, body, &created, resourceType, version.Name+":"+version.Version)
		if err != nil {
			return err
		}
		if err := conn.WaitForOperation(ctx, resp, fmt.Sprintf("registration of environment %s:%s", version.Name, version.Version)); err != nil {
			return err
		}
		version.Id = created.Id
		return nil
	}
}
