package model

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/pkg/client"
)

// GetAPI fetches a single model version.
type GetAPI func(scope client.Scope, name, version string) (*Version, error)

func Get(getConnectionDetails client.ConnectionDetails) GetAPI {
	return func(scope client.Scope, name, version string) (*Version, error) {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.Timeout()
		defer cancel()

		versionUrl, err := conn.ScopeUrl(scope, "models", name, "versions", version)
		if err != nil {
			return nil, err
		}
		var resource versionResource
		if _, err := conn.Do(ctx, http.MethodGet, versionUrl, nil, &resource, resourceType, name+":"+version); err != nil {
			return nil, err
		}
		if resource.Name == "" {
			resource.Name = version
		}
		return fromResource(scope, name, &resource), nil
	}
}

// ListVersionsAPI lists every version of a model. A model that does not exist has no versions.
type ListVersionsAPI func(scope client.Scope, name string) ([]*Version, error)

func ListVersions(getConnectionDetails client.ConnectionDetails) ListVersionsAPI {
	return func(scope client.Scope, name string) ([]*Version, error) {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		versionsUrl, err := conn.ScopeUrl(scope, "models", name, "versions")
		if err != nil {
			return nil, err
		}
		var versions []*Version
		err = conn.List(ctx, versionsUrl, resourceType, name, func(item json.RawMessage) error {
			var resource versionResource
			if err := json.Unmarshal(item, &resource); err != nil {
				return errors.Wrapf(err, "error decoding version of model %s", name)
			}
			versions = append(versions, fromResource(scope, name, &resource))
			return nil
		})
		if platformerrors.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return versions, nil
	}
}

// CheckAccessAPI verifies the caller can read models in scope.
type CheckAccessAPI func(scope client.Scope) error

func CheckAccess(getConnectionDetails client.ConnectionDetails) CheckAccessAPI {
	return func(scope client.Scope) error {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.Timeout()
		defer cancel()

		modelsUrl, err := conn.ScopeUrl(scope, "models")
		if err != nil {
			return err
		}
		if _, err := conn.Do(ctx, http.MethodGet, modelsUrl, nil, nil, scope.String(), scope.Registry); err != nil {
			return errors.Wrapf(err, "no access to models in %s %s", scope, scope.Registry)
		}
		return nil
	}
}
