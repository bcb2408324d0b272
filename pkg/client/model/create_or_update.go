package model

import (
	"fmt"
	"net/http"

	"github.com/taxifare/fareops/pkg/client"
)

// CreateOrUpdateAPI registers a model version in the version's scope. On success
// version.Id is filled in.
type CreateOrUpdateAPI func(version *Version) error

func CreateOrUpdate(getConnectionDetails client.ConnectionDetails) CreateOrUpdateAPI {
	return func(version *Version) error {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		versionUrl, err := conn.ScopeUrl(version.Scope, "models", version.Name, "versions", version.Version)
		if err != nil {
			return err
		}
		var created versionResource
		resp, err := conn.Do(ctx, http.MethodPut, versionUrl, version.toResource(), &created, resourceType, version.Name+":"+version.Version)
		if err != nil {
			return err
		}
		if err := conn.WaitForOperation(ctx, resp, fmt.Sprintf("registration of model %s:%s", version.Name, version.Version)); err != nil {
			return err
		}
		if created.Id == "" {
			// Registries accept the PUT asynchronously and return no body.
			if _, err := conn.Do(ctx, http.MethodGet, versionUrl, nil, &created, resourceType, version.Name+":"+version.Version); err != nil {
				return err
			}
		}
		version.Id = created.Id
		return nil
	}
}
