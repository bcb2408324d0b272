package deployment

import (
	"fmt"
	"net/http"

	"github.com/taxifare/fareops/pkg/client"
)

// DeleteAPI deletes a deployment and waits for the deletion to complete. Deleting a
// missing deployment yields an error satisfying platformerrors.IsNotFound.
type DeleteAPI func(endpointName, name string) error

func Delete(getConnectionDetails client.ConnectionDetails) DeleteAPI {
	return func(endpointName, name string) error {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return fmt.Errorf("failed to connect to api because %w", err)
		}

		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		deploymentUrl, err := conn.WorkspaceUrl("onlineEndpoints", endpointName, "deployments", name)
		if err != nil {
			return err
		}
		resp, err := conn.Do(ctx, http.MethodDelete, deploymentUrl, nil, nil, resourceType, name)
		if err != nil {
			return err
		}
		return conn.WaitForOperation(ctx, resp, fmt.Sprintf("deletion of deployment %s/%s", endpointName, name))
	}
}
