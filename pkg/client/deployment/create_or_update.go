package deployment

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/pkg/client"
)

// CreateOrUpdateAPI creates or replaces a deployment and waits until it is provisioned.
type CreateOrUpdateAPI func(*Deployment) error

func CreateOrUpdate(getConnectionDetails client.ConnectionDetails) CreateOrUpdateAPI {
	return func(deployment *Deployment) error {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return fmt.Errorf("failed to connect to api because %w", err)
		}

		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		if deployment.Location == "" {
			location, err := conn.Location(ctx)
			if err != nil {
				return fmt.Errorf("unable to determine the region for deployment %s: %w", deployment.Name, err)
			}
			deployment.Location = location
		}

		deploymentUrl, err := conn.WorkspaceUrl("onlineEndpoints", deployment.EndpointName, "deployments", deployment.Name)
		if err != nil {
			return err
		}
		resp, err := conn.Do(ctx, http.MethodPut, deploymentUrl, deployment.toResource(), nil, resourceType, deployment.Name)
		if err != nil {
			return err
		}
		log.Infof("Waiting for deployment %s/%s to finish provisioning", deployment.EndpointName, deployment.Name)
		return conn.WaitForOperation(ctx, resp, fmt.Sprintf("deployment %s/%s", deployment.EndpointName, deployment.Name))
	}
}
