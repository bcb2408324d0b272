package endpoint

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/pkg/client"
)

// CreateOrUpdateAPI creates or replaces an endpoint and waits for provisioning to finish.
// Updating an endpoint read with GetAPI is how its traffic split is changed.
type CreateOrUpdateAPI func(*Endpoint) error

func CreateOrUpdate(getConnectionDetails client.ConnectionDetails) CreateOrUpdateAPI {
	return func(endpoint *Endpoint) error {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return fmt.Errorf("failed to connect to api because %w", err)
		}

		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		if endpoint.Location == "" {
			location, err := conn.Location(ctx)
			if err != nil {
				return fmt.Errorf("unable to determine the region for endpoint %s: %w", endpoint.Name, err)
			}
			endpoint.Location = location
		}

		endpointUrl, err := conn.WorkspaceUrl("onlineEndpoints", endpoint.Name)
		if err != nil {
			return err
		}
		resp, err := conn.Do(ctx, http.MethodPut, endpointUrl, endpoint.toResource(), nil, resourceType, endpoint.Name)
		if err != nil {
			return err
		}
		log.Infof("Waiting for endpoint %s to finish provisioning", endpoint.Name)
		return conn.WaitForOperation(ctx, resp, fmt.Sprintf("endpoint %s", endpoint.Name))
	}
}
