package endpoint

import (
	"fmt"
	"net/http"

	"github.com/taxifare/fareops/pkg/client"
)

// GetAPI fetches an online endpoint by name. A missing endpoint yields an error
// satisfying platformerrors.IsNotFound.
type GetAPI func(name string) (*Endpoint, error)

func Get(getConnectionDetails client.ConnectionDetails) GetAPI {
	return func(name string) (*Endpoint, error) {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to api because %w", err)
		}

		ctx, cancel := conn.Timeout()
		defer cancel()

		endpointUrl, err := conn.WorkspaceUrl("onlineEndpoints", name)
		if err != nil {
			return nil, err
		}
		var resource onlineEndpointResource
		if _, err := conn.Do(ctx, http.MethodGet, endpointUrl, nil, &resource, resourceType, name); err != nil {
			return nil, err
		}
		if resource.Name == "" {
			resource.Name = name
		}
		return fromResource(&resource), nil
	}
}
