package endpoint

import (
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/pkg/client"
)

const (
	// Header routing a scoring request to one deployment regardless of the traffic split.
	deploymentHeader = "azureml-model-deployment"

	credentialTTL = 10 * time.Minute
)

// InvokeAPI sends payload to the named deployment behind an endpoint and returns the
// raw scoring response.
type InvokeAPI func(endpointName, deploymentName string, payload []byte) ([]byte, error)

// NewCredentialCache returns a cache suitable for sharing scoring credentials between invocations.
func NewCredentialCache() *cache.Cache {
	return cache.New(credentialTTL, 2*credentialTTL)
}

type endpointKeys struct {
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey"`
}

type endpointToken struct {
	AccessToken   string `json:"accessToken"`
	ExpiryTimeUtc int64  `json:"expiryTimeUtc"`
}

func Invoke(getConnectionDetails client.ConnectionDetails, credentials *cache.Cache) InvokeAPI {
	get := Get(getConnectionDetails)
	return func(endpointName, deploymentName string, payload []byte) ([]byte, error) {
		endpoint, err := get(endpointName)
		if err != nil {
			return nil, err
		}
		if endpoint.ScoringUri == "" {
			return nil, errors.Errorf("endpoint %s has no scoring uri (provisioning state %q)", endpointName, endpoint.ProvisioningState)
		}

		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.Timeout()
		defer cancel()

		cacheKey := endpointName + "/" + endpoint.AuthMode
		var credential string
		if cached, found := credentials.Get(cacheKey); found {
			credential = cached.(string)
		} else {
			var ttl time.Duration
			credential, ttl, err = scoringCredential(conn, endpoint)
			if err != nil {
				return nil, err
			}
			credentials.Set(cacheKey, credential, ttl)
		}

		headers := map[string]string{
			"Authorization": "Bearer " + credential,
		}
		if deploymentName != "" {
			headers[deploymentHeader] = deploymentName
		}
		return conn.DoPlain(ctx, http.MethodPost, endpoint.ScoringUri, payload, headers, "deployment", deploymentName)
	}
}

func scoringCredential(conn *client.Connection, endpoint *Endpoint) (string, time.Duration, error) {
	ctx, cancel := conn.Timeout()
	defer cancel()

	switch endpoint.AuthMode {
	case AuthModeKey, "":
		keysUrl, err := conn.WorkspaceUrl("onlineEndpoints", endpoint.Name, "listKeys")
		if err != nil {
			return "", 0, err
		}
		var keys endpointKeys
		if _, err := conn.Do(ctx, http.MethodPost, keysUrl, nil, &keys, resourceType, endpoint.Name); err != nil {
			return "", 0, err
		}
		if keys.PrimaryKey == "" {
			return "", 0, errors.Errorf("endpoint %s returned no scoring key", endpoint.Name)
		}
		return keys.PrimaryKey, cache.DefaultExpiration, nil
	case AuthModeAMLToken:
		tokenUrl, err := conn.WorkspaceUrl("onlineEndpoints", endpoint.Name, "token")
		if err != nil {
			return "", 0, err
		}
		var token endpointToken
		if _, err := conn.Do(ctx, http.MethodPost, tokenUrl, nil, &token, resourceType, endpoint.Name); err != nil {
			return "", 0, err
		}
		if token.AccessToken == "" {
			return "", 0, errors.Errorf("endpoint %s returned no scoring token", endpoint.Name)
		}
		ttl := cache.DefaultExpiration
		if token.ExpiryTimeUtc > 0 {
			if remaining := time.Until(time.Unix(token.ExpiryTimeUtc, 0)) - time.Minute; remaining > 0 && remaining < credentialTTL {
				ttl = remaining
			}
		}
		return token.AccessToken, ttl, nil
	}
	return "", 0, errors.WithStack(&platformerrors.ErrInvalidArgument{
		Name:    "authMode",
		Value:   endpoint.AuthMode,
		Message: "only Key and AMLToken endpoints can be invoked",
	})
}
