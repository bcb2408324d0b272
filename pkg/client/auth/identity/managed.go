package identity

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	// DefaultImdsEndpoint is the instance metadata token endpoint reachable from platform compute.
	DefaultImdsEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"

	imdsApiVersion = "2018-02-01"
	msiApiVersion  = "2017-09-01"

	msiEndpointEnvVar = "MSI_ENDPOINT"
	msiSecretEnvVar   = "MSI_SECRET"
)

// ManagedIdentityDetails configures a (possibly user-assigned) managed identity.
type ManagedIdentityDetails struct {
	// ClientId selects a user-assigned identity. Blank means the system-assigned identity.
	ClientId string
	// Endpoint overrides the token endpoint; defaults to MSI_ENDPOINT when set, else IMDS.
	Endpoint string
	// Resource is the audience requested; defaults to ManagementResource.
	Resource string
}

type managedIdentityToken struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresOn   looseString `json:"expires_on"`
	ExpiresIn   looseString `json:"expires_in"`
}

// looseString accepts either a JSON string or a JSON number; token endpoints disagree on which they send.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ManagedIdentityTokenSource returns a caching token source backed by the compute's
// managed identity endpoint.
func ManagedIdentityTokenSource(config ManagedIdentityDetails) oauth2.TokenSource {
	return ManagedIdentityTokenSourceWithClient(config, &http.Client{Timeout: 30 * time.Second})
}

// ManagedIdentityTokenSourceWithClient is ManagedIdentityTokenSource with a caller-supplied HTTP client.
func ManagedIdentityTokenSourceWithClient(config ManagedIdentityDetails, c *http.Client) oauth2.TokenSource {
	source := &functionTokenSource{
		getToken: func() (*oauth2.Token, error) {
			req, err := newManagedIdentityRequest(config)
			if err != nil {
				return nil, err
			}
			resp, err := c.Do(req)
			if err != nil {
				return nil, errors.Wrap(err, "managed identity token request failed")
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				var errResp oauthErrorResponse
				if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
					return nil, errors.Errorf("managed identity token request failed with status %d: %s: %s",
						resp.StatusCode, errResp.Error, errResp.ErrorDescription)
				}
				return nil, errors.Errorf("managed identity token request failed with status %d: %s", resp.StatusCode, string(body))
			}

			var token managedIdentityToken
			if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
				return nil, errors.Wrap(err, "error decoding managed identity token")
			}
			if token.AccessToken == "" {
				return nil, errors.New("managed identity endpoint returned an empty access token")
			}
			return &oauth2.Token{
				AccessToken: token.AccessToken,
				TokenType:   "Bearer",
				Expiry:      token.expiry(time.Now()),
			}, nil
		},
	}
	return oauth2.ReuseTokenSource(nil, source)
}

func newManagedIdentityRequest(config ManagedIdentityDetails) (*http.Request, error) {
	resource := config.Resource
	if resource == "" {
		resource = ManagementResource
	}
	endpoint := config.Endpoint
	secret := ""
	if endpoint == "" {
		endpoint = os.Getenv(msiEndpointEnvVar)
		secret = os.Getenv(msiSecretEnvVar)
	}

	params := url.Values{}
	params.Set("resource", resource)
	var req *http.Request
	var err error
	if secret != "" {
		params.Set("api-version", msiApiVersion)
		if config.ClientId != "" {
			params.Set("clientid", config.ClientId)
		}
		req, err = http.NewRequest(http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		req.Header.Set("secret", secret)
		return req, nil
	}

	if endpoint == "" {
		endpoint = DefaultImdsEndpoint
	}
	params.Set("api-version", imdsApiVersion)
	if config.ClientId != "" {
		params.Set("client_id", config.ClientId)
	}
	req, err = http.NewRequest(http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Metadata", "true")
	return req, nil
}

// expiry understands both epoch-second and relative expiry fields. Tokens whose expiry
// cannot be determined are refreshed after five minutes.
func (t managedIdentityToken) expiry(now time.Time) time.Time {
	if secs, err := strconv.ParseInt(string(t.ExpiresOn), 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0)
	}
	if secs, err := strconv.ParseInt(string(t.ExpiresIn), 10, 64); err == nil && secs > 0 {
		return now.Add(time.Duration(secs) * time.Second)
	}
	return now.Add(5 * time.Minute)
}
