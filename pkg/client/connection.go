package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/pkg/client/auth/identity"
)

const (
	DefaultManagementUrl = "https://management.azure.com"
	DefaultApiVersion    = "2023-10-01"

	providerPath = "providers/Microsoft.MachineLearningServices"

	asyncOperationHeader = "Azure-AsyncOperation"
	requestIdHeader      = "x-ms-client-request-id"
)

// ApiConnectionDetails holds everything needed to reach the workspace (and registries)
// through the management API.
type ApiConnectionDetails struct {
	ManagementUrl  string
	ApiVersion     string
	SubscriptionId string
	ResourceGroup  string
	WorkspaceName  string
	// Resource group holding shared registries; defaults to ResourceGroup.
	RegistryResourceGroup string
	// Region for newly created endpoints; looked up from the workspace when blank.
	Location string

	AuthMethod        identity.Method
	AccessToken       string
	ManagedIdentity   identity.ManagedIdentityDetails
	ClientCredentials identity.ClientCredentialsDetails

	RequestTimeout   time.Duration
	OperationTimeout time.Duration
	PollInterval     time.Duration
}

type ConnectionDetails func() *ApiConnectionDetails

// Connection is an authenticated client for the management API.
type Connection struct {
	Details *ApiConnectionDetails
	// Authenticated client used for management calls.
	http *http.Client
	// Unauthenticated client used for calls that carry their own credentials, such as scoring.
	plain *http.Client
}

func CreateApiConnection(config *ApiConnectionDetails) (*Connection, error) {
	details := withDefaults(config)
	plain := &http.Client{Timeout: details.RequestTimeout}

	source, err := tokenSource(details)
	if err != nil {
		return nil, err
	}
	authenticated := plain
	if source != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, plain)
		authenticated = oauth2.NewClient(ctx, source)
		authenticated.Timeout = details.RequestTimeout
	}
	return &Connection{Details: details, http: authenticated, plain: plain}, nil
}

func withDefaults(config *ApiConnectionDetails) *ApiConnectionDetails {
	d := *config
	if d.ManagementUrl == "" {
		d.ManagementUrl = DefaultManagementUrl
	}
	d.ManagementUrl = strings.TrimRight(d.ManagementUrl, "/")
	if d.ApiVersion == "" {
		d.ApiVersion = DefaultApiVersion
	}
	if d.RegistryResourceGroup == "" {
		d.RegistryResourceGroup = d.ResourceGroup
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 60 * time.Second
	}
	if d.OperationTimeout <= 0 {
		d.OperationTimeout = 30 * time.Minute
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 10 * time.Second
	}
	return &d
}

func tokenSource(config *ApiConnectionDetails) (oauth2.TokenSource, error) {
	method := config.AuthMethod
	if method == identity.MethodAuto {
		switch {
		case config.AccessToken != "":
			method = identity.MethodToken
		case config.ClientCredentials.ClientSecret != "":
			method = identity.MethodClientCredentials
		default:
			method = identity.MethodManagedIdentity
		}
	}

	switch method {
	case identity.MethodNone:
		return nil, nil
	case identity.MethodToken:
		if config.AccessToken == "" {
			return nil, errors.WithStack(&platformerrors.ErrInvalidArgument{
				Name:    "accessToken",
				Value:   "",
				Message: "token authentication requires an access token",
			})
		}
		return identity.StaticTokenSource(config.AccessToken), nil
	case identity.MethodClientCredentials:
		return identity.ClientCredentialsTokenSource(context.Background(), config.ClientCredentials), nil
	case identity.MethodManagedIdentity:
		return identity.ManagedIdentityTokenSource(config.ManagedIdentity), nil
	}
	return nil, errors.Errorf("unsupported authentication method %q", method)
}

// Scope identifies where versioned assets such as models live: the workspace
// itself or a shared registry.
type Scope struct {
	Registry string
}

func WorkspaceScope() Scope {
	return Scope{}
}

func RegistryScope(name string) Scope {
	return Scope{Registry: name}
}

func (s Scope) IsRegistry() bool {
	return s.Registry != ""
}

func (s Scope) String() string {
	if s.IsRegistry() {
		return "registry"
	}
	return "workspace"
}

// WorkspaceUrl returns the URL of a resource below the workspace.
func (c *Connection) WorkspaceUrl(segments ...string) (string, error) {
	return c.ScopeUrl(WorkspaceScope(), segments...)
}

// ScopeUrl returns the URL of a resource below the workspace or registry selected by scope.
func (c *Connection) ScopeUrl(scope Scope, segments ...string) (string, error) {
	d := c.Details
	if d.SubscriptionId == "" {
		return "", missingSetting("subscriptionId")
	}
	var base string
	if scope.IsRegistry() {
		if d.RegistryResourceGroup == "" {
			return "", missingSetting("registryResourceGroup")
		}
		base = fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/%s/registries/%s",
			d.ManagementUrl, d.SubscriptionId, d.RegistryResourceGroup, providerPath, url.PathEscape(scope.Registry))
	} else {
		if d.ResourceGroup == "" {
			return "", missingSetting("resourceGroup")
		}
		if d.WorkspaceName == "" {
			return "", missingSetting("workspaceName")
		}
		base = fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/%s/workspaces/%s",
			d.ManagementUrl, d.SubscriptionId, d.ResourceGroup, providerPath, url.PathEscape(d.WorkspaceName))
	}
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, base)
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.Join(escaped, "/"), nil
}

func missingSetting(name string) error {
	return errors.WithStack(&platformerrors.ErrInvalidArgument{
		Name:    name,
		Value:   "",
		Message: "must be set in the config file, environment or command line",
	})
}

func (c *Connection) withApiVersion(rawUrl string) (string, error) {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return "", errors.WithStack(err)
	}
	q := u.Query()
	if q.Get("api-version") == "" {
		q.Set("api-version", c.Details.ApiVersion)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Do sends a management API request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded JSON response. Non-2xx responses are converted into
// platformerrors describing resourceType/resourceName. The returned response has its
// body closed and is only useful for status and headers.
func (c *Connection) Do(ctx context.Context, method, rawUrl string, body, out interface{}, resourceType, resourceName string) (*http.Response, error) {
	fullUrl, err := c.withApiVersion(rawUrl)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, c.http, method, fullUrl, body, out, nil, resourceType, resourceName)
}

// DoPlain sends a request with the unauthenticated client, adding headers. It is used
// for calls carrying their own credentials.
func (c *Connection) DoPlain(ctx context.Context, method, rawUrl string, body []byte, headers map[string]string, resourceType, resourceName string) ([]byte, error) {
	var raw json.RawMessage
	_, err := c.send(ctx, c.plain, method, rawUrl, rawBody(body), &raw, headers, resourceType, resourceName)
	return raw, err
}

type rawBody []byte

func (c *Connection) send(
	ctx context.Context,
	httpClient *http.Client,
	method, fullUrl string,
	body, out interface{},
	headers map[string]string,
	resourceType, resourceName string,
) (*http.Response, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case rawBody:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullUrl, reader)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIdHeader, uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Debugf("%s %s", method, req.URL.Path)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, platformerrors.FromResponse(resp, resourceType, resourceName)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, errors.Wrapf(err, "error reading response of %s %s", method, req.URL.Path)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return resp, nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = payload
		return resp, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return resp, errors.Wrapf(err, "error decoding response of %s %s", method, req.URL.Path)
	}
	return resp, nil
}

type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"nextLink"`
}

// List walks every page of a collection, calling each for every item.
func (c *Connection) List(ctx context.Context, rawUrl, resourceType, resourceName string, each func(json.RawMessage) error) error {
	next := rawUrl
	for next != "" {
		var p page
		if _, err := c.Do(ctx, http.MethodGet, next, nil, &p, resourceType, resourceName); err != nil {
			return err
		}
		for _, item := range p.Value {
			if err := each(item); err != nil {
				return err
			}
		}
		next = p.NextLink
	}
	return nil
}

var errOperationInProgress = errors.New("operation in progress")

type operationStatus struct {
	Status string `json:"status"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WaitForOperation blocks until the long-running operation started by resp completes.
// Responses carrying neither an Azure-AsyncOperation header nor a 202 Location are
// treated as already complete.
func (c *Connection) WaitForOperation(ctx context.Context, resp *http.Response, operation string) error {
	if resp == nil {
		return nil
	}
	if statusUrl := resp.Header.Get(asyncOperationHeader); statusUrl != "" {
		return c.poll(ctx, operation, func() error {
			var status operationStatus
			if _, err := c.Do(ctx, http.MethodGet, statusUrl, nil, &status, "operation", operation); err != nil {
				return err
			}
			switch strings.ToLower(status.Status) {
			case "succeeded":
				return nil
			case "failed", "canceled", "cancelled":
				return errors.WithStack(&platformerrors.ErrOperationFailed{
					Operation: operation,
					Status:    status.Status,
					Message:   status.Error.Message,
				})
			default:
				return errOperationInProgress
			}
		})
	}
	if location := resp.Header.Get("Location"); location != "" && resp.StatusCode == http.StatusAccepted {
		return c.poll(ctx, operation, func() error {
			pollResp, err := c.Do(ctx, http.MethodGet, location, nil, nil, "operation", operation)
			if platformerrors.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			if pollResp.StatusCode == http.StatusAccepted {
				return errOperationInProgress
			}
			return nil
		})
	}
	return nil
}

func (c *Connection) poll(ctx context.Context, operation string, check func() error) error {
	attempts := uint(c.Details.OperationTimeout / c.Details.PollInterval)
	if attempts < 1 {
		attempts = 1
	}
	err := retry.Do(
		check,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.Details.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errOperationInProgress)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Debugf("waiting for %s (poll %d)", operation, n+1)
		}),
	)
	if errors.Is(err, errOperationInProgress) {
		return errors.Errorf("timed out after %s waiting for %s", c.Details.OperationTimeout, operation)
	}
	return err
}

// Timeout returns a context bounded by the per-request timeout.
func (c *Connection) Timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.Details.RequestTimeout)
}

// OperationTimeout returns a context bounded by the long-running operation timeout.
func (c *Connection) OperationTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.Details.OperationTimeout)
}
