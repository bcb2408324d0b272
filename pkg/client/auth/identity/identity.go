// Package identity provides oauth2 token sources for the management API: managed
// identities on platform compute, service principals and static tokens.
package identity

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// ManagementResource is the audience of management API tokens.
	ManagementResource = "https://management.azure.com/"
	// ManagementScope is ManagementResource expressed as an oauth2 v2 scope.
	ManagementScope = "https://management.azure.com/.default"

	DefaultAuthorityHost = "https://login.microsoftonline.com"
)

// Method selects how the CLI authenticates against the management API.
type Method string

const (
	MethodAuto              Method = ""
	MethodManagedIdentity   Method = "managedIdentity"
	MethodClientCredentials Method = "clientCredentials"
	MethodToken             Method = "token"
	MethodNone              Method = "none"
)

var methods = []Method{MethodManagedIdentity, MethodClientCredentials, MethodToken, MethodNone}

// ParseMethod parses an authentication method name case-insensitively. A blank
// name means MethodAuto.
func ParseMethod(s string) (Method, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MethodAuto, nil
	}
	for _, m := range methods {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return MethodAuto, fmt.Errorf("unknown authentication method %q", s)
}

// ClientCredentialsDetails configures a service principal.
type ClientCredentialsDetails struct {
	TenantId      string
	ClientId      string
	ClientSecret  string
	AuthorityHost string
}

// ClientCredentialsTokenSource returns a token source for a service principal using the
// client credentials grant.
func ClientCredentialsTokenSource(ctx context.Context, config ClientCredentialsDetails) oauth2.TokenSource {
	host := config.AuthorityHost
	if host == "" {
		host = DefaultAuthorityHost
	}
	authConfig := &clientcredentials.Config{
		ClientID:     config.ClientId,
		ClientSecret: config.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(host, "/"), config.TenantId),
		Scopes:       []string{ManagementScope},
	}
	return authConfig.TokenSource(ctx)
}

// StaticTokenSource wraps a pre-issued bearer token.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

type functionTokenSource struct {
	getToken func() (*oauth2.Token, error)
}

func (f *functionTokenSource) Token() (*oauth2.Token, error) {
	return f.getToken()
}
