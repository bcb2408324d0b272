package endpoint

import (
	"github.com/taxifare/fareops/internal/traffic"
)

const (
	AuthModeKey      = "Key"
	AuthModeAMLToken = "AMLToken"
	AuthModeAADToken = "AADToken"

	resourceType = "onlineEndpoint"
)

// Endpoint is a managed online endpoint: a scoring URI fronting one or more named
// deployments, with a traffic split between them.
type Endpoint struct {
	Name              string
	Location          string
	Description       string
	AuthMode          string
	IdentityType      string
	Tags              map[string]string
	Traffic           traffic.Distribution
	ProvisioningState string
	ScoringUri        string

	// Fields the CLI does not interpret but must send back unchanged on update.
	kind                   string
	userAssignedIdentities map[string]interface{}
	publicNetworkAccess    string
}

type managedServiceIdentity struct {
	Type                   string                 `json:"type"`
	UserAssignedIdentities map[string]interface{} `json:"userAssignedIdentities,omitempty"`
}

type onlineEndpointProperties struct {
	AuthMode            string         `json:"authMode"`
	Description         string         `json:"description,omitempty"`
	Traffic             map[string]int `json:"traffic,omitempty"`
	ProvisioningState   string         `json:"provisioningState,omitempty"`
	ScoringUri          string         `json:"scoringUri,omitempty"`
	PublicNetworkAccess string         `json:"publicNetworkAccess,omitempty"`
}

type onlineEndpointResource struct {
	Name       string                   `json:"name,omitempty"`
	Location   string                   `json:"location"`
	Kind       string                   `json:"kind,omitempty"`
	Tags       map[string]string        `json:"tags,omitempty"`
	Identity   *managedServiceIdentity  `json:"identity,omitempty"`
	Properties onlineEndpointProperties `json:"properties"`
}

func fromResource(r *onlineEndpointResource) *Endpoint {
	e := &Endpoint{
		Name:                r.Name,
		Location:            r.Location,
		Description:         r.Properties.Description,
		AuthMode:            r.Properties.AuthMode,
		Tags:                r.Tags,
		Traffic:             traffic.Distribution(r.Properties.Traffic),
		ProvisioningState:   r.Properties.ProvisioningState,
		ScoringUri:          r.Properties.ScoringUri,
		kind:                r.Kind,
		publicNetworkAccess: r.Properties.PublicNetworkAccess,
	}
	if r.Identity != nil {
		e.IdentityType = r.Identity.Type
		e.userAssignedIdentities = r.Identity.UserAssignedIdentities
	}
	if e.Traffic == nil {
		e.Traffic = traffic.Distribution{}
	}
	return e
}

func (e *Endpoint) toResource() *onlineEndpointResource {
	kind := e.kind
	if kind == "" {
		kind = "Managed"
	}
	authMode := e.AuthMode
	if authMode == "" {
		authMode = AuthModeKey
	}
	identityType := e.IdentityType
	if identityType == "" {
		identityType = "SystemAssigned"
	}
	return &onlineEndpointResource{
		Location: e.Location,
		Kind:     kind,
		Tags:     e.Tags,
		Identity: &managedServiceIdentity{
			Type:                   identityType,
			UserAssignedIdentities: e.userAssignedIdentities,
		},
		Properties: onlineEndpointProperties{
			AuthMode:            authMode,
			Description:         e.Description,
			Traffic:             e.Traffic,
			PublicNetworkAccess: e.publicNetworkAccess,
		},
	}
}
