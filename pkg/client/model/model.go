package model

import (
	"github.com/taxifare/fareops/pkg/client"
)

const (
	TypeMlflow = "mlflow_model"

	resourceType = "model"
)

// Version is one registered version of a model, in a workspace or a registry.
type Version struct {
	// Id is the resource id, assigned by the platform.
	Id          string
	Name        string
	Version     string
	Scope       client.Scope
	ModelType   string
	ModelUri    string
	Description string
	Tags        map[string]string
}

type versionProperties struct {
	ModelType   string            `json:"modelType,omitempty"`
	ModelUri    string            `json:"modelUri,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type versionResource struct {
	Id         string            `json:"id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Properties versionProperties `json:"properties"`
}

func fromResource(scope client.Scope, name string, r *versionResource) *Version {
	return &Version{
		Id:          r.Id,
		Name:        name,
		Version:     r.Name,
		Scope:       scope,
		ModelType:   r.Properties.ModelType,
		ModelUri:    r.Properties.ModelUri,
		Description: r.Properties.Description,
		Tags:        r.Properties.Tags,
	}
}

func (v *Version) toResource() *versionResource {
	return &versionResource{
		Properties: versionProperties{
			ModelType:   v.ModelType,
			ModelUri:    v.ModelUri,
			Description: v.Description,
			Tags:        v.Tags,
		},
	}
}

// VersionNumbers returns the version strings of versions, in order.
func VersionNumbers(versions []*Version) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Version)
	}
	return out
}
