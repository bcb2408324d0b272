package deployment

import (
	"fmt"
	"time"
)

const (
	DefaultInstanceType  = "Standard_F8S_V2"
	DefaultInstanceCount = 1

	resourceType = "onlineDeployment"
)

// Probe configures a container health probe.
type Probe struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Period           time.Duration
	InitialDelay     time.Duration
}

var (
	DefaultLivenessProbe = Probe{
		FailureThreshold: 30,
		SuccessThreshold: 1,
		Timeout:          2 * time.Second,
		Period:           10 * time.Second,
		InitialDelay:     2000 * time.Second,
	}
	DefaultReadinessProbe = Probe{
		FailureThreshold: 10,
		SuccessThreshold: 1,
		Timeout:          10 * time.Second,
		Period:           10 * time.Second,
		InitialDelay:     2000 * time.Second,
	}
)

// Deployment is a managed deployment (slot) serving one model version behind an endpoint.
type Deployment struct {
	Name         string
	EndpointName string
	Location     string
	Description  string
	Tags         map[string]string
	// ModelId is the resource id of the model version to serve.
	ModelId       string
	InstanceType  string
	InstanceCount int
	// DataCollection enables logging of model inputs and outputs.
	DataCollection bool
	LivenessProbe  Probe
	ReadinessProbe Probe
}

// NewDeployment returns a deployment with the default instance and probe settings.
func NewDeployment(endpointName, name, modelId string) *Deployment {
	return &Deployment{
		Name:           name,
		EndpointName:   endpointName,
		ModelId:        modelId,
		InstanceType:   DefaultInstanceType,
		InstanceCount:  DefaultInstanceCount,
		DataCollection: true,
		LivenessProbe:  DefaultLivenessProbe,
		ReadinessProbe: DefaultReadinessProbe,
	}
}

type sku struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

type probeSettings struct {
	FailureThreshold int    `json:"failureThreshold"`
	SuccessThreshold int    `json:"successThreshold"`
	Timeout          string `json:"timeout"`
	Period           string `json:"period"`
	InitialDelay     string `json:"initialDelay"`
}

type collection struct {
	DataCollectionMode string  `json:"dataCollectionMode"`
	SamplingRate       float64 `json:"samplingRate"`
}

type dataCollector struct {
	Collections map[string]collection `json:"collections"`
}

type deploymentProperties struct {
	EndpointComputeType string            `json:"endpointComputeType"`
	Description         string            `json:"description,omitempty"`
	Model               string            `json:"model"`
	InstanceType        string            `json:"instanceType"`
	ScaleSettings       map[string]string `json:"scaleSettings"`
	LivenessProbe       probeSettings     `json:"livenessProbe"`
	ReadinessProbe      probeSettings     `json:"readinessProbe"`
	DataCollector       *dataCollector    `json:"dataCollector,omitempty"`
	ProvisioningState   string            `json:"provisioningState,omitempty"`
}

type onlineDeploymentResource struct {
	Location   string               `json:"location"`
	Kind       string               `json:"kind"`
	Tags       map[string]string    `json:"tags,omitempty"`
	Sku        sku                  `json:"sku"`
	Properties deploymentProperties `json:"properties"`
}

func (d *Deployment) toResource() *onlineDeploymentResource {
	count := d.InstanceCount
	if count < 1 {
		count = DefaultInstanceCount
	}
	instanceType := d.InstanceType
	if instanceType == "" {
		instanceType = DefaultInstanceType
	}
	r := &onlineDeploymentResource{
		Location: d.Location,
		Kind:     "Managed",
		Tags:     d.Tags,
		Sku:      sku{Name: "Default", Capacity: count},
		Properties: deploymentProperties{
			EndpointComputeType: "Managed",
			Description:         d.Description,
			Model:               d.ModelId,
			InstanceType:        instanceType,
			ScaleSettings:       map[string]string{"scaleType": "Default"},
			LivenessProbe:       d.LivenessProbe.settings(),
			ReadinessProbe:      d.ReadinessProbe.settings(),
		},
	}
	if d.DataCollection {
		enabled := collection{DataCollectionMode: "Enabled", SamplingRate: 1.0}
		r.Properties.DataCollector = &dataCollector{
			Collections: map[string]collection{
				"model_inputs":  enabled,
				"model_outputs": enabled,
			},
		}
	}
	return r
}

func (p Probe) settings() probeSettings {
	return probeSettings{
		FailureThreshold: p.FailureThreshold,
		SuccessThreshold: p.SuccessThreshold,
		Timeout:          isoDuration(p.Timeout),
		Period:           isoDuration(p.Period),
		InitialDelay:     isoDuration(p.InitialDelay),
	}
}

// isoDuration renders whole seconds as an ISO 8601 duration, e.g. PT10S.
func isoDuration(d time.Duration) string {
	return fmt.Sprintf("PT%dS", int64(d/time.Second))
}
