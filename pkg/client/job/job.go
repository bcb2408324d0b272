package job

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid"
	"github.com/pkg/errors"

	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/util"
)

const resourceType = "job"

// Job is a job definition as accepted by the management API, typically a pipeline.
type Job struct {
	Name       string                 `json:"name,omitempty"`
	Properties map[string]interface{} `json:"properties"`
}

// Status describes a submitted job.
type Status struct {
	Name      string
	Status    string
	StudioUrl string
}

// Load reads a job definition from a YAML or JSON file. Files that are not wrapped in a
// "properties" object are treated as the properties themselves.
func Load(path string) (*Job, error) {
	var doc map[string]interface{}
	if err := util.BindJsonOrYaml(path, &doc); err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, errors.Errorf("job file %s is empty", path)
	}
	job := &Job{}
	if name, ok := doc["name"].(string); ok {
		job.Name = name
		delete(doc, "name")
	}
	if props, ok := doc["properties"].(map[string]interface{}); ok {
		job.Properties = props
	} else {
		job.Properties = doc
	}
	return job, nil
}

// NewName returns a unique, time-ordered job name.
func NewName(entropy io.Reader) (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return strings.ToLower(id.String()), nil
}

type jobResource struct {
	Name       string `json:"name"`
	Properties struct {
		Status   string `json:"status"`
		Services map[string]struct {
			Endpoint string `json:"endpoint"`
		} `json:"services"`
	} `json:"properties"`
}

// SubmitAPI submits a named job to the workspace.
type SubmitAPI func(*Job) (*Status, error)

func Submit(getConnectionDetails client.ConnectionDetails) SubmitAPI {
	return func(job *Job) (*Status, error) {
		if job.Name == "" {
			return nil, errors.New("job has no name")
		}
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.Timeout()
		defer cancel()

		jobUrl, err := conn.WorkspaceUrl("jobs", job.Name)
		if err != nil {
			return nil, err
		}
		var created jobResource
		if _, err := conn.Do(ctx, http.MethodPut, jobUrl, job, &created, resourceType, job.Name); err != nil {
			return nil, err
		}
		status := &Status{Name: job.Name, Status: created.Properties.Status}
		if studio, ok := created.Properties.Services["Studio"]; ok {
			status.StudioUrl = studio.Endpoint
		}
		return status, nil
	}
}
