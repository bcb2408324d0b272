// Package state persists the small documents that pipeline stages hand to each
// other through folders: the deployment state used for promotion and rollback,
// the selected slot file and the status folders used to order stages.
package state

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/traffic"
)

const (
	// FileName is the name of the deployment state document inside a state folder.
	FileName = "deployment_state.json"
	// DefaultFallbackDir receives the state when no writable folder was provided.
	DefaultFallbackDir = "outputs/deployment_state"

	ModelSourceRegistry  = "registry"
	ModelSourceWorkspace = "workspace"
)

// mkdirAll is replaced in tests to simulate read-only mounts.
var mkdirAll = os.MkdirAll

// DeploymentState is written by the deploy stage and updated by every traffic update.
type DeploymentState struct {
	PreviousTraffic      traffic.Distribution `json:"previous_traffic,omitempty"`
	UpdatedTraffic       traffic.Distribution `json:"updated_traffic,omitempty"`
	CurrentTraffic       traffic.Distribution `json:"current_traffic,omitempty"`
	NewDeployment        string               `json:"new_deployment,omitempty"`
	ResolvedDeployment   string               `json:"resolved_deployment,omitempty"`
	EndpointName         string               `json:"endpoint_name,omitempty"`
	HasPriorDeployment   *bool                `json:"has_prior_deployment,omitempty"`
	ModelName            string               `json:"model_name,omitempty"`
	ModelVersion         string               `json:"model_version,omitempty"`
	ModelSource          string               `json:"model_source,omitempty"`
	DeletedNewDeployment bool                 `json:"deleted_new_deployment,omitempty"`
}

// HasPrior reports whether the endpoint was already serving traffic before the
// deployment. An explicit flag wins; otherwise it is inferred from PreviousTraffic.
func (s *DeploymentState) HasPrior() bool {
	if s.HasPriorDeployment != nil {
		return *s.HasPriorDeployment
	}
	return len(s.PreviousTraffic) > 0
}

// SetHasPrior records whether a prior deployment existed.
func (s *DeploymentState) SetHasPrior(v bool) {
	s.HasPriorDeployment = &v
}

// Load reads the deployment state from dir. A blank dir or a missing file yields an
// empty state rather than an error, since the first deployment of an endpoint has none.
func Load(dir string) (*DeploymentState, error) {
	s := &DeploymentState{}
	if strings.TrimSpace(dir) == "" {
		return s, nil
	}
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("no deployment state found at %s", path)
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error reading deployment state %s", path)
	}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, errors.Wrapf(err, "error parsing deployment state %s", path)
	}
	return s, nil
}

// Save writes the state into dir, creating it if needed.
func (s *DeploymentState) Save(dir string) error {
	if err := mkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(filepath.Join(dir, FileName), b, 0o644))
}

// SaveWithFallback writes the state into dir and returns the folder actually used.
// A blank dir, or one that turns out to be read-only or not writable by the current
// user, redirects the write to fallback.
func (s *DeploymentState) SaveWithFallback(dir, fallback string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return fallback, s.Save(fallback)
	}
	err := s.Save(dir)
	if err == nil {
		return dir, nil
	}
	if !isNotWritable(err) {
		return "", err
	}
	log.Warnf("deployment state directory %s was not writable (%s); persisting to %s instead", dir, err, fallback)
	return fallback, s.Save(fallback)
}

func isNotWritable(err error) bool {
	return errors.Is(err, syscall.EROFS) || errors.Is(err, syscall.EACCES) || errors.Is(err, fs.ErrPermission)
}

// ReadSlotFile returns the trimmed contents of a slot file, or "" when path is blank,
// missing or empty.
func ReadSlotFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("deployment name file %s not found; ignoring", path)
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "error reading deployment name file %s", path)
	}
	value := strings.TrimSpace(string(b))
	if value == "" {
		log.Infof("deployment name file %s was empty; ignoring", path)
	}
	return value, nil
}

// WriteSlotFile writes slot to path, creating parent folders.
func WriteSlotFile(path, slot string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, []byte(slot), 0o644))
}

// WriteStatus writes done.txt with doneMessage and a log file containing one line per
// entry of lines. It is a no-op when dir is blank.
func WriteStatus(dir, doneMessage, logName string, lines []string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "done.txt"), []byte(doneMessage), 0o644); err != nil {
		return errors.WithStack(err)
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return errors.WithStack(os.WriteFile(filepath.Join(dir, logName), []byte(sb.String()), 0o644))
}
