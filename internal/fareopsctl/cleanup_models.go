package fareopsctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/internal/retention"
	"github.com/taxifare/fareops/internal/state"
	"github.com/taxifare/fareops/pkg/client"
	"github.com/taxifare/fareops/pkg/client/model"
)

const (
	CleanupScopeWorkspace = "workspace"
	CleanupScopeRegistry  = "registry"
	CleanupScopeBoth      = "both"
)

type CleanupModelsArgs struct {
	ModelName string
	Registry  string
	// RetainVersions is the minimum number of versions kept per scope.
	RetainVersions int
	// DeployState is the folder holding the deployment state; its model version is always kept.
	DeployState string
	// Scope is one of workspace, registry or both.
	Scope        string
	OutputFolder string
	DryRun       bool
}

// ScopeReport describes the cleanup of one scope.
type ScopeReport struct {
	Scope           string   `json:"scope"`
	Error           string   `json:"error,omitempty"`
	TotalVersions   int      `json:"total_versions"`
	KeptVersions    []string `json:"kept_versions"`
	DeletedVersions []string `json:"deleted_versions"`
	FailedVersions  []string `json:"failed_versions,omitempty"`
	DryRun          bool     `json:"dry_run"`
}

type CleanupReport struct {
	ModelName      string                 `json:"model_name"`
	DeployMetadata *state.DeploymentState `json:"deploy_metadata"`
	RetainVersions int                    `json:"retain_versions"`
	DryRun         bool                   `json:"dry_run"`
	Scopes         []*ScopeReport         `json:"scopes"`
}

// CleanupModels deletes old versions of a model from the workspace and/or registry,
// keeping the deployed version and the newest RetainVersions versions.
func (a *App) CleanupModels(args CleanupModelsArgs) error {
	return a.observe("cleanup-models", func() error {
		_, err := a.cleanupModels(args)
		return err
	})
}

func (a *App) cleanupModels(args CleanupModelsArgs) (*CleanupReport, error) {
	if args.RetainVersions < 1 {
		return nil, errors.WithStack(&platformerrors.ErrInvalidArgument{
			Name:    "retain-versions",
			Value:   args.RetainVersions,
			Message: "must be at least 1",
		})
	}
	scopeName := strings.ToLower(strings.TrimSpace(args.Scope))
	if scopeName == "" {
		scopeName = CleanupScopeBoth
	}
	if !slices.Contains([]string{CleanupScopeWorkspace, CleanupScopeRegistry, CleanupScopeBoth}, scopeName) {
		return nil, errors.WithStack(&platformerrors.ErrInvalidArgument{
			Name:    "scope",
			Value:   args.Scope,
			Message: "must be workspace, registry or both",
		})
	}

	deployState, err := state.Load(args.DeployState)
	if err != nil {
		log.Warnf("unable to read deployment state: %s", err)
		deployState = &state.DeploymentState{}
	}
	var keep []string
	if deployState.ModelVersion != "" {
		keep = append(keep, deployState.ModelVersion)
		log.Infof("Will preserve deployed model version %s", deployState.ModelVersion)
	}
	if deployState.ModelName != "" && deployState.ModelName != args.ModelName {
		log.Warnf("deployment state is for model %s, not %s; proceeding with the target name only", deployState.ModelName, args.ModelName)
	}

	var scopes []client.Scope
	if scopeName == CleanupScopeWorkspace || scopeName == CleanupScopeBoth {
		if a.workspaceConfigured() {
			scopes = append(scopes, client.WorkspaceScope())
		} else {
			log.Warn("Workspace is not configured; skipping workspace cleanup")
		}
	}
	if scopeName == CleanupScopeRegistry || scopeName == CleanupScopeBoth {
		if args.Registry != "" {
			scopes = append(scopes, client.RegistryScope(args.Registry))
		} else {
			log.Warn("No registry given; skipping registry cleanup")
		}
	}
	if len(scopes) == 0 {
		return nil, errors.Errorf("[fareopsctl.CleanupModels] no workspace or registry available for cleanup")
	}

	reports := make([]*ScopeReport, len(scopes))
	var mu sync.Mutex
	var result *multierror.Error
	var g errgroup.Group
	for i, scope := range scopes {
		i, scope := i, scope
		g.Go(func() error {
			report, err := a.cleanupScope(scope, args.ModelName, keep, args.RetainVersions, args.DryRun)
			reports[i] = report
			if err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &CleanupReport{
		ModelName:      args.ModelName,
		DeployMetadata: deployState,
		RetainVersions: args.RetainVersions,
		DryRun:         args.DryRun,
		Scopes:         reports,
	}
	if err := writeCleanupReport(args.OutputFolder, report); err != nil {
		result = multierror.Append(result, err)
	}

	fmt.Fprintf(a.Out, "Cleanup complete\n")
	for _, r := range reports {
		a.Metrics.RecordRetention(args.ModelName, r.Scope, len(r.KeptVersions), len(r.DeletedVersions), len(r.FailedVersions))
		fmt.Fprintf(a.Out, "[%s] kept %v | deleted %v | total %d\n", r.Scope, r.KeptVersions, r.DeletedVersions, r.TotalVersions)
	}
	if err := result.ErrorOrNil(); err != nil {
		return report, errors.Errorf("[fareopsctl.CleanupModels] %s", err)
	}
	return report, nil
}

// cleanupScope applies the retention plan to one scope. Listing failures are recorded in
// the report only; failed deletions are also returned.
func (a *App) cleanupScope(scope client.Scope, modelName string, keep []string, retain int, dryRun bool) (*ScopeReport, error) {
	report := &ScopeReport{
		Scope:           scope.String(),
		KeptVersions:    []string{},
		DeletedVersions: []string{},
		DryRun:          dryRun,
	}

	versions, err := a.Params.ModelAPI.ListVersions(scope, modelName)
	if err != nil {
		log.Errorf("[%s] failed to enumerate model versions: %s", scope, err)
		report.Error = err.Error()
		return report, nil
	}
	numbers := model.VersionNumbers(versions)
	report.TotalVersions = len(numbers)
	if len(numbers) == 0 {
		log.Infof("[%s] no versions of model %s found", scope, modelName)
		return report, nil
	}

	kept, candidates, err := retention.Plan(numbers, keep, retain)
	if err != nil {
		return report, err
	}
	report.KeptVersions = kept

	var result *multierror.Error
	for _, version := range candidates {
		log.Infof("[%s] preparing to delete model version %s:%s", scope, modelName, version)
		if dryRun {
			report.DeletedVersions = append(report.DeletedVersions, version)
			continue
		}
		err := a.Params.ModelAPI.Delete(scope, modelName, version)
		switch {
		case platformerrors.IsNotFound(err):
			log.Infof("[%s] model version %s already removed", scope, version)
		case err != nil:
			log.Errorf("[%s] failed to delete version %s: %s", scope, version, err)
			report.FailedVersions = append(report.FailedVersions, version)
			result = multierror.Append(result, errors.Wrapf(err, "%s: deleting %s:%s", scope, modelName, version))
		default:
			log.Infof("[%s] deleted model version %s", scope, version)
			report.DeletedVersions = append(report.DeletedVersions, version)
		}
	}
	return report, result.ErrorOrNil()
}

func writeCleanupReport(folder string, report *CleanupReport) error {
	if strings.TrimSpace(folder) == "" {
		return nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return errors.WithStack(err)
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "cleanup_report.json"), b, 0o644); err != nil {
		return errors.WithStack(err)
	}

	retained := map[string]bool{}
	for _, scope := range report.Scopes {
		for _, v := range scope.KeptVersions {
			retained[v] = true
		}
	}
	versions := maps.Keys(retained)
	slices.Sort(versions)
	joined := strings.Join(versions, ", ")
	if joined == "" {
		joined = "none"
	}
	summary := fmt.Sprintf("Cleanup executed for model %s.\nDry run: %t\nRetained versions: %s\n", report.ModelName, report.DryRun, joined)
	return errors.WithStack(os.WriteFile(filepath.Join(folder, "summary.txt"), []byte(summary), 0o644))
}
