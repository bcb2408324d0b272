package fareopsctl

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/pkg/client/job"
)

type SubmitArgs struct {
	// JobFile is a YAML or JSON pipeline job definition.
	JobFile string
	// Name overrides the job name; unnamed jobs get a generated one.
	Name           string
	ExperimentName string
}

// Submit submits a pipeline job definition to the workspace.
func (a *App) Submit(args SubmitArgs) error {
	return a.observe("submit", func() error {
		return a.submit(args)
	})
}

func (a *App) submit(args SubmitArgs) error {
	j, err := job.Load(args.JobFile)
	if err != nil {
		return errors.Errorf("[fareopsctl.Submit] %s", err)
	}
	if args.Name != "" {
		j.Name = args.Name
	}
	if j.Name == "" {
		if j.Name, err = job.NewName(a.Random); err != nil {
			return errors.Errorf("[fareopsctl.Submit] error generating job name: %s", err)
		}
	}
	if args.ExperimentName != "" {
		j.Properties["experimentName"] = args.ExperimentName
	}
	log.Infof("Submitting job %s from %s", j.Name, args.JobFile)

	status, err := a.Params.JobAPI.Submit(j)
	if err != nil {
		return errors.Errorf("[fareopsctl.Submit] error submitting job %s: %s", j.Name, err)
	}
	fmt.Fprintf(a.Out, "Job name: %s\n", status.Name)
	fmt.Fprintf(a.Out, "Job status: %s\n", status.Status)
	fmt.Fprintf(a.Out, "Studio URL: %s\n", status.StudioUrl)
	return nil
}
