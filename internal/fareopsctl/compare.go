package fareopsctl

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/pkg/client/util"
)

// DefaultCompareMetric is the coefficient of determination logged by the fare regressor.
const DefaultCompareMetric = "r2"

type CompareArgs struct {
	// CandidateMetrics and BaselineMetrics are JSON or YAML objects mapping metric names to values.
	CandidateMetrics string
	BaselineMetrics  string
	Metric           string
	// LowerIsBetter treats Metric as an error measure such as rmse or mae.
	LowerIsBetter    bool
	// CompareOutput, when set, receives compare.txt describing the outcome.
	CompareOutput    string
}

// Compare fails when the candidate model scores worse than the baseline on the chosen
// metric. Without a baseline, the candidate passes.
func (a *App) Compare(args CompareArgs) error {
	return a.observe("compare", func() error {
		return a.compare(args)
	})
}

func (a *App) compare(args CompareArgs) error {
	metric := args.Metric
	if metric == "" {
		metric = DefaultCompareMetric
	}
	candidate, err := readMetric(args.CandidateMetrics, metric)
	if err != nil {
		return errors.Errorf("[fareopsctl.Compare] candidate: %s", err)
	}

	var outcome string
	var compareErr error
	if _, statErr := os.Stat(args.BaselineMetrics); args.BaselineMetrics == "" || errors.Is(statErr, fs.ErrNotExist) {
		outcome = fmt.Sprintf("No baseline model; candidate %s %g accepted", metric, candidate)
	} else {
		baseline, err := readMetric(args.BaselineMetrics, metric)
		if err != nil {
			return errors.Errorf("[fareopsctl.Compare] baseline: %s", err)
		}
		worse, better := "<", ">="
		regressed := candidate < baseline
		if args.LowerIsBetter {
			worse, better = ">", "<="
			regressed = candidate > baseline
		}
		if regressed {
			outcome = fmt.Sprintf("Candidate %s %g is worse than baseline %g", metric, candidate, baseline)
			compareErr = errors.Errorf("[fareopsctl.Compare] candidate model does not perform better than baseline model (%s %g %s %g)", metric, candidate, worse, baseline)
		} else {
			outcome = fmt.Sprintf("Candidate improved upon the baseline model (%s %g %s %g)", metric, candidate, better, baseline)
		}
	}
	log.Info(outcome)

	if strings.TrimSpace(args.CompareOutput) != "" {
		if err := os.MkdirAll(args.CompareOutput, 0o755); err != nil {
			return errors.WithStack(err)
		}
		if err := os.WriteFile(filepath.Join(args.CompareOutput, "compare.txt"), []byte(outcome+"\n"), 0o644); err != nil {
			return errors.WithStack(err)
		}
	}
	if compareErr != nil {
		return compareErr
	}
	fmt.Fprintln(a.Out, outcome)
	return nil
}

func readMetric(path, metric string) (float64, error) {
	var metrics map[string]float64
	if err := util.BindJsonOrYaml(path, &metrics); err != nil {
		return 0, err
	}
	value, ok := metrics[metric]
	if !ok {
		return 0, errors.Errorf("metric %q not found in %s", metric, path)
	}
	return value, nil
}
