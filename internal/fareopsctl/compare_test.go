package fareopsctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMetrics(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompare(t *testing.T) {
	tests := map[string]struct {
		candidate     string
		baseline      string
		metric        string
		lowerIsBetter bool
		err           bool
		outcome       string
	}{
		"candidate improves":     {candidate: `{"r2": 0.91}`, baseline: `{"r2": 0.85}`, outcome: "Candidate improved upon the baseline model"},
		"candidate equal":        {candidate: `{"r2": 0.85}`, baseline: `{"r2": 0.85}`, outcome: "Candidate improved upon the baseline model"},
		"candidate regresses":    {candidate: `{"r2": 0.7}`, baseline: `{"r2": 0.85}`, err: true, outcome: "is worse than baseline"},
		"no baseline":            {candidate: `{"r2": 0.5}`, outcome: "No baseline model"},
		"yaml and custom metric": {candidate: "explained_variance: 0.8\n", baseline: "explained_variance: 0.6\n", metric: "explained_variance", outcome: "explained_variance 0.8 >= 0.6"},
		"lower rmse improves":    {candidate: `{"rmse": 2.9}`, baseline: `{"rmse": 3.4}`, metric: "rmse", lowerIsBetter: true, outcome: "rmse 2.9 <= 3.4"},
		"higher rmse regresses":  {candidate: `{"rmse": 3.9}`, baseline: `{"rmse": 3.4}`, metric: "rmse", lowerIsBetter: true, err: true, outcome: "is worse than baseline"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, _, _ := newTestApp(t)
			dir := t.TempDir()
			args := CompareArgs{
				CandidateMetrics: writeMetrics(t, dir, "candidate.yaml", tc.candidate),
				BaselineMetrics:  filepath.Join(dir, "baseline.yaml"),
				Metric:           tc.metric,
				LowerIsBetter:    tc.lowerIsBetter,
				CompareOutput:    filepath.Join(dir, "compare"),
			}
			if tc.baseline != "" {
				writeMetrics(t, dir, "baseline.yaml", tc.baseline)
			}

			err := a.Compare(args)
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			outcome, readErr := os.ReadFile(filepath.Join(dir, "compare", "compare.txt"))
			require.NoError(t, readErr)
			assert.Contains(t, string(outcome), tc.outcome)
		})
	}
}

func TestCompare_MissingMetric(t *testing.T) {
	a, _, _ := newTestApp(t)
	dir := t.TempDir()

	err := a.Compare(CompareArgs{CandidateMetrics: writeMetrics(t, dir, "candidate.json", `{"rmse": 3.2}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `metric "r2" not found`)
}
