package fareopsctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/state"
)

type TestEndpointArgs struct {
	EndpointName       string
	DeploymentName     string
	DeploymentNameFile string
	DefaultSlot        string
	// TestData is a CSV file or a folder containing one.
	TestData     string
	ReportFolder string
	// DeployStatus is only used to order this stage after deployment.
	DeployStatus string
}

// TestResult is the outcome of a smoke test against a deployment.
type TestResult struct {
	StatusCode  int
	Response    string
	Predictions []string
	// MatchRate is the share of predictions equal to their target, when it could be computed.
	MatchRate *float64
}

// ReportFileName returns the report name for an endpoint; environment-specific endpoints
// get their own report so that several can be tested in one pipeline.
func ReportFileName(endpointName string) string {
	name := strings.ToLower(endpointName)
	switch {
	case strings.Contains(name, "-ex-") || strings.HasSuffix(name, "-ex"):
		return "test_endpoint_ex_report.txt"
	case strings.Contains(name, "-ws-") || strings.HasSuffix(name, "-ws"):
		return "test_endpoint_ws_report.txt"
	}
	return "test_endpoint_report.txt"
}

// TestEndpoint sends the first rows of the test data to a deployment and writes a report.
// A failed invocation still writes the report, then fails the stage so the pipeline
// rolls back.
func (a *App) TestEndpoint(args TestEndpointArgs) error {
	return a.observe("test-endpoint", func() error {
		return a.testEndpoint(args)
	})
}

func (a *App) testEndpoint(args TestEndpointArgs) error {
	if args.DeployStatus != "" {
		if entries, err := os.ReadDir(args.DeployStatus); err == nil {
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			log.Infof("deploy status folder %s contains %v", args.DeployStatus, names)
		} else {
			log.Warnf("deploy status folder %s is not readable: %s", args.DeployStatus, err)
		}
	}

	fromFile, err := state.ReadSlotFile(args.DeploymentNameFile)
	if err != nil {
		return err
	}
	slot := strings.TrimSpace(args.DeploymentName)
	if slot == "" {
		slot = fromFile
	}
	if slot == "" {
		slot = strings.TrimSpace(args.DefaultSlot)
	}
	if slot != "" {
		log.Infof("Targeting deployment slot: %s", slot)
	}

	if _, err := a.Params.EndpointAPI.Get(args.EndpointName); err != nil {
		return errors.Errorf("[fareopsctl.TestEndpoint] error getting endpoint %s: %s", args.EndpointName, err)
	}

	sample, err := loadTestSample(args.TestData)
	if err != nil {
		return errors.Errorf("[fareopsctl.TestEndpoint] %s", err)
	}
	payload, err := json.Marshal(sample.request())
	if err != nil {
		return errors.WithStack(err)
	}

	result := a.invoke(args.EndpointName, slot, payload, sample.Targets)

	reportPath := filepath.Join(args.ReportFolder, ReportFileName(args.EndpointName))
	if err := writeTestReport(reportPath, result); err != nil {
		return errors.Errorf("[fareopsctl.TestEndpoint] error writing report: %s", err)
	}
	log.Infof("Test results saved to %s", reportPath)

	if result.StatusCode != http.StatusOK {
		return errors.Errorf("[fareopsctl.TestEndpoint] endpoint invocation failed; reverting to previous deployment required")
	}
	fmt.Fprintf(a.Out, "Endpoint %s answered %d predictions\n", args.EndpointName, len(result.Predictions))
	return nil
}

func (a *App) invoke(endpointName, slot string, payload []byte, targets []string) *TestResult {
	raw, err := a.Params.EndpointAPI.Invoke(endpointName, slot, payload)
	if err != nil {
		log.Errorf("invocation of %s failed: %s", endpointName, err)
		return &TestResult{
			StatusCode: http.StatusInternalServerError,
			Response:   err.Error(),
		}
	}
	result := &TestResult{StatusCode: http.StatusOK, Response: string(raw)}
	result.Predictions = parsePredictions(raw)
	if len(targets) > 0 && len(result.Predictions) == len(targets) {
		matches := 0
		for i, p := range result.Predictions {
			if sameValue(p, targets[i]) {
				matches++
			}
		}
		rate := float64(matches) / float64(len(targets))
		result.MatchRate = &rate
	}
	return result
}

// parsePredictions accepts a JSON list, or an object with a "predictions" list, and
// returns the items as text. Anything else yields nil.
func parsePredictions(raw []byte) []string {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	// Some scoring scripts return the JSON document as a JSON string.
	if s, ok := decoded.(string); ok {
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil
		}
	}
	if obj, ok := decoded.(map[string]interface{}); ok {
		decoded = obj["predictions"]
	}
	items, ok := decoded.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, itemText(item))
	}
	return out
}

func itemText(item interface{}) string {
	switch v := item.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return "null"
	}
	b, _ := json.Marshal(item)
	return string(b)
}

func writeTestReport(path string, result *TestResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Status code: %d\n", result.StatusCode)
	fmt.Fprintf(&sb, "Response: %s\n", result.Response)
	if result.Predictions != nil {
		fmt.Fprintf(&sb, "Predictions: [%s]\n", strings.Join(result.Predictions, ", "))
	}
	if result.MatchRate != nil {
		fmt.Fprintf(&sb, "Match rate: %.4f\n", *result.MatchRate)
	}
	return errors.WithStack(os.WriteFile(path, []byte(sb.String()), 0o644))
}
