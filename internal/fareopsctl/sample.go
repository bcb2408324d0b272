package fareopsctl

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	sampleRows   = 10
	targetColumn = "cost"
)

// testSample is the head of a test data set, split into model inputs and targets.
type testSample struct {
	Columns []string
	Rows    [][]interface{}
	// Targets holds the target column as text, or nil when the data has no target column.
	Targets []string
}

type scoringRequest struct {
	InputData scoringInput `json:"input_data"`
}

type scoringInput struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

func (s *testSample) request() scoringRequest {
	return scoringRequest{InputData: scoringInput{Columns: s.Columns, Data: s.Rows}}
}

// findCsv resolves path to a CSV file: either path itself or the first CSV file inside
// a data folder.
func findCsv(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "error reading test data %s", path)
	}
	if !info.IsDir() {
		if strings.HasSuffix(strings.ToLower(path), ".csv") {
			return path, nil
		}
		return "", errors.Errorf("unsupported test data format %s; expected a CSV file or a folder containing one", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			return filepath.Join(path, entry.Name()), nil
		}
	}
	return "", errors.Errorf("no CSV file found in test data folder %s", path)
}

// loadTestSample reads up to sampleRows rows of test data and pops the target column.
func loadTestSample(path string) (*testSample, error) {
	csvPath, err := findCsv(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "error reading header of %s", csvPath)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	target := -1
	for i, name := range header {
		if name == targetColumn {
			target = i
			break
		}
	}

	sample := &testSample{}
	for i, name := range header {
		if i != target {
			sample.Columns = append(sample.Columns, name)
		}
	}
	if target >= 0 {
		sample.Targets = []string{}
	}
	for len(sample.Rows) < sampleRows {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "malformed test data %s", csvPath)
		}
		row := make([]interface{}, 0, len(record))
		for i, cell := range record {
			if i == target {
				sample.Targets = append(sample.Targets, strings.TrimSpace(cell))
				continue
			}
			row = append(row, cellValue(cell))
		}
		sample.Rows = append(sample.Rows, row)
	}
	return sample, nil
}

// cellValue types a CSV cell the way a data frame would: numbers become numbers, empty
// cells become null and everything else stays text.
func cellValue(cell string) interface{} {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	if strings.EqualFold(cell, "true") || strings.EqualFold(cell, "false") {
		return strings.EqualFold(cell, "true")
	}
	return cell
}

// sameValue compares a prediction with a target, numerically when both are numbers.
func sameValue(prediction, target string) bool {
	p, perr := strconv.ParseFloat(prediction, 64)
	t, terr := strconv.ParseFloat(target, 64)
	if perr == nil && terr == nil {
		return p == t
	}
	return prediction == target
}
