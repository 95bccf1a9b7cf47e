package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/qtoken/internal/expr"
)

// Snapshot captures the outcome of a scenario for golden comparison.
type Snapshot struct {
	Scenario string           `json:"scenario"`
	ID       string           `json:"id,omitempty"`
	Root     string           `json:"root,omitempty"`
	Logical  string           `json:"logical,omitempty"`
	Filtered string           `json:"filtered,omitempty"`
	Physical string           `json:"physical,omitempty"`
	Columns  []ColumnSnapshot `json:"columns,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ColumnSnapshot describes one output column.
type ColumnSnapshot struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Format      string `json:"format,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Deferred    bool   `json:"deferred,omitempty"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(name string, r *Result) Snapshot {
	s := Snapshot{Scenario: name}
	if r.Err != nil {
		s.Error = ErrorCode(r.Err)
		return s
	}
	c := r.Compiled
	s.ID = c.ID
	s.Root = c.Root.Name
	s.Logical = expr.String(c.Logical)
	s.Filtered = expr.String(c.Filtered)
	if len(c.Columns) > 0 {
		s.Physical = expr.String(c.Physical)
	}
	for _, col := range c.Columns {
		s.Columns = append(s.Columns, ColumnSnapshot{
			Name:        col.Name,
			Key:         col.Key,
			DisplayName: col.DisplayName,
			Type:        col.Type.String(),
			Format:      col.Format,
			Unit:        col.Unit,
			Deferred:    col.Deferred,
		})
	}
	s.Warnings = r.Lint.Warnings
	return s
}

// Marshal renders the snapshot as indented JSON without HTML escaping,
// so that lambdas keep their "=>".
func (s Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
