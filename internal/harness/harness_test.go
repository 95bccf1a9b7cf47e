package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qtoken/internal/cueschema"
	"github.com/roach88/qtoken/internal/expr"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_ScenariosPass(t *testing.T) {
	for _, name := range []string{"full_request", "unknown_token", "disabled_filters", "cue_schema", "denied_total"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_IDsRestartPerScenario(t *testing.T) {
	h := New()
	s := loadScenario(t, "full_request")

	first, err := h.Run(s)
	require.NoError(t, err)
	second, err := h.Run(s)
	require.NoError(t, err)

	assert.Equal(t, "test-0001", first.Compiled.ID)
	assert.Equal(t, "test-0001", second.Compiled.ID)
}

func TestRun_ReportsMismatches(t *testing.T) {
	s := loadScenario(t, "full_request")
	s.Expect.Logical = "Source(Order)"
	s.Expect.Columns = []string{"Number"}
	s.Expect.Warnings = []string{}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expectation failed: logical")
	assert.Contains(t, result.Errors[0], "Expected: Source(Order)")
	assert.Contains(t, result.Errors[1], "expectation failed: columns")
	assert.Contains(t, result.Errors[1], "Customer.Active")
	assert.Contains(t, result.Errors[2], "expectation failed: warnings")
}

func TestRun_ChecksPhysical(t *testing.T) {
	s := loadScenario(t, "full_request")
	s.Expect.Physical = "Source(Order)"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expectation failed: physical")
	assert.Equal(t, "Total", result.Compiled.Physical.(*expr.Projection).Select.Columns[2].Name)
}

func TestRun_UnexpectedError(t *testing.T) {
	s := loadScenario(t, "unknown_token")
	s.Expect.Error = ""

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: success")
	assert.Equal(t, "UNKNOWN_TOKEN", ErrorCode(result.Err))
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := loadScenario(t, "disabled_filters")
	s.Expect = Expect{Error: "INVALID_TOKEN"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Actual: success")
}

func TestRun_QueryErrorCode(t *testing.T) {
	s := loadScenario(t, "unknown_token")
	s.Expect.Error = "INVALID_TOKEN"

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "the wrapping query code is accepted: %v", result.Errors)
}

func TestRun_BrokenSchema(t *testing.T) {
	s := loadScenario(t, "cue_schema")
	s.Schema = t.TempDir()

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load schema")
}

func TestRun_Logs(t *testing.T) {
	var buf bytes.Buffer
	h := New(WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	_, err := h.Run(loadScenario(t, "full_request"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "compilation_id=test-0001")
	assert.Contains(t, buf.String(), "scenario=full_request")
}

func TestRun_WithSchema(t *testing.T) {
	res, err := cueschema.LoadDir("testdata/schema")
	require.NoError(t, err)

	s := loadScenario(t, "cue_schema")
	s.Schema = ""

	result, err := New(WithSchema(res.Catalog, res.Extensions)).Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	_, err = Run(s)
	require.NoError(t, err, "the sample schema also has Customer")
}
