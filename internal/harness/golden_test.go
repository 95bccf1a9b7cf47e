package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files live in testdata/golden. After an intended change in
// compilation output, regenerate them with:
//
//	go test ./internal/harness -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"full_request", "unknown_token", "disabled_filters", "cue_schema"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_MarshalKeepsArrows(t *testing.T) {
	result, err := Run(loadScenario(t, "cue_schema"))
	require.NoError(t, err)

	data, err := NewSnapshot("cue_schema", result).Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "e => ")
	assert.NotContains(t, string(data), `\u003e`)

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "Customer", back.Root)
	assert.Len(t, back.Columns, 1)
}

func TestSnapshot_Error(t *testing.T) {
	result, err := Run(loadScenario(t, "denied_total"))
	require.NoError(t, err)

	s := NewSnapshot("denied_total", result)
	assert.Equal(t, Snapshot{Scenario: "denied_total", Error: "NOT_ALLOWED"}, s)
}
