package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Chain(t *testing.T) {
	out, err := execute(t, NewResolveCommand(testOptions(t, "json")), "Order", "Customer.Name")
	require.NoError(t, err)

	var r Resolution
	resp := decode(t, out, &r)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Order.Customer.Name", r.Token)
	require.Len(t, r.Chain, 3)
	assert.Equal(t, "root", r.Chain[0].Kind)
	assert.Equal(t, "Customer", r.Chain[1].FullKey)
	assert.Equal(t, "Customer.Name", r.Chain[2].FullKey)
	assert.Equal(t, "string", r.Chain[2].Type)
}

func TestResolve_RootPrefixAndQuantifier(t *testing.T) {
	out, err := execute(t, NewResolveCommand(testOptions(t, "json")), "Order", "Order.Lines.Any().Price")
	require.NoError(t, err)

	var r Resolution
	decode(t, out, &r)
	assert.Equal(t, "Order.Lines.Any.Price", r.Token)
	assert.Equal(t, "quantifier", r.Chain[2].Kind)
	assert.Equal(t, "C2", r.Chain[3].Format)
}

func TestResolve_Text(t *testing.T) {
	out, err := execute(t, NewResolveCommand(testOptions(t, "text")), "Order", "Total")
	require.NoError(t, err)
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "[C2 EUR]")
	assert.Contains(t, out, "✓ Order.Total")
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		path   string
		code   string
		reason string
	}{
		{name: "unknown", path: "Customer.Nickname", code: ErrCodeUnknownToken, reason: "UNKNOWN_TOKEN"},
		{name: "syntax", path: "Customer..Name", code: ErrCodeSyntax, reason: "SYNTAX"},
		{
			name:   "denied",
			config: "auth:\n  properties:\n    Order.Total: finance only\n",
			path:   "Total",
			code:   ErrCodeNotAllowed,
			reason: "NOT_ALLOWED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t, "json")
			if tt.config != "" {
				withConfig(t, opts, tt.config)
			}

			out, err := execute(t, NewResolveCommand(opts), "Order", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decode(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			details, ok := resp.Error.Details.(map[string]any)
			require.True(t, ok, "details: %v", resp.Error.Details)
			assert.Equal(t, tt.reason, details["reason"])
		})
	}
}

func TestResolve_Suggestion(t *testing.T) {
	out, err := execute(t, NewResolveCommand(testOptions(t, "json")), "Order", "Customer.name")
	require.Error(t, err)

	resp := decode(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, `did you mean "Name"?`)
	details := resp.Error.Details.(map[string]any)
	assert.Equal(t, "Name", details["suggestion"])
	assert.Equal(t, "name", details["segment"])
}
