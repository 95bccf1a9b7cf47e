package harness

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qtoken/internal/query"
)

func TestLoadScenario_FullRequest(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/full_request.yaml")
	require.NoError(t, err)

	assert.Equal(t, "full_request", s.Name)
	assert.Empty(t, s.Schema)
	assert.Equal(t, []string{"Number", "Customer.Active", "TotalWithTax"}, s.Expect.Columns)

	want := query.Request{
		Root: "Order",
		Columns: []query.Column{
			{Token: "Number"}, {Token: "Customer.Active"}, {Token: "TotalWithTax"},
		},
		Filters:    []query.Filter{query.Condition{Token: "Lines.Any.Quantity", Operation: query.GreaterThan, Value: 5}},
		Orders:     []query.Order{{Token: "Date", Descending: true}},
		Pagination: query.Firsts(10),
	}
	if diff := cmp.Diff(want, s.Request.QueryRequest()); diff != "" {
		t.Errorf("QueryRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadScenario_ResolvesSchemaDir(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cue_schema.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "schema"), s.Schema)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "colums")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Groups(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: groups
description: "Nested groups"
request:
  root: Order
  filters:
    - group:
        or: true
        prefix: Lines.Any
        filters:
          - {token: Lines.Any.Quantity, op: GreaterThan, value: 5}
          - {token: Lines.Any.Product, op: IsIn, value: [A, B]}
  pagination: {size: 20, page: 2}
`))
	require.NoError(t, err)

	want := query.Request{
		Root: "Order",
		Filters: []query.Filter{query.Group{
			Or:     true,
			Prefix: "Lines.Any",
			Filters: []query.Filter{
				query.Condition{Token: "Lines.Any.Quantity", Operation: query.GreaterThan, Value: 5},
				query.Condition{Token: "Lines.Any.Product", Operation: query.IsIn, Value: []any{"A", "B"}},
			},
		}},
		Pagination: query.Paginate(20, 2),
	}
	if diff := cmp.Diff(want, s.Request.QueryRequest()); diff != "" {
		t.Errorf("QueryRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nrequest: {root: Order}",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nrequest: {root: Order}",
			want: "description is required",
		},
		{
			name: "missing root",
			yaml: "name: n\ndescription: d\nrequest: {}",
			want: "request.root is required",
		},
		{
			name: "unknown option",
			yaml: "name: n\ndescription: d\noptions: [everything]\nrequest: {root: Order}",
			want: "unknown option",
		},
		{
			name: "column without token",
			yaml: "name: n\ndescription: d\nrequest: {root: Order, columns: [{name: X}]}",
			want: "request.columns[0]: token is required",
		},
		{
			name: "condition without op",
			yaml: "name: n\ndescription: d\nrequest: {root: Order, filters: [{token: Number}]}",
			want: "request.filters[0]: op is required",
		},
		{
			name: "nested condition without token",
			yaml: "name: n\ndescription: d\nrequest: {root: Order, filters: [{group: {filters: [{op: EqualTo}]}}]}",
			want: "request.filters[0].group.filters[0]: token is required",
		},
		{
			name: "group with token",
			yaml: "name: n\ndescription: d\nrequest: {root: Order, filters: [{token: Number, group: {filters: []}}]}",
			want: "group excludes token",
		},
		{
			name: "order without token",
			yaml: "name: n\ndescription: d\nrequest: {root: Order, orders: [{descending: true}]}",
			want: "request.orders[0]: token is required",
		},
		{
			name: "firsts and page",
			yaml: "name: n\ndescription: d\nrequest: {root: Order, pagination: {firsts: 1, page: 2}}",
			want: "firsts excludes size and page",
		},
		{
			name: "empty pagination",
			yaml: "name: n\ndescription: d\nrequest: {root: Order, pagination: {}}",
			want: "firsts or size is required",
		},
		{
			name: "error with logical",
			yaml: "name: n\ndescription: d\nrequest: {root: Order}\nexpect: {error: X, logical: Y}",
			want: "error excludes logical",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseRequest(t *testing.T) {
	r, err := ParseRequest([]byte(`
root: Customer
columns:
  - {token: Name, name: Customer}
orders:
  - {token: Name}
`))
	require.NoError(t, err)
	assert.Equal(t, query.Request{
		Root:    "Customer",
		Columns: []query.Column{{Token: "Name", DisplayName: "Customer"}},
		Orders:  []query.Order{{Token: "Name"}},
	}, r.QueryRequest())

	_, err = ParseRequest([]byte("root: Customer\nlimit: 3\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = ParseRequest([]byte("columns: [{token: Name}]\n"))
	assert.ErrorContains(t, err, "invalid request: request.root is required")
}
