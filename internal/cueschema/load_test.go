package cueschema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

func TestLoadDir_Shop(t *testing.T) {
	res, err := LoadDir("testdata/shop")
	require.NoError(t, err)

	assert.Equal(t, 2, res.FileCount)
	assert.True(t, res.Catalog.Frozen())

	order, ok := res.Catalog.Type("Order")
	require.True(t, ok)
	assert.True(t, order.IsEntity())

	lines, ok := res.Catalog.PropertyInfo(order, "Lines")
	require.True(t, ok)
	assert.True(t, lines.MList)
	assert.True(t, lines.PreserveOrder)
	assert.Equal(t, "[]OrderLine", lines.Type.String())

	customer, ok := res.Catalog.PropertyInfo(order, "Customer")
	require.True(t, ok)
	assert.Equal(t, ir.KindLite, customer.Type.Kind)

	owner, ok := res.Catalog.PropertyInfo(order, "Owner")
	require.True(t, ok)
	assert.Equal(t, "ImplementedBy(Company, Person)", owner.Implementations.String())

	total, ok := res.Catalog.PropertyInfo(order, "Total")
	require.True(t, ok)
	assert.Equal(t, "C2", total.Format)
	assert.Equal(t, "EUR", total.Unit)

	party, _ := res.Catalog.Type("Party")
	assert.True(t, party.Abstract)
	impls, ok := res.Catalog.Implementations(party)
	require.True(t, ok)
	assert.Equal(t, 2, len(impls.Types()))
}

func TestLoadDir_PropertyOrderFollowsSource(t *testing.T) {
	res, err := LoadDir("testdata/shop")
	require.NoError(t, err)

	customer, _ := res.Catalog.Type("Customer")
	var names []string
	for _, p := range res.Catalog.Properties(customer) {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Id", "Name", "Active", "Region", "Tags", "Orders"}, names)
}

func TestLoadDir_VisibilityAndExtensions(t *testing.T) {
	res, err := LoadDir("testdata/shop")
	require.NoError(t, err)

	order, _ := res.Catalog.Type("Order")
	pred, ok := res.Catalog.VisibilityPredicate(order)
	require.True(t, ok)
	assert.Equal(t, `self => (self.Customer.Region == "EU")`, expr.String(pred))

	tax, ok := res.Extensions.Get(order, "TotalWithTax")
	require.True(t, ok)
	assert.Equal(t, "self => (self.Total * 1.21m)", expr.String(tax.Expression))
	assert.Equal(t, "C2", tax.Format)

	customer, _ := res.Catalog.Type("Customer")
	recent, ok := res.Extensions.Get(customer, "RecentOrders")
	require.True(t, ok)
	assert.True(t, recent.Projection)
	assert.Equal(t, "Recent orders", recent.DisplayName())
	assert.Equal(t, "ImplementedBy(Order)", recent.Implementations.String())

	var keys []string
	for _, d := range res.Extensions.Lookup(customer) {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"OrderCount", "RecentOrders"}, keys)
}

func TestLoadDir_Errors(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing directory", "testdata/nope", ErrCodeNotFound},
		{"file instead of directory", "testdata/shop/schema.cue", ErrCodeNotFound},
		{"unknown type reference", "testdata/broken", ErrCodeUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDir(tt.dir)
			var le *LoadError
			require.True(t, errors.As(err, &le), "got %v", err)
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadDir_NoFiles(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestLoadString_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		code  string
		field string
	}{
		{
			name:  "unknown kind",
			src:   `type: Order: kind: "table"`,
			code:  ErrCodeInvalidKind,
			field: "type.Order.kind",
		},
		{
			name:  "unknown collection",
			src:   `type: Order: properties: Lines: {type: "int", collection: "bag"}`,
			code:  ErrCodeInvalidProperty,
			field: "type.Order.properties.Lines.collection",
		},
		{
			name:  "ordered without mlist",
			src:   `type: Order: properties: Lines: {type: "int", collection: "list", ordered: true}`,
			code:  ErrCodeInvalidProperty,
			field: "type.Order.properties.Lines.ordered",
		},
		{
			name:  "lite of scalar",
			src:   `type: Order: properties: Id: {type: "int", lite: true}`,
			code:  ErrCodeInvalidProperty,
			field: "type.Order.properties.Id",
		},
		{
			name:  "full text on int",
			src:   `type: Order: properties: Id: {type: "int", fulltext: true}`,
			code:  ErrCodeInvalidProperty,
			field: "type.Order",
		},
		{
			name: "abstract implementation",
			src: `type: Party: kind: "abstract"
type: Order: properties: Owner: {type: "Party", implementations: ["Party"]}`,
			code:  ErrCodeInvalidProperty,
			field: "type.Order.properties.Owner.implementations",
		},
		{
			name:  "extension on unknown type",
			src:   `extension: Ghost: Total: expression: "1"`,
			code:  ErrCodeUnknownType,
			field: "extension.Ghost",
		},
		{
			name: "extension expression",
			src: `type: Order: properties: Id: type: "int"
extension: Order: Twice: expression: "self.Nope * 2"`,
			code:  ErrCodeInvalidExpression,
			field: "extension.Order.Twice.expression",
		},
		{
			name: "broken visibility",
			src: `type: Order: {
	visibility: "self.Id"
	properties: Id: type: "int"
}`,
			code:  ErrCodeInvalidExpression,
			field: "visibility",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.code, le.Code, le.Error())
			assert.Equal(t, tt.field, le.Field)
		})
	}
}

func TestLoadString_ExtensionNeedsImplementations(t *testing.T) {
	_, err := LoadString(`
type: Party: {kind: "abstract", implementations: ["Person"]}
type: Person: properties: Id: type: "int"
type: Order: properties: Owner: {type: "Party", implementations: ["Person"]}
extension: Order: Party: expression: "self.Owner"
`)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeInvalidExtension, le.Code)
	assert.Contains(t, le.Message, "add implementations: [...] to the extension")
	assert.True(t, IsLoadError(err))
}

func TestLoadString_SyntaxError(t *testing.T) {
	_, err := LoadString(`type: Order: {`)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeUnknownType, Field: "type.Order.properties.Owner.type", Message: `unknown type "Party"`}
	assert.Equal(t, `E102: type.Order.properties.Owner.type: unknown type "Party"`, err.Error())
}
