package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/testutil"
)

func sampleEnv() (*Env, *testutil.Sample) {
	s := testutil.SampleSchema()
	return &Env{Schema: s.Catalog, Extensions: s.Extensions}, s
}

func keys(ts []Token) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Key()
	}
	return out
}

// walk follows keys from t, failing the test on a missing step.
func walk(t *testing.T, from Token, opts Options, path ...string) Token {
	t.Helper()
	cur := from
	for _, k := range path {
		next, ok := cur.SubToken(k, opts)
		require.True(t, ok, "no sub-token %q under %s (have %v)", k, cur, keys(cur.SubTokens(opts)))
		cur = next
	}
	return cur
}

func TestSubTokens_EntityOrder(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Order).Root()

	got := keys(root.SubTokens(OptAll))

	assert.Equal(t, []string{
		"Id", "Number", "Date", "Total", "Customer", "Lines", "Notes", "Owner", "Shipping",
		"TotalWithTax",
	}, got)
}

func TestSubTokens_CollectionOptions(t *testing.T) {
	env, s := sampleEnv()
	lines := walk(t, NewTree(env, s.Order).Root(), OptAll, "Lines")

	assert.Equal(t, []string{"Any", "All", "NoOne", "AnyNo", "Count"}, keys(lines.SubTokens(OptAll)))
	assert.Equal(t, []string{"Any", "All", "NoOne", "AnyNo"}, keys(lines.SubTokens(OptAnyAll)))
	assert.Equal(t, []string{"Count"}, keys(lines.SubTokens(OptAggregates)))
	assert.Empty(t, lines.SubTokens(0), "excluded tokens are not offered")
}

func TestSubTokens_Deterministic(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Order).Root()

	first := root.SubTokens(OptAll)
	second := root.SubTokens(OptAll)

	assert.Equal(t, first, second, "repeated enumeration returns the same handles")
}

func TestSubTokens_MListRowTokens(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Order).Root()

	anyLine := walk(t, root, OptAll, "Lines", "Any")
	assert.Equal(t, []string{"Product", "Quantity", "Price", "RowId", "RowOrder"}, keys(anyLine.SubTokens(OptAll)))

	anyNote := walk(t, root, OptAll, "Notes", "Any")
	assert.Equal(t, []string{"RowId"}, keys(anyNote.SubTokens(OptAll)), "unordered lists have no RowOrder")

	anyOrder := walk(t, NewTree(env, s.Customer).Root(), OptAll, "Orders", "Any")
	assert.NotContains(t, keys(anyOrder.SubTokens(OptAll)), "RowId", "queryable collections are not MLists")
}

func TestSubTokens_MListWithoutAnchor(t *testing.T) {
	env, s := sampleEnv()
	anyItem := walk(t, NewTree(env, s.Basket).Root(), OptAll, "Items", "Any")

	assert.Equal(t, []string{"Product", "Quantity", "Price"}, keys(anyItem.SubTokens(OptAll)))
	_, ok := anyItem.SubToken("RowId", OptAll)
	assert.False(t, ok)
}

func TestSubTokens_Casts(t *testing.T) {
	env, s := sampleEnv()
	owner := walk(t, NewTree(env, s.Order).Root(), OptAll, "Owner")

	assert.Equal(t, []string{"Name", "(Company)", "(Person)"}, keys(owner.SubTokens(OptAll)))
	assert.Equal(t, []string{"Name"}, keys(owner.SubTokens(OptAnyAll)))

	person := walk(t, owner, OptCasts, "(Person)")
	assert.Equal(t, KindCast, person.Kind())
	assert.Equal(t, "Person", person.Type().String())
	assert.Equal(t, "ImplementedBy(Person)", person.Implementations().String())
	assert.Contains(t, keys(person.SubTokens(OptAll)), "Email")

	customer := walk(t, NewTree(env, s.Order).Root(), OptAll, "Customer")
	assert.NotContains(t, keys(customer.SubTokens(OptAll)), "(Customer)", "monomorphic references have no casts")
}

func TestSubTokens_SnippetAndCount(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Customer).Root()

	name := walk(t, root, OptAll, "Name")
	assert.Equal(t, []string{"Snippet"}, keys(name.SubTokens(OptAll)))
	assert.Empty(t, name.SubTokens(OptAnyAll))

	region := walk(t, root, OptAll, "Region")
	assert.Empty(t, region.SubTokens(OptAll), "only full-text strings have snippets")

	count := walk(t, root, OptAll, "Orders", "Count")
	assert.Equal(t, KindCount, count.Kind())
	assert.Same(t, ir.Int, count.Type())
}

func TestSubTokens_LiteNavigation(t *testing.T) {
	env, s := sampleEnv()
	active := walk(t, NewTree(env, s.Order).Root(), OptAll, "Customer", "Active")

	assert.Equal(t, "Customer.Active", active.FullKey())
	assert.Equal(t, "Order.Customer.Active", active.String())
}

func TestSubTokens_UnknownTypeIsEmpty(t *testing.T) {
	env, _ := sampleEnv()
	root := NewTree(env, ir.Entity("Ghost")).Root()

	assert.Empty(t, root.SubTokens(OptAll))
}

func TestSubTokens_ExtensionProjection(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Customer).Root()

	assert.Equal(t, []string{"Id", "Name", "Active", "Region", "Tags", "Orders", "BigOrders", "OrderCount"},
		keys(root.SubTokens(OptAll)))

	big := walk(t, root, OptAll, "BigOrders")
	assert.Equal(t, KindExtension, big.Kind())
	assert.Equal(t, "", big.Format(), "projection format is per element")
	assert.Equal(t, "C0", big.ElementFormat())
	assert.Equal(t, "ImplementedBy(Order)", big.Implementations().String())

	anyBig := walk(t, big, OptAll, "Any")
	assert.Equal(t, "Order", anyBig.Type().String())
	assert.Contains(t, keys(anyBig.SubTokens(OptAll)), "TotalWithTax")
}

func TestQuantifier_TypeAndFormat(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Order).Root()

	anyLine := walk(t, root, OptAll, "Lines", "Any")
	q, ok := anyLine.Quantifier()
	require.True(t, ok)
	assert.Equal(t, Any, q)
	assert.Same(t, s.OrderLine, anyLine.Type())

	price := walk(t, anyLine, OptAll, "Price")
	assert.Equal(t, "C2", price.Format())

	route, ok := price.Route()
	require.True(t, ok)
	assert.Equal(t, "Order.Lines/Price", route.String())

	total := walk(t, root, OptAll, "Total")
	assert.Equal(t, "C2", total.Format())
	assert.Equal(t, "EUR", total.Unit())

	ext := walk(t, root, OptAll, "TotalWithTax")
	assert.Equal(t, "C2", ext.Format())
	assert.Equal(t, "EUR", ext.ElementUnit())
	_, ok = ext.Route()
	assert.False(t, ok)
}

func TestToken_ParentAndChain(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Order).Root()
	qty := walk(t, root, OptAll, "Lines", "Any", "Quantity")

	assert.Equal(t, "Lines.Any.Quantity", qty.FullKey())
	assert.Equal(t, []string{"Order", "Lines", "Any", "Quantity"}, keys(qty.Chain()))

	p, ok := qty.Parent()
	require.True(t, ok)
	assert.Equal(t, KindQuantifier, p.Kind())

	_, ok = root.Parent()
	assert.False(t, ok)
	assert.Equal(t, "", root.FullKey())
	assert.True(t, qty.HasQuantifier())
	assert.False(t, qty.HasExtension())

	anchor, ok := qty.Anchor()
	require.True(t, ok)
	assert.Equal(t, root, anchor)
}

func TestClone_IndependentTrees(t *testing.T) {
	env, s := sampleEnv()
	tree := NewTree(env, s.Order)
	qty := walk(t, tree.Root(), OptAll, "Lines", "Any", "Quantity")

	clone := qty.Clone()

	assert.Equal(t, qty.Key(), clone.Key())
	assert.Equal(t, qty.FullKey(), clone.FullKey())
	assert.True(t, qty != clone, "distinct handles")
	assert.NotSame(t, qty.Tree(), clone.Tree())

	cp, _ := clone.Parent()
	op, _ := qty.Parent()
	assert.Same(t, clone.Tree(), cp.Tree(), "the clone's parent belongs to the clone")
	assert.True(t, op != cp)

	cp.SetNiceName("Some line")
	assert.Equal(t, "Some line", cp.NiceName())
	assert.Equal(t, "Any Line", op.NiceName(), "original untouched")
}

func TestClone_NewChildrenStayInTheirTree(t *testing.T) {
	env, s := sampleEnv()
	tree := NewTree(env, s.Order)
	walk(t, tree.Root(), OptAll, "Lines")

	clone := tree.Clone()
	before := tree.Len()
	walk(t, clone.Root(), OptAll, "Lines", "Any", "Quantity")

	assert.Equal(t, before, tree.Len(), "original arena unchanged")
	assert.Greater(t, clone.Len(), before)
}

func TestNiceName(t *testing.T) {
	env, s := sampleEnv()
	root := NewTree(env, s.Order).Root()

	tests := []struct {
		path []string
		want string
	}{
		{nil, "Order"},
		{[]string{"Total"}, "Total"},
		{[]string{"TotalWithTax"}, "Total with tax"},
		{[]string{"Lines", "Any"}, "Any Line"},
		{[]string{"Lines", "NoOne"}, "No one Line"},
		{[]string{"Lines", "AnyNo"}, "Any no Line"},
		{[]string{"Lines", "Any", "RowId"}, "Row id"},
		{[]string{"Lines", "Any", "RowOrder"}, "Row order"},
		{[]string{"Lines", "Count"}, "Count"},
		{[]string{"Owner", "(Person)"}, "As Person"},
		{[]string{"Shipping", "City"}, "City"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, walk(t, root, OptAll, tt.path...).NiceName())
	}
}

func TestIsAllowed_JoinsParentReasons(t *testing.T) {
	env, s := sampleEnv()
	env.Auth = schema.Rules{
		Properties: map[string]string{
			"Order.Lines":         "lines are restricted",
			"Order.Lines/Price":   "prices are secret",
			"Order.Customer.Name": "names are private",
		},
	}
	root := NewTree(env, s.Order).Root()

	assert.Equal(t, "", walk(t, root, OptAll, "Total").IsAllowed())
	assert.Equal(t, "lines are restricted", walk(t, root, OptAll, "Lines", "Any", "Quantity").IsAllowed())
	assert.Equal(t, "prices are secret and lines are restricted", walk(t, root, OptAll, "Lines", "Any", "Price").IsAllowed())
}

func TestIsAllowed_Extension(t *testing.T) {
	env, s := sampleEnv()
	env.Auth = schema.Rules{Types: map[string]string{"Order": "orders are locked"}}
	tree := NewTree(env, s.Order)

	self := expr.Param("self", s.Order)
	ext := tree.Extend(tree.Root(), &extension.Definition{
		On:         s.Order,
		Key:        "Secret",
		Allowed:    func() string { return "finance only" },
		Expression: expr.Fn(self, expr.Prop(self, "Total", ir.Decimal)),
	})

	assert.Equal(t, "finance only and orders are locked", ext.IsAllowed())
}

func TestExtend_InvalidDefinitionPanics(t *testing.T) {
	env, s := sampleEnv()
	tree := NewTree(env, s.Order)
	self := expr.Param("self", s.Order)

	assert.PanicsWithError(t,
		"extension Order.Owner: value type Party is entity-like and has no implementations; set Definition.Implementations = ir.ImplementedBy(...) when registering it",
		func() {
			tree.Extend(tree.Root(), &extension.Definition{
				On:         s.Order,
				Key:        "Owner",
				Expression: expr.Fn(self, expr.Prop(self, "Owner", s.Party)),
			})
		})
}

func TestParseOptions(t *testing.T) {
	opts, ok := ParseOptions([]string{"anyall", "casts"})
	require.True(t, ok)
	assert.True(t, opts.Has(OptAnyAll|OptCasts))
	assert.False(t, opts.Has(OptAggregates))

	_, ok = ParseOptions([]string{"bogus"})
	assert.False(t, ok)

	q, ok := ParseQuantifier("AnyNo")
	require.True(t, ok)
	assert.Equal(t, AnyNo, q)
}
