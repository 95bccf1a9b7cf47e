package schema

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

var (
	customer  = ir.Entity("Customer")
	order     = ir.Entity("Order")
	orderLine = ir.Embedded("OrderLine")
	party     = ir.AbstractEntity("Party")
	person    = ir.Entity("Person")
	company   = ir.Entity("Company")
)

func sampleCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	require.NoError(t, c.Define(customer,
		&Property{Name: "Id", Type: ir.Int},
		&Property{Name: "Name", Type: ir.String, FullText: true},
		&Property{Name: "Active", Type: ir.Bool},
		&Property{Name: "Tags", Type: ir.CollectionOf(ir.String), MList: true},
	))
	require.NoError(t, c.Define(orderLine,
		&Property{Name: "Product", Type: ir.String},
		&Property{Name: "Quantity", Type: ir.Int},
		&Property{Name: "Price", Type: ir.Decimal, Format: "C2", Unit: "EUR"},
	))
	require.NoError(t, c.Define(order,
		&Property{Name: "Id", Type: ir.Int},
		&Property{Name: "Total", Type: ir.Decimal, Format: "N2"},
		&Property{Name: "Customer", Type: ir.LiteOf(customer)},
		&Property{Name: "Lines", Type: ir.CollectionOf(orderLine), MList: true, PreserveOrder: true},
		&Property{Name: "Owner", Type: party},
	))
	require.NoError(t, c.Define(party))
	require.NoError(t, c.SetImplementations(party, ir.ImplementedBy(person, company)))
	return c
}

func TestCatalog_Define_Validation(t *testing.T) {
	c := NewCatalog()

	err := c.Define(ir.String)
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)

	err = c.Define(customer, &Property{Name: "A", Type: ir.Int}, &Property{Name: "A", Type: ir.Int})
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, defErr.Message, "duplicate property")

	err = c.Define(customer, &Property{Name: "A", Type: ir.Int, MList: true})
	require.ErrorAs(t, err, &defErr)

	err = c.Define(customer, &Property{Name: "A", Type: ir.Int, FullText: true})
	require.ErrorAs(t, err, &defErr)

	require.NoError(t, c.Define(customer))
	err = c.Define(customer)
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "already defined", defErr.Message)
}

func TestCatalog_Frozen(t *testing.T) {
	c := sampleCatalog(t)
	c.Freeze()

	assert.True(t, c.Frozen())
	assert.ErrorIs(t, c.Define(person), ErrFrozen)
	assert.ErrorIs(t, c.SetImplementations(party, ir.ImplementedBy(person)), ErrFrozen)
	assert.ErrorIs(t, c.Restrict("Order", "true"), ErrFrozen)
	assert.ErrorIs(t, c.SetFormat(ir.NewRoute(order, "Total"), "N0", ""), ErrFrozen)
}

func TestCatalog_PropertyInfo(t *testing.T) {
	c := sampleCatalog(t)

	p, ok := c.PropertyInfo(order, "Lines", "/", "Quantity")
	require.True(t, ok)
	assert.Equal(t, "Quantity", p.Name)

	p, ok = c.PropertyInfo(order, "Customer", "Name")
	require.True(t, ok, "lites are unwrapped")
	assert.True(t, p.FullText)

	_, ok = c.PropertyInfo(order, "Missing")
	assert.False(t, ok)

	_, ok = c.PropertyInfo(order, "Total", "/")
	assert.False(t, ok)
}

func TestCatalog_DefaultImplementations(t *testing.T) {
	c := sampleCatalog(t)

	p, _ := c.PropertyInfo(order, "Customer")
	assert.Equal(t, "ImplementedBy(Customer)", p.Implementations.String())

	p, _ = c.PropertyInfo(order, "Owner")
	assert.True(t, p.Implementations.IsEmpty(), "abstract references have no default")

	impls, ok := c.Implementations(party)
	require.True(t, ok)
	assert.Equal(t, "ImplementedBy(Company, Person)", impls.String())

	impls, ok = c.Implementations(ir.LiteOf(customer))
	require.True(t, ok)
	assert.Equal(t, "ImplementedBy(Customer)", impls.String())

	_, ok = c.Implementations(ir.String)
	assert.False(t, ok)
}

func TestCatalog_FormatUnit(t *testing.T) {
	c := sampleCatalog(t)

	f, u := c.FormatUnit(ir.NewRoute(order, "Lines", "/", "Price"))
	assert.Equal(t, "C2", f)
	assert.Equal(t, "EUR", u)

	require.NoError(t, c.SetFormat(ir.NewRoute(order, "Total"), "C0", "USD"))
	f, u = c.FormatUnit(ir.NewRoute(order, "Total"))
	assert.Equal(t, "C0", f)
	assert.Equal(t, "USD", u)
}

func TestCatalog_TypeAndDescribe(t *testing.T) {
	c := sampleCatalog(t)

	got, ok := c.Type("Order")
	require.True(t, ok)
	assert.Same(t, order, got)

	got, ok = c.Type("decimal")
	require.True(t, ok)
	assert.Same(t, ir.Decimal, got)

	assert.Len(t, c.Types(), 4)
	assert.Contains(t, c.Describe(), "  Lines []OrderLine [mlist,ordered]\n")
	assert.Contains(t, c.Describe(), "Party (abstract entity)\n  = ImplementedBy(Company, Person)\n")
}

func TestParsePredicate(t *testing.T) {
	c := sampleCatalog(t)

	tests := []struct {
		name string
		typ  *ir.Type
		src  string
		want string
	}{
		{"bool member", customer, "self.Active", "self => self.Active"},
		{"comparison widens int", order, "self.Total > 100", "self => (self.Total > 100m)"},
		{"and", customer, `self.Active && self.Name != "x"`, `self => (self.Active && (self.Name != "x"))`},
		{"exists", order, "self.Lines.exists(l, l.Quantity > 5)", "self => Any(self.Lines, l => (l.Quantity > 5))"},
		{"all", order, "self.Lines.all(l, l.Quantity > 0)", "self => All(self.Lines, l => (l.Quantity > 0))"},
		{"lite navigation", order, "self.Customer.Active", "self => self.Customer.Active"},
		{"negation", customer, "!self.Active", "self => !self.Active"},
		{"string call", customer, `self.Name.startsWith("A")`, `self => StartsWith(self.Name, "A")`},
		{"in list", order, "self.Id in [1, 2]", "self => In(self.Id, 1, 2)"},
		{"size", order, "size(self.Lines) > 1", "self => (Count(self.Lines) > 1)"},
		{"null", order, "self.Customer == null", "self => (self.Customer == null)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ParsePredicate(c, tt.typ, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String(l))
		})
	}
}

func TestParsePredicate_Errors(t *testing.T) {
	c := sampleCatalog(t)

	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unknown property", "self.Missing", `has no property "Missing"`},
		{"unknown identifier", "other.Active", `unknown identifier "other"`},
		{"not boolean", "self.Total", "want bool"},
		{"syntax", "self.Total >", "Syntax error"},
		{"quantifier over scalar", "self.Total.exists(x, x > 1)", "non-collection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePredicate(c, order, tt.src)
			var exprErr *ExpressionError
			require.ErrorAs(t, err, &exprErr)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMemberType_MListElement(t *testing.T) {
	c := sampleCatalog(t)
	row := ir.MListElementOf(order, "Lines", orderLine)

	got, ok := MemberType(c, row, "Parent")
	require.True(t, ok)
	assert.Same(t, order, got)

	got, ok = MemberType(c, row, "RowOrder")
	require.True(t, ok)
	assert.Same(t, ir.Int, got)

	got, ok = MemberType(c, row, "Quantity")
	require.True(t, ok)
	assert.Same(t, ir.Int, got)
}

func TestVisibility_LazyCompileOnce(t *testing.T) {
	c := sampleCatalog(t)
	var calls atomic.Int32
	require.NoError(t, c.RestrictFunc("Order", func(p Provider, typ *ir.Type) (*expr.Lambda, error) {
		calls.Add(1)
		return ParsePredicate(p, typ, "self.Total > 0")
	}))
	c.Freeze()

	var wg sync.WaitGroup
	results := make([]*expr.Lambda, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.VisibilityPredicate(order)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestVisibility_NoRule(t *testing.T) {
	c := sampleCatalog(t)

	_, ok := c.VisibilityPredicate(order)
	assert.False(t, ok)

	_, ok = c.VisibilityPredicate(orderLine)
	assert.False(t, ok, "embedded types carry no rules")
}

func TestVisibility_BrokenRuleDeniesAll(t *testing.T) {
	c := sampleCatalog(t)
	require.NoError(t, c.Restrict("Customer", "self.Nope"))

	pred, ok := c.VisibilityPredicate(customer)
	require.True(t, ok)
	assert.Equal(t, "self => false", expr.String(pred))

	err := c.Visibility().Validate(c)
	var exprErr *ExpressionError
	assert.ErrorAs(t, err, &exprErr)
}

func TestVisibility_DuplicateAndUnknown(t *testing.T) {
	c := sampleCatalog(t)
	require.NoError(t, c.Restrict("Customer", "self.Active"))

	var defErr *DefinitionError
	assert.ErrorAs(t, c.Restrict("Customer", "self.Active"), &defErr)

	require.NoError(t, c.Restrict("Ghost", "true"))
	err := c.Visibility().Validate(c)
	require.Error(t, err)
	assert.True(t, errors.As(err, &defErr))
	assert.Equal(t, "Ghost", defErr.Type)
}

func TestRules(t *testing.T) {
	r := Rules{
		Properties: map[string]string{"Order.Lines": "no line access"},
		Types:      map[string]string{"Customer": "customers are private"},
	}

	assert.Equal(t, "no line access", r.PropertyAllowed(ir.NewRoute(order, "Lines")))
	assert.Equal(t, "", r.PropertyAllowed(ir.NewRoute(order, "Lines", "/", "Price")))
	assert.Equal(t, "", r.PropertyAllowed(ir.NewRoute(order, "Total")))
	assert.Equal(t, "customers are private", r.TypeAllowed(ir.LiteOf(customer)))
	assert.Equal(t, "", r.TypeAllowed(order))

	var a Authorizer = AllowAll{}
	assert.Equal(t, "", a.PropertyAllowed(ir.NewRoute(order, "Total")))
}
