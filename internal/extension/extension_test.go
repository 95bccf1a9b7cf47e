package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

var (
	order    = ir.Entity("Order")
	customer = ir.Entity("Customer")
	party    = ir.AbstractEntity("Party")
	person   = ir.Entity("Person")
	money    = ir.Embedded("Money")
)

func over(name string, result *ir.Type) *expr.Lambda {
	self := expr.Param("self", order)
	return expr.Fn(self, expr.Prop(self, name, result))
}

func TestRegister_NonEntityValueSucceeds(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&Definition{On: order, Key: "Gross", Type: money, Expression: over("Gross", money)})
	require.NoError(t, err)

	d, ok := r.Get(order, "Gross")
	require.True(t, ok)
	assert.True(t, d.Implementations.IsEmpty())
	assert.Equal(t, "Gross", d.DisplayName())
}

func TestRegister_ConcreteEntityDerivesImplementations(t *testing.T) {
	r := NewRegistry()

	r.MustRegister(&Definition{On: order, Key: "Buyer", Expression: over("Buyer", ir.LiteOf(customer))})

	d, ok := r.Get(order, "Buyer")
	require.True(t, ok)
	assert.Equal(t, "Lite<Customer>", d.Type.String(), "type inferred from the expression")
	assert.Equal(t, "ImplementedBy(Customer)", d.Implementations.String())
}

func TestRegister_AbstractEntityFailsWithFix(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&Definition{On: order, Key: "Owner", Expression: over("Owner", party)})

	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "Definition.Implementations = ir.ImplementedBy(...)")
	assert.Contains(t, err.Error(), "Order.Owner")
	assert.Equal(t, 0, r.Len())
}

func TestRegister_ProjectionOverEntityFailsWithFix(t *testing.T) {
	r := NewRegistry()
	def := &Definition{
		On:         order,
		Key:        "Contacts",
		Projection: true,
		Expression: over("Contacts", ir.CollectionOf(customer)),
	}

	err := r.Register(def)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ImplementationsFix, ce.Fix)

	def.Implementations = ir.ImplementedBy(customer)
	require.NoError(t, r.Register(def))
}

func TestRegister_ExplicitImplementationsForAbstract(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&Definition{
		On:              order,
		Key:             "Owner",
		Implementations: ir.ImplementedBy(person),
		Expression:      over("Owner", party),
	})
	require.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
		msg  string
	}{
		{"missing key", &Definition{On: order, Expression: over("X", money)}, "key are required"},
		{"reserved key", &Definition{On: order, Key: "a.b", Expression: over("X", money)}, "reserved characters"},
		{"missing expression", &Definition{On: order, Key: "X"}, "lambda of one parameter"},
		{"wrong parameter", &Definition{On: customer, Key: "X", Expression: over("X", money)}, "parameter has type Order"},
		{"projection needs collection", &Definition{On: order, Key: "X", Projection: true, Expression: over("X", money)}, "needs a collection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRegistry_DuplicateAndFreeze(t *testing.T) {
	r := NewRegistry()
	def := &Definition{On: order, Key: "Gross", Expression: over("Gross", money)}

	require.NoError(t, r.Register(def))
	assert.True(t, IsConfigError(r.Register(def)))

	r.Freeze()
	assert.ErrorIs(t, r.Register(&Definition{On: order, Key: "Net", Expression: over("Net", money)}), ErrFrozen)
}

func TestRegistry_LookupSortedByKey(t *testing.T) {
	r := NewRegistry()
	for _, key := range []string{"Zeta", "Alpha", "Mid"} {
		r.MustRegister(&Definition{On: order, Key: key, Expression: over(key, money)})
	}

	var keys []string
	for _, d := range r.Lookup(ir.LiteOf(order)) {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, keys)
	assert.Empty(t, r.Lookup(customer))

	var nilRegistry *Registry
	assert.Empty(t, nilRegistry.Lookup(order))
}

func TestDefinition_AllowedAndNames(t *testing.T) {
	d := &Definition{On: order, Key: "TotalWithTax", Allowed: func() string { return "finance only" }}

	assert.Equal(t, "finance only", d.IsAllowed())
	assert.Equal(t, "Total with tax", d.DisplayName())
	assert.Equal(t, "Order.TotalWithTax", d.String())

	d.NiceName = "Gross total"
	assert.Equal(t, "Gross total", d.DisplayName())
	assert.Equal(t, "", (&Definition{}).IsAllowed())
}

func TestMustRegister_Panics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() {
		r.MustRegister(&Definition{On: order, Key: "Owner", Expression: over("Owner", party)})
	})
}
