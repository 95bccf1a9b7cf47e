package testutil

import (
	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/schema"
)

// Sample is the shared test schema: customers with queryable orders,
// orders with an ordered MList of lines, a polymorphic owner and a few
// registered extensions.
//
//	Customer  Id, Name (full-text), Active, Region, Tags (mlist), Orders (query)
//	Order     Id, Number, Date, Total (C2 EUR), Customer (lite), Lines (ordered mlist),
//	          Notes (mlist), Owner (Party = Person | Company), Shipping (Address)
//	OrderLine Product, Quantity, Price (C2)
//	Basket    Items (mlist)  -- embedded root without an entity anchor
//
// Visibility: Customer "self.Active", Order `self.Customer.Region == "EU"`.
// Extensions: Order.TotalWithTax, Customer.OrderCount, Customer.BigOrders
// (projection).
type Sample struct {
	Catalog    *schema.Catalog
	Extensions *extension.Registry

	Customer  *ir.Type
	Order     *ir.Type
	OrderLine *ir.Type
	Address   *ir.Type
	Basket    *ir.Type
	Party     *ir.Type
	Person    *ir.Type
	Company   *ir.Type
	Money     *ir.Type
}

// SampleSchema builds a frozen Sample. It panics on error: the fixture is
// static and any failure is a bug in the fixture itself.
func SampleSchema() *Sample {
	s := &Sample{
		Catalog:    schema.NewCatalog(),
		Extensions: extension.NewRegistry(),
		Customer:   ir.Entity("Customer"),
		Order:      ir.Entity("Order"),
		OrderLine:  ir.Embedded("OrderLine"),
		Address:    ir.Embedded("Address"),
		Basket:     ir.Embedded("Basket"),
		Party:      ir.AbstractEntity("Party"),
		Person:     ir.Entity("Person"),
		Company:    ir.Entity("Company"),
		Money:      ir.Embedded("Money"),
	}
	c := s.Catalog

	c.MustDefine(s.Customer,
		&schema.Property{Name: "Id", Type: ir.Int},
		&schema.Property{Name: "Name", Type: ir.String, FullText: true},
		&schema.Property{Name: "Active", Type: ir.Bool},
		&schema.Property{Name: "Region", Type: ir.String},
		&schema.Property{Name: "Tags", Type: ir.CollectionOf(ir.String), MList: true},
		&schema.Property{Name: "Orders", Type: ir.QueryableOf(s.Order)},
	)
	c.MustDefine(s.Address,
		&schema.Property{Name: "City", Type: ir.String},
		&schema.Property{Name: "Country", Type: ir.String},
	)
	c.MustDefine(s.OrderLine,
		&schema.Property{Name: "Product", Type: ir.String},
		&schema.Property{Name: "Quantity", Type: ir.Int},
		&schema.Property{Name: "Price", Type: ir.Decimal, Format: "C2"},
	)
	c.MustDefine(s.Order,
		&schema.Property{Name: "Id", Type: ir.Int},
		&schema.Property{Name: "Number", Type: ir.String},
		&schema.Property{Name: "Date", Type: ir.DateTime},
		&schema.Property{Name: "Total", Type: ir.Decimal, Format: "C2", Unit: "EUR"},
		&schema.Property{Name: "Customer", Type: ir.LiteOf(s.Customer)},
		&schema.Property{Name: "Lines", Type: ir.CollectionOf(s.OrderLine), MList: true, PreserveOrder: true},
		&schema.Property{Name: "Notes", Type: ir.CollectionOf(ir.String), MList: true},
		&schema.Property{Name: "Owner", Type: s.Party, Implementations: ir.ImplementedBy(s.Person, s.Company)},
		&schema.Property{Name: "Shipping", Type: s.Address},
	)
	c.MustDefine(s.Basket,
		&schema.Property{Name: "Items", Type: ir.CollectionOf(s.OrderLine), MList: true},
	)
	c.MustDefine(s.Party, &schema.Property{Name: "Name", Type: ir.String})
	c.MustDefine(s.Person,
		&schema.Property{Name: "Id", Type: ir.Int},
		&schema.Property{Name: "Name", Type: ir.String},
		&schema.Property{Name: "Email", Type: ir.String},
	)
	c.MustDefine(s.Company,
		&schema.Property{Name: "Id", Type: ir.Int},
		&schema.Property{Name: "Name", Type: ir.String},
		&schema.Property{Name: "VatNumber", Type: ir.String},
	)
	c.MustDefine(s.Money,
		&schema.Property{Name: "Amount", Type: ir.Decimal},
		&schema.Property{Name: "Currency", Type: ir.String},
	)
	must(c.SetImplementations(s.Party, ir.ImplementedBy(s.Person, s.Company)))
	must(c.Restrict("Customer", "self.Active"))
	must(c.Restrict("Order", `self.Customer.Region == "EU"`))

	s.Extensions.MustRegister(&extension.Definition{
		On:         s.Order,
		Key:        "TotalWithTax",
		Format:     "C2",
		Unit:       "EUR",
		Expression: mustExpr(c, s.Order, "self.Total * 1.21"),
	})
	s.Extensions.MustRegister(&extension.Definition{
		On:         s.Customer,
		Key:        "OrderCount",
		Expression: mustExpr(c, s.Customer, "size(self.Orders)"),
	})

	self := expr.Param("self", s.Customer)
	o := expr.Param("o", s.Order)
	s.Extensions.MustRegister(&extension.Definition{
		On:              s.Customer,
		Key:             "BigOrders",
		Projection:      true,
		Implementations: ir.ImplementedBy(s.Order),
		Format:          "C0",
		Expression: expr.Fn(self, expr.Where(
			expr.Prop(self, "Orders", ir.QueryableOf(s.Order)),
			expr.Fn(o, expr.Bin(expr.OpGreater, expr.Prop(o, "Total", ir.Decimal), expr.Const(ir.MustDecimal("1000")))),
		)),
	})

	c.Freeze()
	s.Extensions.Freeze()
	return s
}

func mustExpr(p schema.Provider, t *ir.Type, src string) *expr.Lambda {
	l, err := schema.ParseExpr(p, t, src)
	if err != nil {
		panic(err)
	}
	return l
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
