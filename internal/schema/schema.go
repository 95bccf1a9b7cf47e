// Package schema provides the metadata that token enumeration and
// compilation depend on: the properties of every type, implementation sets
// of polymorphic references, format/unit metadata, visibility predicates
// and allow checks.
//
// A Catalog is built once (by hand, from CUE files or from a SQLite
// catalog), frozen, and then shared read-only by any number of concurrent
// compilations.
package schema

import (
	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

// Property describes one property of an entity or embedded type.
type Property struct {
	Name string
	Type *ir.Type

	// Implementations is the set of concrete types an entity-like property
	// may reference. Empty for scalars.
	Implementations ir.Implementations

	Format string
	Unit   string

	// MList marks a collection stored as its own table of rows owned by the
	// declaring entity. Rows are addressable by RowId.
	MList bool

	// PreserveOrder marks an MList whose rows keep an explicit RowOrder.
	PreserveOrder bool

	// FullText marks a string property backed by a full-text index.
	FullText bool
}

// Provider supplies schema metadata. Implementations must be safe for
// concurrent reads.
type Provider interface {
	// Type looks up a declared type by name.
	Type(name string) (*ir.Type, bool)

	// Properties returns the properties of t in declaration order. Lites
	// are unwrapped. Unknown types have no properties.
	Properties(t *ir.Type) []*Property

	// PropertyInfo resolves path on t. A "/" step enters the element type
	// of a collection.
	PropertyInfo(t *ir.Type, path ...string) (*Property, bool)

	// Implementations returns the concrete types an entity type stands for.
	Implementations(t *ir.Type) (ir.Implementations, bool)

	// VisibilityPredicate returns the row-level predicate for entity type t.
	VisibilityPredicate(t *ir.Type) (*expr.Lambda, bool)

	// FormatUnit returns display metadata for the property at route.
	FormatUnit(route ir.PropertyRoute) (format, unit string)
}

// Authorizer answers allow checks. An empty string means allowed; any
// other value is the reason for denial.
type Authorizer interface {
	PropertyAllowed(route ir.PropertyRoute) string
	TypeAllowed(t *ir.Type) string
}
