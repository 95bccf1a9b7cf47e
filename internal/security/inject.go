// Package security injects row-level visibility filters into expression
// trees.
//
// Every raw query source over an entity with a visibility predicate P is
// replaced by a derived source over the filtered extent:
//
//	Source(Order)  =>  Source(Order: Where(Extent(Order), P))
//
// Sources over MList rows are filtered with the predicate of the owning
// entity, rebound to the row's parent. Scoped(DisableFilter, ...) switches
// injection off below it and Scoped(EnableFilter, ...) back on. Directive
// nodes are kept in the output, so Inject is idempotent: extents are never
// treated as raw sources and filtered sources are no longer raw.
package security

import (
	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/schema"
)

// RowParam is the parameter name of rebound MList row predicates.
const RowParam = "r"

// Inject returns n with visibility filters applied to every raw source.
// Sub-trees without raw sources are returned unchanged (same pointer).
func Inject(n expr.Node, provider schema.Provider) expr.Node {
	in := injector{provider: provider}
	return in.visit(n, true)
}

type injector struct {
	provider schema.Provider
}

func (in injector) visit(n expr.Node, enabled bool) expr.Node {
	switch x := n.(type) {
	case *expr.Source:
		if !x.IsRaw() {
			q := in.visit(x.Query, enabled)
			if q == x.Query {
				return x
			}
			return &expr.Source{Elem: x.Elem, Query: q}
		}
		if !enabled {
			return x
		}
		pred, ok := in.predicate(x.Elem)
		if !ok {
			return x
		}
		return &expr.Source{Elem: x.Elem, Query: expr.Where(&expr.Extent{Elem: x.Elem}, pred)}

	case *expr.Scoped:
		inner := in.visit(x.Inner, x.Directive == expr.EnableFilter)
		if inner == x.Inner {
			return x
		}
		return &expr.Scoped{Directive: x.Directive, Inner: inner}

	default:
		return expr.Map(n, func(c expr.Node) expr.Node {
			return in.visit(c, enabled)
		})
	}
}

// predicate returns the visibility predicate for rows of elem. For MList
// rows it is the owner's predicate applied to the row's Parent:
//
//	r => P[p := r.Parent]
func (in injector) predicate(elem *ir.Type) (*expr.Lambda, bool) {
	if elem.Kind != ir.KindMListElement {
		return in.provider.VisibilityPredicate(elem)
	}
	owner, ok := in.provider.VisibilityPredicate(elem.Parent)
	if !ok {
		return nil, false
	}
	r := expr.Param(RowParam, elem)
	body := expr.Replace(owner.Body, owner.Params[0], expr.Prop(r, "Parent", elem.Parent))
	return expr.Fn(r, body), true
}

// Predicate returns the predicate Inject would apply to a raw source over
// elem.
func Predicate(provider schema.Provider, elem *ir.Type) (*expr.Lambda, bool) {
	return injector{provider: provider}.predicate(elem)
}

// Filtered reports whether n contains a filtered source, that is a source
// whose query starts from an extent.
func Filtered(n expr.Node) bool {
	return expr.Contains(n, func(c expr.Node) bool {
		_, ok := c.(*expr.Extent)
		return ok
	})
}
