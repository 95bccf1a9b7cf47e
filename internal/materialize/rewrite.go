// Package materialize turns deferred values inside projections into
// columns of the projection's select.
//
// Each Projection opens a scope made of its select and a ColumnGenerator.
// Every Deferred marker inside the projector is replaced by a reference to
// a column of that select; equal markers share one column. Nested
// projections open their own scope and allocate columns independently.
//
//	Projection(SELECT[t0](Id = o.Id FROM Extent(Order)),
//	           new {A = Deferred(o.Total * 1.21m), B = Deferred(o.Total * 1.21m)})
//	=> Projection(SELECT[t0](Id = o.Id, Total = (o.Total * 1.21m) FROM Extent(Order)),
//	              new {A = t0.Total, B = t0.Total})
//
// Deferred markers outside any projector are left in place, and so are
// markers over a parameter of a lambda inside the projector: the select
// cannot see that parameter.
package materialize

import (
	"github.com/roach88/qtoken/internal/expr"
)

// scope is the projection being rewritten.
type scope struct {
	gen *ColumnGenerator

	// bound holds the parameters of lambdas entered below the projector.
	bound map[*expr.Parameter]bool
}

// enter returns the scope of the body of l.
func (sc *scope) enter(l *expr.Lambda) *scope {
	bound := make(map[*expr.Parameter]bool, len(sc.bound)+len(l.Params))
	for p := range sc.bound {
		bound[p] = true
	}
	for _, p := range l.Params {
		bound[p] = true
	}
	return &scope{gen: sc.gen, bound: bound}
}

// local reports whether n uses a parameter bound below the projector.
func (sc *scope) local(n expr.Node) bool {
	found := false
	expr.Walk(n, func(c expr.Node) bool {
		if p, ok := c.(*expr.Parameter); ok && sc.bound[p] {
			found = true
		}
		return !found
	})
	return found
}

// Rewrite materializes the deferred values of every projection in n.
// Projections without deferred values are returned unchanged (same
// pointer).
func Rewrite(n expr.Node) expr.Node {
	return rewrite(n, nil)
}

func rewrite(n expr.Node, sc *scope) expr.Node {
	switch x := n.(type) {
	case *expr.Projection:
		// The select belongs to the enclosing query, not to this scope.
		sel := rewrite(x.Select, nil).(*expr.Select)
		inner := &scope{gen: NewColumnGenerator(sel)}
		proj := rewrite(x.Projector, inner)
		if sel == x.Select && proj == x.Projector && !inner.gen.Changed() {
			return x
		}
		return &expr.Projection{Select: inner.gen.Apply(sel), Projector: proj}

	case *expr.Lambda:
		if sc == nil {
			break
		}
		inner := sc.enter(x)
		return expr.Map(n, func(c expr.Node) expr.Node {
			return rewrite(c, inner)
		})

	case *expr.Deferred:
		e := rewrite(x.Expr, sc)
		if sc == nil || sc.local(e) {
			if e == x.Expr {
				return x
			}
			return &expr.Deferred{Expr: e}
		}
		return sc.gen.Column(e)
	}
	return expr.Map(n, func(c expr.Node) expr.Node {
		return rewrite(c, sc)
	})
}
