package expr

import (
	"github.com/roach88/qtoken/internal/ir"
)

// Equal reports whether a and b are structurally equal.
//
// Free parameters compare by identity. Lambda parameters compare by
// position, so λx.x.Total equals λy.y.Total.
func Equal(a, b Node) bool {
	return equal(a, b, nil)
}

type binding struct {
	a, b *Parameter
	next *binding
}

func (e *binding) lookup(p *Parameter) (*Parameter, bool) {
	for ; e != nil; e = e.next {
		if e.a == p {
			return e.b, true
		}
	}
	return nil, false
}

func equal(a, b Node, env *binding) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Parameter:
		y, ok := b.(*Parameter)
		if !ok {
			return false
		}
		if bound, ok := env.lookup(x); ok {
			return bound == y
		}
		return x == y

	case *Constant:
		y, ok := b.(*Constant)
		return ok && ir.Equal(x.Type(), y.Type()) && ir.Canonical(x.Value) == ir.Canonical(y.Value)

	case *Member:
		y, ok := b.(*Member)
		return ok && x.Name == y.Name && equal(x.Expr, y.Expr, env)

	case *Convert:
		y, ok := b.(*Convert)
		return ok && ir.Equal(x.Typ, y.Typ) && equal(x.Expr, y.Expr, env)

	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && equal(x.Expr, y.Expr, env)

	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && equal(x.Left, y.Left, env) && equal(x.Right, y.Right, env)

	case *Call:
		y, ok := b.(*Call)
		return ok && x.Method == y.Method && equalAll(x.Args, y.Args, env)

	case *Lambda:
		y, ok := b.(*Lambda)
		if !ok || len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if !ir.Equal(x.Params[i].Typ, y.Params[i].Typ) {
				return false
			}
			env = &binding{a: x.Params[i], b: y.Params[i], next: env}
		}
		return equal(x.Body, y.Body, env)

	case *New:
		y, ok := b.(*New)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !equal(x.Fields[i].Expr, y.Fields[i].Expr, env) {
				return false
			}
		}
		return true

	case *Source:
		y, ok := b.(*Source)
		return ok && ir.Equal(x.Elem, y.Elem) && equal(x.Query, y.Query, env)

	case *Extent:
		y, ok := b.(*Extent)
		return ok && ir.Equal(x.Elem, y.Elem)

	case *Scoped:
		y, ok := b.(*Scoped)
		return ok && x.Directive == y.Directive && equal(x.Inner, y.Inner, env)

	case *Deferred:
		y, ok := b.(*Deferred)
		return ok && equal(x.Expr, y.Expr, env)

	case *Select:
		y, ok := b.(*Select)
		if !ok || x.Alias != y.Alias || len(x.Columns) != len(y.Columns) {
			return false
		}
		for i := range x.Columns {
			if x.Columns[i].Name != y.Columns[i].Name || !equal(x.Columns[i].Expr, y.Columns[i].Expr, env) {
				return false
			}
		}
		return equal(x.From, y.From, env) && equal(x.Where, y.Where, env)

	case *Projection:
		y, ok := b.(*Projection)
		return ok && equal(x.Select, y.Select, env) && equal(x.Projector, y.Projector, env)

	case *ColumnRef:
		y, ok := b.(*ColumnRef)
		return ok && x.Alias == y.Alias && x.Name == y.Name
	}
	return false
}

func equalAll(a, b []Node, env *binding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equal(a[i], b[i], env) {
			return false
		}
	}
	return true
}
