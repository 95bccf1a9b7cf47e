package expr

import (
	"fmt"
	"slices"
)

// Map returns n with f applied to each direct child. When f returns every
// child unchanged, n itself is returned, so callers can detect no-op
// rewrites with a pointer comparison.
//
// Lambda parameters are not children; only the body is mapped.
func Map(n Node, f func(Node) Node) Node {
	switch x := n.(type) {
	case *Parameter, *Constant, *Extent, *ColumnRef:
		return n

	case *Member:
		if e := f(x.Expr); e != x.Expr {
			return &Member{Expr: e, Name: x.Name, Typ: x.Typ}
		}
		return n

	case *Convert:
		if e := f(x.Expr); e != x.Expr {
			return &Convert{Expr: e, Typ: x.Typ}
		}
		return n

	case *Unary:
		if e := f(x.Expr); e != x.Expr {
			return &Unary{Op: x.Op, Expr: e}
		}
		return n

	case *Binary:
		l, r := f(x.Left), f(x.Right)
		if l != x.Left || r != x.Right {
			return &Binary{Op: x.Op, Left: l, Right: r}
		}
		return n

	case *Call:
		if args, changed := mapAll(x.Args, f); changed {
			return &Call{Method: x.Method, Args: args, Typ: x.Typ}
		}
		return n

	case *Lambda:
		if b := f(x.Body); b != x.Body {
			return &Lambda{Params: x.Params, Body: b}
		}
		return n

	case *New:
		var fields []Field
		for i, fld := range x.Fields {
			e := f(fld.Expr)
			if e != fld.Expr && fields == nil {
				fields = slices.Clone(x.Fields)
			}
			if fields != nil {
				fields[i].Expr = e
			}
		}
		if fields != nil {
			return &New{Fields: fields}
		}
		return n

	case *Source:
		if x.Query == nil {
			return n
		}
		if q := f(x.Query); q != x.Query {
			return &Source{Elem: x.Elem, Query: q}
		}
		return n

	case *Scoped:
		if in := f(x.Inner); in != x.Inner {
			return &Scoped{Directive: x.Directive, Inner: in}
		}
		return n

	case *Deferred:
		if e := f(x.Expr); e != x.Expr {
			return &Deferred{Expr: e}
		}
		return n

	case *Select:
		var cols []ColumnDecl
		for i, c := range x.Columns {
			e := f(c.Expr)
			if e != c.Expr && cols == nil {
				cols = slices.Clone(x.Columns)
			}
			if cols != nil {
				cols[i].Expr = e
			}
		}
		from := mapOpt(x.From, f)
		where := mapOpt(x.Where, f)
		if cols == nil && from == x.From && where == x.Where {
			return n
		}
		if cols == nil {
			cols = x.Columns
		}
		return &Select{Alias: x.Alias, Columns: cols, From: from, Where: where}

	case *Projection:
		sel := f(x.Select)
		s, ok := sel.(*Select)
		if !ok {
			panic(fmt.Sprintf("expr.Map: projection select rewritten to %T", sel))
		}
		p := f(x.Projector)
		if s != x.Select || p != x.Projector {
			return &Projection{Select: s, Projector: p}
		}
		return n

	default:
		panic(fmt.Sprintf("expr.Map: unknown node type %T", n))
	}
}

func mapOpt(n Node, f func(Node) Node) Node {
	if n == nil {
		return nil
	}
	return f(n)
}

func mapAll(ns []Node, f func(Node) Node) ([]Node, bool) {
	var out []Node
	for i, a := range ns {
		e := f(a)
		if e != a && out == nil {
			out = slices.Clone(ns)
		}
		if out != nil {
			out[i] = e
		}
	}
	if out == nil {
		return ns, false
	}
	return out, true
}

// Children returns the direct children of n in evaluation order.
func Children(n Node) []Node {
	var out []Node
	Map(n, func(c Node) Node {
		out = append(out, c)
		return c
	})
	return out
}

// Walk visits n and its descendants in pre-order. Children of a node are
// skipped when visit returns false.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, visit)
	}
}

// Contains reports whether any node under n satisfies pred.
func Contains(n Node, pred func(Node) bool) bool {
	found := false
	Walk(n, func(c Node) bool {
		if found {
			return false
		}
		if pred(c) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Replace substitutes every free occurrence of p in n with with. Lambdas
// that rebind p shadow it.
func Replace(n Node, p *Parameter, with Node) Node {
	var rec func(Node) Node
	rec = func(c Node) Node {
		switch x := c.(type) {
		case *Parameter:
			if x == p {
				return with
			}
			return c
		case *Lambda:
			if slices.Contains(x.Params, p) {
				return c
			}
		}
		return Map(c, rec)
	}
	return rec(n)
}

// Apply substitutes the arguments for the parameters of l and returns the
// resulting body.
func Apply(l *Lambda, args ...Node) Node {
	if len(args) != len(l.Params) {
		panic(fmt.Sprintf("expr.Apply: %d arguments for %d parameters", len(args), len(l.Params)))
	}
	body := l.Body
	for i, p := range l.Params {
		body = Replace(body, p, args[i])
	}
	return body
}
