package compile

import (
	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/token"
)

// Build returns the expression of tok in c. Results are memoized in the
// outermost scope that binds every quantifier of the chain of tok, so
// building the same token twice yields the same node, whatever the scope.
//
// Build panics with an *InvariantError when the chain of tok contains a
// quantifier that is not bound in c or an enclosing scope.
func Build(tok token.Token, c *Context) expr.Node {
	if n, ok := c.lookup(tok); ok {
		return n
	}
	n := build(tok, c)
	c.owner(tok).memo[tok] = n
	return n
}

func build(tok token.Token, c *Context) expr.Node {
	switch tok.Kind() {
	case token.KindRoot:
		// Only reachable from a context that does not own the root, such as
		// the isolated context of an MList row.
		panic(&InvariantError{Token: tok.String(), Message: "root is not bound in this context"})

	case token.KindProperty:
		return expr.Prop(buildParent(tok, c), tok.Key(), tok.Type())

	case token.KindQuantifier:
		panic(&InvariantError{
			Token:   tok.String(),
			Message: "quantifier is not bound in the current scope; use BuildAnyAll",
		})

	case token.KindMListRow:
		return buildRow(tok, c)

	case token.KindExtension:
		def, _ := tok.Extension()
		return expr.Apply(def.Expression, buildParent(tok, c))

	case token.KindCast:
		return expr.As(buildParent(tok, c), tok.Type())

	case token.KindCount:
		return expr.CallOf(expr.MethodCount, ir.Int, buildParent(tok, c))

	case token.KindSnippet:
		return expr.CallOf(expr.MethodSnippet, ir.String, buildParent(tok, c))

	default:
		panic("compile: unknown token kind " + tok.Kind().String())
	}
}

func buildParent(tok token.Token, c *Context) expr.Node {
	p, _ := tok.Parent()
	return Build(p, c)
}

// buildRow compiles Coll.Any.RowId as
//
//	ExpandMList(m => m.Coll, anchor, element).RowId
//
// where m is a fresh parameter of the anchor's type.
func buildRow(tok token.Token, c *Context) expr.Node {
	field, _ := tok.RowField()
	q, _ := tok.Parent()
	coll, _ := q.Parent()
	anchor, ok := coll.Anchor()
	if !ok {
		panic(&InvariantError{Token: tok.String(), Message: "row field without an entity anchor"})
	}

	m := c.Fresh(anchor.Type().CleanType())
	rel := c.isolated()
	rel.memo[anchor] = m
	path := Build(coll, rel)

	rowType := ir.MListElementOf(anchor.Type().CleanType(), coll.Key(), q.Type())
	expand := expr.CallOf(expr.MethodExpandMList, rowType,
		expr.Fn(m, path),
		Build(anchor, c),
		Build(q, c),
	)
	return expr.Prop(expand, field.String(), ir.Int)
}

// BuildAnyAll wraps body, an expression over elem, in the quantifier of q
// applied to collection:
//
//	Any    Any(coll, elem => body)
//	All    All(coll, elem => body)
//	NoOne  !Any(coll, elem => body)
//	AnyNo  Any(coll, elem => !body)
//
// Queryable collections use the Queryable.Any / Queryable.All variants.
func BuildAnyAll(q token.Token, collection expr.Node, elem *expr.Parameter, body expr.Node) expr.Node {
	quant, ok := q.Quantifier()
	if !ok {
		panic(&InvariantError{Token: q.String(), Message: "not a quantifier"})
	}
	pred := body
	if quant == token.AnyNo {
		pred = expr.Not(body)
	}
	call := expr.Quantify(quant == token.All, collection, expr.Fn(elem, pred))
	if quant == token.NoOne {
		return expr.Not(call)
	}
	return call
}

// Quantified binds q to a fresh element parameter in a new scope, builds
// the body there and wraps it with BuildAnyAll.
func Quantified(c *Context, q token.Token, body func(*Context) expr.Node) expr.Node {
	coll := buildParent(q, c)
	elem := c.Fresh(q.Type())
	scope := c.Scope()
	scope.Bind(q, elem)
	return BuildAnyAll(q, coll, elem, body(scope))
}

// Condition builds cond over the expression of tok. Every quantifier in
// the chain of tok that is not yet bound opens a nested scope, outermost
// first:
//
//	Customer.Orders.Any.Lines.All.Quantity > 5
//	  => Queryable.Any(e.Orders, e1 => All(e1.Lines, e2 => (e2.Quantity > 5)))
func Condition(c *Context, tok token.Token, cond func(expr.Node) expr.Node) expr.Node {
	if q, ok := Unbound(c, tok); ok {
		return Quantified(c, q, func(s *Context) expr.Node {
			return Condition(s, tok, cond)
		})
	}
	return cond(Build(tok, c))
}

// Unbound returns the first quantifier in the chain of tok that is not
// bound in c.
func Unbound(c *Context, tok token.Token) (token.Token, bool) {
	for _, step := range tok.Chain() {
		if step.Kind() == token.KindQuantifier && !c.Bound(step) {
			return step, true
		}
	}
	return token.Token{}, false
}
