package query

import (
	"fmt"

	"github.com/roach88/qtoken/internal/compile"
	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/token"
)

// filter compiles f in scope s. Empty groups compile to nil.
func (c *compiler) filter(s *compile.Context, f Filter) (expr.Node, error) {
	switch x := f.(type) {
	case Condition:
		return c.condition(s, x)
	case *Condition:
		return c.condition(s, *x)
	case Group:
		return c.group(s, x)
	case *Group:
		return c.group(s, *x)
	default:
		panic(fmt.Sprintf("query: unknown filter type %T", f))
	}
}

func (c *compiler) condition(s *compile.Context, cond Condition) (expr.Node, error) {
	tok, err := c.resolve(cond.Token)
	if err != nil {
		return nil, err
	}
	apply, err := operation(tok, cond)
	if err != nil {
		return nil, err
	}
	return compile.Condition(s, tok, apply), nil
}

func (c *compiler) group(s *compile.Context, g Group) (expr.Node, error) {
	if g.Prefix == "" {
		return c.members(s, g)
	}
	prefix, err := c.resolve(g.Prefix)
	if err != nil {
		return nil, err
	}
	if prefix.Kind() != token.KindQuantifier {
		return nil, &Error{Code: ErrCodeInvalidGroup, Token: g.Prefix, Message: "group prefix must be a collection quantifier"}
	}
	if s.Bound(prefix) {
		return c.members(s, g)
	}

	var inner error
	n := c.under(s, prefix, func(scope *compile.Context) expr.Node {
		body, err := c.members(scope, g)
		if err != nil {
			inner = err
			return expr.Const(ir.BoolValue(true))
		}
		if body == nil {
			return expr.Const(ir.BoolValue(true))
		}
		return body
	})
	if inner != nil {
		return nil, inner
	}
	return n, nil
}

// under quantifies body over prefix, first opening every unbound
// quantifier above it.
func (c *compiler) under(s *compile.Context, prefix token.Token, body func(*compile.Context) expr.Node) expr.Node {
	if q, ok := compile.Unbound(s, prefix); ok && q != prefix {
		return compile.Quantified(s, q, func(inner *compile.Context) expr.Node {
			return c.under(inner, prefix, body)
		})
	}
	return compile.Quantified(s, prefix, body)
}

func (c *compiler) members(s *compile.Context, g Group) (expr.Node, error) {
	conds := make([]expr.Node, 0, len(g.Filters))
	for _, f := range g.Filters {
		n, err := c.filter(s, f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, n)
	}
	if g.Or {
		return expr.Or(conds...), nil
	}
	return expr.And(conds...), nil
}

// operation returns the comparison of cond applied to a token expression.
// Values are converted to the token type up front so that conversion
// errors surface before any scope is opened.
func operation(tok token.Token, cond Condition) (func(expr.Node) expr.Node, error) {
	typ := tok.Type()
	mismatch := func(msg string, err error) error {
		return &Error{Code: ErrCodeTypeMismatch, Token: cond.Token, Message: msg, Err: err}
	}

	if op, ok := comparisons[cond.Operation]; ok {
		v, err := ir.Convert(cond.Value, typ)
		if err != nil {
			return nil, mismatch(fmt.Sprintf("value for %s %s", typ, cond.Operation), err)
		}
		return func(n expr.Node) expr.Node {
			return expr.Bin(op, n, expr.Const(v))
		}, nil
	}

	if m, ok := textCalls[cond.Operation]; ok {
		if !ir.Equal(typ.CleanType(), ir.String) {
			return nil, mismatch(fmt.Sprintf("%s requires a string token, got %s", cond.Operation, typ), nil)
		}
		v, err := ir.Convert(cond.Value, ir.String)
		if err != nil {
			return nil, mismatch(fmt.Sprintf("value for %s", cond.Operation), err)
		}
		negate := cond.Operation == NotContains
		return func(n expr.Node) expr.Node {
			call := expr.CallOf(m, ir.Bool, n, expr.Const(v))
			if negate {
				return expr.Not(call)
			}
			return call
		}, nil
	}

	if cond.Operation == IsIn || cond.Operation == IsNotIn {
		list, ok := cond.Value.([]any)
		if !ok {
			list = []any{cond.Value}
		}
		args := make([]expr.Node, 0, len(list))
		for _, item := range list {
			v, err := ir.Convert(item, typ)
			if err != nil {
				return nil, mismatch(fmt.Sprintf("value for %s %s", typ, cond.Operation), err)
			}
			args = append(args, expr.Const(v))
		}
		negate := cond.Operation == IsNotIn
		return func(n expr.Node) expr.Node {
			call := expr.CallOf(expr.MethodIn, ir.Bool, append([]expr.Node{n}, args...)...)
			if negate {
				return expr.Not(call)
			}
			return call
		}, nil
	}

	return nil, &Error{Code: ErrCodeInvalidOperation, Token: cond.Token, Message: fmt.Sprintf("unknown operation %q", cond.Operation)}
}
