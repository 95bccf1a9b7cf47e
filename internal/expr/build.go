package expr

import "github.com/roach88/qtoken/internal/ir"

// Param creates a parameter.
func Param(name string, t *ir.Type) *Parameter {
	return &Parameter{Name: name, Typ: t}
}

// Const creates a constant.
func Const(v ir.Value) *Constant {
	return &Constant{Value: v}
}

// NullOf creates a typed null constant.
func NullOf(t *ir.Type) *Constant {
	return &Constant{Value: ir.Null{Typ: t}}
}

// Prop creates a member access.
func Prop(e Node, name string, t *ir.Type) *Member {
	return &Member{Expr: e, Name: name, Typ: t}
}

// As creates a conversion to t.
func As(e Node, t *ir.Type) *Convert {
	return &Convert{Expr: e, Typ: t}
}

// Not negates a boolean expression. Double negation is folded.
func Not(e Node) Node {
	if u, ok := e.(*Unary); ok && u.Op == OpNot {
		return u.Expr
	}
	return &Unary{Op: OpNot, Expr: e}
}

// Bin creates a binary expression.
func Bin(op BinaryOp, l, r Node) *Binary {
	return &Binary{Op: op, Left: l, Right: r}
}

// And joins conditions with &&. Nil conditions are skipped; nil is
// returned when no condition remains.
func And(conds ...Node) Node {
	return fold(OpAnd, conds)
}

// Or joins conditions with ||. Nil conditions are skipped.
func Or(conds ...Node) Node {
	return fold(OpOr, conds)
}

func fold(op BinaryOp, conds []Node) Node {
	var out Node
	for _, c := range conds {
		switch {
		case c == nil:
		case out == nil:
			out = c
		default:
			out = Bin(op, out, c)
		}
	}
	return out
}

// Fn creates a single-parameter lambda.
func Fn(p *Parameter, body Node) *Lambda {
	return &Lambda{Params: []*Parameter{p}, Body: body}
}

// CallOf creates a combinator call returning t.
func CallOf(m Method, t *ir.Type, args ...Node) *Call {
	return &Call{Method: m, Args: args, Typ: t}
}

// Where filters a sequence; the result has the sequence type.
func Where(src Node, pred *Lambda) *Call {
	return CallOf(MethodWhere, src.Type(), src, pred)
}

// SelectOf projects each element of src with sel.
func SelectOf(src Node, sel *Lambda) *Call {
	t := ir.CollectionOf(sel.Type())
	if IsQueryable(src) {
		t = ir.QueryableOf(sel.Type())
	}
	return CallOf(MethodSelect, t, src, sel)
}

// Quantify builds Any/All over a collection, choosing the queryable variant
// when src is a query source.
func Quantify(all bool, src Node, pred *Lambda) *Call {
	m := MethodAny
	switch {
	case all && IsQueryable(src):
		m = MethodQueryableAll
	case all:
		m = MethodAll
	case IsQueryable(src):
		m = MethodQueryableAny
	}
	return CallOf(m, ir.Bool, src, pred)
}

// IsQueryable reports whether n produces a query source.
func IsQueryable(n Node) bool {
	t := n.Type()
	return t != nil && t.Kind == ir.KindQueryable
}

// Raw creates a raw query source over elem.
func Raw(elem *ir.Type) *Source {
	return &Source{Elem: elem}
}

// Deferring wraps e in a deferred marker unless it already is one.
func Deferring(e Node) Node {
	if _, ok := e.(*Deferred); ok {
		return e
	}
	return &Deferred{Expr: e}
}
