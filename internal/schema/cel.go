package schema

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

// SelfParam is the name of the entity variable in schema expressions.
const SelfParam = "self"

// ExpressionError reports a schema expression that cannot be compiled.
type ExpressionError struct {
	Type    string
	Source  string
	Message string
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression on %s: %s (in %q)", e.Type, e.Message, e.Source)
}

var binaryFuncs = map[string]expr.BinaryOp{
	"_==_": expr.OpEqual,
	"_!=_": expr.OpNotEqual,
	"_<_":  expr.OpLess,
	"_<=_": expr.OpLessOrEqual,
	"_>_":  expr.OpGreater,
	"_>=_": expr.OpGreaterOrEqual,
	"_&&_": expr.OpAnd,
	"_||_": expr.OpOr,
	"_+_":  expr.OpAdd,
	"_-_":  expr.OpSubtract,
	"_*_":  expr.OpMultiply,
	"_/_":  expr.OpDivide,
}

var stringFuncs = map[string]expr.Method{
	"contains":   expr.MethodContains,
	"startsWith": expr.MethodStartsWith,
	"endsWith":   expr.MethodEndsWith,
}

// ParsePredicate compiles a boolean CEL expression over entity t into a
// lambda λself.P. Example:
//
//	self.Active && self.Orders.exists(o, o.Total > 100)
func ParsePredicate(p Provider, t *ir.Type, src string) (*expr.Lambda, error) {
	l, err := ParseExpr(p, t, src)
	if err != nil {
		return nil, err
	}
	if !ir.Equal(l.Body.Type(), ir.Bool) {
		return nil, &ExpressionError{Type: t.String(), Source: src, Message: fmt.Sprintf("predicate has type %s, want bool", l.Body.Type())}
	}
	return l, nil
}

// ParseExpr compiles a CEL expression over t into a lambda λself.E.
//
// Macros are disabled so that exists/all parse as plain calls and map
// directly onto Any/All over the collection they are invoked on.
func ParseExpr(p Provider, t *ir.Type, src string) (*expr.Lambda, error) {
	env, err := cel.NewEnv(cel.ClearMacros())
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	ast, issues := env.Parse(src)
	if issues != nil && issues.Err() != nil {
		return nil, &ExpressionError{Type: t.String(), Source: src, Message: issues.Err().Error()}
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, &ExpressionError{Type: t.String(), Source: src, Message: err.Error()}
	}

	self := expr.Param(SelfParam, t)
	c := &celCompiler{provider: p, src: src, root: t, scope: map[string]*expr.Parameter{SelfParam: self}}
	body, err := c.compile(parsed.GetExpr())
	if err != nil {
		return nil, err
	}
	return expr.Fn(self, body), nil
}

type celCompiler struct {
	provider Provider
	src      string
	root     *ir.Type
	scope    map[string]*expr.Parameter
}

func (c *celCompiler) fail(format string, args ...any) error {
	return &ExpressionError{Type: c.root.String(), Source: c.src, Message: fmt.Sprintf(format, args...)}
}

func (c *celCompiler) compile(e *exprpb.Expr) (expr.Node, error) {
	switch e.GetExprKind().(type) {
	case *exprpb.Expr_IdentExpr:
		name := e.GetIdentExpr().GetName()
		if p, ok := c.scope[name]; ok {
			return p, nil
		}
		return nil, c.fail("unknown identifier %q", name)

	case *exprpb.Expr_SelectExpr:
		sel := e.GetSelectExpr()
		operand, err := c.compile(sel.GetOperand())
		if err != nil {
			return nil, err
		}
		t, ok := MemberType(c.provider, operand.Type(), sel.GetField())
		if !ok {
			return nil, c.fail("%s has no property %q", operand.Type(), sel.GetField())
		}
		return expr.Prop(operand, sel.GetField(), t), nil

	case *exprpb.Expr_ConstExpr:
		return c.constant(e.GetConstExpr())

	case *exprpb.Expr_CallExpr:
		return c.call(e.GetCallExpr())

	default:
		return nil, c.fail("unsupported expression %T", e.GetExprKind())
	}
}

func (c *celCompiler) constant(k *exprpb.Constant) (expr.Node, error) {
	switch v := k.GetConstantKind().(type) {
	case *exprpb.Constant_NullValue:
		return expr.NullOf(nil), nil
	case *exprpb.Constant_BoolValue:
		return expr.Const(ir.BoolValue(v.BoolValue)), nil
	case *exprpb.Constant_Int64Value:
		return expr.Const(ir.IntValue(v.Int64Value)), nil
	case *exprpb.Constant_Uint64Value:
		return expr.Const(ir.IntValue(int64(v.Uint64Value))), nil
	case *exprpb.Constant_DoubleValue:
		return expr.Const(ir.DecimalValue{Decimal: decimal.NewFromFloat(v.DoubleValue)}), nil
	case *exprpb.Constant_StringValue:
		return expr.Const(ir.StringValue(v.StringValue)), nil
	default:
		return nil, c.fail("unsupported constant %T", v)
	}
}

func (c *celCompiler) call(call *exprpb.Expr_Call) (expr.Node, error) {
	fn := call.GetFunction()

	if op, ok := binaryFuncs[fn]; ok {
		args, err := c.compileAll(call.GetArgs())
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, c.fail("%s expects two operands", fn)
		}
		l, r := coerce(args[0], args[1])
		return expr.Bin(op, l, r), nil
	}

	switch fn {
	case "!_":
		args, err := c.compileAll(call.GetArgs())
		if err != nil {
			return nil, err
		}
		return expr.Not(args[0]), nil

	case "-_":
		args, err := c.compileAll(call.GetArgs())
		if err != nil {
			return nil, err
		}
		return &expr.Unary{Op: expr.OpNegate, Expr: args[0]}, nil

	case "@in":
		return c.in(call)

	case "exists", "all":
		return c.quantifier(fn == "all", call)

	case "size":
		target := call.GetTarget()
		if target == nil && len(call.GetArgs()) == 1 {
			target = call.GetArgs()[0]
		}
		if target == nil {
			return nil, c.fail("size expects one operand")
		}
		coll, err := c.compile(target)
		if err != nil {
			return nil, err
		}
		if !coll.Type().IsSequence() {
			return nil, c.fail("size over %s", coll.Type())
		}
		return expr.CallOf(expr.MethodCount, ir.Int, coll), nil
	}

	if m, ok := stringFuncs[fn]; ok && call.GetTarget() != nil && len(call.GetArgs()) == 1 {
		target, err := c.compile(call.GetTarget())
		if err != nil {
			return nil, err
		}
		arg, err := c.compile(call.GetArgs()[0])
		if err != nil {
			return nil, err
		}
		return expr.CallOf(m, ir.Bool, target, arg), nil
	}

	return nil, c.fail("unsupported function %q", fn)
}

func (c *celCompiler) in(call *exprpb.Expr_Call) (expr.Node, error) {
	args := call.GetArgs()
	if len(args) != 2 || args[1].GetListExpr() == nil {
		return nil, c.fail("in expects a list literal")
	}
	value, err := c.compile(args[0])
	if err != nil {
		return nil, err
	}
	elems, err := c.compileAll(args[1].GetListExpr().GetElements())
	if err != nil {
		return nil, err
	}
	out := []expr.Node{value}
	for _, el := range elems {
		_, r := coerce(value, el)
		out = append(out, r)
	}
	return expr.CallOf(expr.MethodIn, ir.Bool, out...), nil
}

func (c *celCompiler) quantifier(all bool, call *exprpb.Expr_Call) (expr.Node, error) {
	args := call.GetArgs()
	if call.GetTarget() == nil || len(args) != 2 || args[0].GetIdentExpr() == nil {
		return nil, c.fail("%s expects coll.%s(x, predicate)", call.GetFunction(), call.GetFunction())
	}
	coll, err := c.compile(call.GetTarget())
	if err != nil {
		return nil, err
	}
	elem := coll.Type().ElementType()
	if elem == nil {
		return nil, c.fail("%s over non-collection %s", call.GetFunction(), coll.Type())
	}

	name := args[0].GetIdentExpr().GetName()
	param := expr.Param(name, elem.CleanType())
	shadowed, had := c.scope[name]
	c.scope[name] = param
	body, err := c.compile(args[1])
	if had {
		c.scope[name] = shadowed
	} else {
		delete(c.scope, name)
	}
	if err != nil {
		return nil, err
	}
	return expr.Quantify(all, coll, expr.Fn(param, body)), nil
}

func (c *celCompiler) compileAll(es []*exprpb.Expr) ([]expr.Node, error) {
	out := make([]expr.Node, 0, len(es))
	for _, e := range es {
		n, err := c.compile(e)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// coerce aligns a constant operand with the type of the other side: ints
// widen to decimals, strings become guids and untyped nulls take the
// other side's type.
func coerce(l, r expr.Node) (expr.Node, expr.Node) {
	return coerceTo(l, r.Type()), coerceTo(r, l.Type())
}

func coerceTo(n expr.Node, t *ir.Type) expr.Node {
	c, ok := n.(*expr.Constant)
	if !ok || t == nil || ir.Equal(c.Type(), t) {
		return n
	}
	if t.Kind != ir.KindScalar {
		if null, ok := c.Value.(ir.Null); ok && null.Typ == nil {
			return expr.NullOf(t)
		}
		return n
	}
	if v, err := ir.Convert(c.Value, t); err == nil {
		return expr.Const(v)
	}
	return n
}

// MemberType resolves the type of member name on t. MList element rows
// expose Parent, Element, RowId and RowOrder in addition to the element's
// own properties.
func MemberType(p Provider, t *ir.Type, name string) (*ir.Type, bool) {
	t = t.CleanType()
	if t == nil {
		return nil, false
	}
	if t.Kind == ir.KindMListElement {
		switch name {
		case "Parent":
			return t.Parent, true
		case "Element":
			return t.Elem, true
		case "RowId", "RowOrder":
			return ir.Int, true
		}
		t = t.Elem.CleanType()
	}
	prop, ok := p.PropertyInfo(t, name)
	if !ok {
		return nil, false
	}
	return prop.Type, true
}
