package expr

import (
	"strings"

	"github.com/roach88/qtoken/internal/ir"
)

// Node is an expression tree node.
//
// This is a sealed interface - only types in this package implement it.
// The marker method prevents external implementations and lets rewriters
// switch exhaustively over the node kinds.
//
// Logical nodes (built by the compiler):
//   - Parameter, Constant, Member, Convert, Unary, Binary, Call, Lambda, New
//   - Source: a constant query source; raw when Query is nil
//   - Extent: the physical extent of a type, produced by filter injection
//   - Scoped: a directive (filtering on/off) applied to a sub-tree
//
// Physical nodes (produced by lowering, consumed by materialization):
//   - Select, Projection, ColumnRef, Deferred
type Node interface {
	node() // Marker method - seals interface to this package
	Type() *ir.Type
}

// Parameter is a lambda or query parameter. Parameters are compared by
// identity: two parameters with the same name are different variables.
type Parameter struct {
	Name string
	Typ  *ir.Type
}

func (*Parameter) node() {}

// Type returns the parameter type.
func (p *Parameter) Type() *ir.Type { return p.Typ }

// Constant is a literal value.
type Constant struct {
	Value ir.Value
}

func (*Constant) node() {}

// Type returns the constant's type.
func (c *Constant) Type() *ir.Type { return c.Value.Type() }

// Member is a property access Expr.Name.
type Member struct {
	Expr Node
	Name string
	Typ  *ir.Type
}

func (*Member) node() {}

// Type returns the member type.
func (m *Member) Type() *ir.Type { return m.Typ }

// Convert is a type conversion; for entity types it is a polymorphic
// "as" cast that yields null when the runtime type does not match.
type Convert struct {
	Expr Node
	Typ  *ir.Type
}

func (*Convert) node() {}

// Type returns the target type.
func (c *Convert) Type() *ir.Type { return c.Typ }

// UnaryOp is a unary operator.
type UnaryOp int

const (
	// OpNot is logical negation.
	OpNot UnaryOp = iota
	// OpNegate is arithmetic negation.
	OpNegate
)

// Unary applies a unary operator.
type Unary struct {
	Op   UnaryOp
	Expr Node
}

func (*Unary) node() {}

// Type returns Bool for OpNot and the operand type otherwise.
func (u *Unary) Type() *ir.Type {
	if u.Op == OpNot {
		return ir.Bool
	}
	return u.Expr.Type()
}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	OpEqual BinaryOp = iota
	OpNotEqual
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
	OpAnd
	OpOr
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

var binaryOps = [...]string{
	OpEqual:          "==",
	OpNotEqual:       "!=",
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpGreater:        ">",
	OpGreaterOrEqual: ">=",
	OpAnd:            "&&",
	OpOr:             "||",
	OpAdd:            "+",
	OpSubtract:       "-",
	OpMultiply:       "*",
	OpDivide:         "/",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOps) {
		return binaryOps[op]
	}
	return "?"
}

// IsComparison reports whether op yields a boolean.
func (op BinaryOp) IsComparison() bool {
	return op <= OpOr
}

// Binary applies a binary operator.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

func (*Binary) node() {}

// Type returns Bool for comparisons and logical operators and the left
// operand type for arithmetic.
func (b *Binary) Type() *ir.Type {
	if b.Op.IsComparison() {
		return ir.Bool
	}
	return b.Left.Type()
}

// Method names a framework-level combinator.
type Method string

// Sequence and query combinators. Any/All operate on in-memory sequences;
// QueryableAny/QueryableAll on query sources.
const (
	MethodWhere             Method = "Where"
	MethodSelect            Method = "Select"
	MethodOrderBy           Method = "OrderBy"
	MethodOrderByDescending Method = "OrderByDescending"
	MethodThenBy            Method = "ThenBy"
	MethodThenByDescending  Method = "ThenByDescending"
	MethodTake              Method = "Take"
	MethodSkip              Method = "Skip"
	MethodAny               Method = "Any"
	MethodAll               Method = "All"
	MethodQueryableAny      Method = "Queryable.Any"
	MethodQueryableAll      Method = "Queryable.All"
	MethodCount             Method = "Count"
	MethodIn                Method = "In"
	MethodExpandMList       Method = "ExpandMList"
	MethodRetrieve          Method = "Retrieve"
	MethodContains          Method = "Contains"
	MethodStartsWith        Method = "StartsWith"
	MethodEndsWith          Method = "EndsWith"
	MethodSnippet           Method = "Snippet"
)

// Call invokes a combinator. Typ is the result type.
type Call struct {
	Method Method
	Args   []Node
	Typ    *ir.Type
}

func (*Call) node() {}

// Type returns the result type.
func (c *Call) Type() *ir.Type { return c.Typ }

// Lambda is an anonymous function. Its Type is the body type.
type Lambda struct {
	Params []*Parameter
	Body   Node
}

func (*Lambda) node() {}

// Type returns the body type.
func (l *Lambda) Type() *ir.Type { return l.Body.Type() }

// Field is one member of a New projection.
type Field struct {
	Name string
	Expr Node
}

// New builds an anonymous record; it is the shape of a projection.
type New struct {
	Fields []Field
}

func (*New) node() {}

// Type returns an anonymous embedded type named after the fields.
func (n *New) Type() *ir.Type {
	names := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		names[i] = f.Name
	}
	return ir.Embedded("new{" + strings.Join(names, ",") + "}")
}

// Source is a constant query source over Elem. A raw source (Query == nil)
// is a direct reference to the extent of Elem as written by the caller. A
// derived source carries the query expression it stands for.
type Source struct {
	Elem  *ir.Type
	Query Node
}

func (*Source) node() {}

// Type returns Query<Elem>.
func (s *Source) Type() *ir.Type { return ir.QueryableOf(s.Elem) }

// IsRaw reports whether the source is a direct extent reference.
func (s *Source) IsRaw() bool { return s.Query == nil }

// Extent is the physical extent (table) of Elem. Extents are only created
// by filter injection and lowering; they are never treated as raw sources.
type Extent struct {
	Elem *ir.Type
}

func (*Extent) node() {}

// Type returns Query<Elem>.
func (e *Extent) Type() *ir.Type { return ir.QueryableOf(e.Elem) }

// Directive is an instruction scoped to a sub-tree.
type Directive int

const (
	// DisableFilter turns visibility filtering off inside the scope.
	DisableFilter Directive = iota
	// EnableFilter turns visibility filtering back on inside the scope.
	EnableFilter
)

func (d Directive) String() string {
	if d == DisableFilter {
		return "DisableFilter"
	}
	return "EnableFilter"
}

// Scoped applies Directive while Inner is processed.
type Scoped struct {
	Directive Directive
	Inner     Node
}

func (*Scoped) node() {}

// Type returns the inner type.
func (s *Scoped) Type() *ir.Type { return s.Inner.Type() }

// Deferred marks a derived value whose materialization is postponed until
// projection rewriting, where equal markers collapse into one column.
type Deferred struct {
	Expr Node
}

func (*Deferred) node() {}

// Type returns the deferred expression type.
func (d *Deferred) Type() *ir.Type { return d.Expr.Type() }

// ColumnDecl declares an output column of a Select.
type ColumnDecl struct {
	Name string
	Expr Node
}

// Select is a physical select scope: named columns computed over From,
// optionally filtered by Where. Alias names the scope for column references.
type Select struct {
	Alias   string
	Columns []ColumnDecl
	From    Node
	Where   Node
}

func (*Select) node() {}

// Type returns a queryable over the anonymous row type.
func (s *Select) Type() *ir.Type {
	return ir.QueryableOf(ir.Embedded("row:" + s.Alias))
}

// Column returns the declaration named name.
func (s *Select) Column(name string) (ColumnDecl, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDecl{}, false
}

// Projection pairs a Select with the in-memory shape (Projector) built
// from its columns. Projections nest: a projector may contain the
// projection of a child collection.
type Projection struct {
	Select    *Select
	Projector Node
}

func (*Projection) node() {}

// Type returns a collection of the projector type.
func (p *Projection) Type() *ir.Type { return ir.CollectionOf(p.Projector.Type()) }

// ColumnRef references column Name of the select scope Alias.
type ColumnRef struct {
	Alias string
	Name  string
	Typ   *ir.Type
}

func (*ColumnRef) node() {}

// Type returns the column type.
func (c *ColumnRef) Type() *ir.Type { return c.Typ }
