package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/qtoken/internal/compile"
	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/resolve"
	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/security"
	"github.com/roach88/qtoken/internal/token"
)

// Env is the long-lived configuration shared by compilations. It is
// read-only after construction and safe for concurrent use when its
// collaborators are.
type Env struct {
	Schema     schema.Provider
	Auth       schema.Authorizer
	Extensions *extension.Registry

	// Options selects the sub-tokens requests may use. Zero means
	// token.OptAll.
	Options token.Options

	// IDs generates compilation ids. Nil means UUIDv7Generator.
	IDs IDGenerator

	// Logger receives debug records per compilation. Nil discards.
	Logger *slog.Logger
}

func (e *Env) options() token.Options {
	if e.Options == 0 {
		return token.OptAll
	}
	return e.Options
}

func (e *Env) ids() IDGenerator {
	if e.IDs == nil {
		return UUIDv7Generator{}
	}
	return e.IDs
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

// Compiled is the result of one compilation.
type Compiled struct {
	// ID identifies the compilation in logs.
	ID string

	// Root is the queried entity type.
	Root *ir.Type

	// Logical is the query as requested, before filter injection.
	Logical expr.Node

	// Filtered is Logical with visibility filters injected.
	Filtered expr.Node

	// Physical is Filtered with its projection lowered to a select scope
	// and deferred values materialized as columns.
	Physical expr.Node

	// Columns describe the fields of the projection, in order.
	Columns []ColumnInfo
}

// ColumnInfo describes one output column.
type ColumnInfo struct {
	Name        string // field name in the projection
	Key         string // token full key
	DisplayName string
	Type        *ir.Type
	Format      string
	Unit        string
	Deferred    bool // computed by an extension
}

// Compile turns req into a logical and a filtered query expression.
//
// Every compilation owns a fresh token tree and build context, so Compile
// is safe to call concurrently with the same Env.
func Compile(env *Env, req Request) (*Compiled, error) {
	root, ok := env.Schema.Type(req.Root)
	if !ok || !root.IsEntity() {
		return nil, &Error{Code: ErrCodeUnknownType, Message: fmt.Sprintf("%q is not an entity type", req.Root)}
	}

	tree := token.NewTree(&token.Env{Schema: env.Schema, Auth: env.Auth, Extensions: env.Extensions}, root)
	c := &compiler{env: env, tree: tree, ctx: compile.NewContext(tree.Root())}

	out, err := c.compile(req)
	if err != nil {
		return nil, err
	}
	out.ID = env.ids().NewID()
	out.Root = root
	out.Filtered = security.Inject(out.Logical, env.Schema)
	out.Physical = Physical(out.Filtered)

	env.logger().LogAttrs(context.Background(), slog.LevelDebug, "query compiled",
		slog.String("compilation_id", out.ID),
		slog.String("root", root.Name),
		slog.Int("columns", len(req.Columns)),
		slog.Int("filters", len(req.Filters)),
		slog.Int("orders", len(req.Orders)),
		slog.Int("tokens", tree.Len()),
		slog.Bool("filtered", security.Filtered(out.Filtered)),
	)
	return out, nil
}

type compiler struct {
	env  *Env
	tree *token.Tree
	ctx  *compile.Context
}

func (c *compiler) compile(req Request) (*Compiled, error) {
	e := c.ctx.Parameter()

	var q expr.Node = expr.Raw(e.Type())
	if req.DisableFilters {
		q = &expr.Scoped{Directive: expr.DisableFilter, Inner: q}
	}

	var conds []expr.Node
	for _, f := range req.Filters {
		cond, err := c.filter(c.ctx, f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if where := expr.And(conds...); where != nil {
		q = expr.Where(q, expr.Fn(e, where))
	}

	for i, o := range req.Orders {
		tok, err := c.value(o.Token)
		if err != nil {
			return nil, err
		}
		q = expr.CallOf(orderMethod(i, o.Descending), q.Type(), q, expr.Fn(e, compile.Build(tok, c.ctx)))
	}

	q, err := paginate(q, req.Pagination)
	if err != nil {
		return nil, err
	}

	out := &Compiled{}
	if len(req.Columns) == 0 {
		out.Logical = q
		return out, nil
	}

	fields := make([]expr.Field, 0, len(req.Columns))
	names := make(map[string]struct{}, len(req.Columns))
	for _, col := range req.Columns {
		tok, err := c.value(col.Token)
		if err != nil {
			return nil, err
		}
		n := compile.Build(tok, c.ctx)
		deferred := tok.HasExtension()
		if deferred {
			n = expr.Deferring(n)
		}
		name := fieldName(tok, names)
		fields = append(fields, expr.Field{Name: name, Expr: n})

		display := col.DisplayName
		if display == "" {
			display = tok.NiceName()
		}
		out.Columns = append(out.Columns, ColumnInfo{
			Name:        name,
			Key:         tok.FullKey(),
			DisplayName: display,
			Type:        tok.Type(),
			Format:      tok.ElementFormat(),
			Unit:        tok.ElementUnit(),
			Deferred:    deferred,
		})
	}
	out.Logical = expr.SelectOf(q, expr.Fn(e, &expr.New{Fields: fields}))
	return out, nil
}

// resolve parses path against the request tree.
func (c *compiler) resolve(path string) (token.Token, error) {
	tok, err := resolve.Parse(c.tree.Root(), path, c.env.options())
	if err != nil {
		return token.Token{}, &Error{Code: ErrCodeInvalidToken, Token: path, Message: "cannot resolve token", Err: err}
	}
	return tok, nil
}

// value resolves a token used as a column or an order key. Such tokens
// produce one value per row and cannot go through a quantifier.
func (c *compiler) value(path string) (token.Token, error) {
	tok, err := c.resolve(path)
	if err != nil {
		return token.Token{}, err
	}
	if tok.HasQuantifier() {
		return token.Token{}, &Error{
			Code:    ErrCodeQuantifierNotAllowed,
			Token:   path,
			Message: "collection quantifiers are only allowed in filters",
		}
	}
	return tok, nil
}

func orderMethod(i int, desc bool) expr.Method {
	switch {
	case i == 0 && desc:
		return expr.MethodOrderByDescending
	case i == 0:
		return expr.MethodOrderBy
	case desc:
		return expr.MethodThenByDescending
	default:
		return expr.MethodThenBy
	}
}

func paginate(q expr.Node, p Pagination) (expr.Node, error) {
	switch p.Mode {
	case PageAll:
		return q, nil
	case PageFirsts:
		if p.Elements <= 0 {
			return nil, &Error{Code: ErrCodeInvalidPagination, Message: fmt.Sprintf("firsts needs a positive count, got %d", p.Elements)}
		}
		return take(q, p.Elements), nil
	case PagePaginate:
		if p.Elements <= 0 || p.Page <= 0 {
			return nil, &Error{Code: ErrCodeInvalidPagination, Message: fmt.Sprintf("paginate needs a positive size and page, got %d and %d", p.Elements, p.Page)}
		}
		if skip := (p.Page - 1) * p.Elements; skip > 0 {
			q = expr.CallOf(expr.MethodSkip, q.Type(), q, expr.Const(ir.IntValue(skip)))
		}
		return take(q, p.Elements), nil
	default:
		return nil, &Error{Code: ErrCodeInvalidPagination, Message: fmt.Sprintf("unknown pagination mode %d", p.Mode)}
	}
}

func take(q expr.Node, n int) expr.Node {
	return expr.CallOf(expr.MethodTake, q.Type(), q, expr.Const(ir.IntValue(n)))
}

// fieldName derives a projection field name from the token's full key:
// "Customer.Active" becomes "Customer_Active" and "Owner.(Person).Name"
// becomes "Owner_Person_Name". Repeated names get numeric suffixes.
func fieldName(tok token.Token, taken map[string]struct{}) string {
	name := strings.NewReplacer(".", "_", "(", "", ")", "").Replace(tok.FullKey())
	if name == "" {
		name = tok.Key()
	}
	unique := name
	for i := 1; ; i++ {
		if _, dup := taken[unique]; !dup {
			break
		}
		unique = name + strconv.Itoa(i)
	}
	taken[unique] = struct{}{}
	return unique
}
