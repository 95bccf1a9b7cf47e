package materialize

import (
	"strconv"
	"strings"

	"github.com/roach88/qtoken/internal/expr"
)

// ColumnGenerator allocates the columns of one select. Structurally equal
// expressions share a column: candidates are found by fingerprint and
// confirmed with expr.Equal.
type ColumnGenerator struct {
	alias   string
	columns []expr.ColumnDecl
	base    int
	byPrint map[string][]int
	names   map[string]struct{}
}

// NewColumnGenerator creates a generator seeded with the existing columns
// of sel. Existing columns are reused when an equal expression is asked
// for.
func NewColumnGenerator(sel *expr.Select) *ColumnGenerator {
	g := &ColumnGenerator{
		alias:   sel.Alias,
		base:    len(sel.Columns),
		byPrint: make(map[string][]int),
		names:   make(map[string]struct{}),
	}
	for _, c := range sel.Columns {
		g.add(c)
	}
	return g
}

func (g *ColumnGenerator) add(c expr.ColumnDecl) int {
	i := len(g.columns)
	g.columns = append(g.columns, c)
	fp := expr.Fingerprint(c.Expr)
	g.byPrint[fp] = append(g.byPrint[fp], i)
	g.names[c.Name] = struct{}{}
	return i
}

// Column returns a reference to the column computing e, allocating a new
// one on first use.
func (g *ColumnGenerator) Column(e expr.Node) *expr.ColumnRef {
	for _, i := range g.byPrint[expr.Fingerprint(e)] {
		if expr.Equal(g.columns[i].Expr, e) {
			return g.ref(i)
		}
	}
	return g.ref(g.add(expr.ColumnDecl{Name: g.uniqueName(ColumnName(e)), Expr: e}))
}

func (g *ColumnGenerator) ref(i int) *expr.ColumnRef {
	c := g.columns[i]
	return &expr.ColumnRef{Alias: g.alias, Name: c.Name, Typ: c.Expr.Type()}
}

func (g *ColumnGenerator) uniqueName(name string) string {
	if _, taken := g.names[name]; !taken {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if _, taken := g.names[candidate]; !taken {
			return candidate
		}
	}
}

// Allocated returns the columns added since the generator was created, in
// allocation order.
func (g *ColumnGenerator) Allocated() []expr.ColumnDecl {
	return g.columns[g.base:]
}

// Changed reports whether any column was allocated.
func (g *ColumnGenerator) Changed() bool {
	return len(g.columns) > g.base
}

// Apply returns sel with the allocated columns appended after its own, or
// sel itself when nothing was allocated.
func (g *ColumnGenerator) Apply(sel *expr.Select) *expr.Select {
	if !g.Changed() {
		return sel
	}
	cols := make([]expr.ColumnDecl, 0, len(sel.Columns)+len(g.Allocated()))
	cols = append(cols, sel.Columns...)
	cols = append(cols, g.Allocated()...)
	return &expr.Select{Alias: sel.Alias, Columns: cols, From: sel.From, Where: sel.Where}
}

// ColumnName derives a column name from e: the member or column it reads,
// the combinator it calls, or "c".
func ColumnName(e expr.Node) string {
	switch x := e.(type) {
	case *expr.Member:
		return x.Name
	case *expr.ColumnRef:
		return x.Name
	case *expr.Call:
		m := string(x.Method)
		return m[strings.LastIndex(m, ".")+1:]
	case *expr.Convert:
		return ColumnName(x.Expr)
	case *expr.Unary:
		return ColumnName(x.Expr)
	case *expr.Binary:
		return ColumnName(x.Left)
	case *expr.Deferred:
		return ColumnName(x.Expr)
	default:
		return "c"
	}
}
