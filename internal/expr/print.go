package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/qtoken/internal/ir"
)

// String renders n as deterministic text. The output is stable across runs
// and is used by golden files and diagnostics.
//
//	Where(Source(Order), o => (o.Total > 10m))
func String(n Node) string {
	var p printer
	p.node(n)
	return p.b.String()
}

// Fingerprint returns a domain-separated hash of the canonical text of n.
// Lambda parameters are renamed by binding depth, so alpha-equivalent
// expressions share a fingerprint. Equal expressions always have equal
// fingerprints; the converse holds only up to free parameter names.
func Fingerprint(n Node) string {
	p := printer{canonical: true, names: map[*Parameter]string{}}
	p.node(n)
	return ir.HashWithDomain(ir.DomainExpr, []byte(p.b.String()))
}

type printer struct {
	b         strings.Builder
	canonical bool
	depth     int
	names     map[*Parameter]string
}

func (p *printer) str(s string) { p.b.WriteString(s) }

func (p *printer) param(x *Parameter) string {
	if p.canonical {
		if name, ok := p.names[x]; ok {
			return name
		}
	}
	return x.Name
}

func (p *printer) list(ns []Node) {
	for i, n := range ns {
		if i > 0 {
			p.str(", ")
		}
		p.node(n)
	}
}

func (p *printer) node(n Node) {
	switch x := n.(type) {
	case nil:
		p.str("<nil>")

	case *Parameter:
		p.str(p.param(x))

	case *Constant:
		p.str(ir.Canonical(x.Value))

	case *Member:
		p.node(x.Expr)
		p.str(".")
		p.str(x.Name)

	case *Convert:
		p.str("(")
		p.node(x.Expr)
		p.str(" as ")
		p.str(x.Typ.String())
		p.str(")")

	case *Unary:
		if x.Op == OpNot {
			p.str("!")
		} else {
			p.str("-")
		}
		p.node(x.Expr)

	case *Binary:
		p.str("(")
		p.node(x.Left)
		p.str(" ")
		p.str(x.Op.String())
		p.str(" ")
		p.node(x.Right)
		p.str(")")

	case *Call:
		p.str(string(x.Method))
		p.str("(")
		p.list(x.Args)
		p.str(")")

	case *Lambda:
		p.lambda(x)

	case *New:
		p.str("new {")
		for i, f := range x.Fields {
			if i > 0 {
				p.str(", ")
			}
			p.str(f.Name)
			p.str(" = ")
			p.node(f.Expr)
		}
		p.str("}")

	case *Source:
		p.str("Source(")
		p.str(x.Elem.String())
		if x.Query != nil {
			p.str(": ")
			p.node(x.Query)
		}
		p.str(")")

	case *Extent:
		p.str("Extent(")
		p.str(x.Elem.String())
		p.str(")")

	case *Scoped:
		p.str(x.Directive.String())
		p.str("(")
		p.node(x.Inner)
		p.str(")")

	case *Deferred:
		p.str("Deferred(")
		p.node(x.Expr)
		p.str(")")

	case *Select:
		p.str("SELECT[")
		p.str(x.Alias)
		p.str("](")
		for i, c := range x.Columns {
			if i > 0 {
				p.str(", ")
			}
			p.str(c.Name)
			p.str(" = ")
			p.node(c.Expr)
		}
		p.str(" FROM ")
		p.node(x.From)
		if x.Where != nil {
			p.str(" WHERE ")
			p.node(x.Where)
		}
		p.str(")")

	case *Projection:
		p.str("Projection(")
		p.node(x.Select)
		p.str(", ")
		p.node(x.Projector)
		p.str(")")

	case *ColumnRef:
		p.str(x.Alias)
		p.str(".")
		p.str(x.Name)

	default:
		panic(fmt.Sprintf("expr.String: unknown node type %T", n))
	}
}

func (p *printer) lambda(x *Lambda) {
	if p.canonical {
		for _, prm := range x.Params {
			p.names[prm] = "$" + strconv.Itoa(p.depth)
			p.depth++
		}
		defer func() {
			p.depth -= len(x.Params)
			for _, prm := range x.Params {
				delete(p.names, prm)
			}
		}()
	}
	if len(x.Params) == 1 {
		p.str(p.param(x.Params[0]))
	} else {
		p.str("(")
		for i, prm := range x.Params {
			if i > 0 {
				p.str(", ")
			}
			p.str(p.param(prm))
		}
		p.str(")")
	}
	p.str(" => ")
	p.node(x.Body)
}
