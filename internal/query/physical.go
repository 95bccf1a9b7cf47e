package query

import (
	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/materialize"
)

// PhysicalAlias names the select scope of a lowered projection.
const PhysicalAlias = "t0"

// Physical lowers the final projection of n into a select scope and
// materializes its deferred values:
//
//	Select(src, e => new {Number = e.Number, Gross = Deferred((e.Total * 1.21m))})
//	  => Projection(SELECT[t0](Number = e.Number, Total = (e.Total * 1.21m) FROM src),
//	                new {Number = t0.Number, Gross = t0.Total})
//
// Queries without a projection are returned unchanged.
func Physical(n expr.Node) expr.Node {
	call, ok := n.(*expr.Call)
	if !ok || call.Method != expr.MethodSelect || len(call.Args) != 2 {
		return n
	}
	fn, ok := call.Args[1].(*expr.Lambda)
	if !ok {
		return n
	}
	body, ok := fn.Body.(*expr.New)
	if !ok {
		return n
	}

	sel := &expr.Select{Alias: PhysicalAlias, From: call.Args[0]}
	fields := make([]expr.Field, len(body.Fields))
	for i, f := range body.Fields {
		if _, deferred := f.Expr.(*expr.Deferred); deferred {
			fields[i] = f
			continue
		}
		sel.Columns = append(sel.Columns, expr.ColumnDecl{Name: f.Name, Expr: f.Expr})
		fields[i] = expr.Field{
			Name: f.Name,
			Expr: &expr.ColumnRef{Alias: PhysicalAlias, Name: f.Name, Typ: f.Expr.Type()},
		}
	}
	return materialize.Rewrite(&expr.Projection{Select: sel, Projector: &expr.New{Fields: fields}})
}
