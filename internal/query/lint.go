package query

import (
	"fmt"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/security"
)

// LintResult lists observations about a compiled query that do not
// prevent execution but deserve a reviewer's attention.
type LintResult struct {
	// Clean is true when there are no warnings.
	Clean bool

	// Warnings are human-readable, in tree order.
	Warnings []string
}

// Lint inspects the filtered query of c:
//   - sources left unfiltered because filtering was disabled
//   - raw sources over entities without a visibility predicate
//   - deferred values that materialization will turn into columns
//
// Lint is a pure function with no side effects.
func Lint(c *Compiled, provider schema.Provider) LintResult {
	l := &linter{provider: provider, warnings: []string{}}
	l.visit(c.Filtered, true)
	return LintResult{Clean: len(l.warnings) == 0, Warnings: l.warnings}
}

// linter accumulates warnings during traversal.
type linter struct {
	provider schema.Provider
	warnings []string
}

func (l *linter) addWarning(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *linter) visit(n expr.Node, enabled bool) {
	switch x := n.(type) {
	case *expr.Scoped:
		if x.Directive == expr.DisableFilter {
			l.addWarning("visibility filtering disabled below %s", expr.String(x.Inner))
		}
		l.visit(x.Inner, x.Directive == expr.EnableFilter)
		return
	case *expr.Source:
		if x.IsRaw() && enabled {
			if _, ok := security.Predicate(l.provider, x.Elem); !ok {
				l.addWarning("source %s has no visibility predicate", x.Elem)
			}
		}
	case *expr.Deferred:
		l.addWarning("deferred value %s is materialized as a column", expr.String(x.Expr))
	}
	for _, child := range expr.Children(n) {
		l.visit(child, enabled)
	}
}
