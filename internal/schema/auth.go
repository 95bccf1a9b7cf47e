package schema

import (
	"github.com/roach88/qtoken/internal/ir"
)

// AllowAll is the Authorizer that allows everything.
type AllowAll struct{}

// PropertyAllowed implements Authorizer.
func (AllowAll) PropertyAllowed(ir.PropertyRoute) string { return "" }

// TypeAllowed implements Authorizer.
func (AllowAll) TypeAllowed(*ir.Type) string { return "" }

// Rules is a static Authorizer keyed by route text ("Order.Lines/Price")
// and type name. Values are denial reasons.
type Rules struct {
	Properties map[string]string `yaml:"properties"`
	Types      map[string]string `yaml:"types"`
}

// PropertyAllowed implements Authorizer. Only the exact route matches;
// tokens below a denied route inherit the denial through their parent.
func (r Rules) PropertyAllowed(route ir.PropertyRoute) string {
	return r.Properties[route.String()]
}

// TypeAllowed implements Authorizer.
func (r Rules) TypeAllowed(t *ir.Type) string {
	if t == nil {
		return ""
	}
	return r.Types[t.CleanType().Name]
}
