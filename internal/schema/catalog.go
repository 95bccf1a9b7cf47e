package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
)

// ErrFrozen is returned when a catalog or registry is modified after Freeze.
var ErrFrozen = errors.New("schema: catalog is frozen")

// DefinitionError reports an invalid type or property declaration.
type DefinitionError struct {
	Type    string
	Message string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Type, e.Message)
}

type typeInfo struct {
	typ    *ir.Type
	props  []*Property
	byName map[string]*Property
}

type formatUnit struct {
	format, unit string
}

// Catalog is the in-memory Provider. It is populated during a build phase
// and becomes read-only after Freeze.
type Catalog struct {
	types      map[string]*typeInfo
	order      []string
	impls      map[string]ir.Implementations
	formats    map[string]formatUnit
	visibility *Visibility
	frozen     bool
}

var _ Provider = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		types:      make(map[string]*typeInfo),
		impls:      make(map[string]ir.Implementations),
		formats:    make(map[string]formatUnit),
		visibility: NewVisibility(),
	}
}

// Define declares an entity or embedded type with its properties.
// Property names must be unique within the type. Entity-valued properties
// without explicit implementations default to their own (concrete) type.
func (c *Catalog) Define(t *ir.Type, props ...*Property) error {
	if c.frozen {
		return ErrFrozen
	}
	if t == nil || (t.Kind != ir.KindEntity && t.Kind != ir.KindEmbedded) {
		return &DefinitionError{Type: t.String(), Message: "only entity and embedded types can be defined"}
	}
	if _, exists := c.types[t.Name]; exists {
		return &DefinitionError{Type: t.Name, Message: "already defined"}
	}

	info := &typeInfo{typ: t, byName: make(map[string]*Property, len(props))}
	for _, p := range props {
		if p.Name == "" || p.Type == nil {
			return &DefinitionError{Type: t.Name, Message: "property needs a name and a type"}
		}
		if _, dup := info.byName[p.Name]; dup {
			return &DefinitionError{Type: t.Name, Message: fmt.Sprintf("duplicate property %q", p.Name)}
		}
		if p.MList && p.Type.Kind != ir.KindCollection {
			return &DefinitionError{Type: t.Name, Message: fmt.Sprintf("property %q: mlist requires a collection type", p.Name)}
		}
		if p.PreserveOrder && !p.MList {
			return &DefinitionError{Type: t.Name, Message: fmt.Sprintf("property %q: preserve_order requires an mlist", p.Name)}
		}
		if p.FullText && !ir.Equal(p.Type, ir.String) {
			return &DefinitionError{Type: t.Name, Message: fmt.Sprintf("property %q: full-text requires a string", p.Name)}
		}
		ref := p.Type.CleanType()
		if p.Type.IsSequence() {
			ref = p.Type.Elem.CleanType()
		}
		if ref.IsEntity() && p.Implementations.IsEmpty() && !ref.Abstract {
			p.Implementations = ir.ImplementedBy(ref)
		}
		info.byName[p.Name] = p
		info.props = append(info.props, p)
	}
	c.types[t.Name] = info
	c.order = append(c.order, t.Name)
	return nil
}

// MustDefine is like Define but panics on error.
// Use only in tests or static schema setup.
func (c *Catalog) MustDefine(t *ir.Type, props ...*Property) {
	if err := c.Define(t, props...); err != nil {
		panic(err)
	}
}

// SetImplementations declares the concrete types of an abstract entity.
func (c *Catalog) SetImplementations(t *ir.Type, impls ir.Implementations) error {
	if c.frozen {
		return ErrFrozen
	}
	if !t.IsEntity() {
		return &DefinitionError{Type: t.String(), Message: "implementations apply to entity types"}
	}
	if impls.IsEmpty() {
		return &DefinitionError{Type: t.Name, Message: "empty implementation set"}
	}
	c.impls[t.Name] = impls
	return nil
}

// SetFormat overrides display metadata for the property at route.
func (c *Catalog) SetFormat(route ir.PropertyRoute, format, unit string) error {
	if c.frozen {
		return ErrFrozen
	}
	c.formats[route.String()] = formatUnit{format: format, unit: unit}
	return nil
}

// Restrict registers a CEL visibility predicate for entity type name. The
// predicate is compiled lazily on first use.
func (c *Catalog) Restrict(typeName, predicate string) error {
	if c.frozen {
		return ErrFrozen
	}
	return c.visibility.Define(typeName, CEL(predicate))
}

// RestrictFunc registers a visibility rule computed by fn.
func (c *Catalog) RestrictFunc(typeName string, fn Rule) error {
	if c.frozen {
		return ErrFrozen
	}
	return c.visibility.Define(typeName, fn)
}

// Visibility returns the visibility registry of the catalog.
func (c *Catalog) Visibility() *Visibility { return c.visibility }

// Freeze ends the build phase.
func (c *Catalog) Freeze() {
	c.frozen = true
	c.visibility.Freeze()
}

// Frozen reports whether Freeze was called.
func (c *Catalog) Frozen() bool { return c.frozen }

// Type implements Provider.
func (c *Catalog) Type(name string) (*ir.Type, bool) {
	if info, ok := c.types[name]; ok {
		return info.typ, true
	}
	if t, ok := ir.Scalars[name]; ok {
		return t, true
	}
	return nil, false
}

// Types returns the defined types in declaration order.
func (c *Catalog) Types() []*ir.Type {
	out := make([]*ir.Type, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.types[name].typ)
	}
	return out
}

// Properties implements Provider.
func (c *Catalog) Properties(t *ir.Type) []*Property {
	t = t.CleanType()
	if t == nil {
		return nil
	}
	if info, ok := c.types[t.Name]; ok {
		return slices.Clone(info.props)
	}
	return nil
}

// PropertyInfo implements Provider.
func (c *Catalog) PropertyInfo(t *ir.Type, path ...string) (*Property, bool) {
	var last *Property
	cur := t
	for _, step := range path {
		cur = cur.CleanType()
		if step == "/" {
			if cur.ElementType() == nil {
				return nil, false
			}
			cur = cur.ElementType()
			continue
		}
		info, ok := c.types[cur.String()]
		if !ok {
			return nil, false
		}
		p, ok := info.byName[step]
		if !ok {
			return nil, false
		}
		last, cur = p, p.Type
	}
	return last, last != nil
}

// Implementations implements Provider. A concrete entity implements
// itself; an abstract entity needs a declared set.
func (c *Catalog) Implementations(t *ir.Type) (ir.Implementations, bool) {
	t = t.CleanType()
	if !t.IsEntity() {
		return ir.Implementations{}, false
	}
	if impls, ok := c.impls[t.Name]; ok {
		return impls, true
	}
	if t.Abstract {
		return ir.Implementations{}, false
	}
	return ir.ImplementedBy(t), true
}

// VisibilityPredicate implements Provider.
func (c *Catalog) VisibilityPredicate(t *ir.Type) (*expr.Lambda, bool) {
	return c.visibility.Predicate(c, t)
}

// FormatUnit implements Provider. Explicit overrides win over the
// property's own metadata.
func (c *Catalog) FormatUnit(route ir.PropertyRoute) (string, string) {
	if fu, ok := c.formats[route.String()]; ok {
		return fu.format, fu.unit
	}
	if p, ok := c.PropertyInfo(route.Root, route.Path...); ok {
		return p.Format, p.Unit
	}
	return "", ""
}

// Describe renders the catalog as indented text, one type per block.
func (c *Catalog) Describe() string {
	var b strings.Builder
	for _, name := range c.order {
		info := c.types[name]
		kind := info.typ.Kind.String()
		if info.typ.Abstract {
			kind = "abstract " + kind
		}
		fmt.Fprintf(&b, "%s (%s)\n", name, kind)
		if impls, ok := c.impls[name]; ok {
			fmt.Fprintf(&b, "  = %s\n", impls)
		}
		for _, p := range info.props {
			fmt.Fprintf(&b, "  %s %s", p.Name, p.Type)
			var flags []string
			if p.MList {
				flags = append(flags, "mlist")
			}
			if p.PreserveOrder {
				flags = append(flags, "ordered")
			}
			if p.FullText {
				flags = append(flags, "fulltext")
			}
			if len(flags) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(flags, ","))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
