package ir

import (
	"slices"
	"strings"
)

// Kind classifies a Type.
type Kind int

const (
	// KindScalar is a primitive value (string, int, decimal, ...).
	KindScalar Kind = iota

	// KindEntity is a root, identity-bearing type with its own extent.
	KindEntity

	// KindEmbedded is a value type stored inside its owner.
	KindEmbedded

	// KindLite is a lightweight reference to an entity (id + display string).
	KindLite

	// KindCollection is an in-memory sequence of Elem.
	KindCollection

	// KindQueryable is a query source producing Elem rows.
	KindQueryable

	// KindMListElement is one row of a one-to-many child collection owned by
	// Parent, addressable on its own (row id, row order).
	KindMListElement
)

var kindNames = [...]string{
	KindScalar:       "scalar",
	KindEntity:       "entity",
	KindEmbedded:     "embedded",
	KindLite:         "lite",
	KindCollection:   "collection",
	KindQueryable:    "queryable",
	KindMListElement: "mlist-element",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Type describes the value type of a token or an expression node.
//
// Types are immutable after construction. Entity, embedded and scalar types
// are usually created once by a schema catalog and shared; composite types
// (collections, lites, queryables) are created on demand and compared with
// Equal rather than by pointer.
type Type struct {
	Name     string
	Kind     Kind
	Elem     *Type  // element for collection/queryable/mlist, target for lite
	Parent   *Type  // owning entity of an mlist element
	Property string // owning property of an mlist element
	Abstract bool   // entity with no concrete implementation of its own
}

// Built-in scalar types.
var (
	String   = ScalarOf("string")
	Int      = ScalarOf("int")
	Decimal  = ScalarOf("decimal")
	Bool     = ScalarOf("bool")
	DateTime = ScalarOf("datetime")
	Guid     = ScalarOf("guid")
)

// Scalars lists the built-in scalar types by name.
var Scalars = map[string]*Type{
	"string":   String,
	"int":      Int,
	"decimal":  Decimal,
	"bool":     Bool,
	"datetime": DateTime,
	"guid":     Guid,
}

// ScalarOf creates a scalar type.
func ScalarOf(name string) *Type {
	return &Type{Name: name, Kind: KindScalar}
}

// Entity creates a concrete entity type.
func Entity(name string) *Type {
	return &Type{Name: name, Kind: KindEntity}
}

// AbstractEntity creates a polymorphic entity type whose runtime values are
// always one of several concrete implementations.
func AbstractEntity(name string) *Type {
	return &Type{Name: name, Kind: KindEntity, Abstract: true}
}

// Embedded creates an embedded (value) type.
func Embedded(name string) *Type {
	return &Type{Name: name, Kind: KindEmbedded}
}

// LiteOf creates a lite reference to an entity type.
func LiteOf(t *Type) *Type {
	return &Type{Name: "Lite<" + t.Name + ">", Kind: KindLite, Elem: t}
}

// CollectionOf creates an in-memory collection type.
func CollectionOf(t *Type) *Type {
	return &Type{Name: "[]" + t.Name, Kind: KindCollection, Elem: t}
}

// QueryableOf creates a queryable source type.
func QueryableOf(t *Type) *Type {
	return &Type{Name: "Query<" + t.Name + ">", Kind: KindQueryable, Elem: t}
}

// MListElementOf creates the row type of the one-to-many collection
// parent.property whose elements are elem.
func MListElementOf(parent *Type, property string, elem *Type) *Type {
	return &Type{
		Name:     "MListElement<" + parent.Name + "." + property + ">",
		Kind:     KindMListElement,
		Elem:     elem,
		Parent:   parent,
		Property: property,
	}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// IsEntity reports whether t is an entity type.
func (t *Type) IsEntity() bool {
	return t != nil && t.Kind == KindEntity
}

// IsEntityLike reports whether values of t reference entities, either
// directly or through a lite.
func (t *Type) IsEntityLike() bool {
	return t != nil && (t.Kind == KindEntity || t.Kind == KindLite)
}

// IsSequence reports whether t is a collection or a queryable.
func (t *Type) IsSequence() bool {
	return t != nil && (t.Kind == KindCollection || t.Kind == KindQueryable)
}

// CleanType unwraps a lite to its entity type. Other types are returned as is.
func (t *Type) CleanType() *Type {
	if t != nil && t.Kind == KindLite {
		return t.Elem
	}
	return t
}

// ElementType returns the element type of a sequence, or nil.
func (t *Type) ElementType() *Type {
	if t.IsSequence() {
		return t.Elem
	}
	return nil
}

// Equal reports whether a and b describe the same type.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind || a.Name != b.Name || a.Abstract != b.Abstract {
		return false
	}
	switch a.Kind {
	case KindLite, KindCollection, KindQueryable:
		return Equal(a.Elem, b.Elem)
	case KindMListElement:
		return a.Property == b.Property && Equal(a.Parent, b.Parent) && Equal(a.Elem, b.Elem)
	default:
		return true
	}
}

// Implementations is the closed set of concrete entity types a polymorphic
// reference may hold at runtime. The zero value means "not applicable".
type Implementations struct {
	types []*Type
}

// ImplementedBy creates an implementation set. Types are sorted by name and
// de-duplicated.
func ImplementedBy(types ...*Type) Implementations {
	out := make([]*Type, 0, len(types))
	for _, t := range types {
		if t == nil || slices.ContainsFunc(out, func(o *Type) bool { return o.Name == t.Name }) {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Type) int { return strings.Compare(a.Name, b.Name) })
	return Implementations{types: out}
}

// Types returns the implementing types in name order.
func (i Implementations) Types() []*Type {
	return slices.Clone(i.types)
}

// IsEmpty reports whether the set has no members.
func (i Implementations) IsEmpty() bool {
	return len(i.types) == 0
}

// IsPolymorphic reports whether more than one concrete type is possible.
func (i Implementations) IsPolymorphic() bool {
	return len(i.types) > 1
}

// Contains reports whether t is one of the implementations.
func (i Implementations) Contains(t *Type) bool {
	return slices.ContainsFunc(i.types, func(o *Type) bool { return Equal(o, t) })
}

// Equal reports whether both sets have the same members.
func (i Implementations) Equal(o Implementations) bool {
	return slices.EqualFunc(i.types, o.types, Equal)
}

func (i Implementations) String() string {
	names := make([]string, len(i.types))
	for n, t := range i.types {
		names[n] = t.Name
	}
	return "ImplementedBy(" + strings.Join(names, ", ") + ")"
}

// PropertyRoute addresses a property starting from a root type, e.g.
// Order.Lines/Quantity. A "/" follows every step that enters a collection.
type PropertyRoute struct {
	Root *Type
	Path []string
}

// NewRoute creates a route on root.
func NewRoute(root *Type, path ...string) PropertyRoute {
	return PropertyRoute{Root: root, Path: slices.Clone(path)}
}

// Add returns a new route extended by step. A step entering a collection
// element is written "/" and joins the next property without a dot.
func (r PropertyRoute) Add(step string) PropertyRoute {
	path := make([]string, len(r.Path), len(r.Path)+1)
	copy(path, r.Path)
	return PropertyRoute{Root: r.Root, Path: append(path, step)}
}

func (r PropertyRoute) String() string {
	var b strings.Builder
	b.WriteString(r.Root.String())
	prev := ""
	for _, step := range r.Path {
		switch {
		case step == "/":
			b.WriteString("/")
		case prev == "/":
			b.WriteString(step)
		default:
			b.WriteString(".")
			b.WriteString(step)
		}
		prev = step
	}
	return b.String()
}
