package token

import (
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/schema"
)

// Token is a handle to one node of a Tree. Tokens are comparable; two
// handles are equal when they address the same node of the same tree.
type Token struct {
	tree *Tree
	idx  int
}

func (t Token) n() *node { return &t.tree.nodes[t.idx] }

// IsZero reports whether t is the zero handle.
func (t Token) IsZero() bool { return t.tree == nil }

// Tree returns the owning tree.
func (t Token) Tree() *Tree { return t.tree }

// Kind returns the token kind.
func (t Token) Kind() Kind { return t.n().kind }

// Key returns the token key, unique among siblings.
func (t Token) Key() string { return t.n().key }

// Parent returns the enclosing token; ok is false at the root.
func (t Token) Parent() (Token, bool) {
	p := t.n().parent
	if p == noParent {
		return Token{}, false
	}
	return Token{tree: t.tree, idx: p}, true
}

// Chain returns the tokens from the root down to t.
func (t Token) Chain() []Token {
	var out []Token
	for cur, ok := t, true; ok; cur, ok = cur.Parent() {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// FullKey returns the dotted keys from the first step below the root down
// to t, e.g. "Lines.Any.Quantity". The root's full key is empty.
func (t Token) FullKey() string {
	chain := t.Chain()[1:]
	keys := make([]string, len(chain))
	for i, c := range chain {
		keys[i] = c.Key()
	}
	return strings.Join(keys, ".")
}

// String returns the root key followed by the full key.
func (t Token) String() string {
	if t.IsZero() {
		return "<zero>"
	}
	root := t.tree.Root().Key()
	if fk := t.FullKey(); fk != "" {
		return root + "." + fk
	}
	return root
}

// Type returns the value type.
func (t Token) Type() *ir.Type { return t.n().typ }

// Implementations returns the concrete types an entity-like token may hold.
func (t Token) Implementations() ir.Implementations { return t.n().impls }

// Property returns the schema property of a property token.
func (t Token) Property() (*schema.Property, bool) {
	n := t.n()
	return n.prop, n.kind == KindProperty
}

// Quantifier returns the quantifier of a quantifier token.
func (t Token) Quantifier() (Quantifier, bool) {
	n := t.n()
	return n.quant, n.kind == KindQuantifier
}

// RowField returns the field of an MList row token.
func (t Token) RowField() (RowField, bool) {
	n := t.n()
	return n.row, n.kind == KindMListRow
}

// Extension returns the definition of an extension token.
func (t Token) Extension() (*extension.Definition, bool) {
	n := t.n()
	return n.ext, n.kind == KindExtension
}

// HasQuantifier reports whether t or one of its ancestors is a quantifier.
func (t Token) HasQuantifier() bool {
	return t.Follows(KindQuantifier)
}

// HasExtension reports whether t or one of its ancestors is an extension.
func (t Token) HasExtension() bool {
	return t.Follows(KindExtension)
}

// Follows reports whether t or one of its ancestors has kind k.
func (t Token) Follows(k Kind) bool {
	for cur, ok := t, true; ok; cur, ok = cur.Parent() {
		if cur.Kind() == k {
			return true
		}
	}
	return false
}

// Route returns the property route of the token. Casts start a new route
// at the cast type. Tokens that are not backed by a property (row fields,
// extensions, aggregates) have no route.
func (t Token) Route() (ir.PropertyRoute, bool) {
	switch t.Kind() {
	case KindRoot:
		return ir.NewRoute(t.Type().CleanType()), true
	case KindCast:
		return ir.NewRoute(t.Type().CleanType()), true
	case KindProperty:
		p, _ := t.Parent()
		r, ok := p.Route()
		if !ok {
			return ir.PropertyRoute{}, false
		}
		return r.Add(t.Key()), true
	case KindQuantifier:
		p, _ := t.Parent()
		r, ok := p.Route()
		if !ok {
			return ir.PropertyRoute{}, false
		}
		return r.Add("/"), true
	case KindMListRow, KindExtension, KindCount, KindSnippet:
		return ir.PropertyRoute{}, false
	default:
		panic("token: unknown kind " + t.Kind().String())
	}
}

// Format returns the display format. Collections and quantifiers inherit
// from their parent; projection extensions expose their format through
// ElementFormat instead.
func (t Token) Format() string {
	f, _ := t.formatUnit()
	return f
}

// Unit returns the display unit, following the same rules as Format.
func (t Token) Unit() string {
	_, u := t.formatUnit()
	return u
}

// ElementFormat returns the format of the elements of a projection
// extension, or Format for other tokens.
func (t Token) ElementFormat() string {
	if def, ok := t.Extension(); ok && def.Projection {
		return def.Format
	}
	return t.Format()
}

// ElementUnit returns the unit of the elements of a projection extension,
// or Unit for other tokens.
func (t Token) ElementUnit() string {
	if def, ok := t.Extension(); ok && def.Projection {
		return def.Unit
	}
	return t.Unit()
}

func (t Token) formatUnit() (string, string) {
	switch t.Kind() {
	case KindRoot, KindMListRow, KindCount, KindSnippet:
		return "", ""
	case KindProperty:
		r, ok := t.Route()
		if !ok {
			return "", ""
		}
		return t.tree.env.Schema.FormatUnit(r)
	case KindQuantifier, KindCast:
		p, _ := t.Parent()
		return p.formatUnit()
	case KindExtension:
		def := t.n().ext
		if def.Projection {
			return "", ""
		}
		return def.Format, def.Unit
	default:
		panic("token: unknown kind " + t.Kind().String())
	}
}

// IsAllowed returns "" when the token may be used, otherwise the reason it
// may not. Reasons of the token and its parent are joined with " and ".
func (t Token) IsAllowed() string {
	own := t.ownAllowed()
	p, ok := t.Parent()
	if !ok {
		return own
	}
	parent := p.IsAllowed()
	switch {
	case own == "":
		return parent
	case parent == "":
		return own
	default:
		return own + " and " + parent
	}
}

func (t Token) ownAllowed() string {
	auth := t.tree.env.auth()
	switch t.Kind() {
	case KindRoot, KindCast:
		return auth.TypeAllowed(t.Type())
	case KindProperty:
		r, ok := t.Route()
		if !ok {
			return ""
		}
		return auth.PropertyAllowed(r)
	case KindExtension:
		return t.n().ext.IsAllowed()
	case KindQuantifier, KindMListRow, KindCount, KindSnippet:
		return ""
	default:
		panic("token: unknown kind " + t.Kind().String())
	}
}

// NiceName returns the display name of the token.
func (t Token) NiceName() string {
	n := t.n()
	if n.niceName != "" {
		return n.niceName
	}
	switch n.kind {
	case KindRoot:
		return humanize(n.key)
	case KindProperty:
		return humanize(n.key)
	case KindQuantifier:
		p, _ := t.Parent()
		return quantifierNames[n.quant] + " " + inflect.Singularize(p.NiceName())
	case KindMListRow:
		if n.row == RowOrder {
			return "Row order"
		}
		return "Row id"
	case KindExtension:
		return n.ext.DisplayName()
	case KindCast:
		return "As " + humanize(n.typ.CleanType().Name)
	case KindCount:
		return "Count"
	case KindSnippet:
		return "Snippet"
	default:
		panic("token: unknown kind " + n.kind.String())
	}
}

// SetNiceName overrides the display name of this token in its tree only.
func (t Token) SetNiceName(name string) { t.n().niceName = name }

// Clone copies the whole tree and returns the handle of t in the copy.
func (t Token) Clone() Token {
	return Token{tree: t.tree.Clone(), idx: t.idx}
}

// Anchor returns the nearest strict ancestor whose type is an entity.
func (t Token) Anchor() (Token, bool) {
	for cur, ok := t.Parent(); ok; cur, ok = cur.Parent() {
		if cur.Type().CleanType().IsEntity() {
			return cur, true
		}
	}
	return Token{}, false
}

func humanize(s string) string {
	return inflect.Humanize(inflect.Underscore(s))
}
