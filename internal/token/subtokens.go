package token

import (
	"github.com/roach88/qtoken/internal/ir"
)

// SubTokens enumerates the legal next steps from t under opts.
//
// The result depends only on the token's type, implementations, opts and
// the metadata in the tree's Env. Order is fixed: properties in declaration
// order, extensions by key, quantifiers, row fields, Count, Snippet, casts
// by type name. Tokens excluded by opts are not created. A type the schema
// does not know yields no sub-tokens.
//
// Sub-tokens are created on first enumeration and reused afterwards, so
// repeated calls return equal handles.
func (t Token) SubTokens(opts Options) []Token {
	var out []Token
	typ := t.Type()

	if typ.IsSequence() {
		if opts.Has(OptAnyAll) {
			for _, q := range Quantifiers {
				out = append(out, t.quantifier(q))
			}
		}
		if opts.Has(OptAggregates) {
			out = append(out, t.tree.child(t.idx, node{kind: KindCount, key: "Count", typ: ir.Int}))
		}
		return out
	}

	env := t.tree.env
	for _, p := range env.Schema.Properties(typ) {
		out = append(out, t.tree.child(t.idx, node{
			kind:  KindProperty,
			key:   p.Name,
			typ:   p.Type,
			impls: p.Implementations,
			prop:  p,
		}))
	}

	if clean := typ.CleanType(); clean != nil && clean.Kind != ir.KindScalar {
		for _, def := range env.Extensions.Lookup(clean) {
			out = append(out, t.tree.child(t.idx, extensionNode(def)))
		}
	}

	if t.Kind() == KindQuantifier {
		out = append(out, t.rowTokens()...)
	}

	if opts.Has(OptSnippet) {
		if p, ok := t.Property(); ok && p.FullText {
			out = append(out, t.tree.child(t.idx, node{kind: KindSnippet, key: "Snippet", typ: ir.String}))
		}
	}

	if opts.Has(OptCasts) {
		out = append(out, t.casts()...)
	}
	return out
}

// SubToken returns the sub-token with key, if it is offered under opts.
func (t Token) SubToken(key string, opts Options) (Token, bool) {
	for _, s := range t.SubTokens(opts) {
		if s.Key() == key {
			return s, true
		}
	}
	return Token{}, false
}

func (t Token) quantifier(q Quantifier) Token {
	elem := t.Type().ElementType().CleanType()
	return t.tree.child(t.idx, node{
		kind:  KindQuantifier,
		key:   q.String(),
		typ:   elem,
		impls: t.Implementations(),
		quant: q,
	})
}

// rowTokens offers RowId (and RowOrder for ordered lists) under a
// quantifier over an MList, provided the MList has an entity anchor.
func (t Token) rowTokens() []Token {
	coll, _ := t.Parent()
	p, ok := coll.Property()
	if !ok || !p.MList {
		return nil
	}
	if _, ok := coll.Anchor(); !ok {
		return nil
	}
	out := []Token{t.tree.child(t.idx, node{kind: KindMListRow, key: RowId.String(), typ: ir.Int, row: RowId})}
	if p.PreserveOrder {
		out = append(out, t.tree.child(t.idx, node{kind: KindMListRow, key: RowOrder.String(), typ: ir.Int, row: RowOrder}))
	}
	return out
}

// casts offers one (Type) token per implementation of a polymorphic
// reference, in name order. Lite references cast to lites.
func (t Token) casts() []Token {
	typ := t.Type()
	if !typ.IsEntityLike() || !t.Implementations().IsPolymorphic() {
		return nil
	}
	impls := t.Implementations().Types()
	out := make([]Token, 0, len(impls))
	for _, impl := range impls {
		ct := impl
		if typ.Kind == ir.KindLite {
			ct = ir.LiteOf(impl)
		}
		out = append(out, t.tree.child(t.idx, node{
			kind:  KindCast,
			key:   "(" + impl.Name + ")",
			typ:   ct,
			impls: ir.ImplementedBy(impl),
		}))
	}
	return out
}
