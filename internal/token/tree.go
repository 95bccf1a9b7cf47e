// Package token models query tokens: typed, string-addressable steps
// through the entity graph such as Order.Lines.Any.Quantity.
//
// ARENA:
//
// All tokens of one compilation live in a Tree. A Token is a small
// comparable handle (tree, index), usable as a map key. The parent link is
// an index into the same arena, so cloning a tree is a bulk copy of its
// node slice and every compilation owns an independent tree by
// construction.
//
// Trees are not safe for concurrent use. Schema metadata and registries
// consulted by a tree (the Env) are shared and read-only.
package token

import (
	"maps"
	"slices"

	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/schema"
)

// Env is the long-lived metadata a tree consults.
type Env struct {
	Schema     schema.Provider
	Auth       schema.Authorizer
	Extensions *extension.Registry
}

func (e *Env) auth() schema.Authorizer {
	if e.Auth == nil {
		return schema.AllowAll{}
	}
	return e.Auth
}

const noParent = -1

type node struct {
	kind   Kind
	key    string
	parent int
	typ    *ir.Type
	impls  ir.Implementations

	prop  *schema.Property
	quant Quantifier
	row   RowField
	ext   *extension.Definition

	niceName string
}

type childKey struct {
	parent int
	key    string
}

// Tree is the arena owning every token of one compilation.
type Tree struct {
	env      *Env
	nodes    []node
	children map[childKey]int
}

// NewTree creates a tree rooted at type root.
func NewTree(env *Env, root *ir.Type) *Tree {
	t := &Tree{env: env, children: make(map[childKey]int)}
	n := node{kind: KindRoot, key: root.Name, parent: noParent, typ: root}
	if impls, ok := env.Schema.Implementations(root); ok {
		n.impls = impls
	}
	t.nodes = append(t.nodes, n)
	return t
}

// Root returns the root token.
func (t *Tree) Root() Token { return Token{tree: t, idx: 0} }

// Env returns the metadata environment.
func (t *Tree) Env() *Env { return t.env }

// Len returns the number of tokens created so far.
func (t *Tree) Len() int { return len(t.nodes) }

// Clone deep-copies the arena. Tokens of the clone belong to the clone;
// later changes to either tree are invisible to the other.
func (t *Tree) Clone() *Tree {
	return &Tree{
		env:      t.env,
		nodes:    slices.Clone(t.nodes),
		children: maps.Clone(t.children),
	}
}

// child returns the existing child with key, or adds n.
func (t *Tree) child(parent int, n node) Token {
	ck := childKey{parent: parent, key: n.key}
	if idx, ok := t.children[ck]; ok {
		return Token{tree: t, idx: idx}
	}
	n.parent = parent
	t.nodes = append(t.nodes, n)
	idx := len(t.nodes) - 1
	t.children[ck] = idx
	return Token{tree: t, idx: idx}
}

// Extend attaches an extension that is not in the registry to parent.
// The definition is validated like a registration; an invalid definition
// panics, since it is a programming error of the extension author.
func (t *Tree) Extend(parent Token, def *extension.Definition) Token {
	if parent.tree != t {
		panic("token: Extend with a token of another tree")
	}
	prepared, err := extension.Prepare(def)
	if err != nil {
		panic(err)
	}
	return t.child(parent.idx, extensionNode(prepared))
}

func extensionNode(def *extension.Definition) node {
	return node{kind: KindExtension, key: def.Key, typ: def.Type, impls: def.Implementations, ext: def}
}
