// Package compile turns query tokens into expression trees.
//
// A Context binds the root token to a single parameter and memoizes every
// token it builds. Quantifier tokens are never built directly: a caller
// opens a Scope, binds the quantifier to a fresh element parameter and
// wraps the scope's result with BuildAnyAll.
//
//	Order.Lines.Any.Quantity > 5
//	  => Any(e.Lines, e1 => (e1.Quantity > 5))
//
// Contexts are per compilation and not safe for concurrent use.
package compile

import (
	"fmt"
	"strconv"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/token"
)

// RootName is the name of the root parameter. Fresh parameters are named
// RootName followed by a sequence number: e1, e2, ...
const RootName = "e"

// InvariantError reports a programming error in the use of the compiler,
// such as building a quantifier outside of its scope. It is raised with
// panic and is never returned.
type InvariantError struct {
	// Token is the full path of the offending token.
	Token string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("compile: %s: %s", e.Token, e.Message)
}

// Context is the build state of one compilation scope.
type Context struct {
	root   token.Token
	param  *expr.Parameter
	parent *Context
	memo   map[token.Token]expr.Node
	seq    *int
}

// NewContext creates the outermost context for the tree of root. The root
// token is bound to a parameter of its type named RootName.
func NewContext(root token.Token) *Context {
	p := expr.Param(RootName, root.Type())
	c := &Context{
		root:  root,
		param: p,
		memo:  make(map[token.Token]expr.Node),
		seq:   new(int),
	}
	c.memo[root] = p
	return c
}

// Parameter returns the root parameter.
func (c *Context) Parameter() *expr.Parameter { return c.param }

// Scope returns a child context. It sees every binding of c; bindings made
// in the child stay invisible to c.
func (c *Context) Scope() *Context {
	return &Context{
		root:   c.root,
		param:  c.param,
		parent: c,
		memo:   make(map[token.Token]expr.Node),
		seq:    c.seq,
	}
}

// Fresh returns a new parameter of type t with a name unique within the
// compilation.
func (c *Context) Fresh(t *ir.Type) *expr.Parameter {
	*c.seq++
	return expr.Param(RootName+strconv.Itoa(*c.seq), t)
}

// Bind associates tok with n in this scope. Binding the same token twice
// in one scope panics.
func (c *Context) Bind(tok token.Token, n expr.Node) {
	if _, dup := c.memo[tok]; dup {
		panic(&InvariantError{Token: tok.String(), Message: "token is already bound in this scope"})
	}
	c.memo[tok] = n
}

// Bound reports whether tok has an expression in c or an enclosing scope.
func (c *Context) Bound(tok token.Token) bool {
	_, ok := c.lookup(tok)
	return ok
}

func (c *Context) lookup(tok token.Token) (expr.Node, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if n, ok := cur.memo[tok]; ok {
			return n, true
		}
	}
	return nil, false
}

// owner returns the scope whose memo holds tok: the innermost scope
// binding a quantifier of its chain, or the outermost one when the chain has
// none.
func (c *Context) owner(tok token.Token) *Context {
	var quants []token.Token
	for _, step := range tok.Chain() {
		if step.Kind() == token.KindQuantifier {
			quants = append(quants, step)
		}
	}
	cur := c
	for ; cur.parent != nil; cur = cur.parent {
		for _, q := range quants {
			if _, ok := cur.memo[q]; ok {
				return cur
			}
		}
	}
	return cur
}

// isolated returns a context of the same compilation that shares no
// bindings with c. It is used to build paths relative to a fresh
// parameter.
func (c *Context) isolated() *Context {
	return &Context{
		root:  c.root,
		param: c.param,
		memo:  make(map[token.Token]expr.Node),
		seq:   c.seq,
	}
}
