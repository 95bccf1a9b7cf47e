// Package query assembles a logical query from a request made of token
// paths: columns, filters, orders and pagination over one root entity.
//
// The logical query has the shape
//
//	Select(Take(Skip(ThenBy(OrderBy(Where(Source(Root), e => filter), e => k1), e => k2))), e => new {...})
//
// and the filtered query is the logical query after visibility filter
// injection. Filters through collections become Any/All calls in nested
// scopes with fresh parameters e1, e2, ...
package query

import (
	"github.com/roach88/qtoken/internal/expr"
)

// Request describes one query.
type Request struct {
	// Root is the name of the queried entity type.
	Root string

	// Columns are the projected token paths, in output order.
	Columns []Column

	// Filters are joined with &&.
	Filters []Filter

	// Orders are applied in sequence: OrderBy, then ThenBy.
	Orders []Order

	// Pagination limits the result rows. The zero value returns all rows.
	Pagination Pagination

	// DisableFilters compiles the source inside a DisableFilter scope, so
	// no visibility predicate is injected.
	DisableFilters bool
}

// Column is one projected token.
type Column struct {
	Token       string
	DisplayName string // defaults to the token's nice name
}

// Filter is a condition or a group of conditions.
//
// This is a sealed interface - only types in this package implement it.
//
// Filter types:
//   - Condition: token <operation> value
//   - Group: conditions joined with && or ||, optionally under a quantifier
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// Condition compares a token with a constant.
type Condition struct {
	Token     string
	Operation Operation
	Value     any // []any for IsIn and IsNotIn
}

func (Condition) filterNode() {}

// Group joins filters. With a Prefix naming a quantifier token
// ("Lines.Any"), the whole group becomes one quantified condition: every
// member is evaluated against the same element.
type Group struct {
	Or      bool
	Prefix  string
	Filters []Filter
}

func (Group) filterNode() {}

// Order sorts by a token.
type Order struct {
	Token      string
	Descending bool
}

// Operation is a filter comparison.
type Operation string

// Filter operations.
const (
	EqualTo            Operation = "EqualTo"
	DistinctTo         Operation = "DistinctTo"
	GreaterThan        Operation = "GreaterThan"
	GreaterThanOrEqual Operation = "GreaterThanOrEqual"
	LessThan           Operation = "LessThan"
	LessThanOrEqual    Operation = "LessThanOrEqual"
	Contains           Operation = "Contains"
	StartsWith         Operation = "StartsWith"
	EndsWith           Operation = "EndsWith"
	NotContains        Operation = "NotContains"
	IsIn               Operation = "IsIn"
	IsNotIn            Operation = "IsNotIn"
)

// Operations lists every operation.
var Operations = []Operation{
	EqualTo, DistinctTo, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual,
	Contains, StartsWith, EndsWith, NotContains, IsIn, IsNotIn,
}

var comparisons = map[Operation]expr.BinaryOp{
	EqualTo:            expr.OpEqual,
	DistinctTo:         expr.OpNotEqual,
	GreaterThan:        expr.OpGreater,
	GreaterThanOrEqual: expr.OpGreaterOrEqual,
	LessThan:           expr.OpLess,
	LessThanOrEqual:    expr.OpLessOrEqual,
}

var textCalls = map[Operation]expr.Method{
	Contains:    expr.MethodContains,
	StartsWith:  expr.MethodStartsWith,
	EndsWith:    expr.MethodEndsWith,
	NotContains: expr.MethodContains,
}

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	_, cmp := comparisons[op]
	_, text := textCalls[op]
	return cmp || text || op == IsIn || op == IsNotIn
}

// PaginationMode selects how rows are limited.
type PaginationMode int

const (
	// PageAll returns every row.
	PageAll PaginationMode = iota
	// PageFirsts returns the first Elements rows.
	PageFirsts
	// PagePaginate returns page Page (1-based) of Elements rows.
	PagePaginate
)

// Pagination limits the rows of a query.
type Pagination struct {
	Mode     PaginationMode
	Elements int
	Page     int
}

// All returns every row.
func All() Pagination { return Pagination{Mode: PageAll} }

// Firsts returns the first n rows.
func Firsts(n int) Pagination { return Pagination{Mode: PageFirsts, Elements: n} }

// Paginate returns page (1-based) of size rows.
func Paginate(size, page int) Pagination {
	return Pagination{Mode: PagePaginate, Elements: size, Page: page}
}
