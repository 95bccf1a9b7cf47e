package token

// Kind is the closed set of token kinds. Every switch over Kind in this
// module is exhaustive; adding a kind means extending enumeration,
// compilation, naming and allow checks together.
type Kind int

const (
	// KindRoot is the query root: the entity type being queried.
	KindRoot Kind = iota

	// KindProperty is a member of an entity or embedded type.
	KindProperty

	// KindQuantifier is Any/All/NoOne/AnyNo over a collection. Its value
	// never exists on its own; the compiler turns it into a quantified
	// predicate.
	KindQuantifier

	// KindMListRow is RowId or RowOrder of a child-table row.
	KindMListRow

	// KindExtension is a registered computed column.
	KindExtension

	// KindCast narrows a polymorphic reference to one implementation.
	KindCast

	// KindCount is the element count of a collection.
	KindCount

	// KindSnippet is the full-text snippet of a full-text indexed string.
	KindSnippet
)

var kindNames = [...]string{
	KindRoot:       "root",
	KindProperty:   "property",
	KindQuantifier: "quantifier",
	KindMListRow:   "mlist-row",
	KindExtension:  "extension",
	KindCast:       "cast",
	KindCount:      "count",
	KindSnippet:    "snippet",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Quantifier selects how a collection predicate is aggregated.
type Quantifier int

const (
	// Any: some element satisfies the predicate.
	Any Quantifier = iota
	// All: every element satisfies the predicate.
	All
	// NoOne: no element satisfies the predicate.
	NoOne
	// AnyNo: some element fails the predicate.
	AnyNo
)

// Quantifiers lists the quantifiers in enumeration order.
var Quantifiers = []Quantifier{Any, All, NoOne, AnyNo}

var quantifierKeys = [...]string{Any: "Any", All: "All", NoOne: "NoOne", AnyNo: "AnyNo"}

var quantifierNames = [...]string{Any: "Any", All: "All", NoOne: "No one", AnyNo: "Any no"}

func (q Quantifier) String() string {
	if int(q) < len(quantifierKeys) {
		return quantifierKeys[q]
	}
	return "unknown"
}

// ParseQuantifier resolves a quantifier key.
func ParseQuantifier(s string) (Quantifier, bool) {
	for i, k := range quantifierKeys {
		if k == s {
			return Quantifier(i), true
		}
	}
	return 0, false
}

// RowField is a synthetic column of an MList row.
type RowField int

const (
	RowId RowField = iota
	RowOrder
)

func (f RowField) String() string {
	if f == RowOrder {
		return "RowOrder"
	}
	return "RowId"
}

// Options selects which optional sub-tokens are offered.
type Options uint8

const (
	// OptAnyAll offers quantifiers under collections.
	OptAnyAll Options = 1 << iota
	// OptAggregates offers Count under collections.
	OptAggregates
	// OptCasts offers (Type) casts under polymorphic references.
	OptCasts
	// OptSnippet offers Snippet under full-text indexed strings.
	OptSnippet

	// OptAll enables every option.
	OptAll = OptAnyAll | OptAggregates | OptCasts | OptSnippet
)

// Has reports whether every bit of o is set.
func (opts Options) Has(o Options) bool { return opts&o == o }

var optionNames = map[string]Options{
	"anyall":     OptAnyAll,
	"aggregates": OptAggregates,
	"casts":      OptCasts,
	"snippet":    OptSnippet,
	"all":        OptAll,
}

// ParseOptions combines option names ("anyall", "aggregates", "casts",
// "snippet", "all").
func ParseOptions(names []string) (Options, bool) {
	var opts Options
	for _, n := range names {
		o, ok := optionNames[n]
		if !ok {
			return 0, false
		}
		opts |= o
	}
	return opts, true
}
