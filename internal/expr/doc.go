// Package expr provides the expression algebra that query tokens compile to.
//
// ARCHITECTURE:
//
// Expressions flow through three stages, each a pure tree-to-tree function:
//
//	[tokens + filters] → compile/query → [logical tree]
//	[logical tree]     → security      → [filtered tree]
//	[filtered tree]    → query.Physical → [physical tree]
//	[physical tree]    → materialize   → [deduplicated projection]
//
// query.Physical lowers the final Select(src, e => new {...}) into a
// Select/Projection pair and hands it to materialize.
//
// SEALED INTERFACE:
//
// Node is sealed with a marker method. Rewriters switch exhaustively over
// the node types and panic on an unknown one, so adding a node type means
// touching Map, Equal and the printer together.
//
// IMMUTABILITY:
//
// Nodes are never mutated after construction. Map rebuilds only the spine
// that changed and returns the original pointer when nothing did.
//
// IDENTITY:
//
// Parameters are variables compared by pointer. Equal treats lambda-bound
// parameters positionally (alpha-equivalence); Fingerprint hashes a
// canonical rendering with the same property and is used as a dedup key.
package expr
