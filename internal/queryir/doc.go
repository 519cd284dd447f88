// Package queryir provides the filter tree and query types the ORM layer
// hands to the planner, and the evaluator used to re-check entities in
// memory.
//
// ARCHITECTURE:
//
//	[ORM filter tree] → [normalize: DNF] → [planner] → [engine executors]
//
// The store behind the engine only executes a conjunction of single-column
// comparisons per sub-query. Everything richer (OR, NOT, IN, RANGE,
// ISNULL, STARTSWITH) exists only in this package's tree and is rewritten
// away by the normalizer.
//
// SEALED INTERFACES:
//
// Node is a sealed interface using the marker method pattern. Only Leaf and
// Branch implement it, so backends can switch exhaustively:
//
//	switch n := node.(type) {
//	case Leaf:
//	    // single-column comparison
//	case Branch:
//	    // AND/OR over children, possibly negated
//	}
//
// Op is a closed enum. Eq, Lt, Lte, Gt and Gte are primitive and may reach
// the store; In, Range, IsNull and StartsWith are compound and must be
// exploded first.
//
// EVALUATION SEMANTICS:
//
// Match mirrors what the store does with a single sub-query:
//   - a missing property matches no comparison
//   - a list property matches a comparison if any element does
//   - values of different types compare by type rank (see ir.Compare)
//
// Under these rules normalization preserves the set of matching entities
// whenever the filtered properties are present and single-valued. Negation
// over list-valued or missing properties cannot be expressed by the store,
// which is a documented limitation rather than a rewrite bug.
package queryir
