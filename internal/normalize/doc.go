// Package normalize rewrites arbitrary filter trees into disjunctive normal
// form: an OR of branches, each branch a conjunction of primitive
// single-column comparisons.
//
// The rewrite is a sequence of pure passes over immutable queryir nodes:
//
//  1. explode: pushes negation down to the leaves (De Morgan) and expands
//     compound operators (IN, RANGE, ISNULL, STARTSWITH) and negated
//     comparisons into primitive ones, taking the ambient negation into
//     account.
//  2. flatten: inlines AND-in-AND and OR-in-OR, unwraps single-child
//     branches.
//  3. distribute: replaces an AND with OR children by the cartesian product
//     of those children.
//
// Passes repeat until none reports a change. The resulting branch count is
// known before distribution starts, so an over-wide filter fails with
// *TooManyBranchesError without ever materializing the product.
//
// Branches are then pruned and simplified:
//   - two equalities on __key__ with different keys make a branch
//     unsatisfiable
//   - bounds on the same column collapse to the tightest one
//   - conflicting equalities on the same scalar column make a branch
//     unsatisfiable
//
// When no branch survives, Normalize returns ErrEmptyResult. That is not a
// failure: the result set is statically known to be empty and callers must
// answer without contacting the store.
//
// # Value semantics
//
// The rewrite preserves the solution set under the store's comparison
// semantics for present, scalar properties: values of different types
// order by type rank, so NOT (a = v) is exactly (a < v OR a > v). Missing
// properties and list properties follow the store's existential semantics,
// under which negation is not expressible; the rewrite is the store's own
// reading of the negated filter in that case.
package normalize
