// Package engine executes query plans against a conjunctive store.
//
// The store answers one conjunction of single-column comparisons per query.
// The engine turns a planned disjunction into store reads and shapes the
// results back into one ordered, de-duplicated page:
//
//   - Single and fan-out plans run one sub-query per branch on a bounded
//     worker pool, join every worker, then k-way merge the sorted branch
//     results under the query's ordering with the key as final tiebreak.
//   - Key-batch plans replace queries with chunked point reads, then
//     re-filter and re-sort locally.
//   - Identity-cache plans look a unique combination up in the read-through
//     cache before falling back to a single sub-query.
//
// Any failed store read fails the whole request; no partial page is ever
// returned. Cached entities are never trusted without re-checking them
// against the query's own filters.
//
// Writes go through Put and Delete, which enforce unique combinations
// inside the write transaction and invalidate the cache after commit.
package engine
