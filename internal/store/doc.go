// Package store provides the store capability the query layer runs on, and
// a SQLite-backed implementation of it.
//
// The capability mirrors a document store whose query engine accepts only a
// conjunction of single-column comparisons per query:
//   - Query: one queryir.SubQuery (no OR, no NOT, no compound operators)
//   - Get: batched point reads by key, capped at MaxBatchSize keys
//
// # Data Layout
//
//   - entities: one row per entity, keyed by the order-preserving key
//     encoding, properties stored as a msgpack blob
//   - property_index: one row per scalar value or list element, holding
//     the order-preserving index encoding
//
// Filters are evaluated against property_index with BLOB comparison, which
// gives typed cross-type ordering and existential list semantics for free.
//
// # Transactions
//
// RunInTransaction emulates the store's isolation: reads inside the
// transaction see committed state only; puts and deletes are buffered and
// applied atomically at commit. Two records put in the same transaction
// cannot see each other.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - _txlock=immediate: Transactions take the write lock on BEGIN
package store
