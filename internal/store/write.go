package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/disjunct/internal/ir"
)

// mutation is one buffered write. Exactly one field is set.
type mutation struct {
	put    *ir.Entity
	delete *ir.Key
}

// Txn is a store transaction. Reads see committed state; writes are
// buffered and applied in order at commit.
//
// Txn implements Client, so code written against the capability (such as
// unique constraint checks) runs unchanged inside a transaction.
type Txn struct {
	tx    *sql.Tx
	store *Store
	ops   []mutation
}

// Query runs a sub-query inside the transaction. Buffered writes are not
// visible.
func (t *Txn) Query(ctx context.Context, q SubQuery) (Cursor, error) {
	return runQuery(ctx, t.tx, t.store.compiler, q)
}

// Get performs a point read inside the transaction. Buffered writes are
// not visible.
func (t *Txn) Get(ctx context.Context, keys []*ir.Key) ([]*ir.Entity, error) {
	return getMulti(ctx, t.tx, keys, t.store.maxBatchSize)
}

// MaxBatchSize returns the store's Get cap.
func (t *Txn) MaxBatchSize() int {
	return t.store.maxBatchSize
}

// Put buffers entities for writing at commit. Incomplete keys are
// completed with a generated name; the returned keys are final.
func (t *Txn) Put(entities ...*ir.Entity) ([]*ir.Key, error) {
	keys := make([]*ir.Key, len(entities))
	for i, e := range entities {
		if err := validateEntity(e); err != nil {
			return nil, fmt.Errorf("put %d: %w", i, err)
		}
		stored := e.Clone()
		if stored.Key.Incomplete() {
			k := *stored.Key
			k.Name = t.store.names.Generate()
			stored.Key = &k
		}
		keys[i] = stored.Key
		t.ops = append(t.ops, mutation{put: stored})
	}
	return keys, nil
}

// Delete buffers key deletions. Missing keys are ignored at commit.
func (t *Txn) Delete(keys ...*ir.Key) {
	for _, k := range keys {
		if k != nil && !k.Incomplete() {
			t.ops = append(t.ops, mutation{delete: k})
		}
	}
}

// RunInTransaction runs fn in a transaction and commits its buffered
// writes. An error from fn rolls back and is returned unchanged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(*Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	t := &Txn{tx: tx, store: s}
	if err := fn(t); err != nil {
		return err
	}

	for _, op := range t.ops {
		if op.put != nil {
			err = writeEntity(ctx, tx, op.put)
		} else {
			err = deleteEntity(ctx, tx, op.delete)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Put writes entities in one transaction and returns their final keys.
func (s *Store) Put(ctx context.Context, entities ...*ir.Entity) ([]*ir.Key, error) {
	var keys []*ir.Key
	err := s.RunInTransaction(ctx, func(t *Txn) error {
		var err error
		keys, err = t.Put(entities...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes entities in one transaction.
func (s *Store) Delete(ctx context.Context, keys ...*ir.Key) error {
	return s.RunInTransaction(ctx, func(t *Txn) error {
		t.Delete(keys...)
		return nil
	})
}

func validateEntity(e *ir.Entity) error {
	if e == nil || e.Key == nil {
		return fmt.Errorf("entity has no key")
	}
	for k := e.Key; k != nil; k = k.Parent {
		if k.Kind == "" {
			return fmt.Errorf("key %s: empty kind", e.Key)
		}
		if k != e.Key && k.Incomplete() {
			return fmt.Errorf("key %s: incomplete ancestor", e.Key)
		}
	}
	if _, reserved := e.Properties[ir.KeyProperty]; reserved {
		return fmt.Errorf("property name %q is reserved", ir.KeyProperty)
	}
	return nil
}

// writeEntity upserts the entity row and replaces its index rows.
func writeEntity(ctx context.Context, tx *sql.Tx, e *ir.Entity) error {
	data, err := encodeProperties(e.Properties)
	if err != nil {
		return fmt.Errorf("write %s: %w", e.Key, err)
	}
	encKey := e.Key.Encode()

	if _, err := tx.ExecContext(ctx, `DELETE FROM property_index WHERE key = ?`, encKey); err != nil {
		return fmt.Errorf("write %s: clear index: %w", e.Key, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (key, kind, namespace, path, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET path = excluded.path, data = excluded.data
	`, encKey, e.Key.Kind, e.Key.Namespace, e.Key.String(), data)
	if err != nil {
		return fmt.Errorf("write %s: %w", e.Key, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO property_index (key, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("write %s: prepare index: %w", e.Key, err)
	}
	defer stmt.Close()

	for _, name := range e.PropertyNames() {
		rows, err := indexRows(e.Properties[name])
		if err != nil {
			return fmt.Errorf("write %s: index %q: %w", e.Key, name, err)
		}
		for _, value := range rows {
			if _, err := stmt.ExecContext(ctx, encKey, name, value); err != nil {
				return fmt.Errorf("write %s: index %q: %w", e.Key, name, err)
			}
		}
	}
	return nil
}

func deleteEntity(ctx context.Context, tx *sql.Tx, key *ir.Key) error {
	encKey := key.Encode()
	if _, err := tx.ExecContext(ctx, `DELETE FROM property_index WHERE key = ?`, encKey); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE key = ?`, encKey); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
