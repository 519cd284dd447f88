package engine

import (
	"context"
	"fmt"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/model"
	"github.com/roach88/disjunct/internal/store"
	"github.com/roach88/disjunct/internal/unique"
)

// Transactor is a store client that can run write transactions.
type Transactor interface {
	store.Client
	RunInTransaction(ctx context.Context, fn func(*store.Txn) error) error
}

// Put writes entities of kind m.Kind in one transaction and returns their
// final keys.
//
// Every record's unique combinations are checked inside the transaction,
// then the batch is cross-checked in memory because siblings cannot see
// each other before commit. Violations return *unique.IntegrityError and
// nothing is written. Cached copies of the written keys are invalidated
// after commit.
func (e *Engine) Put(ctx context.Context, m *model.Model, entities ...*ir.Entity) ([]*ir.Key, error) {
	w, ok := e.client.(Transactor)
	if !ok {
		return nil, ErrReadOnly
	}
	if m == nil {
		m = &model.Model{}
	}

	var keys []*ir.Key
	err := w.RunInTransaction(ctx, func(tx *store.Txn) error {
		for _, ent := range entities {
			if err := unique.Check(ctx, tx, m, ent, unique.DifferentIdentity); err != nil {
				return err
			}
		}
		if err := unique.CheckInMemory(m, entities); err != nil {
			return err
		}
		var err error
		keys, err = tx.Put(entities...)
		return err
	})
	if err != nil {
		if unique.IsIntegrityError(err) {
			e.metrics.IntegrityViolations.Inc()
			e.logger.Warn("write rejected", "kind", m.Kind, "error", err)
			return nil, err
		}
		return nil, fmt.Errorf("put %d entities: %w", len(entities), err)
	}

	e.cache.Invalidate(keys...)
	e.logger.Debug("entities written", "kind", m.Kind, "count", len(keys))
	return keys, nil
}

// Delete removes entities and invalidates their cached copies.
func (e *Engine) Delete(ctx context.Context, keys ...*ir.Key) error {
	w, ok := e.client.(Transactor)
	if !ok {
		return ErrReadOnly
	}
	err := w.RunInTransaction(ctx, func(tx *store.Txn) error {
		tx.Delete(keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %d keys: %w", len(keys), err)
	}
	e.cache.Invalidate(keys...)
	return nil
}
