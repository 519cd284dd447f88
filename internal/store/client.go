package store

import (
	"context"
	"errors"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
)

// SubQuery is the store's native query shape.
type SubQuery = queryir.SubQuery

// ErrBatchTooLarge is returned by Get when more keys are requested than
// MaxBatchSize allows.
var ErrBatchTooLarge = errors.New("store: batch exceeds maximum size")

// Reader runs conjunctive queries. Both *Store and *Txn implement it.
type Reader interface {
	Query(ctx context.Context, q SubQuery) (Cursor, error)
}

// Client is the store capability the query layer consumes.
type Client interface {
	Reader

	// Get returns one slot per key, nil where the entity does not exist.
	Get(ctx context.Context, keys []*ir.Key) ([]*ir.Entity, error)

	// MaxBatchSize is the largest number of keys one Get accepts.
	MaxBatchSize() int
}

// Cursor iterates query results.
//
//	for c.Next() {
//		e := c.Entity()
//	}
//	if err := c.Err(); err != nil { ... }
//
// Keys-only queries yield entities with no properties.
type Cursor interface {
	Next() bool
	Entity() *ir.Entity
	Err() error
	Close() error
}

// SliceCursor iterates a materialized result list.
type SliceCursor struct {
	entities []*ir.Entity
	pos      int
}

// NewSliceCursor returns a cursor over entities.
func NewSliceCursor(entities []*ir.Entity) *SliceCursor {
	return &SliceCursor{entities: entities, pos: -1}
}

// Next advances to the next entity.
func (c *SliceCursor) Next() bool {
	if c.pos+1 >= len(c.entities) {
		c.pos = len(c.entities)
		return false
	}
	c.pos++
	return true
}

// Entity returns the current entity.
func (c *SliceCursor) Entity() *ir.Entity {
	if c.pos < 0 || c.pos >= len(c.entities) {
		return nil
	}
	return c.entities[c.pos]
}

// Err always returns nil: the results are already materialized.
func (c *SliceCursor) Err() error { return nil }

// Close releases nothing.
func (c *SliceCursor) Close() error { return nil }

// Collect drains and closes a cursor.
// Returns an empty slice (not nil) when there are no results.
func Collect(c Cursor) ([]*ir.Entity, error) {
	defer c.Close()
	out := []*ir.Entity{}
	for c.Next() {
		out = append(out, c.Entity())
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
