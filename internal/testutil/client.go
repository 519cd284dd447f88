package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
	"github.com/roach88/disjunct/internal/store"
)

// ErrInjected is the default error returned by injected failures.
var ErrInjected = errors.New("injected store failure")

// RecordingClient wraps a store client and records every call.
//
// FailQuery and FailGet, when set, are consulted before delegating; a
// non-nil return fails the call without reaching the inner client.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type RecordingClient struct {
	Inner     store.Client
	FailQuery func(q queryir.SubQuery) error
	FailGet   func(keys []*ir.Key) error

	mu      sync.Mutex
	queries []queryir.SubQuery
	gets    [][]*ir.Key
}

// NewRecordingClient wraps inner.
func NewRecordingClient(inner store.Client) *RecordingClient {
	return &RecordingClient{Inner: inner}
}

// Query records q and delegates.
func (c *RecordingClient) Query(ctx context.Context, q queryir.SubQuery) (store.Cursor, error) {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	c.mu.Unlock()

	if c.FailQuery != nil {
		if err := c.FailQuery(q); err != nil {
			return nil, err
		}
	}
	return c.Inner.Query(ctx, q)
}

// Get records keys and delegates.
func (c *RecordingClient) Get(ctx context.Context, keys []*ir.Key) ([]*ir.Entity, error) {
	c.mu.Lock()
	c.gets = append(c.gets, slices.Clone(keys))
	c.mu.Unlock()

	if c.FailGet != nil {
		if err := c.FailGet(keys); err != nil {
			return nil, err
		}
	}
	return c.Inner.Get(ctx, keys)
}

// MaxBatchSize delegates.
func (c *RecordingClient) MaxBatchSize() int {
	return c.Inner.MaxBatchSize()
}

// RunInTransaction delegates when the inner client supports transactions.
// Transactional reads are not recorded.
func (c *RecordingClient) RunInTransaction(ctx context.Context, fn func(*store.Txn) error) error {
	w, ok := c.Inner.(interface {
		RunInTransaction(context.Context, func(*store.Txn) error) error
	})
	if !ok {
		return errors.New("recording client: inner client has no transactions")
	}
	return w.RunInTransaction(ctx, fn)
}

// Queries returns the recorded sub-queries in call order.
func (c *RecordingClient) Queries() []queryir.SubQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.queries)
}

// Gets returns the recorded point-read batches in call order.
func (c *RecordingClient) Gets() [][]*ir.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.gets)
}

// Calls returns the total number of store reads.
func (c *RecordingClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries) + len(c.gets)
}

// Reset forgets recorded calls.
func (c *RecordingClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = nil
	c.gets = nil
}
