package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/planner"
	"github.com/roach88/disjunct/internal/queryir"
	"github.com/roach88/disjunct/internal/store"
)

// fanOut runs every branch as its own sub-query and merges the results.
func (e *Engine) fanOut(ctx context.Context, p *planner.Plan, offset, limit int) (*Results, error) {
	subqueries := make([]queryir.SubQuery, len(p.Branches))
	for i := range p.Branches {
		subqueries[i] = p.SubQuery(i, fetchSize(offset, limit))
	}

	branches, err := e.runAll(ctx, subqueries)
	if err != nil {
		return nil, err
	}

	m := newMerger(p.Query, newComparator(p.Query.Order), branches, offset, limit)
	return newResults(m.next), nil
}

// runAll runs sub-queries on the worker pool and waits for all of them.
// The first failure by branch index fails the whole call.
func (e *Engine) runAll(ctx context.Context, subqueries []queryir.SubQuery) ([][]*ir.Entity, error) {
	results := make([][]*ir.Entity, len(subqueries))
	errs := make([]error, len(subqueries))

	if len(subqueries) == 1 {
		results[0], errs[0] = e.runOne(ctx, subqueries[0])
	} else {
		var wg sync.WaitGroup
		for i, sq := range subqueries {
			wg.Add(1)
			task := func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						errs[i] = fmt.Errorf("sub-query panic: %v", r)
					}
				}()
				results[i], errs[i] = e.runOne(ctx, sq)
			}
			if err := e.pool.Submit(task); err != nil {
				wg.Done()
				errs[i] = fmt.Errorf("submit sub-query: %w", err)
			}
		}
		wg.Wait()
	}

	for i, err := range errs {
		if err != nil {
			e.logger.Error("sub-query failed", "branch", i, "query", subqueries[i].String(), "error", err)
			return nil, &ExecutionError{Code: ErrCodeSubqueryFailed, Branch: i, Err: err}
		}
	}
	return results, nil
}

func (e *Engine) runOne(ctx context.Context, sq queryir.SubQuery) ([]*ir.Entity, error) {
	e.metrics.SubQueries.Inc()
	cur, err := e.client.Query(ctx, sq)
	if err != nil {
		return nil, err
	}
	return store.Collect(cur)
}
