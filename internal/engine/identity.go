package engine

import (
	"context"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/metrics"
	"github.com/roach88/disjunct/internal/planner"
	"github.com/roach88/disjunct/internal/queryir"
)

// identity serves a unique-combination lookup through the cache.
//
// The store does not guarantee the combination is actually unique, so the
// query path may return several rows. Only a single full-entity result is
// cached.
func (e *Engine) identity(ctx context.Context, p *planner.Plan, offset, limit int) (*Results, error) {
	q := p.Query
	id := p.Marker.String()
	cmp := newComparator(q.Order)

	if hit, ok := e.cache.Get(id); ok {
		if inScope(q, hit.Key) && queryir.MatchAll(hit, p.Branches[0]) && eligible(q, hit) {
			e.metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
			m := newMerger(q, cmp, [][]*ir.Entity{{hit}}, offset, limit)
			return newResults(m.next), nil
		}
		e.metrics.CacheLookups.WithLabelValues(metrics.CacheStale).Inc()
	} else {
		e.metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
	}

	// At least two rows, so a single row proves the marker has one holder.
	fetch := fetchSize(offset, limit)
	if fetch >= 0 {
		fetch = max(fetch, 2)
	}
	branches, err := e.runAll(ctx, []queryir.SubQuery{p.SubQuery(0, fetch)})
	if err != nil {
		return nil, err
	}
	if rows := branches[0]; len(rows) == 1 && !q.KeysOnly && !q.Projected() {
		e.cache.Put(rows[0], id)
	}

	m := newMerger(q, cmp, branches, offset, limit)
	return newResults(m.next), nil
}
