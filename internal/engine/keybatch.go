package engine

import (
	"context"
	"slices"

	"github.com/roach88/disjunct/internal/cache"
	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/metrics"
	"github.com/roach88/disjunct/internal/planner"
	"github.com/roach88/disjunct/internal/queryir"
)

// keyBatch serves a plan whose branches each pin one key.
func (e *Engine) keyBatch(ctx context.Context, p *planner.Plan, offset, limit int) (*Results, error) {
	q := p.Query

	// Point reads cannot group projected rows; scoped queries per key can.
	if q.Distinct && q.Projected() {
		return e.fanOut(ctx, p, offset, limit)
	}

	keys := make([]*ir.Key, 0, len(p.Keys))
	for _, k := range p.Keys {
		if inScope(q, k) {
			keys = append(keys, k)
		}
	}

	var fetched []*ir.Entity
	if len(keys) == 1 {
		if hit, ok := e.cachedKey(p, keys[0]); ok {
			fetched = []*ir.Entity{hit}
			keys = nil
		}
	}
	if len(keys) > 0 {
		got, err := e.getAll(ctx, keys)
		if err != nil {
			return nil, err
		}
		for _, ent := range got {
			if ent != nil {
				e.cache.Put(ent)
				fetched = append(fetched, ent)
			}
		}
	}

	// Point reads return whatever is stored; keep only rows a branch
	// still accepts and that the store itself would have returned.
	rows := fetched[:0:0]
	for _, ent := range fetched {
		if matchesPinned(p, ent) && eligible(q, ent) {
			rows = append(rows, ent)
		}
	}

	cmp := newComparator(q.Order)
	slices.SortStableFunc(rows, cmp.compare)

	m := newMerger(q, cmp, [][]*ir.Entity{rows}, offset, limit)
	return newResults(m.next), nil
}

// cachedKey returns the cached entity for k if it still satisfies a branch
// pinned to k.
func (e *Engine) cachedKey(p *planner.Plan, k *ir.Key) (*ir.Entity, bool) {
	hit, ok := e.cache.Get(cache.KeyID(k))
	if !ok {
		e.metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return nil, false
	}
	if !matchesPinned(p, hit) {
		e.metrics.CacheLookups.WithLabelValues(metrics.CacheStale).Inc()
		return nil, false
	}
	e.metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
	return hit, true
}

// getAll point-reads keys in chunks no larger than either batch cap.
func (e *Engine) getAll(ctx context.Context, keys []*ir.Key) ([]*ir.Entity, error) {
	size := e.batchSize
	if storeMax := e.client.MaxBatchSize(); storeMax > 0 && (size <= 0 || storeMax < size) {
		size = storeMax
	}
	if size <= 0 {
		size = len(keys)
	}

	out := make([]*ir.Entity, 0, len(keys))
	for chunk := range slices.Chunk(keys, size) {
		e.metrics.PointGets.Inc()
		got, err := e.client.Get(ctx, chunk)
		if err != nil {
			e.logger.Error("point read failed", "keys", len(chunk), "error", err)
			return nil, &ExecutionError{Code: ErrCodeGetFailed, Branch: -1, Err: err}
		}
		out = append(out, got...)
	}
	return out, nil
}

// matchesPinned reports whether some branch pinned to ent's key accepts
// ent.
func matchesPinned(p *planner.Plan, ent *ir.Entity) bool {
	for _, b := range p.Branches {
		if !pins(b, ent.Key) {
			continue
		}
		if queryir.MatchAll(ent, b) {
			return true
		}
	}
	return false
}

func pins(branch []queryir.Leaf, k *ir.Key) bool {
	for _, l := range branch {
		if l.Column == ir.KeyProperty && l.Op == queryir.OpEq {
			if pk, ok := l.Value.(*ir.Key); ok && pk.Equal(k) {
				return true
			}
		}
	}
	return false
}

// inScope reports whether k can belong to q's kind, namespace and ancestor.
func inScope(q queryir.Query, k *ir.Key) bool {
	if k == nil || k.Incomplete() || k.Kind != q.Kind || k.Namespace != q.Namespace {
		return false
	}
	if q.Ancestor == nil {
		return true
	}
	for a := k; a != nil; a = a.Parent {
		if a.Equal(q.Ancestor) {
			return true
		}
	}
	return false
}

// eligible reports whether the store would return ent for q: entities
// without an indexed value for an ordered or projected property are never
// returned. An empty list has no indexed value.
func eligible(q queryir.Query, ent *ir.Entity) bool {
	for _, c := range planner.OrderColumns(q.Order) {
		if len(ent.Values(c)) == 0 {
			return false
		}
	}
	for _, c := range q.Columns {
		if len(ent.Values(c)) == 0 {
			return false
		}
	}
	return true
}
