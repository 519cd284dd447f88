// Package planner classifies a normalized query into the execution strategy
// that reads it with the fewest store round-trips.
package planner

import (
	"slices"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/model"
	"github.com/roach88/disjunct/internal/normalize"
	"github.com/roach88/disjunct/internal/queryir"
	"github.com/roach88/disjunct/internal/unique"
)

// Strategy is how a plan is executed.
type Strategy int

const (
	// Single runs the one branch as a single sub-query.
	Single Strategy = iota

	// FanOut runs one sub-query per branch concurrently and merges them.
	FanOut

	// KeyBatch reads every branch's key with point gets.
	KeyBatch

	// IdentityCache looks up a unique combination through the cache.
	IdentityCache
)

// String returns the strategy name used in explain output and metrics.
func (s Strategy) String() string {
	switch s {
	case FanOut:
		return "fan-out"
	case KeyBatch:
		return "key-batch"
	case IdentityCache:
		return "identity-cache"
	default:
		return "single"
	}
}

// Plan is an executable query.
type Plan struct {
	Strategy Strategy
	Query    queryir.Query
	Model    *model.Model

	// Branches are the normalized conjunctions; every strategy re-checks
	// results against them.
	Branches [][]queryir.Leaf

	// Keys holds the distinct keys of a KeyBatch plan in first-seen order.
	Keys []*ir.Key

	// Marker is the unique combination instance of an IdentityCache plan.
	Marker *unique.Marker
}

// Build chooses the strategy for n. m may be nil for kinds without
// declared constraints.
func Build(n *normalize.Normalized, m *model.Model) *Plan {
	p := &Plan{
		Query:    n.Query,
		Model:    m,
		Branches: n.Branches,
	}

	if keys, ok := branchKeys(n.Branches); ok {
		p.Strategy = KeyBatch
		p.Keys = keys
		return p
	}

	if len(n.Branches) == 1 {
		if mk, ok := identityMarker(n.Query, m, n.Branches[0]); ok {
			p.Strategy = IdentityCache
			p.Marker = mk
			return p
		}
		p.Strategy = Single
		return p
	}

	p.Strategy = FanOut
	return p
}

// branchKeys returns the key each branch pins when every branch holds
// exactly one key equality.
func branchKeys(branches [][]queryir.Leaf) ([]*ir.Key, bool) {
	var keys []*ir.Key
	for _, b := range branches {
		var pinned *ir.Key
		count := 0
		for _, l := range b {
			if l.Column != ir.KeyProperty || l.Op != queryir.OpEq {
				continue
			}
			k, ok := l.Value.(*ir.Key)
			if !ok {
				return nil, false
			}
			pinned = k
			count++
		}
		if count != 1 {
			return nil, false
		}
		if !slices.ContainsFunc(keys, pinned.Equal) {
			keys = append(keys, pinned)
		}
	}
	return keys, len(keys) > 0
}

// identityMarker matches a branch of non-null equalities against the
// model's unique combinations.
func identityMarker(q queryir.Query, m *model.Model, branch []queryir.Leaf) (*unique.Marker, bool) {
	if m == nil || len(branch) == 0 {
		return nil, false
	}
	columns := make([]string, len(branch))
	for i, l := range branch {
		if l.Op != queryir.OpEq || ir.IsNull(l.Value) || l.Column == ir.KeyProperty {
			return nil, false
		}
		columns[i] = l.Column
	}
	combo := m.Combination(columns)
	if combo == nil {
		return nil, false
	}

	mk := &unique.Marker{
		Kind:      q.Kind,
		Namespace: q.Namespace,
		Columns:   combo,
		Values:    make([]ir.Value, len(combo)),
	}
	for i, col := range combo {
		j := slices.IndexFunc(branch, func(l queryir.Leaf) bool { return l.Column == col })
		mk.Values[i] = branch[j].Value
	}
	return mk, true
}

// SubQuery returns the store query for branch i, fetching fetch rows
// (negative for unbounded) from the start of the result.
//
// Merging needs the ordered values of every row, so ordered columns are
// added to a projection, and a keys-only query with an ordering fetches
// those columns instead of bare keys. The engine trims rows back to the
// requested shape.
func (p *Plan) SubQuery(i, fetch int) queryir.SubQuery {
	q := p.Query
	sq := queryir.SubQuery{
		Kind:      q.Kind,
		Namespace: q.Namespace,
		Ancestor:  q.Ancestor,
		Filters:   p.Branches[i],
		Order:     q.Order,
		KeysOnly:  q.KeysOnly,
		Limit:     fetch,
	}

	ordered := OrderColumns(q.Order)
	switch {
	case q.KeysOnly && len(ordered) > 0:
		sq.KeysOnly = false
		sq.Projection = ordered
	case q.Projected():
		sq.Projection = slices.Clone(q.Columns)
		for _, c := range ordered {
			if !slices.Contains(sq.Projection, c) {
				sq.Projection = append(sq.Projection, c)
			}
		}
		if q.Distinct {
			sq.DistinctOn = q.Columns
		}
	}
	return sq
}

// OrderColumns returns the ordered property columns, excluding the key.
func OrderColumns(order []queryir.Order) []string {
	var out []string
	for _, o := range order {
		if o.Column != ir.KeyProperty && !slices.Contains(out, o.Column) {
			out = append(out, o.Column)
		}
	}
	return out
}
