package engine

import (
	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
	"github.com/roach88/disjunct/internal/store"
)

// comparator orders entities by a query's ordering, then by key.
//
// List properties compare by their extremal element: the minimum for an
// ascending column, the maximum for a descending one. The choice is
// memoized per (key, column, direction) for the lifetime of one comparator, which is
// one request.
type comparator struct {
	order []queryir.Order
	memo  map[extremalKey]ir.Value
}

type extremalKey struct {
	key       string
	column    string
	direction queryir.Direction
}

func newComparator(order []queryir.Order) *comparator {
	return &comparator{order: order, memo: make(map[extremalKey]ir.Value)}
}

func (c *comparator) compare(a, b *ir.Entity) int {
	for _, o := range c.order {
		r := ir.Compare(c.extremal(a, o), c.extremal(b, o))
		if o.Direction == queryir.Descending {
			r = -r
		}
		if r != 0 {
			return r
		}
	}
	return a.Key.Compare(b.Key)
}

func (c *comparator) extremal(e *ir.Entity, o queryir.Order) ir.Value {
	if o.Column == ir.KeyProperty {
		return e.Key
	}
	mk := extremalKey{key: string(e.Key.Encode()), column: o.Column, direction: o.Direction}
	if v, ok := c.memo[mk]; ok {
		return v
	}

	var out ir.Value = ir.Null{}
	if v, ok := e.Get(o.Column); ok {
		if l, isList := v.(ir.List); isList {
			for i, el := range l {
				r := ir.Compare(el, out)
				if i == 0 || (o.Direction == queryir.Descending && r > 0) || (o.Direction == queryir.Ascending && r < 0) {
					out = el
				}
			}
		} else {
			out = v
		}
	}
	c.memo[mk] = out
	return out
}

// merger lazily k-way merges branch results that are each sorted under
// cmp. It yields every identity once, at its first position in merge
// order, after skipping offset rows and until limit rows were produced.
type merger struct {
	cmp      *comparator
	heads    [][]*ir.Entity
	identity func(*ir.Entity) string
	shape    func(*ir.Entity) *ir.Entity
	seen     map[string]struct{}

	skip      int
	remaining int // negative means unbounded
}

func newMerger(q queryir.Query, cmp *comparator, branches [][]*ir.Entity, offset, limit int) *merger {
	m := &merger{
		cmp:       cmp,
		heads:     branches,
		identity:  identityFunc(q),
		shape:     shapeFunc(q),
		seen:      make(map[string]struct{}),
		skip:      offset,
		remaining: limit,
	}
	return m
}

func (m *merger) next() (*ir.Entity, bool) {
	for m.remaining != 0 {
		best := -1
		for i, h := range m.heads {
			if len(h) == 0 {
				continue
			}
			if best < 0 || m.cmp.compare(h[0], m.heads[best][0]) < 0 {
				best = i
			}
		}
		if best < 0 {
			return nil, false
		}

		e := m.heads[best][0]
		m.heads[best] = m.heads[best][1:]

		id := m.identity(e)
		if _, dup := m.seen[id]; dup {
			continue
		}
		m.seen[id] = struct{}{}

		if m.skip > 0 {
			m.skip--
			continue
		}
		if m.remaining > 0 {
			m.remaining--
		}
		return m.shape(e), true
	}
	return nil, false
}

// identityFunc returns what makes two result rows the same: the projected
// tuple for distinct queries, the key otherwise.
func identityFunc(q queryir.Query) func(*ir.Entity) string {
	if q.Distinct && q.Projected() {
		return func(e *ir.Entity) string { return store.TupleID(e, q.Columns) }
	}
	return func(e *ir.Entity) string { return string(e.Key.Encode()) }
}

// shapeFunc trims fetched rows to the shape q asked for.
func shapeFunc(q queryir.Query) func(*ir.Entity) *ir.Entity {
	switch {
	case q.KeysOnly:
		return func(e *ir.Entity) *ir.Entity { return ir.NewEntity(e.Key) }
	case q.Projected():
		return func(e *ir.Entity) *ir.Entity { return e.Project(q.Columns) }
	default:
		return func(e *ir.Entity) *ir.Entity { return e }
	}
}
