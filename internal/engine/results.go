package engine

import (
	"iter"

	"github.com/roach88/disjunct/internal/ir"
)

// Results is a lazily merged result page.
//
//	for r.Next() {
//		e := r.Entity()
//	}
//
// Every store read finished before Results was returned, so iteration
// cannot fail. Results is not safe for concurrent use.
type Results struct {
	next func() (*ir.Entity, bool)
	cur  *ir.Entity
	done bool
}

func newResults(next func() (*ir.Entity, bool)) *Results {
	return &Results{next: next}
}

func emptyResults() *Results {
	return newResults(func() (*ir.Entity, bool) { return nil, false })
}

// sliceResults iterates an already paged and shaped slice.
func sliceResults(entities []*ir.Entity) *Results {
	i := 0
	return newResults(func() (*ir.Entity, bool) {
		if i >= len(entities) {
			return nil, false
		}
		e := entities[i]
		i++
		return e, true
	})
}

// Next advances to the next result.
func (r *Results) Next() bool {
	if r.done {
		return false
	}
	e, ok := r.next()
	if !ok {
		r.done = true
		r.cur = nil
		return false
	}
	r.cur = e
	return true
}

// Entity returns the current result. Keys-only queries yield entities
// without properties.
func (r *Results) Entity() *ir.Entity {
	return r.cur
}

// Key returns the current result's key.
func (r *Results) Key() *ir.Key {
	if r.cur == nil {
		return nil
	}
	return r.cur.Key
}

// All drains the remaining results.
func (r *Results) All() []*ir.Entity {
	out := []*ir.Entity{}
	for r.Next() {
		out = append(out, r.cur)
	}
	return out
}

// Keys drains the remaining results and returns their keys.
func (r *Results) Keys() []*ir.Key {
	out := []*ir.Key{}
	for r.Next() {
		out = append(out, r.cur.Key)
	}
	return out
}

// Seq returns an iterator over the remaining results.
func (r *Results) Seq() iter.Seq[*ir.Entity] {
	return func(yield func(*ir.Entity) bool) {
		for r.Next() {
			if !yield(r.cur) {
				return
			}
		}
	}
}
