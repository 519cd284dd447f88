package normalize

import (
	"fmt"
	"slices"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
)

// DefaultMaxBranches caps the number of sub-queries a filter may expand to.
const DefaultMaxBranches = 100

// Options configures normalization.
type Options struct {
	// MaxBranches is the branch cap. Zero means DefaultMaxBranches.
	MaxBranches int

	// ListColumns names list-valued columns. Two different equalities on
	// a list column are satisfiable (by two elements) and are kept.
	ListColumns []string
}

func (o Options) maxBranches() int {
	if o.MaxBranches <= 0 {
		return DefaultMaxBranches
	}
	return o.MaxBranches
}

// Normalized is a query in canonical disjunctive normal form.
type Normalized struct {
	// Query is the input query with Where replaced by the canonical tree:
	// an OR whose children are all ANDs of primitive leaves. Where stays
	// nil for an unfiltered query.
	Query queryir.Query

	// Branches holds the conjunctions of Query.Where in order. An
	// unfiltered query has one empty branch.
	Branches [][]queryir.Leaf
}

// Normalize rewrites q.Where into disjunctive normal form.
//
// Returns ErrEmptyResult when the filter is unsatisfiable,
// *TooManyBranchesError when it expands past the cap and an error wrapping
// ErrInvalidFilter for malformed trees. The input query is not modified.
func Normalize(q queryir.Query, opts Options) (*Normalized, error) {
	if q.Where == nil {
		return &Normalized{Query: q, Branches: [][]queryir.Leaf{{}}}, nil
	}

	root, err := explode(q.Where, false)
	if err != nil {
		return nil, err
	}

	limit := opts.maxBranches()
	if n := dnfSize(root, limit); n > limit {
		return nil, &TooManyBranchesError{Branches: n, Max: limit}
	}

	for {
		changed := false
		for _, p := range shapePasses {
			var c bool
			root, c = p.apply(root)
			changed = changed || c
		}
		if !changed {
			break
		}
	}

	branches, err := collect(root)
	if err != nil {
		return nil, err
	}

	branches = pruneKeyConflicts(branches)
	branches = simplify(branches, opts.ListColumns)
	if len(branches) == 0 {
		return nil, ErrEmptyResult
	}

	out := q
	out.Where = canonical(branches)
	return &Normalized{Query: out, Branches: branches}, nil
}

// collect reads the branches of a tree already in normal form.
func collect(root queryir.Node) ([][]queryir.Leaf, error) {
	switch n := root.(type) {
	case queryir.Leaf:
		return [][]queryir.Leaf{{n}}, nil
	case queryir.Branch:
		if n.Connector == queryir.And {
			b, err := conjunction(n)
			if err != nil {
				return nil, err
			}
			return [][]queryir.Leaf{b}, nil
		}
		out := make([][]queryir.Leaf, 0, len(n.Children))
		for _, c := range n.Children {
			switch child := c.(type) {
			case queryir.Leaf:
				out = append(out, []queryir.Leaf{child})
			case queryir.Branch:
				b, err := conjunction(child)
				if err != nil {
					return nil, err
				}
				out = append(out, b)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("normalize: unexpected root %T", root)
}

func conjunction(b queryir.Branch) ([]queryir.Leaf, error) {
	if b.Connector != queryir.And {
		return nil, fmt.Errorf("normalize: nested OR survived distribution")
	}
	out := make([]queryir.Leaf, 0, len(b.Children))
	for _, c := range b.Children {
		l, ok := c.(queryir.Leaf)
		if !ok {
			return nil, fmt.Errorf("normalize: nested branch survived flattening")
		}
		out = append(out, l)
	}
	return out, nil
}

// canonical builds the OR-of-ANDs tree for a branch list.
func canonical(branches [][]queryir.Leaf) queryir.Branch {
	children := make([]queryir.Node, len(branches))
	for i, b := range branches {
		leaves := make([]queryir.Node, len(b))
		for j, l := range b {
			leaves[j] = l
		}
		children[i] = and(leaves...)
	}
	return or(children...)
}

// pruneKeyConflicts drops branches with two different __key__ equalities.
func pruneKeyConflicts(branches [][]queryir.Leaf) [][]queryir.Leaf {
	out := branches[:0:0]
	for _, b := range branches {
		var key ir.Value
		conflict := false
		for _, l := range b {
			if l.Column != ir.KeyProperty || l.Op != queryir.OpEq {
				continue
			}
			if key == nil {
				key = l.Value
			} else if !ir.Equal(key, l.Value) {
				conflict = true
				break
			}
		}
		if !conflict {
			out = append(out, b)
		}
	}
	return out
}

// simplify collapses redundant same-column leaves within each branch and
// drops branches with conflicting equalities. A branch with no leaves
// matches everything, so it subsumes the whole disjunction.
func simplify(branches [][]queryir.Leaf, listColumns []string) [][]queryir.Leaf {
	out := make([][]queryir.Leaf, 0, len(branches))
	for _, b := range branches {
		sb, ok := simplifyBranch(b, listColumns)
		if !ok {
			continue
		}
		if len(sb) == 0 {
			return [][]queryir.Leaf{{}}
		}
		out = append(out, sb)
	}
	return out
}

type boundClass int

const (
	classEq boundClass = iota
	classUpper
	classLower
)

func classOf(op queryir.Op) boundClass {
	switch op {
	case queryir.OpLt, queryir.OpLte:
		return classUpper
	case queryir.OpGt, queryir.OpGte:
		return classLower
	}
	return classEq
}

type slot struct {
	column string
	class  boundClass
}

// simplifyBranch keeps the tightest bound per (column, class) at the
// position of the first leaf in that class. It returns false when the
// branch is unsatisfiable.
func simplifyBranch(b []queryir.Leaf, listColumns []string) ([]queryir.Leaf, bool) {
	out := make([]queryir.Leaf, 0, len(b))
	seen := make(map[slot]int)

	for _, l := range b {
		s := slot{column: l.Column, class: classOf(l.Op)}
		i, exists := seen[s]

		if s.class == classEq {
			if !exists {
				seen[s] = len(out)
				out = append(out, l)
				continue
			}
			if ir.Equal(out[i].Value, l.Value) || containsEq(out, l) {
				continue
			}
			if l.Column == ir.KeyProperty || !slices.Contains(listColumns, l.Column) {
				return nil, false
			}
			// Different equalities on a list column: each may hold for a
			// different element.
			out = append(out, l)
			continue
		}

		if !exists {
			seen[s] = len(out)
			out = append(out, l)
			continue
		}
		if tighter(l, out[i], s.class) {
			out[i] = l
		}
	}
	return out, true
}

// tighter reports whether candidate is a strictly tighter bound than
// current. At equal values the strict operator wins.
func tighter(candidate, current queryir.Leaf, class boundClass) bool {
	c := ir.Compare(candidate.Value, current.Value)
	if class == classLower {
		c = -c
	}
	switch {
	case c < 0:
		return true
	case c > 0:
		return false
	}
	strict := candidate.Op == queryir.OpLt || candidate.Op == queryir.OpGt
	currentStrict := current.Op == queryir.OpLt || current.Op == queryir.OpGt
	return strict && !currentStrict
}

func containsEq(leaves []queryir.Leaf, l queryir.Leaf) bool {
	return slices.ContainsFunc(leaves, func(o queryir.Leaf) bool {
		return o.Column == l.Column && o.Op == queryir.OpEq && ir.Equal(o.Value, l.Value)
	})
}
