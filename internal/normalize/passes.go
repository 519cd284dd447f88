package normalize

import (
	"fmt"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
)

// prefixSuccessor returns the smallest string, in byte order, greater than
// every string starting with prefix. It increments the last byte below 0xFF
// and drops the rest. ok is false when no such string exists.
func prefixSuccessor(prefix string) (succ string, ok bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xFF {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// pass is one rewrite over a filter tree. It returns the rewritten tree and
// whether anything changed.
type pass struct {
	name  string
	apply func(queryir.Node) (queryir.Node, bool)
}

// shapePasses run to a fixed point after explosion.
var shapePasses = []pass{
	{name: "flatten", apply: flatten},
	{name: "distribute", apply: distribute},
}

func and(children ...queryir.Node) queryir.Branch {
	return queryir.Branch{Connector: queryir.And, Children: children}
}

func or(children ...queryir.Node) queryir.Branch {
	return queryir.Branch{Connector: queryir.Or, Children: children}
}

func leaf(column string, op queryir.Op, v ir.Value) queryir.Leaf {
	return queryir.Leaf{Column: column, Op: op, Value: v}
}

// explode pushes negation to the leaves and expands compound operators.
// The output contains no negated branch and no compound leaf.
func explode(n queryir.Node, negated bool) (queryir.Node, error) {
	switch node := n.(type) {
	case queryir.Leaf:
		return explodeLeaf(node, negated)
	case queryir.Branch:
		neg := negated != node.Negated
		conn := node.Connector
		if neg {
			conn = conn.Flip()
		}
		children := make([]queryir.Node, 0, len(node.Children))
		for _, c := range node.Children {
			ec, err := explode(c, neg)
			if err != nil {
				return nil, err
			}
			children = append(children, ec)
		}
		return queryir.Branch{Connector: conn, Children: children}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node type %T", ErrInvalidFilter, n)
	}
}

func explodeLeaf(l queryir.Leaf, negated bool) (queryir.Node, error) {
	if l.Column == "" {
		return nil, fmt.Errorf("%w: %s with empty column", ErrInvalidFilter, l.Op)
	}
	v := l.Value
	if v == nil {
		v = ir.Null{}
	}
	c := l.Column

	switch l.Op {
	case queryir.OpEq:
		if negated {
			return or(leaf(c, queryir.OpLt, v), leaf(c, queryir.OpGt, v)), nil
		}
		return leaf(c, queryir.OpEq, v), nil
	case queryir.OpLt:
		if negated {
			return leaf(c, queryir.OpGte, v), nil
		}
		return leaf(c, queryir.OpLt, v), nil
	case queryir.OpLte:
		if negated {
			return leaf(c, queryir.OpGt, v), nil
		}
		return leaf(c, queryir.OpLte, v), nil
	case queryir.OpGt:
		if negated {
			return leaf(c, queryir.OpLte, v), nil
		}
		return leaf(c, queryir.OpGt, v), nil
	case queryir.OpGte:
		if negated {
			return leaf(c, queryir.OpLt, v), nil
		}
		return leaf(c, queryir.OpGte, v), nil

	case queryir.OpIn:
		values, ok := v.(ir.List)
		if !ok {
			return nil, fmt.Errorf("%w: IN on %q needs a list, got %s", ErrInvalidFilter, c, ir.Format(v))
		}
		// An empty IN is an empty OR (false); negated, an empty AND (true).
		out := make([]queryir.Node, len(values))
		for i, e := range values {
			if negated {
				out[i] = or(leaf(c, queryir.OpLt, e), leaf(c, queryir.OpGt, e))
			} else {
				out[i] = leaf(c, queryir.OpEq, e)
			}
		}
		if negated {
			return and(out...), nil
		}
		return or(out...), nil

	case queryir.OpRange:
		bounds, ok := v.(ir.List)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("%w: RANGE on %q needs [lo, hi], got %s", ErrInvalidFilter, c, ir.Format(v))
		}
		lo, hi := bounds[0], bounds[1]
		if negated {
			return or(leaf(c, queryir.OpLt, lo), leaf(c, queryir.OpGt, hi)), nil
		}
		return and(leaf(c, queryir.OpGte, lo), leaf(c, queryir.OpLte, hi)), nil

	case queryir.OpIsNull:
		want, ok := v.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("%w: ISNULL on %q needs a bool, got %s", ErrInvalidFilter, c, ir.Format(v))
		}
		if bool(want) != negated {
			return leaf(c, queryir.OpEq, ir.Null{}), nil
		}
		return leaf(c, queryir.OpGt, ir.Null{}), nil

	case queryir.OpStartsWith:
		prefix, ok := v.(ir.String)
		if !ok {
			return nil, fmt.Errorf("%w: STARTSWITH on %q needs a string, got %s", ErrInvalidFilter, c, ir.Format(v))
		}
		succ, bounded := prefixSuccessor(string(prefix))
		if negated {
			if !bounded {
				return leaf(c, queryir.OpLt, prefix), nil
			}
			return or(leaf(c, queryir.OpLt, prefix), leaf(c, queryir.OpGte, ir.String(succ))), nil
		}
		if !bounded {
			return leaf(c, queryir.OpGte, prefix), nil
		}
		return and(leaf(c, queryir.OpGte, prefix), leaf(c, queryir.OpLt, ir.String(succ))), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", ErrInvalidFilter, l.Op)
}

// flatten inlines children sharing their parent's connector and unwraps
// single-child branches.
func flatten(n queryir.Node) (queryir.Node, bool) {
	b, ok := n.(queryir.Branch)
	if !ok {
		return n, false
	}

	changed := false
	children := make([]queryir.Node, 0, len(b.Children))
	for _, c := range b.Children {
		fc, fchanged := flatten(c)
		changed = changed || fchanged
		if cb, ok := fc.(queryir.Branch); ok && cb.Connector == b.Connector {
			children = append(children, cb.Children...)
			changed = true
			continue
		}
		children = append(children, fc)
	}

	if len(children) == 1 {
		return children[0], true
	}
	return queryir.Branch{Connector: b.Connector, Children: children}, changed
}

// distribute rewrites AND-over-OR into OR-of-ANDs, bottom-up. Each product
// element keeps the AND's child order, with the chosen alternative in place
// of its OR child.
func distribute(n queryir.Node) (queryir.Node, bool) {
	b, ok := n.(queryir.Branch)
	if !ok {
		return n, false
	}

	changed := false
	children := make([]queryir.Node, len(b.Children))
	hasOr := false
	for i, c := range b.Children {
		dc, dchanged := distribute(c)
		changed = changed || dchanged
		children[i] = dc
		if cb, ok := dc.(queryir.Branch); ok && cb.Connector == queryir.Or {
			hasOr = true
		}
	}

	if b.Connector == queryir.Or || !hasOr {
		return queryir.Branch{Connector: b.Connector, Children: children}, changed
	}

	products := [][]queryir.Node{{}}
	for _, c := range children {
		alternatives := []queryir.Node{c}
		if cb, ok := c.(queryir.Branch); ok && cb.Connector == queryir.Or {
			alternatives = cb.Children
		}
		next := make([][]queryir.Node, 0, len(products)*len(alternatives))
		for _, p := range products {
			for _, alt := range alternatives {
				elem := make([]queryir.Node, len(p), len(p)+1)
				copy(elem, p)
				next = append(next, append(elem, alt))
			}
		}
		products = next
	}

	out := make([]queryir.Node, len(products))
	for i, p := range products {
		out[i] = and(p...)
	}
	return or(out...), true
}

// dnfSize returns the number of branches the normal form of an exploded
// tree has, saturating at limit+1.
func dnfSize(n queryir.Node, limit int) int {
	b, ok := n.(queryir.Branch)
	if !ok {
		return 1
	}
	if b.Connector == queryir.Or {
		total := 0
		for _, c := range b.Children {
			total += dnfSize(c, limit)
			if total > limit {
				return limit + 1
			}
		}
		return total
	}
	total := 1
	for _, c := range b.Children {
		s := dnfSize(c, limit)
		if s == 0 {
			return 0
		}
		if total > (limit+1)/s {
			total = limit + 1
			continue
		}
		total *= s
		if total > limit {
			total = limit + 1
		}
	}
	return total
}
