package queryir

import (
	"strings"

	"github.com/roach88/disjunct/internal/ir"
)

// Match reports whether an entity satisfies a filter tree.
// A nil node matches every entity.
func Match(e *ir.Entity, n Node) bool {
	if n == nil {
		return true
	}
	switch node := n.(type) {
	case Leaf:
		return MatchLeaf(e, node)
	case Branch:
		var result bool
		if node.Connector == And {
			result = true
			for _, c := range node.Children {
				if !Match(e, c) {
					result = false
					break
				}
			}
		} else {
			for _, c := range node.Children {
				if Match(e, c) {
					result = true
					break
				}
			}
		}
		if node.Negated {
			return !result
		}
		return result
	}
	return false
}

// MatchAll reports whether an entity satisfies every leaf (a conjunctive
// branch).
func MatchAll(e *ir.Entity, leaves []Leaf) bool {
	for _, l := range leaves {
		if !MatchLeaf(e, l) {
			return false
		}
	}
	return true
}

// MatchLeaf evaluates one comparison existentially over the property's
// values.
func MatchLeaf(e *ir.Entity, l Leaf) bool {
	for _, v := range e.Values(l.Column) {
		if matchValue(v, l) {
			return true
		}
	}
	return false
}

func matchValue(v ir.Value, l Leaf) bool {
	switch l.Op {
	case OpEq:
		return ir.Compare(v, l.Value) == 0
	case OpLt:
		return ir.Compare(v, l.Value) < 0
	case OpLte:
		return ir.Compare(v, l.Value) <= 0
	case OpGt:
		return ir.Compare(v, l.Value) > 0
	case OpGte:
		return ir.Compare(v, l.Value) >= 0
	case OpIn:
		for _, c := range ir.Elements(l.Value) {
			if ir.Compare(v, c) == 0 {
				return true
			}
		}
		return false
	case OpRange:
		bounds := ir.Elements(l.Value)
		if len(bounds) != 2 {
			return false
		}
		return ir.Compare(v, bounds[0]) >= 0 && ir.Compare(v, bounds[1]) <= 0
	case OpIsNull:
		wantNull, _ := l.Value.(ir.Bool)
		return ir.IsNull(v) == bool(wantNull)
	case OpStartsWith:
		s, ok := v.(ir.String)
		prefix, _ := l.Value.(ir.String)
		return ok && strings.HasPrefix(string(s), string(prefix))
	}
	return false
}
