package queryir

import "github.com/roach88/disjunct/internal/ir"

// Constructors for filter trees. Values are converted with ir.MustFromGo so
// literals can be written inline; they panic on unsupported Go types.

// Eq returns column = value.
func Eq(column string, value any) Leaf {
	return Leaf{Column: column, Op: OpEq, Value: ir.MustFromGo(value)}
}

// Lt returns column < value.
func Lt(column string, value any) Leaf {
	return Leaf{Column: column, Op: OpLt, Value: ir.MustFromGo(value)}
}

// Lte returns column <= value.
func Lte(column string, value any) Leaf {
	return Leaf{Column: column, Op: OpLte, Value: ir.MustFromGo(value)}
}

// Gt returns column > value.
func Gt(column string, value any) Leaf {
	return Leaf{Column: column, Op: OpGt, Value: ir.MustFromGo(value)}
}

// Gte returns column >= value.
func Gte(column string, value any) Leaf {
	return Leaf{Column: column, Op: OpGte, Value: ir.MustFromGo(value)}
}

// In returns column IN (values...). An empty list matches nothing.
func In(column string, values ...any) Leaf {
	list := make(ir.List, len(values))
	for i, v := range values {
		list[i] = ir.MustFromGo(v)
	}
	return Leaf{Column: column, Op: OpIn, Value: list}
}

// Range returns lo <= column <= hi.
func Range(column string, lo, hi any) Leaf {
	return Leaf{Column: column, Op: OpRange, Value: ir.List{ir.MustFromGo(lo), ir.MustFromGo(hi)}}
}

// IsNull returns "column is null" when isNull is true, "column is
// assigned" otherwise.
func IsNull(column string, isNull bool) Leaf {
	return Leaf{Column: column, Op: OpIsNull, Value: ir.Bool(isNull)}
}

// StartsWith returns a string-prefix test.
func StartsWith(column, prefix string) Leaf {
	return Leaf{Column: column, Op: OpStartsWith, Value: ir.String(prefix)}
}

// KeyEq returns __key__ = key.
func KeyEq(key *ir.Key) Leaf {
	return Leaf{Column: ir.KeyProperty, Op: OpEq, Value: key}
}

// AllOf returns the conjunction of the children.
func AllOf(children ...Node) Branch {
	return Branch{Connector: And, Children: children}
}

// AnyOf returns the disjunction of the children.
func AnyOf(children ...Node) Branch {
	return Branch{Connector: Or, Children: children}
}

// Not negates a node. Negating a branch toggles its flag; a leaf is wrapped
// in a negated single-child AND.
func Not(n Node) Branch {
	if b, ok := n.(Branch); ok {
		b.Negated = !b.Negated
		return b
	}
	return Branch{Connector: And, Negated: true, Children: []Node{n}}
}
