package queryir

import (
	"fmt"

	"github.com/roach88/disjunct/internal/ir"
)

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpLt
	OpLte
	OpGt
	OpGte

	// Compound operators. Exploded by the normalizer, never sent to a store.
	OpIn         // Value is ir.List of candidates
	OpRange      // Value is ir.List{lo, hi}, inclusive on both ends
	OpIsNull     // Value is ir.Bool: true means "is null", false "is assigned"
	OpStartsWith // Value is ir.String prefix
)

var opNames = map[Op]string{
	OpEq:         "=",
	OpLt:         "<",
	OpLte:        "<=",
	OpGt:         ">",
	OpGte:        ">=",
	OpIn:         "IN",
	OpRange:      "RANGE",
	OpIsNull:     "ISNULL",
	OpStartsWith: "STARTSWITH",
}

// String returns the operator symbol.
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Primitive reports whether the store can evaluate the operator directly.
func (o Op) Primitive() bool {
	return o >= OpEq && o <= OpGte
}

// Inequality reports whether the operator is one of <, <=, >, >=.
func (o Op) Inequality() bool {
	return o >= OpLt && o <= OpGte
}

// Node is a filter tree node.
//
// This is a sealed interface - only Leaf and Branch implement it.
type Node interface {
	filterNode() // Marker method - seals interface to this package
}

// Leaf is a single-column comparison: Column Op Value.
type Leaf struct {
	Column string
	Op     Op
	Value  ir.Value
}

func (Leaf) filterNode() {}

// Connector joins a branch's children.
type Connector int

const (
	And Connector = iota
	Or
)

// String returns "AND" or "OR".
func (c Connector) String() string {
	if c == Or {
		return "OR"
	}
	return "AND"
}

// Flip returns the De Morgan dual connector.
func (c Connector) Flip() Connector {
	if c == And {
		return Or
	}
	return And
}

// Branch combines children with a connector, optionally negated.
//
// An AND with no children is always true; an OR with no children is always
// false. The normalizer relies on both identities.
type Branch struct {
	Connector Connector
	Negated   bool
	Children  []Node
}

func (Branch) filterNode() {}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Order is one ordering column.
type Order struct {
	Column    string
	Direction Direction
}

// String renders the ordering as "col" or "-col".
func (o Order) String() string {
	if o.Direction == Descending {
		return "-" + o.Column
	}
	return o.Column
}

// ParseOrder parses "col" (ascending) or "-col" (descending).
func ParseOrder(s string) Order {
	if len(s) > 1 && s[0] == '-' {
		return Order{Column: s[1:], Direction: Descending}
	}
	return Order{Column: s}
}

// Query is a filtered, ordered, optionally projected query over one kind.
//
// Where == nil means "every entity of the kind" and is already normalized
// (a single implicit branch).
type Query struct {
	Kind      string
	Namespace string
	Ancestor  *ir.Key // restricts results to descendants of this key (inclusive)
	Where     Node
	Columns   []string // projection; empty means whole entities
	Distinct  bool     // distinct over Columns
	Order     []Order
	KeysOnly  bool
}

// Projected reports whether the query returns projected entities.
func (q Query) Projected() bool {
	return len(q.Columns) > 0
}
