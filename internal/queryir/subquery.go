package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/disjunct/internal/ir"
)

// SubQuery is one query the store executes natively: a conjunction of
// primitive single-column comparisons over one kind.
type SubQuery struct {
	Kind      string
	Namespace string
	Ancestor  *ir.Key
	Filters   []Leaf

	// Projection limits returned properties. Entities lacking any projected
	// property are not returned.
	Projection []string

	// DistinctOn de-duplicates rows on the named projected columns, keeping
	// the first row of each group in result order.
	DistinctOn []string

	Order    []Order
	KeysOnly bool
	Offset   int
	Limit    int // negative means unbounded
}

// Validate checks that the store can execute the sub-query as is.
func (s SubQuery) Validate() error {
	if s.Kind == "" {
		return fmt.Errorf("sub-query: kind is required")
	}
	for i, f := range s.Filters {
		if !f.Op.Primitive() {
			return fmt.Errorf("sub-query: filter %d: operator %s is not supported by the store", i, f.Op)
		}
		if f.Column == "" {
			return fmt.Errorf("sub-query: filter %d: empty column", i)
		}
		if _, isList := f.Value.(ir.List); isList {
			return fmt.Errorf("sub-query: filter %d: list operand on %q", i, f.Column)
		}
	}
	for _, c := range s.DistinctOn {
		if !contains(s.Projection, c) {
			return fmt.Errorf("sub-query: distinct column %q is not projected", c)
		}
	}
	if s.Offset < 0 {
		return fmt.Errorf("sub-query: negative offset %d", s.Offset)
	}
	return nil
}

// String renders the sub-query for logs and explain output.
func (s SubQuery) String() string {
	var sb strings.Builder
	if s.Namespace != "" {
		sb.WriteString("[" + s.Namespace + "]")
	}
	sb.WriteString(s.Kind)
	if s.Ancestor != nil {
		sb.WriteString(" under ")
		sb.WriteString(s.Ancestor.String())
	}
	if len(s.Filters) > 0 {
		parts := make([]string, len(s.Filters))
		for i, f := range s.Filters {
			parts[i] = FormatLeaf(f)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}
	if len(s.Projection) > 0 {
		sb.WriteString(" PROJECT ")
		sb.WriteString(strings.Join(s.Projection, ", "))
	}
	if len(s.DistinctOn) > 0 {
		sb.WriteString(" DISTINCT ON ")
		sb.WriteString(strings.Join(s.DistinctOn, ", "))
	}
	if len(s.Order) > 0 {
		parts := make([]string, len(s.Order))
		for i, o := range s.Order {
			parts[i] = o.String()
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	if s.KeysOnly {
		sb.WriteString(" KEYS ONLY")
	}
	if s.Limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", s.Limit)
	}
	if s.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", s.Offset)
	}
	return sb.String()
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
