package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
)

// Column lists selected by compiled queries. Both start with the key
// columns so a scanner can read either shape.
const (
	KeyColumns    = "e.key, e.path"
	EntityColumns = "e.key, e.path, e.data"
)

// SQLCompiler compiles conjunctive sub-queries to parameterized SQL over the
// entities/property_index schema.
//
// CRITICAL: every query ends with the key as ORDER BY tiebreaker so results
// are totally ordered.
// CRITICAL: all values are parameterized, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a sub-query to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// Filters and ordering follow the store's multi-valued semantics:
//   - each filter is an EXISTS over the property's index rows, so a list
//     property matches when any element does
//   - an ordering column sorts by the minimum element (ascending) or the
//     maximum (descending), and entities lacking it are excluded
//   - projected columns must exist on returned entities
//
// With DistinctOn set, LIMIT and OFFSET are left to the caller: they apply
// after de-duplication.
func (c *SQLCompiler) Compile(q queryir.SubQuery) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		where  []string
		params []any
	)

	where = append(where, "e.namespace = ?", "e.kind = ?")
	params = append(params, q.Namespace, q.Kind)

	if q.Ancestor != nil {
		prefix := q.Ancestor.Encode()
		where = append(where, "substr(e.key, 1, ?) = ?")
		params = append(params, len(prefix), prefix)
	}

	for _, f := range q.Filters {
		clause, args, err := c.compileLeaf(f)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, clause)
		params = append(params, args...)
	}

	required := append([]string(nil), q.Projection...)
	for _, o := range q.Order {
		if o.Column != ir.KeyProperty && !contains(required, o.Column) {
			required = append(required, o.Column)
		}
	}
	for _, col := range required {
		if col == ir.KeyProperty {
			continue
		}
		where = append(where, "EXISTS (SELECT 1 FROM property_index p WHERE p.key = e.key AND p.name = ?)")
		params = append(params, col)
	}

	columns := EntityColumns
	if q.KeysOnly {
		columns = KeyColumns
	}

	orderBy, orderParams := c.stableOrderKey(q.Order)
	params = append(params, orderParams...)

	sql := fmt.Sprintf("SELECT %s FROM entities e WHERE %s ORDER BY %s",
		columns,
		strings.Join(where, " AND "),
		orderBy)

	if len(q.DistinctOn) == 0 && (q.Limit >= 0 || q.Offset > 0) {
		limit := q.Limit
		if limit < 0 {
			limit = -1
		}
		sql += " LIMIT ? OFFSET ?"
		params = append(params, limit, q.Offset)
	}

	return sql, params, nil
}

// compileLeaf compiles one primitive comparison.
// CRITICAL: values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compileLeaf(f queryir.Leaf) (string, []any, error) {
	op, err := sqlOperator(f.Op)
	if err != nil {
		return "", nil, err
	}

	if f.Column == ir.KeyProperty {
		return c.compileKeyLeaf(f, op)
	}

	encoded, err := ir.EncodeIndex(f.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", f.Column, err)
	}
	clause := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM property_index p WHERE p.key = e.key AND p.name = ? AND p.value %s ?)", op)
	return clause, []any{f.Column, encoded}, nil
}

// compileKeyLeaf compares the entity key itself. A non-key operand is
// decided statically by type rank.
func (c *SQLCompiler) compileKeyLeaf(f queryir.Leaf, op string) (string, []any, error) {
	if k, ok := f.Value.(*ir.Key); ok && k != nil {
		return fmt.Sprintf("e.key %s ?", op), []any{k.Encode()}, nil
	}

	// Every key orders after values of lower type rank.
	keyAbove := ir.Compare(f.Value, &ir.Key{}) < 0
	var holds bool
	switch f.Op {
	case queryir.OpGt, queryir.OpGte:
		holds = keyAbove
	case queryir.OpLt, queryir.OpLte:
		holds = !keyAbove
	}
	if holds {
		return "1 = 1", nil, nil
	}
	return "0 = 1", nil, nil
}

// stableOrderKey returns the ORDER BY clause for the requested ordering.
// MANDATORY: always ends with the key so ties break deterministically.
func (c *SQLCompiler) stableOrderKey(order []queryir.Order) (string, []any) {
	var (
		parts  []string
		params []any
	)
	for _, o := range order {
		dir := "ASC"
		agg := "MIN"
		if o.Direction == queryir.Descending {
			dir = "DESC"
			agg = "MAX"
		}
		if o.Column == ir.KeyProperty {
			parts = append(parts, "e.key "+dir)
			continue
		}
		parts = append(parts, fmt.Sprintf(
			"(SELECT %s(p.value) FROM property_index p WHERE p.key = e.key AND p.name = ?) %s", agg, dir))
		params = append(params, o.Column)
	}
	parts = append(parts, "e.key ASC")
	return strings.Join(parts, ", "), params
}

func sqlOperator(op queryir.Op) (string, error) {
	switch op {
	case queryir.OpEq:
		return "=", nil
	case queryir.OpLt:
		return "<", nil
	case queryir.OpLte:
		return "<=", nil
	case queryir.OpGt:
		return ">", nil
	case queryir.OpGte:
		return ">=", nil
	}
	return "", fmt.Errorf("operator %s is not supported by the store", op)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
