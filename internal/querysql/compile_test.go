package querysql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
)

const existsFilter = "EXISTS (SELECT 1 FROM property_index p WHERE p.key = e.key AND p.name = ? AND p.value %s ?)"

func TestCompile_SingleEquality(t *testing.T) {
	c := NewSQLCompiler()
	sql, params, err := c.Compile(queryir.SubQuery{
		Kind:    "fruit",
		Filters: []queryir.Leaf{queryir.Eq("color", "red")},
		Limit:   -1,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT e.key, e.path, e.data FROM entities e WHERE e.namespace = ? AND e.kind = ? AND "+
			"EXISTS (SELECT 1 FROM property_index p WHERE p.key = e.key AND p.name = ? AND p.value = ?) "+
			"ORDER BY e.key ASC",
		sql)
	assert.Equal(t, []any{"", "fruit", "color", ir.MustEncodeIndex(ir.String("red"))}, params)
}

func TestCompile_Operators(t *testing.T) {
	tests := []struct {
		leaf queryir.Leaf
		op   string
	}{
		{queryir.Eq("n", 1), "="},
		{queryir.Lt("n", 1), "<"},
		{queryir.Lte("n", 1), "<="},
		{queryir.Gt("n", 1), ">"},
		{queryir.Gte("n", 1), ">="},
	}

	c := NewSQLCompiler()
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			sql, _, err := c.Compile(queryir.SubQuery{Kind: "k", Filters: []queryir.Leaf{tt.leaf}, Limit: -1})
			require.NoError(t, err)
			assert.Contains(t, sql, strings.Replace(existsFilter, "%s", tt.op, 1))
		})
	}
}

func TestCompile_RejectsCompoundOperators(t *testing.T) {
	c := NewSQLCompiler()
	_, _, err := c.Compile(queryir.SubQuery{Kind: "k", Filters: []queryir.Leaf{queryir.In("n", 1, 2)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestCompile_AlwaysOrdersByKey(t *testing.T) {
	c := NewSQLCompiler()

	sql, _, err := c.Compile(queryir.SubQuery{Kind: "k", Limit: -1})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "ORDER BY e.key ASC"), sql)

	sql, params, err := c.Compile(queryir.SubQuery{
		Kind:  "k",
		Order: []queryir.Order{queryir.ParseOrder("-age"), queryir.ParseOrder("name")},
		Limit: -1,
	})
	require.NoError(t, err)
	assert.Contains(t, sql,
		"ORDER BY (SELECT MAX(p.value) FROM property_index p WHERE p.key = e.key AND p.name = ?) DESC, "+
			"(SELECT MIN(p.value) FROM property_index p WHERE p.key = e.key AND p.name = ?) ASC, e.key ASC")
	// Ordered properties must exist; their names are bound twice (EXISTS, then ORDER BY).
	assert.Equal(t, []any{"", "k", "age", "name", "age", "name"}, params)
}

func TestCompile_KeyOrdering(t *testing.T) {
	c := NewSQLCompiler()
	sql, params, err := c.Compile(queryir.SubQuery{
		Kind:  "k",
		Order: []queryir.Order{{Column: ir.KeyProperty, Direction: queryir.Descending}},
		Limit: -1,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "ORDER BY e.key DESC, e.key ASC"), sql)
	assert.Equal(t, []any{"", "k"}, params)
}

func TestCompile_KeyFilters(t *testing.T) {
	c := NewSQLCompiler()
	key := ir.IDKey("k", 7, nil)

	sql, params, err := c.Compile(queryir.SubQuery{Kind: "k", Filters: []queryir.Leaf{queryir.KeyEq(key)}, Limit: -1})
	require.NoError(t, err)
	assert.Contains(t, sql, "e.key = ?")
	assert.Equal(t, key.Encode(), params[2])

	tests := []struct {
		op   queryir.Op
		want string
	}{
		{queryir.OpGt, "1 = 1"},
		{queryir.OpGte, "1 = 1"},
		{queryir.OpLt, "0 = 1"},
		{queryir.OpEq, "0 = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			leaf := queryir.Leaf{Column: ir.KeyProperty, Op: tt.op, Value: ir.Null{}}
			sql, _, err := c.Compile(queryir.SubQuery{Kind: "k", Filters: []queryir.Leaf{leaf}, Limit: -1})
			require.NoError(t, err)
			assert.Contains(t, sql, tt.want)
		})
	}
}

func TestCompile_Ancestor(t *testing.T) {
	c := NewSQLCompiler()
	parent := ir.NameKey("farm", "north", nil)
	sql, params, err := c.Compile(queryir.SubQuery{Kind: "fruit", Ancestor: parent, Limit: -1})
	require.NoError(t, err)

	assert.Contains(t, sql, "substr(e.key, 1, ?) = ?")
	assert.Equal(t, []any{"", "fruit", len(parent.Encode()), parent.Encode()}, params)
}

func TestCompile_ProjectionAndKeysOnly(t *testing.T) {
	c := NewSQLCompiler()

	sql, params, err := c.Compile(queryir.SubQuery{Kind: "k", Projection: []string{"a"}, Limit: -1})
	require.NoError(t, err)
	assert.Contains(t, sql, "EXISTS (SELECT 1 FROM property_index p WHERE p.key = e.key AND p.name = ?)")
	assert.Equal(t, []any{"", "k", "a"}, params)

	sql, _, err = c.Compile(queryir.SubQuery{Kind: "k", KeysOnly: true, Limit: -1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "SELECT e.key, e.path FROM"), sql)
}

func TestCompile_LimitOffset(t *testing.T) {
	c := NewSQLCompiler()

	sql, params, err := c.Compile(queryir.SubQuery{Kind: "k", Limit: 5, Offset: 2})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "LIMIT ? OFFSET ?"))
	assert.Equal(t, []any{"", "k", 5, 2}, params)

	_, params, err = c.Compile(queryir.SubQuery{Kind: "k", Limit: -1, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, []any{"", "k", -1, 3}, params)

	sql, _, err = c.Compile(queryir.SubQuery{Kind: "k", Limit: -1})
	require.NoError(t, err)
	assert.NotContains(t, sql, "LIMIT")

	// De-duplication happens after the query, so paging does too.
	sql, _, err = c.Compile(queryir.SubQuery{
		Kind: "k", Projection: []string{"a"}, DistinctOn: []string{"a"}, Limit: 1,
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "LIMIT")
}

func TestCompile_ParameterizesValues(t *testing.T) {
	c := NewSQLCompiler()
	injection := "'; DROP TABLE entities; --"
	sql, params, err := c.Compile(queryir.SubQuery{
		Kind:    injection,
		Filters: []queryir.Leaf{queryir.Eq("name", injection)},
		Limit:   -1,
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP TABLE")
	assert.Contains(t, params, injection)
}
