package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
)

func seedFruit(t *testing.T, s *Store) {
	t.Helper()
	mustPut(t, s,
		fruit(1, map[string]any{"name": "apple", "color": "red", "weight": 3, "tags": []any{"sweet", "crisp"}}),
		fruit(2, map[string]any{"name": "banana", "color": "yellow", "weight": 5, "tags": []any{"sweet"}}),
		fruit(3, map[string]any{"name": "cherry", "color": "red", "weight": 1}),
		fruit(4, map[string]any{"name": "lemon", "color": "yellow", "weight": 2.5, "tags": []any{}}),
		fruit(5, map[string]any{"name": "plum", "color": nil}),
	)
}

func TestQuery_Filters(t *testing.T) {
	s := createTestStore(t)
	seedFruit(t, s)

	tests := []struct {
		name    string
		filters []queryir.Leaf
		want    []string
	}{
		{"none", nil, []string{"fruit:1", "fruit:2", "fruit:3", "fruit:4", "fruit:5"}},
		{"equality", []queryir.Leaf{queryir.Eq("color", "red")}, []string{"fruit:1", "fruit:3"}},
		{"conjunction", []queryir.Leaf{queryir.Eq("color", "red"), queryir.Gt("weight", 2)}, []string{"fruit:1"}},
		{"range", []queryir.Leaf{queryir.Gte("weight", 2), queryir.Lte("weight", 5)}, []string{"fruit:1", "fruit:2"}},
		{"floats rank above ints", []queryir.Leaf{queryir.Gt("weight", 100)}, []string{"fruit:4"}},
		{"list element", []queryir.Leaf{queryir.Eq("tags", "sweet")}, []string{"fruit:1", "fruit:2"}},
		{"list any element", []queryir.Leaf{queryir.Eq("tags", "crisp")}, []string{"fruit:1"}},
		{"null equality", []queryir.Leaf{queryir.Eq("color", nil)}, []string{"fruit:5"}},
		{"assigned", []queryir.Leaf{queryir.Gt("color", nil)}, []string{"fruit:1", "fruit:2", "fruit:3", "fruit:4"}},
		{"missing property", []queryir.Leaf{queryir.Lt("weight", 100)}, []string{"fruit:1", "fruit:2", "fruit:3"}},
		{"key equality", []queryir.Leaf{queryir.KeyEq(ir.IDKey("fruit", 2, nil))}, []string{"fruit:2"}},
		{"key range", []queryir.Leaf{{Column: ir.KeyProperty, Op: queryir.OpGt, Value: ir.IDKey("fruit", 3, nil)}}, []string{"fruit:4", "fruit:5"}},
		{"no match", []queryir.Leaf{queryir.Eq("name", "kiwi")}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryKeys(t, s, SubQuery{Kind: "fruit", Filters: tt.filters, Limit: -1})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_Ordering(t *testing.T) {
	s := createTestStore(t)
	mustPut(t, s,
		fruit(1, map[string]any{"n": []any{1, 9}}),
		fruit(2, map[string]any{"n": 5}),
		fruit(3, map[string]any{"n": 5}),
		fruit(4, map[string]any{"other": 1}),
	)

	asc := queryKeys(t, s, SubQuery{Kind: "fruit", Order: []queryir.Order{queryir.ParseOrder("n")}, Limit: -1})
	assert.Equal(t, []string{"fruit:1", "fruit:2", "fruit:3"}, asc, "min element ascending, missing excluded, key tiebreak")

	desc := queryKeys(t, s, SubQuery{Kind: "fruit", Order: []queryir.Order{queryir.ParseOrder("-n")}, Limit: -1})
	assert.Equal(t, []string{"fruit:1", "fruit:2", "fruit:3"}, desc, "max element descending")

	byKey := queryKeys(t, s, SubQuery{
		Kind:  "fruit",
		Order: []queryir.Order{{Column: ir.KeyProperty, Direction: queryir.Descending}},
		Limit: -1,
	})
	assert.Equal(t, []string{"fruit:4", "fruit:3", "fruit:2", "fruit:1"}, byKey)
}

func TestQuery_Paging(t *testing.T) {
	s := createTestStore(t)
	seedFruit(t, s)

	got := queryKeys(t, s, SubQuery{Kind: "fruit", Offset: 1, Limit: 2})
	assert.Equal(t, []string{"fruit:2", "fruit:3"}, got)

	got = queryKeys(t, s, SubQuery{Kind: "fruit", Offset: 4, Limit: -1})
	assert.Equal(t, []string{"fruit:5"}, got)

	got = queryKeys(t, s, SubQuery{Kind: "fruit", Limit: 0})
	assert.Empty(t, got)
}

func TestQuery_KindAndNamespaceIsolation(t *testing.T) {
	s := createTestStore(t)
	other := ir.IDKey("fruit", 1, nil)
	other.Namespace = "tenant"
	mustPut(t, s,
		fruit(1, map[string]any{"name": "apple"}),
		newEntity(ir.IDKey("veg", 1, nil), map[string]any{"name": "apple"}),
		newEntity(other, map[string]any{"name": "apple"}),
	)

	assert.Equal(t, []string{"fruit:1"}, queryKeys(t, s, SubQuery{Kind: "fruit", Limit: -1}))
	assert.Equal(t, []string{"[tenant]fruit:1"}, queryKeys(t, s, SubQuery{Kind: "fruit", Namespace: "tenant", Limit: -1}))
}

func TestQuery_Ancestor(t *testing.T) {
	s := createTestStore(t)
	north := ir.NameKey("farm", "north", nil)
	south := ir.NameKey("farm", "south", nil)
	mustPut(t, s,
		newEntity(ir.IDKey("fruit", 1, north), map[string]any{"n": 1}),
		newEntity(ir.IDKey("fruit", 2, north), map[string]any{"n": 2}),
		newEntity(ir.IDKey("fruit", 3, south), map[string]any{"n": 3}),
		fruit(4, map[string]any{"n": 4}),
	)

	got := queryKeys(t, s, SubQuery{Kind: "fruit", Ancestor: north, Limit: -1})
	assert.Equal(t, []string{`farm:"north"/fruit:1`, `farm:"north"/fruit:2`}, got)
}

func TestQuery_KeysOnlyAndProjection(t *testing.T) {
	s := createTestStore(t)
	seedFruit(t, s)
	ctx := context.Background()

	c, err := s.Query(ctx, SubQuery{Kind: "fruit", Filters: []queryir.Leaf{queryir.Eq("color", "red")}, KeysOnly: true, Limit: -1})
	require.NoError(t, err)
	entities, err := Collect(c)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Empty(t, entities[0].Properties)

	c, err = s.Query(ctx, SubQuery{Kind: "fruit", Projection: []string{"color", "weight"}, Limit: -1})
	require.NoError(t, err)
	entities, err = Collect(c)
	require.NoError(t, err)
	require.Len(t, entities, 4, "plum has no weight")
	assert.Equal(t, []string{"color", "weight"}, entities[0].PropertyNames())
}

func TestQuery_DistinctOn(t *testing.T) {
	s := createTestStore(t)
	seedFruit(t, s)

	q := SubQuery{
		Kind:       "fruit",
		Projection: []string{"color"},
		DistinctOn: []string{"color"},
		Order:      []queryir.Order{queryir.ParseOrder("color")},
		Limit:      -1,
	}
	assert.Equal(t, []string{"fruit:5", "fruit:1", "fruit:2"}, queryKeys(t, s, q), "null < red < yellow, first of each group")

	q.Offset, q.Limit = 1, 1
	assert.Equal(t, []string{"fruit:1"}, queryKeys(t, s, q), "paging applies after de-duplication")
}

func TestQuery_RejectsCompoundFilters(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Query(context.Background(), SubQuery{Kind: "fruit", Filters: []queryir.Leaf{queryir.In("a", 1)}})
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	s := createTestStore(t)
	seedFruit(t, s)

	keys := []*ir.Key{
		ir.IDKey("fruit", 3, nil),
		ir.IDKey("fruit", 99, nil),
		ir.IncompleteKey("fruit", nil),
		ir.IDKey("fruit", 1, nil),
	}
	got, err := s.Get(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "fruit:3", got[0].Key.String())
	assert.Nil(t, got[1])
	assert.Nil(t, got[2])
	assert.Equal(t, ir.String("apple"), got[3].Properties["name"])

	got, err = s.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGet_BatchLimit(t *testing.T) {
	s := createTestStore(t, WithMaxBatchSize(2))
	keys := []*ir.Key{ir.IDKey("fruit", 1, nil), ir.IDKey("fruit", 2, nil), ir.IDKey("fruit", 3, nil)}

	_, err := s.Get(context.Background(), keys)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchTooLarge))

	_, err = s.Get(context.Background(), keys[:2])
	assert.NoError(t, err)
}

func TestGet_ReturnsIndependentCopies(t *testing.T) {
	s := createTestStore(t)
	seedFruit(t, s)
	k := ir.IDKey("fruit", 1, nil)

	got, err := s.Get(context.Background(), []*ir.Key{k, k})
	require.NoError(t, err)
	got[0].Set("name", ir.String("changed"))
	assert.Equal(t, ir.String("apple"), got[1].Properties["name"])
}

func TestSliceCursor(t *testing.T) {
	c := NewSliceCursor([]*ir.Entity{fruit(1, nil), fruit(2, nil)})
	assert.Nil(t, c.Entity(), "before Next")
	require.True(t, c.Next())
	assert.Equal(t, "fruit:1", c.Entity().Key.String())
	require.True(t, c.Next())
	assert.False(t, c.Next())
	assert.False(t, c.Next())
	assert.Nil(t, c.Entity())
	assert.NoError(t, c.Err())
	assert.NoError(t, c.Close())
}

func TestTupleID(t *testing.T) {
	a := fruit(1, map[string]any{"n": 1})
	b := fruit(2, map[string]any{"n": 1.0})
	c := fruit(3, map[string]any{})

	assert.NotEqual(t, TupleID(a, []string{"n"}), TupleID(b, []string{"n"}), "types are distinguished")
	assert.NotEqual(t, TupleID(a, []string{"n"}), TupleID(c, []string{"n"}))
	assert.Equal(t, TupleID(a, []string{"n"}), TupleID(fruit(9, map[string]any{"n": 1}), []string{"n"}))
}
