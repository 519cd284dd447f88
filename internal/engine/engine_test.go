package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/disjunct/internal/cache"
	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/metrics"
	"github.com/roach88/disjunct/internal/model"
	"github.com/roach88/disjunct/internal/normalize"
	"github.com/roach88/disjunct/internal/queryir"
	"github.com/roach88/disjunct/internal/store"
	"github.com/roach88/disjunct/internal/testutil"
)

var fruitModel = &model.Model{Kind: "fruit", ListColumns: []string{"tags"}}

type fixture struct {
	store   *store.Store
	client  *testutil.RecordingClient
	cache   *cache.LRUCache
	metrics *metrics.Metrics
	engine  *Engine
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.OpenStore(t), opts...)
}

func newFixtureOn(t *testing.T, s *store.Store, opts ...EngineOption) *fixture {
	t.Helper()
	c, err := cache.NewLRUCache(128)
	require.NoError(t, err)

	f := &fixture{
		store:   s,
		client:  testutil.NewRecordingClient(s),
		cache:   c,
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	opts = append([]EngineOption{WithCache(c), WithMetrics(f.metrics)}, opts...)
	f.engine, err = New(f.client, opts...)
	require.NoError(t, err)
	t.Cleanup(f.engine.Close)
	return f
}

func fruitKey(id int64) *ir.Key {
	return ir.IDKey("fruit", id, nil)
}

// seedFruit writes the shared fixture directly to the store:
//
//	fruit:1 red    5 [a b]
//	fruit:2 green  3 [b]
//	fruit:3 red    1 [c]
//	fruit:4 yellow 8
//	fruit:5 green  5 [a z]
func (f *fixture) seedFruit(t *testing.T) {
	t.Helper()
	_, err := f.store.Put(context.Background(),
		testutil.Entity(fruitKey(1), map[string]any{"color": "red", "weight": 5, "tags": []any{"a", "b"}}),
		testutil.Entity(fruitKey(2), map[string]any{"color": "green", "weight": 3, "tags": []any{"b"}}),
		testutil.Entity(fruitKey(3), map[string]any{"color": "red", "weight": 1, "tags": []any{"c"}}),
		testutil.Entity(fruitKey(4), map[string]any{"color": "yellow", "weight": 8}),
		testutil.Entity(fruitKey(5), map[string]any{"color": "green", "weight": 5, "tags": []any{"a", "z"}}),
	)
	require.NoError(t, err)
}

func (f *fixture) run(t *testing.T, m *model.Model, q queryir.Query, offset, limit int) []string {
	t.Helper()
	r, err := f.engine.Run(context.Background(), m, q, offset, limit)
	require.NoError(t, err)
	return testutil.KeyStrings(r.Keys())
}

func order(cols ...string) []queryir.Order {
	out := make([]queryir.Order, len(cols))
	for i, c := range cols {
		out[i] = queryir.ParseOrder(c)
	}
	return out
}

func TestRun_FanOutMergesInOrder(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	q := queryir.Query{
		Kind:  "fruit",
		Where: queryir.In("color", "red", "green"),
		Order: order("-weight"),
	}
	assert.Equal(t, []string{"fruit:1", "fruit:5", "fruit:2", "fruit:3"}, f.run(t, fruitModel, q, 0, -1))
	assert.Len(t, f.client.Queries(), 2)

	f.client.Reset()
	assert.Equal(t, []string{"fruit:5", "fruit:2"}, f.run(t, fruitModel, q, 1, 2))
	for _, sq := range f.client.Queries() {
		assert.Equal(t, 3, sq.Limit, "each branch fetches offset+limit rows")
		assert.Equal(t, 0, sq.Offset)
	}
	assert.Equal(t, 2.0, promtest.ToFloat64(f.metrics.Queries.WithLabelValues("fan-out")))
}

func TestRun_FanOutDeduplicatesByKey(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	q := queryir.Query{
		Kind:  "fruit",
		Where: queryir.AnyOf(queryir.Eq("color", "red"), queryir.Gte("weight", 5)),
		Order: order("weight"),
	}
	assert.Equal(t, []string{"fruit:3", "fruit:1", "fruit:5", "fruit:4"}, f.run(t, fruitModel, q, 0, -1))
	assert.Equal(t, []string{"fruit:1", "fruit:5"}, f.run(t, fruitModel, q, 1, 2))
}

func TestRun_ListOrderingUsesExtremalElement(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)
	colors := queryir.In("color", "red", "green", "yellow")

	asc := queryir.Query{Kind: "fruit", Where: colors, Order: order("tags")}
	assert.Equal(t, []string{"fruit:1", "fruit:5", "fruit:2", "fruit:3"}, f.run(t, fruitModel, asc, 0, -1))

	desc := queryir.Query{Kind: "fruit", Where: colors, Order: order("-tags")}
	assert.Equal(t, []string{"fruit:5", "fruit:3", "fruit:1", "fruit:2"}, f.run(t, fruitModel, desc, 0, -1))

	// The single-branch path relies on the store's own ordering.
	single := queryir.Query{Kind: "fruit", Order: order("-tags")}
	assert.Equal(t, []string{"fruit:5", "fruit:3", "fruit:1", "fruit:2"}, f.run(t, fruitModel, single, 0, -1))
}

func TestRun_StaticallyEmptyQueriesSkipTheStore(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	tests := []struct {
		name  string
		where queryir.Node
	}{
		{"empty membership", queryir.AllOf(queryir.In("color"), queryir.Eq("weight", 5))},
		{"empty membership in every branch", queryir.AnyOf(
			queryir.AllOf(queryir.In("color"), queryir.Eq("weight", 5)),
			queryir.AllOf(queryir.In("tags"), queryir.Eq("weight", 3)),
		)},
		{"conflicting keys", queryir.AllOf(queryir.KeyEq(fruitKey(1)), queryir.KeyEq(fruitKey(2)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.client.Reset()
			r, err := f.engine.Run(context.Background(), fruitModel, queryir.Query{Kind: "fruit", Where: tt.where}, 0, -1)
			require.NoError(t, err)
			assert.Empty(t, r.All())
			assert.Equal(t, 0, f.client.Calls())
		})
	}
	assert.Equal(t, 3.0, promtest.ToFloat64(f.metrics.EmptyResults))
}

func TestRun_EmptyMembershipBranchIsPruned(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	q := queryir.Query{
		Kind: "fruit",
		Where: queryir.AnyOf(
			queryir.AllOf(queryir.In("color"), queryir.Eq("weight", 5)),
			queryir.Eq("color", "yellow"),
		),
	}
	assert.Equal(t, []string{"fruit:4"}, f.run(t, fruitModel, q, 0, -1))
	assert.Len(t, f.client.Queries(), 1)
}

func TestRun_TooManyBranches(t *testing.T) {
	f := newFixture(t, WithMaxBranches(3))

	_, err := f.engine.Run(context.Background(), fruitModel, queryir.Query{
		Kind:  "fruit",
		Where: queryir.In("weight", 1, 2, 3, 4),
	}, 0, -1)
	require.Error(t, err)
	assert.True(t, normalize.IsTooManyBranches(err))
	assert.Equal(t, 0, f.client.Calls())
}

func TestRun_BranchFailureFailsTheRequest(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)
	f.client.FailQuery = func(q queryir.SubQuery) error {
		for _, l := range q.Filters {
			if l.Column == "color" && ir.Equal(l.Value, ir.String("green")) {
				return testutil.ErrInjected
			}
		}
		return nil
	}

	r, err := f.engine.Run(context.Background(), fruitModel, queryir.Query{
		Kind:  "fruit",
		Where: queryir.In("color", "red", "green"),
	}, 0, -1)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, testutil.ErrInjected)

	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ErrCodeSubqueryFailed, ee.Code)
	assert.Equal(t, 1, ee.Branch)
}

func TestRun_DistinctProjection(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	r, err := f.engine.Run(context.Background(), fruitModel, queryir.Query{
		Kind:     "fruit",
		Where:    queryir.In("color", "red", "green"),
		Columns:  []string{"color"},
		Distinct: true,
	}, 0, -1)
	require.NoError(t, err)

	rows := r.All()
	require.Len(t, rows, 2)
	assert.Equal(t, "fruit:1", rows[0].Key.String())
	assert.Equal(t, []string{"color"}, rows[0].PropertyNames())
	assert.Equal(t, "fruit:2", rows[1].Key.String())
	v, _ := rows[1].Get("color")
	assert.Equal(t, ir.String("green"), v)
}

func TestRun_ProjectionTrimsOrderedColumns(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	r, err := f.engine.Run(context.Background(), fruitModel, queryir.Query{
		Kind:    "fruit",
		Where:   queryir.In("color", "red", "yellow"),
		Columns: []string{"color"},
		Order:   order("-weight"),
	}, 0, -1)
	require.NoError(t, err)

	rows := r.All()
	require.Len(t, rows, 3)
	assert.Equal(t, "fruit:4", rows[0].Key.String())
	for _, row := range rows {
		assert.Equal(t, []string{"color"}, row.PropertyNames())
	}
}

func TestRun_KeysOnlyWithOrdering(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	r, err := f.engine.Run(context.Background(), fruitModel, queryir.Query{
		Kind:     "fruit",
		Where:    queryir.In("color", "red", "green"),
		Order:    order("weight"),
		KeysOnly: true,
	}, 0, -1)
	require.NoError(t, err)

	rows := r.All()
	require.Len(t, rows, 4)
	var keys []string
	for _, row := range rows {
		keys = append(keys, row.Key.String())
		assert.Empty(t, row.Properties)
	}
	assert.Equal(t, []string{"fruit:3", "fruit:2", "fruit:1", "fruit:5"}, keys)
}

func TestRun_SparseOrderingExcludesMissing(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	q := queryir.Query{Kind: "fruit", Where: queryir.In("color", "yellow", "green"), Order: order("tags")}
	assert.Equal(t, []string{"fruit:5", "fruit:2"}, f.run(t, fruitModel, q, 0, -1))
}

func TestResults_Iteration(t *testing.T) {
	f := newFixture(t)
	f.seedFruit(t)

	r, err := f.engine.Run(context.Background(), fruitModel, queryir.Query{Kind: "fruit"}, 0, 3)
	require.NoError(t, err)

	require.True(t, r.Next())
	assert.Equal(t, "fruit:1", r.Key().String())
	assert.Equal(t, "fruit:1", r.Entity().Key.String())

	var rest []string
	for e := range r.Seq() {
		rest = append(rest, e.Key.String())
	}
	assert.Equal(t, []string{"fruit:2", "fruit:3"}, rest)
	assert.False(t, r.Next())
	assert.Nil(t, r.Key())
	assert.Empty(t, r.All())
}

func TestExecute_RejectsNegativeOffset(t *testing.T) {
	f := newFixture(t)
	p, err := f.engine.Plan(fruitModel, queryir.Query{Kind: "fruit"})
	require.NoError(t, err)
	_, err = f.engine.Execute(context.Background(), p, -1, 5)
	assert.Error(t, err)
}

func TestRun_ConcurrentRequests(t *testing.T) {
	f := newFixture(t, WithWorkers(2))
	f.seedFruit(t)
	q := queryir.Query{
		Kind:  "fruit",
		Where: queryir.In("weight", 1, 3, 5, 8),
		Order: order("-weight"),
	}
	want := []string{"fruit:4", "fruit:1", "fruit:5", "fruit:2", "fruit:3"}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.engine.Run(context.Background(), fruitModel, q, 0, -1)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, want, testutil.KeyStrings(r.Keys()))
		}()
	}
	wg.Wait()
}
