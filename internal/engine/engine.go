package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/disjunct/internal/cache"
	"github.com/roach88/disjunct/internal/metrics"
	"github.com/roach88/disjunct/internal/model"
	"github.com/roach88/disjunct/internal/normalize"
	"github.com/roach88/disjunct/internal/planner"
	"github.com/roach88/disjunct/internal/queryir"
	"github.com/roach88/disjunct/internal/store"
)

const (
	// DefaultWorkers is the fan-out worker pool size.
	DefaultWorkers = 8

	// DefaultBatchSize caps the keys of one point read.
	DefaultBatchSize = 1000
)

// Engine executes plans against a store client.
//
// Thread-safety: safe for concurrent use. Each request owns its merge
// state; the worker pool and cache are shared.
type Engine struct {
	client      store.Client
	cache       cache.Cache
	pool        *ants.Pool
	workers     int
	batchSize   int
	maxBranches int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithCache sets the read-through entity cache. Default: no caching.
func WithCache(c cache.Cache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithWorkers sets the fan-out concurrency. Default: 8.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithBatchSize sets the largest point read the engine issues. The store's
// own MaxBatchSize still applies. Default: 1000.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		e.batchSize = n
	}
}

// WithMaxBranches sets the normalization branch cap used by Run.
// Default: normalize.DefaultMaxBranches.
func WithMaxBranches(n int) EngineOption {
	return func(e *Engine) {
		e.maxBranches = n
	}
}

// WithLogger sets the engine logger. Default: discard.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the metric collectors. Default: unregistered collectors.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine reading through client.
func New(client store.Client, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		client:      client,
		cache:       cache.Disabled{},
		workers:     DefaultWorkers,
		batchSize:   DefaultBatchSize,
		maxBranches: normalize.DefaultMaxBranches,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.metrics == nil {
		e.metrics = metrics.NewUnregistered()
	}
	if e.cache == nil {
		e.cache = cache.Disabled{}
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}

	pool, err := ants.NewPool(e.workers, ants.WithPanicHandler(func(v any) {
		e.logger.Error("sub-query worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Close releases the worker pool.
func (e *Engine) Close() {
	e.pool.Release()
}

// Run normalizes, plans and executes q. A statically empty filter returns
// empty results without contacting the store.
func (e *Engine) Run(ctx context.Context, m *model.Model, q queryir.Query, offset, limit int) (*Results, error) {
	p, err := e.Plan(m, q)
	if errors.Is(err, normalize.ErrEmptyResult) {
		e.metrics.EmptyResults.Inc()
		e.logger.Debug("statically empty query", "kind", q.Kind)
		return emptyResults(), nil
	}
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, p, offset, limit)
}

// Plan normalizes q under the engine's branch cap and plans it.
func (e *Engine) Plan(m *model.Model, q queryir.Query) (*planner.Plan, error) {
	var listColumns []string
	if m != nil {
		listColumns = m.ListColumns
	}
	n, err := normalize.Normalize(q, normalize.Options{
		MaxBranches: e.maxBranches,
		ListColumns: listColumns,
	})
	if err != nil {
		return nil, err
	}
	return planner.Build(n, m), nil
}

// Execute runs a plan and returns the page [offset, offset+limit) of its
// merged results. A negative limit means no limit.
func (e *Engine) Execute(ctx context.Context, p *planner.Plan, offset, limit int) (*Results, error) {
	if offset < 0 {
		return nil, fmt.Errorf("execute: negative offset %d", offset)
	}
	e.metrics.Queries.WithLabelValues(p.Strategy.String()).Inc()
	e.logger.Debug("executing plan",
		"strategy", p.Strategy.String(),
		"kind", p.Query.Kind,
		"branches", len(p.Branches),
		"offset", offset,
		"limit", limit,
	)

	switch p.Strategy {
	case planner.KeyBatch:
		return e.keyBatch(ctx, p, offset, limit)
	case planner.IdentityCache:
		return e.identity(ctx, p, offset, limit)
	default:
		return e.fanOut(ctx, p, offset, limit)
	}
}

// fetchSize is how many rows each branch must return for the merge to
// cover the page.
func fetchSize(offset, limit int) int {
	if limit < 0 {
		return -1
	}
	return offset + limit
}
