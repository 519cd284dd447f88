package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/disjunct/internal/cache"
	"github.com/roach88/disjunct/internal/compiler"
	"github.com/roach88/disjunct/internal/engine"
	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/metrics"
	"github.com/roach88/disjunct/internal/model"
	"github.com/roach88/disjunct/internal/normalize"
	"github.com/roach88/disjunct/internal/store"
	"github.com/roach88/disjunct/internal/testutil"
	"github.com/roach88/disjunct/internal/unique"
)

// cacheSize bounds the scenario engine's entity cache.
const cacheSize = 256

// Harness is the scenario execution engine.
// It runs scenarios against a fresh store with deterministic key names.
type Harness struct {
	store  *store.Store
	client *testutil.RecordingClient
	engine *engine.Engine
	models *model.Registry
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Incomplete keys get sequential names, so traces are reproducible.
//
// Execution flow:
// 1. Compile the models file, if any
// 2. Create a fresh in-memory database and write the seed records
// 3. Run each step through the engine, recording store calls
// 4. Compare every step against its expectation
//
// A returned error means the scenario could not run at all; step
// mismatches are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	registry := model.NewRegistry()
	if scenario.Models != "" {
		r, err := compiler.CompileFile(scenario.Models)
		if err != nil {
			return nil, fmt.Errorf("failed to compile models: %w", err)
		}
		registry = r
	}

	st, err := store.Open(":memory:", store.WithNameGenerator(testutil.NewSequentialNames("")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	seed, err := Entities(scenario.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to convert seed: %w", err)
	}
	if len(seed) > 0 {
		if _, err := st.Put(ctx, seed...); err != nil {
			return nil, fmt.Errorf("failed to write seed: %w", err)
		}
	}

	c, err := cache.NewLRUCache(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	client := testutil.NewRecordingClient(st)
	eng, err := engine.New(client,
		engine.WithCache(c),
		engine.WithMaxBranches(scenario.MaxBranches),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.NewUnregistered()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	h := &Harness{
		store:  st,
		client: client,
		engine: eng,
		models: registry,
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		out := h.runStep(ctx, i, step)
		result.AddTrace(out.trace)
		for _, err := range evaluateExpect(i, step.Expect, out) {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

// runStep executes one step and records what it did.
func (h *Harness) runStep(ctx context.Context, i int, step Step) outcome {
	h.client.Reset()

	out := outcome{trace: StepTrace{Step: i, Name: step.Name, Op: step.Op(), Keys: []string{}}}
	var keys []*ir.Key
	switch step.Op() {
	case OpQuery:
		out.entities, out.trace.Strategy, out.err = h.query(ctx, step.Query)
		for _, e := range out.entities {
			keys = append(keys, e.Key)
		}
	case OpPut:
		keys, out.err = h.put(ctx, step.Put)
	case OpDelete:
		out.err = h.delete(ctx, step.Delete)
	}

	if out.err != nil {
		out.trace.Error = classify(out.err)
		out.entities = nil
	} else {
		out.trace.Keys = testutil.KeyStrings(keys)
	}
	out.trace.Subqueries = len(h.client.Queries())
	out.trace.PointGets = len(h.client.Gets())

	h.logger.Info("step completed",
		"step", i,
		"op", out.trace.Op,
		"strategy", out.trace.Strategy,
		"results", len(out.trace.Keys),
		"subqueries", out.trace.Subqueries,
		"error", out.trace.Error,
	)
	return out
}

func (h *Harness) query(ctx context.Context, doc *QueryDoc) ([]*ir.Entity, string, error) {
	q, err := doc.Query()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", normalize.ErrInvalidFilter, err)
	}
	offset, limit := doc.Window()

	p, err := h.engine.Plan(h.models.Lookup(q.Kind), q)
	if errors.Is(err, normalize.ErrEmptyResult) {
		return nil, StrategyEmpty, nil
	}
	if err != nil {
		return nil, "", err
	}

	res, err := h.engine.Execute(ctx, p, offset, limit)
	if err != nil {
		return nil, p.Strategy.String(), err
	}
	return res.All(), p.Strategy.String(), nil
}

// put writes one batch through the engine's unique enforcement. A batch
// holds records of a single kind, checked against that kind's model.
func (h *Harness) put(ctx context.Context, docs []RecordDoc) ([]*ir.Key, error) {
	entities, err := Entities(docs)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	kind := entities[0].Key.Kind
	for _, e := range entities[1:] {
		if e.Key.Kind != kind {
			return nil, fmt.Errorf("put mixes kinds %s and %s", kind, e.Key.Kind)
		}
	}
	return h.engine.Put(ctx, h.models.Lookup(kind), entities...)
}

func (h *Harness) delete(ctx context.Context, paths []string) error {
	keys := make([]*ir.Key, len(paths))
	for i, p := range paths {
		k, err := ir.ParseKey(p)
		if err != nil {
			return err
		}
		keys[i] = k
	}
	return h.engine.Delete(ctx, keys...)
}

// classify maps an error to the class scenarios assert on.
func classify(err error) string {
	switch {
	case unique.IsIntegrityError(err):
		return ErrorIntegrity
	case normalize.IsTooManyBranches(err):
		return ErrorTooManyBranches
	case errors.Is(err, normalize.ErrInvalidFilter):
		return ErrorInvalidFilter
	case engine.IsExecutionError(err):
		return ErrorExecution
	default:
		return ErrorOther
	}
}
