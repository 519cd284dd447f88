package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/common/expfmt"

	"github.com/roach88/disjunct/internal/cache"
	"github.com/roach88/disjunct/internal/engine"
	"github.com/roach88/disjunct/internal/metrics"
	"github.com/roach88/disjunct/internal/store"
)

// session is an engine over the configured SQLite database.
type session struct {
	store  *store.Store
	engine *engine.Engine
	opts   *RootOptions
}

// openSession opens the configured database and an engine over it. With
// mustExist set, a missing database file is a command error instead of
// being created empty.
func openSession(opts *RootOptions, mustExist bool) (*session, error) {
	cfg := opts.Config
	if mustExist && cfg.Database != ":memory:" {
		if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", cfg.Database)}
		}
	}

	st, err := store.Open(cfg.Database, store.WithMaxBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var c cache.Cache = cache.Disabled{}
	if cfg.CacheSize > 0 {
		lru, err := cache.NewLRUCache(cfg.CacheSize)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("creating cache: %w", err)
		}
		c = lru
	}

	eng, err := engine.New(st,
		engine.WithCache(c),
		engine.WithWorkers(cfg.Workers),
		engine.WithBatchSize(cfg.BatchSize),
		engine.WithMaxBranches(cfg.MaxBranches),
		engine.WithLogger(opts.logger()),
		engine.WithMetrics(metrics.New(opts.registry())),
	)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &session{store: st, engine: eng, opts: opts}, nil
}

// Close releases the engine and database. With --metrics set, the
// gathered counters are written to w first.
func (s *session) Close(w io.Writer) {
	if s.opts.Metrics {
		if err := writeMetrics(w, s.opts); err != nil {
			s.opts.logger().Error("writing metrics", "error", err)
		}
	}
	s.engine.Close()
	s.store.Close()
}

// writeMetrics writes every gathered family in the Prometheus text
// exposition format.
func writeMetrics(w io.Writer, opts *RootOptions) error {
	families, err := opts.registry().Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
