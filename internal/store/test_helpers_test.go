package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/disjunct/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newEntity builds an entity from native Go property values.
func newEntity(key *ir.Key, props map[string]any) *ir.Entity {
	e := ir.NewEntity(key)
	for name, v := range props {
		e.Set(name, ir.MustFromGo(v))
	}
	return e
}

func fruit(id int64, props map[string]any) *ir.Entity {
	return newEntity(ir.IDKey("fruit", id, nil), props)
}

func mustPut(t *testing.T, s *Store, entities ...*ir.Entity) []*ir.Key {
	t.Helper()
	keys, err := s.Put(context.Background(), entities...)
	require.NoError(t, err)
	return keys
}

// queryKeys runs a sub-query and returns the result keys as strings.
func queryKeys(t *testing.T, r Reader, q SubQuery) []string {
	t.Helper()
	c, err := r.Query(context.Background(), q)
	require.NoError(t, err)
	entities, err := Collect(c)
	require.NoError(t, err)
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Key.String()
	}
	return out
}
