package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/store"
)

// OpenStore opens a file-backed store under t.TempDir and closes it when
// the test ends.
func OpenStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Entity builds an entity from native Go property values.
func Entity(key *ir.Key, props map[string]any) *ir.Entity {
	e := ir.NewEntity(key)
	for name, v := range props {
		e.Set(name, ir.MustFromGo(v))
	}
	return e
}

// KeyStrings renders keys in their path form.
func KeyStrings(keys []*ir.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
