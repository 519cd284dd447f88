package unique

import (
	"context"
	"fmt"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/model"
	"github.com/roach88/disjunct/internal/store"
)

// ConflictFunc decides whether the keys found holding a marker conflict
// with writing e.
type ConflictFunc func(e *ir.Entity, found []*ir.Key) bool

// AnyResult treats any existing holder as a conflict. Use it for inserts.
func AnyResult(_ *ir.Entity, found []*ir.Key) bool {
	return len(found) > 0
}

// DifferentIdentity treats a single holder other than e itself as a
// conflict. Use it for updates, where e already holds its own markers.
func DifferentIdentity(e *ir.Entity, found []*ir.Key) bool {
	if len(found) != 1 {
		return false
	}
	if e.Key == nil || e.Key.Incomplete() {
		return true
	}
	return !found[0].Equal(e.Key)
}

// Check looks up every marker of e in r and returns an *IntegrityError for
// the first one conflict rejects. Run it through the same transaction as
// the write it protects.
func Check(ctx context.Context, r store.Reader, m *model.Model, e *ir.Entity, conflict ConflictFunc) error {
	if conflict == nil {
		conflict = AnyResult
	}
	for _, mk := range Markers(m, e) {
		found, err := holders(ctx, r, e, mk)
		if err != nil {
			return fmt.Errorf("unique check %s: %w", mk, err)
		}
		if conflict(e, found) {
			return newIntegrityError(mk, found[0])
		}
	}
	return nil
}

// holders fetches at most one key already carrying mk.
func holders(ctx context.Context, r store.Reader, e *ir.Entity, mk Marker) ([]*ir.Key, error) {
	cur, err := r.Query(ctx, store.SubQuery{
		Kind:      mk.Kind,
		Namespace: mk.Namespace,
		Filters:   mk.Filters(),
		KeysOnly:  true,
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	entities, err := store.Collect(cur)
	if err != nil {
		return nil, err
	}
	keys := make([]*ir.Key, len(entities))
	for i, found := range entities {
		keys[i] = found.Key
	}
	return keys, nil
}

// CheckInMemory rejects a batch in which two distinct records share a
// marker. A record is identified by its complete key; records with
// incomplete keys are always distinct from each other. The same complete
// key appearing twice is one record written twice and does not conflict.
func CheckInMemory(m *model.Model, batch []*ir.Entity) error {
	type claim struct {
		index int
		key   *ir.Key
	}
	claimed := make(map[string]claim)
	for i, e := range batch {
		for _, mk := range Markers(m, e) {
			id := mk.String()
			prev, ok := claimed[id]
			if !ok {
				claimed[id] = claim{index: i, key: e.Key}
				continue
			}
			if prev.index == i || sameRecord(prev.key, e.Key) {
				continue
			}
			return newIntegrityError(mk, nil)
		}
	}
	return nil
}

func sameRecord(a, b *ir.Key) bool {
	if a == nil || b == nil || a.Incomplete() || b.Incomplete() {
		return false
	}
	return a.Equal(b)
}
