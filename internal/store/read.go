package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/querysql"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query runs one conjunctive sub-query against committed state.
// Results are materialized before return.
func (s *Store) Query(ctx context.Context, q SubQuery) (Cursor, error) {
	return runQuery(ctx, s.db, s.compiler, q)
}

// Get performs a batched point read. The result has one slot per key, nil
// where no entity exists (incomplete keys never exist).
func (s *Store) Get(ctx context.Context, keys []*ir.Key) ([]*ir.Entity, error) {
	return getMulti(ctx, s.db, keys, s.maxBatchSize)
}

func runQuery(ctx context.Context, db queryer, c *querysql.SQLCompiler, q SubQuery) (Cursor, error) {
	sqlText, params, err := c.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Kind, err)
	}

	rows, err := db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Kind, err)
	}
	defer rows.Close()

	var entities []*ir.Entity
	for rows.Next() {
		e, err := scanEntity(rows, q.KeysOnly)
		if err != nil {
			return nil, err
		}
		if len(q.Projection) > 0 && !q.KeysOnly {
			e = e.Project(q.Projection)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Kind, err)
	}

	if len(q.DistinctOn) > 0 {
		entities = page(distinct(entities, q.DistinctOn), q.Offset, q.Limit)
	}
	return NewSliceCursor(entities), nil
}

// distinct keeps the first entity of each group of equal values on
// columns. Input order is preserved.
func distinct(entities []*ir.Entity, columns []string) []*ir.Entity {
	seen := make(map[string]bool, len(entities))
	out := entities[:0:0]
	for _, e := range entities {
		id := TupleID(e, columns)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, e)
	}
	return out
}

// TupleID identifies an entity's values on columns, distinguishing types
// and missing properties.
func TupleID(e *ir.Entity, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		if v, ok := e.Get(c); ok {
			parts[i] = ir.Format(v)
		} else {
			parts[i] = "<missing>"
		}
	}
	return strings.Join(parts, "\x00")
}

func page(entities []*ir.Entity, offset, limit int) []*ir.Entity {
	if offset >= len(entities) {
		return nil
	}
	entities = entities[offset:]
	if limit >= 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities
}

func getMulti(ctx context.Context, db queryer, keys []*ir.Key, maxBatch int) ([]*ir.Entity, error) {
	if len(keys) > maxBatch {
		return nil, fmt.Errorf("get %d keys: %w (max %d)", len(keys), ErrBatchTooLarge, maxBatch)
	}

	out := make([]*ir.Entity, len(keys))
	var (
		params       []any
		placeholders []string
	)
	for _, k := range keys {
		if k == nil || k.Incomplete() {
			continue
		}
		params = append(params, k.Encode())
		placeholders = append(placeholders, "?")
	}
	if len(params) == 0 {
		return out, nil
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+querysql.EntityColumns+" FROM entities e WHERE e.key IN ("+strings.Join(placeholders, ", ")+")",
		params...)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*ir.Entity, len(params))
	for rows.Next() {
		e, err := scanEntity(rows, false)
		if err != nil {
			return nil, err
		}
		found[string(e.Key.Encode())] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	for i, k := range keys {
		if k == nil || k.Incomplete() {
			continue
		}
		if e, ok := found[string(k.Encode())]; ok {
			out[i] = e.Clone()
		}
	}
	return out, nil
}

// scanEntity reads a row selected with querysql.EntityColumns, or
// querysql.KeyColumns when keysOnly.
func scanEntity(rows *sql.Rows, keysOnly bool) (*ir.Entity, error) {
	var (
		rawKey []byte
		path   string
		data   []byte
	)
	dest := []any{&rawKey, &path}
	if !keysOnly {
		dest = append(dest, &data)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}

	key, err := ir.ParseKey(path)
	if err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	e := ir.NewEntity(key)
	if keysOnly {
		return e, nil
	}
	props, err := decodeProperties(data)
	if err != nil {
		return nil, fmt.Errorf("scan entity %s: %w", path, err)
	}
	e.Properties = props
	return e, nil
}
