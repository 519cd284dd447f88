package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/queryir"
)

// FilterDoc is the YAML form of a filter tree node. Exactly one of And,
// Or, Not or Column is set:
//
//	or:
//	  - {column: color, op: "=", value: red}
//	  - and:
//	      - {column: size, op: ">", value: 3}
//	      - not: {column: tags, op: in, value: [a, b]}
type FilterDoc struct {
	And    []FilterDoc `yaml:"and,omitempty"`
	Or     []FilterDoc `yaml:"or,omitempty"`
	Not    *FilterDoc  `yaml:"not,omitempty"`
	Column string      `yaml:"column,omitempty"`
	Op     string      `yaml:"op,omitempty"`
	Value  any         `yaml:"value,omitempty"`
}

// QueryDoc is the YAML form of a query plus its page window.
type QueryDoc struct {
	Kind      string     `yaml:"kind"`
	Namespace string     `yaml:"namespace,omitempty"`
	Ancestor  string     `yaml:"ancestor,omitempty"`
	Where     *FilterDoc `yaml:"where,omitempty"`
	Columns   []string   `yaml:"columns,omitempty"`
	Distinct  bool       `yaml:"distinct,omitempty"`
	Order     []string   `yaml:"order,omitempty"` // "col" ascending, "-col" descending
	KeysOnly  bool       `yaml:"keys_only,omitempty"`
	Offset    int        `yaml:"offset,omitempty"`
	Limit     *int       `yaml:"limit,omitempty"` // nil means unbounded
}

// RecordDoc is the YAML form of an entity. Key holds a complete key path;
// otherwise Kind (and optionally Parent) name an incomplete key the store
// allocates on put.
type RecordDoc struct {
	Key        string         `yaml:"key,omitempty"`
	Kind       string         `yaml:"kind,omitempty"`
	Parent     string         `yaml:"parent,omitempty"`
	Namespace  string         `yaml:"namespace,omitempty"`
	Properties map[string]any `yaml:"properties"`
}

var opsByName = map[string]queryir.Op{
	"=":          queryir.OpEq,
	"==":         queryir.OpEq,
	"eq":         queryir.OpEq,
	"<":          queryir.OpLt,
	"lt":         queryir.OpLt,
	"<=":         queryir.OpLte,
	"lte":        queryir.OpLte,
	">":          queryir.OpGt,
	"gt":         queryir.OpGt,
	">=":         queryir.OpGte,
	"gte":        queryir.OpGte,
	"in":         queryir.OpIn,
	"range":      queryir.OpRange,
	"isnull":     queryir.OpIsNull,
	"startswith": queryir.OpStartsWith,
}

// ParseOp resolves an operator name (symbol or word, case-insensitive).
func ParseOp(name string) (queryir.Op, error) {
	op, ok := opsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown operator %q", name)
	}
	return op, nil
}

// Node converts the document into a filter tree.
func (f FilterDoc) Node() (queryir.Node, error) {
	set := 0
	if f.And != nil {
		set++
	}
	if f.Or != nil {
		set++
	}
	if f.Not != nil {
		set++
	}
	if f.Column != "" {
		set++
	}
	if set != 1 {
		return nil, errors.New("filter node needs exactly one of and, or, not, column")
	}

	switch {
	case f.And != nil:
		children, err := nodes(f.And)
		if err != nil {
			return nil, err
		}
		return queryir.AllOf(children...), nil
	case f.Or != nil:
		children, err := nodes(f.Or)
		if err != nil {
			return nil, err
		}
		return queryir.AnyOf(children...), nil
	case f.Not != nil:
		child, err := f.Not.Node()
		if err != nil {
			return nil, err
		}
		return queryir.Not(child), nil
	}
	return f.leaf()
}

func nodes(docs []FilterDoc) ([]queryir.Node, error) {
	out := make([]queryir.Node, len(docs))
	for i, d := range docs {
		n, err := d.Node()
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

func (f FilterDoc) leaf() (queryir.Leaf, error) {
	op, err := ParseOp(f.Op)
	if err != nil {
		return queryir.Leaf{}, fmt.Errorf("column %s: %w", f.Column, err)
	}

	var v ir.Value
	if f.Column == ir.KeyProperty {
		v, err = keyValue(f.Value)
	} else {
		v, err = ParseValue(f.Value)
	}
	if err != nil {
		return queryir.Leaf{}, fmt.Errorf("column %s: %w", f.Column, err)
	}

	switch op {
	case queryir.OpIn:
		if _, ok := v.(ir.List); !ok {
			return queryir.Leaf{}, fmt.Errorf("column %s: in needs a list value", f.Column)
		}
	case queryir.OpRange:
		if l, ok := v.(ir.List); !ok || len(l) != 2 {
			return queryir.Leaf{}, fmt.Errorf("column %s: range needs a [lo, hi] value", f.Column)
		}
	case queryir.OpIsNull:
		if _, ok := v.(ir.Bool); !ok {
			return queryir.Leaf{}, fmt.Errorf("column %s: isnull needs a boolean value", f.Column)
		}
	case queryir.OpStartsWith:
		if _, ok := v.(ir.String); !ok {
			return queryir.Leaf{}, fmt.Errorf("column %s: startswith needs a string value", f.Column)
		}
	}
	return queryir.Leaf{Column: f.Column, Op: op, Value: v}, nil
}

// keyValue parses key paths for __key__ comparisons: a string, or a list
// of strings for in and range.
func keyValue(raw any) (ir.Value, error) {
	switch x := raw.(type) {
	case string:
		return ir.ParseKey(x)
	case []any:
		out := make(ir.List, len(x))
		for i, e := range x {
			k, err := keyValue(e)
			if err != nil {
				return nil, err
			}
			if _, nested := k.(ir.List); nested {
				return nil, errors.New("nested lists are not supported")
			}
			out[i] = k
		}
		return out, nil
	}
	return ParseValue(raw)
}

// ParseValue converts a decoded YAML scalar, sequence or {key: path}
// mapping into a Value.
func ParseValue(raw any) (ir.Value, error) {
	switch x := raw.(type) {
	case map[string]any:
		path, ok := x["key"].(string)
		if !ok || len(x) != 1 {
			return nil, errors.New("mapping values must have the form {key: Kind:id}")
		}
		return ir.ParseKey(path)
	case []any:
		out := make(ir.List, len(x))
		for i, e := range x {
			if _, nested := e.([]any); nested {
				return nil, fmt.Errorf("list element %d: nested lists are not supported", i)
			}
			v, err := ParseValue(e)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return ir.FromGo(raw)
}

// Query converts the document into a query.
func (d QueryDoc) Query() (queryir.Query, error) {
	if d.Kind == "" {
		return queryir.Query{}, errors.New("query kind is required")
	}
	q := queryir.Query{
		Kind:      d.Kind,
		Namespace: d.Namespace,
		Columns:   d.Columns,
		Distinct:  d.Distinct,
		KeysOnly:  d.KeysOnly,
	}
	if d.Ancestor != "" {
		k, err := ir.ParseKey(d.Ancestor)
		if err != nil {
			return queryir.Query{}, fmt.Errorf("ancestor: %w", err)
		}
		q.Ancestor = k
	}
	if d.Where != nil {
		n, err := d.Where.Node()
		if err != nil {
			return queryir.Query{}, fmt.Errorf("where: %w", err)
		}
		q.Where = n
	}
	for _, o := range d.Order {
		q.Order = append(q.Order, queryir.ParseOrder(o))
	}
	return q, nil
}

// Window returns the page offset and limit, -1 meaning unbounded.
func (d QueryDoc) Window() (offset, limit int) {
	if d.Limit == nil {
		return d.Offset, -1
	}
	return d.Offset, *d.Limit
}

// Entity converts the document into an entity.
func (d RecordDoc) Entity() (*ir.Entity, error) {
	var key *ir.Key
	switch {
	case d.Key != "":
		k, err := ir.ParseKey(d.Key)
		if err != nil {
			return nil, err
		}
		key = k
	case d.Kind != "":
		var parent *ir.Key
		if d.Parent != "" {
			p, err := ir.ParseKey(d.Parent)
			if err != nil {
				return nil, fmt.Errorf("parent: %w", err)
			}
			parent = p
		}
		key = ir.IncompleteKey(d.Kind, parent)
		if parent == nil {
			key.Namespace = d.Namespace
		}
	default:
		return nil, errors.New("record needs a key or a kind")
	}

	e := ir.NewEntity(key)
	names := make([]string, 0, len(d.Properties))
	for name := range d.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := ParseValue(d.Properties[name])
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		e.Set(name, v)
	}
	return e, nil
}

// Entities converts every record, reporting the first failure by index.
func Entities(docs []RecordDoc) ([]*ir.Entity, error) {
	out := make([]*ir.Entity, len(docs))
	for i, d := range docs {
		e, err := d.Entity()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}

// LoadQuery reads a QueryDoc from a YAML file, rejecting unknown fields.
func LoadQuery(path string) (*QueryDoc, error) {
	var doc QueryDoc
	if err := decodeFile(path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadRecords reads a YAML sequence of RecordDocs.
func LoadRecords(path string) ([]RecordDoc, error) {
	var docs []RecordDoc
	if err := decodeFile(path, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}
	return nil
}
