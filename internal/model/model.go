// Package model holds the per-kind metadata the query layer consumes:
// declared uniqueness combinations and list-valued columns.
package model

import (
	"slices"
	"sort"

	"github.com/roach88/disjunct/internal/ir"
)

// Model describes one entity kind.
type Model struct {
	Kind string

	// UniqueTogether lists column combinations that must be jointly unique.
	// A single-column constraint is a one-element combination.
	UniqueTogether [][]string

	// ListColumns names columns that hold lists.
	ListColumns []string
}

// Combinations returns the unique combinations, excluding the key column
// and dropping combinations left empty or duplicated. Columns inside a
// combination keep their declared order.
func (m *Model) Combinations() [][]string {
	if m == nil {
		return nil
	}
	var out [][]string
	for _, combo := range m.UniqueTogether {
		cols := make([]string, 0, len(combo))
		for _, c := range combo {
			if c != ir.KeyProperty && !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
		if len(cols) == 0 {
			continue
		}
		if slices.ContainsFunc(out, func(o []string) bool { return sameColumns(o, cols) }) {
			continue
		}
		out = append(out, cols)
	}
	return out
}

// IsList reports whether the column is declared list-valued.
func (m *Model) IsList(column string) bool {
	return m != nil && slices.Contains(m.ListColumns, column)
}

// Combination returns the declared combination whose column set equals
// columns (in any order), or nil.
func (m *Model) Combination(columns []string) []string {
	for _, combo := range m.Combinations() {
		if sameColumns(combo, columns) {
			return combo
		}
	}
	return nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	sort.Strings(x)
	sort.Strings(y)
	return slices.Equal(x, y)
}

// Registry maps kinds to their models.
type Registry struct {
	models map[string]*Model
}

// NewRegistry returns a registry holding the given models.
func NewRegistry(models ...*Model) *Registry {
	r := &Registry{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		r.models[m.Kind] = m
	}
	return r
}

// Lookup returns the model for a kind. Undeclared kinds get an empty model
// with no constraints.
func (r *Registry) Lookup(kind string) *Model {
	if r != nil {
		if m, ok := r.models[kind]; ok {
			return m
		}
	}
	return &Model{Kind: kind}
}

// Kinds returns the declared kinds in sorted order.
func (r *Registry) Kinds() []string {
	if r == nil {
		return nil
	}
	kinds := make([]string, 0, len(r.models))
	for k := range r.models {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
