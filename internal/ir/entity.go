package ir

import (
	"maps"
	"slices"
)

// Entity is a keyed bag of properties as returned by the store.
type Entity struct {
	Key        *Key
	Properties map[string]Value
}

// NewEntity returns an entity with no properties.
func NewEntity(key *Key) *Entity {
	return &Entity{Key: key, Properties: make(map[string]Value)}
}

// Get returns the value of a property. The reserved KeyProperty column
// returns the entity key.
func (e *Entity) Get(name string) (Value, bool) {
	if name == KeyProperty {
		if e.Key == nil {
			return nil, false
		}
		return e.Key, true
	}
	v, ok := e.Properties[name]
	return v, ok
}

// Set assigns a property value.
func (e *Entity) Set(name string, v Value) {
	if e.Properties == nil {
		e.Properties = make(map[string]Value)
	}
	e.Properties[name] = v
}

// Values returns the values a filter on the property is evaluated against:
// the list elements for a list, the value itself for a scalar, nothing for
// a missing property.
func (e *Entity) Values(name string) []Value {
	v, ok := e.Get(name)
	if !ok {
		return nil
	}
	return Elements(v)
}

// Clone returns a copy whose property map can be mutated independently.
// Values themselves are immutable and shared.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	return &Entity{Key: e.Key, Properties: maps.Clone(e.Properties)}
}

// Project returns a copy holding only the named properties.
func (e *Entity) Project(columns []string) *Entity {
	out := &Entity{Key: e.Key, Properties: make(map[string]Value, len(columns))}
	for _, c := range columns {
		if v, ok := e.Properties[c]; ok {
			out.Properties[c] = v
		}
	}
	return out
}

// PropertyNames returns the property names in sorted order.
func (e *Entity) PropertyNames() []string {
	return slices.Sorted(maps.Keys(e.Properties))
}
