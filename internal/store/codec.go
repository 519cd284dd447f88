package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/disjunct/internal/ir"
)

// Wire type tags for stored property values.
const (
	wireNull   = "null"
	wireInt    = "int"
	wireFloat  = "float"
	wireBool   = "bool"
	wireString = "string"
	wireKey    = "key"
	wireList   = "list"
)

// wireValue is the msgpack envelope for one property value. Keys travel as
// their path string.
type wireValue struct {
	Type   string      `msgpack:"t"`
	Int    int64       `msgpack:"i,omitempty"`
	Float  float64     `msgpack:"f,omitempty"`
	Bool   bool        `msgpack:"b,omitempty"`
	String string      `msgpack:"s,omitempty"`
	List   []wireValue `msgpack:"l,omitempty"`
}

// encodeProperties serializes an entity's properties.
func encodeProperties(props map[string]ir.Value) ([]byte, error) {
	wire := make(map[string]wireValue, len(props))
	for name, v := range props {
		w, err := toWire(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		wire[name] = w
	}
	data, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return data, nil
}

// decodeProperties parses the blob written by encodeProperties.
func decodeProperties(data []byte) (map[string]ir.Value, error) {
	var wire map[string]wireValue
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	props := make(map[string]ir.Value, len(wire))
	for name, w := range wire {
		v, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = v
	}
	return props, nil
}

func toWire(v ir.Value) (wireValue, error) {
	switch x := v.(type) {
	case nil, ir.Null:
		return wireValue{Type: wireNull}, nil
	case ir.Int:
		return wireValue{Type: wireInt, Int: int64(x)}, nil
	case ir.Float:
		return wireValue{Type: wireFloat, Float: float64(x)}, nil
	case ir.Bool:
		return wireValue{Type: wireBool, Bool: bool(x)}, nil
	case ir.String:
		return wireValue{Type: wireString, String: string(x)}, nil
	case *ir.Key:
		if x == nil || x.Incomplete() {
			return wireValue{}, fmt.Errorf("key values must be complete")
		}
		return wireValue{Type: wireKey, String: x.String()}, nil
	case ir.List:
		elems := make([]wireValue, len(x))
		for i, e := range x {
			if _, nested := e.(ir.List); nested {
				return wireValue{}, fmt.Errorf("nested lists are not supported")
			}
			w, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			elems[i] = w
		}
		return wireValue{Type: wireList, List: elems}, nil
	}
	return wireValue{}, fmt.Errorf("unsupported value type %T", v)
}

func fromWire(w wireValue) (ir.Value, error) {
	switch w.Type {
	case wireNull:
		return ir.Null{}, nil
	case wireInt:
		return ir.Int(w.Int), nil
	case wireFloat:
		return ir.Float(w.Float), nil
	case wireBool:
		return ir.Bool(w.Bool), nil
	case wireString:
		return ir.String(w.String), nil
	case wireKey:
		return ir.ParseKey(w.String)
	case wireList:
		out := make(ir.List, len(w.List))
		for i, e := range w.List {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown wire type %q", w.Type)
}

// indexRows returns the index encodings a property contributes: one per
// scalar, one per list element, none for an empty list.
func indexRows(v ir.Value) ([][]byte, error) {
	elems := ir.Elements(v)
	out := make([][]byte, 0, len(elems))
	for _, e := range elems {
		b, err := ir.EncodeIndex(e)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
