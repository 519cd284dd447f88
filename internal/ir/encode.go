package ir

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Index type tags. Their order is the cross-type order.
const (
	tagNull   byte = 0x10
	tagInt    byte = 0x20
	tagBool   byte = 0x30
	tagString byte = 0x40
	tagFloat  byte = 0x50
	tagKey    byte = 0x60
)

// EncodeIndex returns an order-preserving encoding of a scalar value.
//
// For any scalars a and b:
//
//	bytes.Compare(EncodeIndex(a), EncodeIndex(b)) == Compare(a, b)
//
// The store indexes and compares BLOBs of this form, which lets a plain SQL
// comparison evaluate typed range filters. Lists are not encodable; index
// their elements individually.
func EncodeIndex(v Value) ([]byte, error) {
	switch x := v.(type) {
	case nil, Null:
		return []byte{tagNull}, nil
	case Int:
		buf := make([]byte, 9)
		buf[0] = tagInt
		binary.BigEndian.PutUint64(buf[1:], uint64(x)^(1<<63))
		return buf, nil
	case Bool:
		if x {
			return []byte{tagBool, 1}, nil
		}
		return []byte{tagBool, 0}, nil
	case String:
		buf := make([]byte, 0, len(x)+1)
		buf = append(buf, tagString)
		return append(buf, string(x)...), nil
	case Float:
		buf := make([]byte, 9)
		buf[0] = tagFloat
		binary.BigEndian.PutUint64(buf[1:], floatBits(float64(x)))
		return buf, nil
	case *Key:
		if x == nil {
			return nil, fmt.Errorf("encode index: nil key")
		}
		return append([]byte{tagKey}, x.Encode()...), nil
	case List:
		return nil, fmt.Errorf("encode index: lists must be indexed element by element")
	default:
		return nil, fmt.Errorf("encode index: unsupported value type %T", v)
	}
}

// MustEncodeIndex is like EncodeIndex but panics on error.
func MustEncodeIndex(v Value) []byte {
	b, err := EncodeIndex(v)
	if err != nil {
		panic(err)
	}
	return b
}

// floatBits maps a float to a uint64 whose unsigned order matches
// cmp.Compare on the floats: NaN first, -0 folded into +0.
func floatBits(f float64) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	if f == 0 {
		f = 0 // folds -0
	}
	b := math.Float64bits(f)
	if b&(1<<63) != 0 {
		return ^b
	}
	return b | (1 << 63)
}
