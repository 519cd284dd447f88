package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/disjunct/internal/ir"
)

func TestCodec_PreservesEveryValueType(t *testing.T) {
	props := map[string]ir.Value{
		"null":   ir.Null{},
		"int":    ir.Int(-42),
		"zero":   ir.Int(0),
		"float":  ir.Float(2.5),
		"bool":   ir.Bool(true),
		"string": ir.String("héllo"),
		"key":    ir.NameKey("farm", "north", ir.IDKey("region", 3, nil)),
		"list":   ir.List{ir.String("a"), ir.Int(1), ir.Null{}},
		"empty":  ir.List{},
	}

	data, err := encodeProperties(props)
	require.NoError(t, err)

	got, err := decodeProperties(data)
	require.NoError(t, err)
	require.Len(t, got, len(props))
	for name, want := range props {
		assert.True(t, ir.Equal(want, got[name]), "%s: want %s, got %s", name, ir.Format(want), ir.Format(got[name]))
	}
	assert.IsType(t, ir.Int(0), got["zero"])
	assert.IsType(t, ir.List{}, got["empty"])
}

func TestCodec_Rejects(t *testing.T) {
	_, err := encodeProperties(map[string]ir.Value{"k": ir.IncompleteKey("fruit", nil)})
	assert.Error(t, err)

	_, err = encodeProperties(map[string]ir.Value{"l": ir.List{ir.List{}}})
	assert.Error(t, err)

	_, err = decodeProperties([]byte{0xc1})
	assert.Error(t, err)

	_, err = fromWire(wireValue{Type: "mystery"})
	assert.Error(t, err)
}

func TestIndexRows(t *testing.T) {
	rows, err := indexRows(ir.Int(1))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{ir.MustEncodeIndex(ir.Int(1))}, rows)

	rows, err = indexRows(ir.List{ir.String("a"), ir.String("b")})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = indexRows(ir.List{})
	require.NoError(t, err)
	assert.Empty(t, rows, "empty lists are not indexed")

	rows, err = indexRows(ir.Null{})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{ir.MustEncodeIndex(ir.Null{})}, rows, "null is indexed")
}
