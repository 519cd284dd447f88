package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Ordering(t *testing.T) {
	parent := IDKey("Parent", 1, nil)

	ordered := []*Key{
		IDKey("A", 1, nil),
		IDKey("A", 2, nil),
		NameKey("A", "a", nil),
		NameKey("A", "ab", nil),
		NameKey("A", "b", nil),
		IDKey("B", 1, nil),
		parent,
		IDKey("Child", 5, parent),
		NameKey("Child", "x", parent),
		IDKey("Parent", 2, nil),
		{Kind: "A", ID: 1, Namespace: "tenant"},
	}

	for i := range ordered {
		for j := range ordered {
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			assert.Equal(t, want, ordered[i].Compare(ordered[j]),
				"%s vs %s", ordered[i], ordered[j])
		}
	}
}

func TestKey_NilCompare(t *testing.T) {
	var k *Key
	assert.Equal(t, 0, k.Compare(nil))
	assert.Equal(t, -1, k.Compare(IDKey("A", 1, nil)))
	assert.Equal(t, 1, IDKey("A", 1, nil).Compare(nil))
}

func TestKey_StringRoundTrip(t *testing.T) {
	parent := NameKey("Owner", "alice", nil)
	keys := []*Key{
		IDKey("fruit", 12, nil),
		NameKey("fruit", "apple", nil),
		NameKey("fruit", "with/slash", parent),
		IDKey("note", -4, parent),
		{Kind: "fruit", Name: "ns", Namespace: "tenant"},
	}

	for _, k := range keys {
		t.Run(k.String(), func(t *testing.T) {
			parsed, err := ParseKey(k.String())
			require.NoError(t, err)
			assert.True(t, k.Equal(parsed), "parsed %s", parsed)
		})
	}

	assert.Equal(t, `Owner:"alice"/fruit:"with/slash"`, keys[2].String())
	assert.Equal(t, `[tenant]fruit:"ns"`, keys[4].String())
}

func TestParseKey_Errors(t *testing.T) {
	for _, s := range []string{"", "fruit", "fruit:", "fruit:0", "fruit:abc", `fruit:""`, "fruit:1/", "[ns"} {
		_, err := ParseKey(s)
		assert.Error(t, err, "ParseKey(%q)", s)
	}
}

func TestKey_Incomplete(t *testing.T) {
	assert.True(t, IncompleteKey("fruit", nil).Incomplete())
	assert.False(t, IDKey("fruit", 1, nil).Incomplete())

	child := IncompleteKey("leaf", NameKey("root", "r", nil))
	assert.Equal(t, "root", child.Root().Kind)
}
