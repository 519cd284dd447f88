// Package unique enforces declared uniqueness combinations on top of a store
// that has no native unique constraints.
//
// Every combination a record participates in yields one or more markers.
// Check looks each marker up in the store from inside the caller's write
// transaction; CheckInMemory compares the markers of a batch's own records,
// which cannot observe each other before commit.
package unique

import (
	"crypto/md5"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/model"
	"github.com/roach88/disjunct/internal/queryir"
)

// Marker identifies one concrete instance of a unique combination.
type Marker struct {
	Kind      string
	Namespace string

	// Columns and Values are parallel; Columns keep the declared order.
	Columns []string
	Values  []ir.Value
}

// String renders the marker identifier:
//
//	kind|col:value|col2:value
//
// Columns are sorted by name. Strings are NFC-normalized and MD5-hashed,
// keys render as their path, other scalars render verbatim. A namespace
// prefixes the kind as "[ns]".
func (m Marker) String() string {
	idx := make([]int, len(m.Columns))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return strings.Compare(m.Columns[a], m.Columns[b])
	})

	var sb strings.Builder
	if m.Namespace != "" {
		sb.WriteString("[" + m.Namespace + "]")
	}
	sb.WriteString(m.Kind)
	for _, i := range idx {
		sb.WriteByte('|')
		sb.WriteString(m.Columns[i])
		sb.WriteByte(':')
		sb.WriteString(identifierValue(m.Values[i]))
	}
	return sb.String()
}

// Filters returns one equality leaf per marker column.
func (m Marker) Filters() []queryir.Leaf {
	leaves := make([]queryir.Leaf, len(m.Columns))
	for i, c := range m.Columns {
		leaves[i] = queryir.Leaf{Column: c, Op: queryir.OpEq, Value: m.Values[i]}
	}
	return leaves
}

func identifierValue(v ir.Value) string {
	switch x := v.(type) {
	case ir.String:
		sum := md5.Sum([]byte(norm.NFC.String(string(x))))
		return hex.EncodeToString(sum[:])
	case ir.Int:
		return strconv.FormatInt(int64(x), 10)
	case ir.Bool:
		return strconv.FormatBool(bool(x))
	case *ir.Key:
		return x.String()
	}
	return ir.Format(v)
}

// Markers returns the markers e participates in under m.
//
// A combination with a missing, null or empty-list component yields no
// markers. List components expand to one marker per element, so a record
// holding ["a", "b"] in a unique list column claims both values.
func Markers(m *model.Model, e *ir.Entity) []Marker {
	if e == nil || e.Key == nil {
		return nil
	}
	var out []Marker
	seen := make(map[string]bool)
	for _, combo := range m.Combinations() {
		choices := make([][]ir.Value, len(combo))
		complete := true
		for i, col := range combo {
			choices[i] = present(e, col)
			if len(choices[i]) == 0 {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, values := range product(choices) {
			mk := Marker{
				Kind:      e.Key.Kind,
				Namespace: e.Key.Namespace,
				Columns:   slices.Clone(combo),
				Values:    values,
			}
			id := mk.String()
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, mk)
		}
	}
	return out
}

// present returns the non-null values e holds for col, deduplicated.
func present(e *ir.Entity, col string) []ir.Value {
	v, ok := e.Get(col)
	if !ok || ir.IsNull(v) {
		return nil
	}
	var out []ir.Value
	for _, el := range ir.Elements(v) {
		if ir.IsNull(el) {
			continue
		}
		if !slices.ContainsFunc(out, func(o ir.Value) bool { return ir.Equal(o, el) }) {
			out = append(out, el)
		}
	}
	return out
}

// product returns the cartesian product of choices, first column varying
// slowest.
func product(choices [][]ir.Value) [][]ir.Value {
	out := [][]ir.Value{{}}
	for _, options := range choices {
		next := make([][]ir.Value, 0, len(out)*len(options))
		for _, prefix := range out {
			for _, v := range options {
				row := make([]ir.Value, len(prefix), len(prefix)+1)
				copy(row, prefix)
				next = append(next, append(row, v))
			}
		}
		out = next
	}
	return out
}
