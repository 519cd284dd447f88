package ir

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// KeyProperty is the reserved column name that addresses an entity's key
// in filters and orderings.
const KeyProperty = "__key__"

// Key identifies an entity: (kind, id-or-name, optional parent, namespace).
//
// A key with neither ID nor Name is incomplete; the store completes it on
// put. Keys are totally ordered (see Compare) and entity identity is key
// equality.
type Key struct {
	Kind      string
	ID        int64
	Name      string
	Parent    *Key
	Namespace string
}

// IDKey returns a complete key with a numeric ID.
func IDKey(kind string, id int64, parent *Key) *Key {
	k := &Key{Kind: kind, ID: id, Parent: parent}
	if parent != nil {
		k.Namespace = parent.Namespace
	}
	return k
}

// NameKey returns a complete key with a string name.
func NameKey(kind, name string, parent *Key) *Key {
	k := &Key{Kind: kind, Name: name, Parent: parent}
	if parent != nil {
		k.Namespace = parent.Namespace
	}
	return k
}

// IncompleteKey returns a key the store will complete on put.
func IncompleteKey(kind string, parent *Key) *Key {
	k := &Key{Kind: kind, Parent: parent}
	if parent != nil {
		k.Namespace = parent.Namespace
	}
	return k
}

// Incomplete reports whether the key has neither an ID nor a name.
func (k *Key) Incomplete() bool {
	return k.ID == 0 && k.Name == ""
}

// Root returns the top-most ancestor of k (k itself when it has no parent).
func (k *Key) Root() *Key {
	for k.Parent != nil {
		k = k.Parent
	}
	return k
}

// path returns the key's elements from the root down.
func (k *Key) path() []*Key {
	var elems []*Key
	for cur := k; cur != nil; cur = cur.Parent {
		elems = append(elems, cur)
	}
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return elems
}

// Path element markers. Numeric IDs sort before names.
const (
	elemStart = 0x01
	elemID    = 0x01
	elemName  = 0x02
	separator = 0x00
)

// Encode returns the order-preserving byte form of the key.
//
// Layout: namespace 0x00 { 0x01 kind 0x00 (0x01 id[8] | 0x02 name 0x00) }*
// A parent's encoding is a strict prefix of its children's, so ancestors
// sort before descendants.
func (k *Key) Encode() []byte {
	if k == nil {
		return nil
	}
	var buf bytes.Buffer
	buf.WriteString(k.Namespace)
	buf.WriteByte(separator)
	for _, e := range k.path() {
		buf.WriteByte(elemStart)
		buf.WriteString(e.Kind)
		buf.WriteByte(separator)
		switch {
		case e.Name != "":
			buf.WriteByte(elemName)
			buf.WriteString(e.Name)
			buf.WriteByte(separator)
		case e.ID != 0:
			buf.WriteByte(elemID)
			var id [8]byte
			binary.BigEndian.PutUint64(id[:], uint64(e.ID)^(1<<63))
			buf.Write(id[:])
		}
	}
	return buf.Bytes()
}

// Compare orders keys by their encoding.
// A nil key sorts before every non-nil key.
func (k *Key) Compare(other *Key) int {
	switch {
	case k == nil && other == nil:
		return 0
	case k == nil:
		return -1
	case other == nil:
		return 1
	}
	return bytes.Compare(k.Encode(), other.Encode())
}

// Equal reports whether two keys identify the same entity.
func (k *Key) Equal(other *Key) bool {
	return k.Compare(other) == 0
}

// String renders the key as a path, e.g. `Parent:1/Child:"name"`.
// A non-empty namespace is rendered as a "[ns]" prefix.
func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	var sb strings.Builder
	if k.Namespace != "" {
		sb.WriteString("[" + k.Namespace + "]")
	}
	for i, e := range k.path() {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(e.Kind)
		sb.WriteByte(':')
		switch {
		case e.Name != "":
			sb.WriteString(strconv.Quote(e.Name))
		case e.ID != 0:
			sb.WriteString(strconv.FormatInt(e.ID, 10))
		default:
			sb.WriteString("?")
		}
	}
	return sb.String()
}

// ParseKey parses the String form of a complete key.
func ParseKey(s string) (*Key, error) {
	orig := s
	var ns string
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, fmt.Errorf("parse key %q: unterminated namespace", orig)
		}
		ns, s = s[1:end], s[end+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("parse key %q: empty path", orig)
	}

	var parent *Key
	for s != "" {
		colon := strings.IndexByte(s, ':')
		if colon <= 0 {
			return nil, fmt.Errorf("parse key %q: missing kind", orig)
		}
		kind := s[:colon]
		s = s[colon+1:]

		k := &Key{Kind: kind, Parent: parent, Namespace: ns}
		if strings.HasPrefix(s, `"`) {
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return nil, fmt.Errorf("parse key %q: %w", orig, err)
			}
			name, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, fmt.Errorf("parse key %q: %w", orig, err)
			}
			if name == "" {
				return nil, fmt.Errorf("parse key %q: empty name", orig)
			}
			k.Name = name
			s = s[len(quoted):]
		} else {
			end := strings.IndexByte(s, '/')
			if end < 0 {
				end = len(s)
			}
			id, err := strconv.ParseInt(s[:end], 10, 64)
			if err != nil || id == 0 {
				return nil, fmt.Errorf("parse key %q: invalid id %q", orig, s[:end])
			}
			k.ID = id
			s = s[end:]
		}

		if s != "" {
			if s[0] != '/' {
				return nil, fmt.Errorf("parse key %q: expected '/' after element", orig)
			}
			s = s[1:]
			if s == "" {
				return nil, fmt.Errorf("parse key %q: trailing '/'", orig)
			}
		}
		parent = k
	}
	return parent, nil
}

// MustParseKey is like ParseKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseKey(s string) *Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}
