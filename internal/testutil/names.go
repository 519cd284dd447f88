package testutil

import (
	"fmt"
	"sync"
)

// SequentialNames allocates deterministic key names for incomplete keys:
// prefix-0001, prefix-0002, ... The zero-padded counter keeps names in
// allocation order under string comparison, like UUIDv7 names do.
//
// Unlike store.FixedGenerator it never runs out, so scenarios need not
// declare names up front. The same scenario produces byte-identical keys.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialNames struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialNames creates a generator. If prefix is empty, "auto" is
// used.
func NewSequentialNames(prefix string) *SequentialNames {
	if prefix == "" {
		prefix = "auto"
	}
	return &SequentialNames{prefix: prefix}
}

// Generate returns the next name.
//
// Implements store.NameGenerator.
func (g *SequentialNames) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}

// Current returns how many names have been allocated.
func (g *SequentialNames) Current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. The next Generate returns prefix-0001.
func (g *SequentialNames) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
