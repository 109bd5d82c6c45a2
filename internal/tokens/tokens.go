// Package tokens dispenses short group tokens from a circular word pool.
// Every word in the pool is handed out once before any word repeats.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"pairwise/internal/domain"
)

// Fallback is returned by Next when the pool is empty.
const Fallback = "FALLBACK"

// Allocator is a mutex-guarded circular buffer over an ordered word pool.
// The pool is only ever appended to; dispensing never mutates it.
type Allocator struct {
	mu     sync.Mutex
	pool   []string
	index  map[string]struct{}
	cursor int
}

// New creates an allocator over words. Words are upper-cased; blank and
// duplicate words are dropped, first occurrence wins.
func New(words ...string) *Allocator {
	a := &Allocator{index: make(map[string]struct{}, len(words))}
	a.appendLocked(words)
	return a
}

// Next returns the word under the cursor and advances the cursor by one,
// wrapping at the end of the pool. Read and advance happen under one lock.
func (a *Allocator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pool) == 0 {
		return Fallback
	}
	word := a.pool[a.cursor]
	a.cursor = (a.cursor + 1) % len(a.pool)
	return word
}

// Peek returns the word Next would return without advancing.
func (a *Allocator) Peek() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pool) == 0 {
		return "", false
	}
	return a.pool[a.cursor], true
}

// Grow appends words not already in the pool and returns how many were added.
func (a *Allocator) Grow(words ...string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appendLocked(words)
}

func (a *Allocator) appendLocked(words []string) int {
	added := 0
	for _, w := range words {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := a.index[w]; ok {
			continue
		}
		a.index[w] = struct{}{}
		a.pool = append(a.pool, w)
		added++
	}
	return added
}

// Cursor returns the index of the next word to dispense.
func (a *Allocator) Cursor() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// Restore positions the cursor, typically from a persisted value. Values
// outside the pool are reduced modulo the pool size.
func (a *Allocator) Restore(cursor int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pool) == 0 {
		a.cursor = 0
		return
	}
	cursor %= len(a.pool)
	if cursor < 0 {
		cursor += len(a.pool)
	}
	a.cursor = cursor
}

// Len returns the pool size.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pool)
}

// Stats reports pool size, cursor and the next word.
func (a *Allocator) Stats() domain.TokenStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := domain.TokenStats{Total: len(a.pool), Cursor: a.cursor}
	if len(a.pool) > 0 {
		st.Next = a.pool[a.cursor]
	}
	return st
}

// Disambiguate resolves a collision with a token already held by another
// group. It returns token unchanged when free, otherwise the first free
// token-N for N = 2, 3, ... The allocator itself is never asked again, so a
// collision cannot skip or repeat entries in the circular sequence.
func Disambiguate(token string, inUse func(string) bool) string {
	if !inUse(token) {
		return token
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", token, n)
		if !inUse(candidate) {
			return candidate
		}
	}
}

// DefaultWords is the seed pool used when no words are configured.
var DefaultWords = []string{
	"ELEPHANT", "TIGER", "DOLPHIN", "PENGUIN", "GIRAFFE", "KANGAROO", "BUTTERFLY", "OCTOPUS",
	"CRIMSON", "AZURE", "GOLDEN", "VIOLET", "EMERALD", "SCARLET", "TURQUOISE", "AMBER",
	"TELESCOPE", "PIANO", "COMPASS", "LIGHTHOUSE", "MOUNTAIN", "RAINBOW", "THUNDER", "CRYSTAL",
	"BRAVE", "CLEVER", "SWIFT", "BRIGHT", "GENTLE", "FIERCE", "CALM", "VIVID",
	"ADVENTURE", "DISCOVERY", "HARMONY", "MYSTERY", "JOURNEY", "WONDER", "COURAGE", "WISDOM",
	"PHOENIX", "DRAGON", "UNICORN", "GRIFFIN", "PEGASUS", "SPHINX", "KRAKEN", "CHIMERA",
	"GALAXY", "COMET", "NEBULA", "STELLAR", "COSMIC", "METEOR", "ORBIT", "QUASAR",
	"FOREST", "DESERT", "TUNDRA", "SAVANNA", "JUNGLE", "PRAIRIE", "MARSH", "CANYON",
	"ORCHESTRA", "SYMPHONY", "MELODY", "RHYTHM", "TEMPO", "CHORD", "CRESCENDO",
	"PRISM", "VORTEX", "ZENITH", "APEX", "NEXUS", "VERTEX", "MATRIX", "HELIX",
}
