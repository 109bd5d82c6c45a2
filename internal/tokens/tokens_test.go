package tokens_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairwise/internal/tokens"
)

func TestNextCoversPoolBeforeRepeating(t *testing.T) {
	a := tokens.New("alpha", "beta", "gamma", "delta")
	seen := map[string]bool{}
	var first string
	for i := 0; i < a.Len(); i++ {
		w := a.Next()
		if i == 0 {
			first = w
		}
		require.False(t, seen[w], "repeat before exhaustion: %s", w)
		seen[w] = true
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, first, a.Next())
}

func TestNextEmptyPoolReturnsFallback(t *testing.T) {
	a := tokens.New()
	assert.Equal(t, tokens.Fallback, a.Next())
	assert.Equal(t, 0, a.Cursor())
	_, ok := a.Peek()
	assert.False(t, ok)
}

func TestNewDropsDuplicates(t *testing.T) {
	a := tokens.New("harmony", "HARMONY", " ", "tempo")
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, "HARMONY", a.Next())
	assert.Equal(t, "TEMPO", a.Next())
}

func TestGrowKeepsOrderAndCursor(t *testing.T) {
	a := tokens.New("a", "b")
	assert.Equal(t, "A", a.Next())
	added := a.Grow("b", "c")
	assert.Equal(t, 1, added)
	assert.Equal(t, "B", a.Next())
	assert.Equal(t, "C", a.Next())
	assert.Equal(t, "A", a.Next())
}

func TestRestoreWrapsCursor(t *testing.T) {
	a := tokens.New("a", "b", "c")
	a.Restore(4)
	assert.Equal(t, 1, a.Cursor())
	a.Restore(-1)
	assert.Equal(t, 2, a.Cursor())
	st := a.Stats()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, "C", st.Next)
}

func TestDisambiguate(t *testing.T) {
	used := map[string]bool{"TIGER": true, "TIGER-2": true}
	inUse := func(s string) bool { return used[s] }
	assert.Equal(t, "COMET", tokens.Disambiguate("COMET", inUse))
	assert.Equal(t, "TIGER-3", tokens.Disambiguate("TIGER", inUse))
}

func TestConcurrentNextIsUnique(t *testing.T) {
	a := tokens.New(tokens.DefaultWords...)
	n := a.Len()
	out := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- a.Next()
		}()
	}
	wg.Wait()
	close(out)
	seen := map[string]bool{}
	for w := range out {
		require.False(t, seen[w], "duplicate token %s", w)
		seen[w] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, 0, a.Cursor())
}
