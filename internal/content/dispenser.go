// Package content hands out conversation prompts per (scope, category).
//
// Each scope, typically a group token, walks its own circular cursor over the
// items matching a category, so every matching item is seen once before any
// repeat and scopes never interfere with each other.
package content

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"pairwise/internal/domain"
)

// DefaultText is returned when the pool is empty.
const DefaultText = "Share something interesting you learned recently."

// Source tells how a dispensed text was chosen.
type Source string

const (
	SourceSequence Source = "sequence"
	SourceRandom   Source = "random"
	SourceDefault  Source = "default"
)

// Options tune a Dispenser. Zero values fall back to the package defaults.
type Options struct {
	// Fallbacks maps a category to related tags, consulted when no item is
	// tagged with the category itself.
	Fallbacks map[string][]string
	// Default is returned when the pool is empty.
	Default string
	// IntN picks the random item when the filtered snapshot is empty.
	IntN func(n int) int
}

type cursorKey struct {
	scope    string
	category string
}

type cursor struct {
	mu        sync.Mutex
	built     bool
	version   uint64
	items     []domain.ContentItem
	pos       int
	lastID    int64
	dispensed bool
}

type Dispenser struct {
	catalog   *Catalog
	fallbacks map[string][]string
	def       string
	intN      func(int) int
	cursors   *xsync.Map[cursorKey, *cursor]
}

func NewDispenser(catalog *Catalog, opts Options) *Dispenser {
	if catalog == nil {
		catalog = NewCatalog()
	}
	d := &Dispenser{
		catalog:   catalog,
		fallbacks: opts.Fallbacks,
		def:       opts.Default,
		intN:      opts.IntN,
		cursors:   xsync.NewMap[cursorKey, *cursor](),
	}
	if d.fallbacks == nil {
		d.fallbacks = DefaultCategories
	}
	if d.def == "" {
		d.def = DefaultText
	}
	if d.intN == nil {
		d.intN = rand.IntN
	}
	return d
}

// Next returns the next text for (scope, category).
func (d *Dispenser) Next(scope, category string) string {
	text, _ := d.Dispense(scope, category)
	return text
}

// Dispense is Next that also reports how the text was picked.
//
// The snapshot for a key is rebuilt whenever the catalog changes. After a
// rebuild the cursor resumes at the first item whose id follows the last
// dispensed one, so a grown or shrunk pool keeps the walk position by identity.
func (d *Dispenser) Dispense(scope, category string) (string, Source) {
	c, _ := d.cursors.LoadOrStore(cursorKey{scope: scope, category: category}, &cursor{})

	c.mu.Lock()
	defer c.mu.Unlock()
	// Read under the cursor lock so c.version only moves forward.
	all, version := d.catalog.Snapshot()
	if !c.built || c.version != version {
		c.items = d.filter(all, category)
		c.version = version
		c.built = true
		c.pos = 0
		if c.dispensed {
			c.pos = resumeAfter(c.items, c.lastID)
		}
	}
	if len(c.items) == 0 {
		if len(all) == 0 {
			return d.def, SourceDefault
		}
		return all[d.intN(len(all))].Text, SourceRandom
	}
	item := c.items[c.pos]
	c.pos = (c.pos + 1) % len(c.items)
	c.lastID = item.ID
	c.dispensed = true
	return item.Text, SourceSequence
}

func resumeAfter(items []domain.ContentItem, lastID int64) int {
	i := sort.Search(len(items), func(i int) bool { return items[i].ID > lastID })
	if i == len(items) {
		return 0
	}
	return i
}

// filter keeps items tagged with category, falling back to the category's
// related tags. An empty category selects the whole pool. Input order (by id)
// is preserved.
func (d *Dispenser) filter(all []domain.ContentItem, category string) []domain.ContentItem {
	if category == "" {
		return all
	}
	var exact []domain.ContentItem
	for _, it := range all {
		if it.HasTag(category) {
			exact = append(exact, it)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	related := d.fallbacks[category]
	var out []domain.ContentItem
	for _, it := range all {
		for _, tag := range related {
			if it.HasTag(tag) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Len returns the size of the snapshot (scope, category) currently walks, or
// zero when nothing was dispensed for it yet.
func (d *Dispenser) Len(scope, category string) int {
	c, ok := d.cursors.Load(cursorKey{scope: scope, category: category})
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Reset forgets every cursor of scope.
func (d *Dispenser) Reset(scope string) {
	d.cursors.Range(func(k cursorKey, _ *cursor) bool {
		if k.scope == scope {
			d.cursors.Delete(k)
		}
		return true
	})
}

// Categories lists the categories with a fallback mapping, sorted.
func (d *Dispenser) Categories() []string {
	out := make([]string, 0, len(d.fallbacks))
	for k := range d.fallbacks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d *Dispenser) Catalog() *Catalog {
	return d.catalog
}

// DefaultCategories relates the broad categories offered to supervisors with
// the finer tags carried by items.
var DefaultCategories = map[string][]string{
	"general":   {"general", "conversation"},
	"technical": {"technical", "programming", "problem-solving"},
	"personal":  {"personal", "reflection", "goals"},
	"academic":  {"academic", "learning", "study"},
}

// DefaultItems is the seed pool loaded into an empty workspace.
func DefaultItems() []domain.ContentItem {
	return []domain.ContentItem{
		{Text: "What's the most interesting thing you learned this week?", Tags: []string{"general", "conversation", "learning"}},
		{Text: "If you could solve any technical problem, what would it be and why?", Tags: []string{"technical", "programming", "problem-solving"}},
		{Text: "Describe a personal goal you're working towards and what motivates you.", Tags: []string{"personal", "reflection", "goals"}},
		{Text: "What study technique has been most effective for you recently?", Tags: []string{"academic", "learning", "study"}},
		{Text: "Share a creative solution you came up with to solve a recent challenge.", Tags: []string{"creative", "problem-solving", "general"}},
		{Text: "What's one programming concept you wish you understood better?", Tags: []string{"technical", "programming", "learning"}},
		{Text: "If you could teach someone one thing, what would it be?", Tags: []string{"general", "conversation", "reflection"}},
		{Text: "Describe a time when collaborating with others led to a better outcome.", Tags: []string{"teamwork", "reflection", "general"}},
		{Text: "What's something you're curious about that you'd like to explore?", Tags: []string{"general", "learning", "goals"}},
		{Text: "Share an icebreaker question you think everyone should know.", Tags: []string{"icebreaker", "conversation", "creative"}},
	}
}
