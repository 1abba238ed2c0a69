package classify

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrEmptyCategory     = errors.New("category name must not be empty")
	ErrDuplicateCategory = errors.New("category already exists")
)

// DefaultBuiltins are the categories every installation starts with.
var DefaultBuiltins = []string{"Trabajo", "Personal", "Salud", "Finanzas", "Educación"}

// DefaultFallback is assigned when no category name appears in a transcript.
const DefaultFallback = "Sin categoría"

// Entry is a category as presented for browsing.
type Entry struct {
	Name    string `json:"name"`
	BuiltIn bool   `json:"built_in"`
}

// CategorySet holds the built-in categories followed by user-added ones.
type CategorySet struct {
	mu       sync.RWMutex
	builtins []string
	fallback string
	added    []string
}

// NewCategorySet returns a set with the given built-ins and fallback. Empty
// arguments select the defaults.
func NewCategorySet(builtins []string, fallback string) *CategorySet {
	if len(builtins) == 0 {
		builtins = DefaultBuiltins
	}
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallback
	}
	return &CategorySet{
		builtins: append([]string(nil), builtins...),
		fallback: fallback,
	}
}

// Add appends a user category. Names are trimmed; empty names and exact
// (case-sensitive) duplicates of any existing entry are rejected.
func (c *CategorySet) Add(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyCategory
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == c.fallback || contains(c.builtins, name) || contains(c.added, name) {
		return "", ErrDuplicateCategory
	}
	c.added = append(c.added, name)
	return name, nil
}

// Names returns the categories in match order: built-ins, then user-added
// categories in insertion order. The fallback is not included.
func (c *CategorySet) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.builtins)+len(c.added))
	out = append(out, c.builtins...)
	return append(out, c.added...)
}

// Entries lists every category for display, fallback included, flagging the
// built-in ones.
func (c *CategorySet) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.builtins)+len(c.added)+1)
	for _, name := range c.builtins {
		out = append(out, Entry{Name: name, BuiltIn: true})
	}
	out = append(out, Entry{Name: c.fallback, BuiltIn: true})
	for _, name := range c.added {
		out = append(out, Entry{Name: name})
	}
	return out
}

func (c *CategorySet) Fallback() string {
	return c.fallback
}

func contains(list []string, name string) bool {
	for _, existing := range list {
		if existing == name {
			return true
		}
	}
	return false
}
