// Package notes keeps the classified transcripts saved during the process lifetime.
package notes

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrPositionOutOfRange is returned when a delete targets a position the view does not have.
var ErrPositionOutOfRange = errors.New("position out of range")

// Note is a finalized, classified transcript. Notes are never modified after creation.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sentiment string    `json:"sentiment"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an ordered in-memory collection of notes safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	notes []Note
}

func NewStore() *Store {
	return &Store{}
}

// Append adds a note at the end of the store.
func (s *Store) Append(n Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
}

// All returns a copy of every note in insertion order.
func (s *Store) All() []Note {
	return s.Filter("")
}

// Len returns the number of stored notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Filter returns the notes assigned to category in insertion order. An empty
// category selects every note.
func (s *Store) Filter(category string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(category)
}

// DeleteFromView removes the notes at positions of the view selected by
// category (the same view Filter returns). Every position is resolved to a
// note before anything is removed, so positions never shift mid-call. If any
// position is out of range nothing is removed.
func (s *Store) DeleteFromView(category string, positions []int) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.view(category)
	targets := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(view) {
			return nil, fmt.Errorf("%w: %d (view has %d notes)", ErrPositionOutOfRange, pos, len(view))
		}
		targets[view[pos].ID] = struct{}{}
	}

	removed := make([]Note, 0, len(targets))
	kept := s.notes[:0]
	for _, n := range s.notes {
		if _, ok := targets[n.ID]; ok {
			removed = append(removed, n)
			continue
		}
		kept = append(kept, n)
	}
	// clear the tail so removed notes are not retained by the backing array
	for i := len(kept); i < len(s.notes); i++ {
		s.notes[i] = Note{}
	}
	s.notes = kept
	return removed, nil
}

// Categories returns the distinct categories in use, sorted.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, n := range s.notes {
		if _, ok := seen[n.Category]; ok {
			continue
		}
		seen[n.Category] = struct{}{}
		out = append(out, n.Category)
	}
	sort.Strings(out)
	return out
}

func (s *Store) view(category string) []Note {
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		if category == "" || n.Category == category {
			out = append(out, n)
		}
	}
	return out
}
