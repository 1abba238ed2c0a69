// Package transcript reconciles the repeated, overlapping partial results of a
// streaming recognizer into one stable accumulated transcript.
package transcript

import (
	"strings"
	"sync"
)

// Outcome reports which merge rule a partial result triggered.
type Outcome int

const (
	// OutcomeIgnored means the partial was empty and nothing changed.
	OutcomeIgnored Outcome = iota
	// OutcomeAppended means new trailing words were appended.
	OutcomeAppended
	// OutcomeRevised means the trailing word was replaced by a revised guess.
	OutcomeRevised
	// OutcomeRepeated means the partial matched the cursor and the cursor was cleared.
	OutcomeRepeated
	// OutcomeShrunk means the partial had fewer words than the cursor. The
	// cursor moved but the transcript is unchanged.
	OutcomeShrunk
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAppended:
		return "appended"
	case OutcomeRevised:
		return "revised"
	case OutcomeRepeated:
		return "repeated"
	case OutcomeShrunk:
		return "shrunk"
	default:
		return "unknown"
	}
}

// Merger accumulates partial results. The zero value is ready to use.
type Merger struct {
	mu     sync.Mutex
	text   string
	cursor string
}

// NewMerger returns an empty Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Consume applies one partial result and returns the accumulated transcript
// together with the rule that was applied.
//
// Partials are folded to lowercase before comparison. Only the tail of the
// transcript is ever revised: a recognizer correcting an earlier word is not
// reflected.
func (m *Merger) Consume(partial string) (string, Outcome) {
	partial = strings.ToLower(partial)
	words := strings.Fields(partial)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(words) == 0 {
		return m.text, OutcomeIgnored
	}

	if partial == m.cursor {
		m.cursor = ""
		return m.text, OutcomeRepeated
	}

	previous := strings.Fields(m.cursor)
	if len(previous) != len(words) {
		m.cursor = partial
		if len(words) < len(previous) {
			return m.text, OutcomeShrunk
		}
		m.text += strings.Join(words[len(previous):], " ") + " "
		return m.text, OutcomeAppended
	}

	m.text = replaceLastWord(m.text, words[len(words)-1])
	m.cursor = partial
	return m.text, OutcomeRevised
}

// Text returns the accumulated transcript.
func (m *Merger) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Reset clears the transcript and the cursor.
func (m *Merger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = ""
	m.cursor = ""
}

// replaceLastWord swaps the final token of text for word, keeping any
// surrounding whitespace in place.
func replaceLastWord(text, word string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return word + " "
	}
	last := tokens[len(tokens)-1]
	idx := strings.LastIndex(text, last)
	return text[:idx] + word + text[idx+len(last):]
}
