// Package events carries the notifications a capture session produces for
// the presentation layer and downstream consumers.
package events

import (
	"time"

	"github.com/voxilabs/voxi-core/internal/notes"
	"github.com/voxilabs/voxi-core/internal/permission"
)

// Type names an event kind. It doubles as the bus subject suffix.
type Type string

const (
	TranscriptUpdated   Type = "transcript.updated"
	CaptureStateChanged Type = "capture.state"
	AuthorizationDenied Type = "authorization.denied"
	NoteSaved           Type = "note.saved"
	NotesDeleted        Type = "notes.deleted"
	CaptureFailed       Type = "capture.error"
	CategoryAdded       Type = "category.added"
)

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	Type       Type               `json:"type"`
	SessionID  string             `json:"session_id"`
	Transcript string             `json:"transcript,omitempty"`
	State      string             `json:"state,omitempty"`
	Denial     *permission.Denial `json:"denial,omitempty"`
	Note       *notes.Note        `json:"note,omitempty"`
	Positions  []int              `json:"positions,omitempty"`
	NoteIDs    []string           `json:"note_ids,omitempty"`
	Category   string             `json:"category,omitempty"`
	Message    string             `json:"message,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Sink receives events. Emit is called from the session's serialized context
// and must not block for long.
type Sink interface {
	Emit(evt Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(evt Event) { f(evt) }

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(evt Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(evt)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
