// Package permission sequences the speech-recognition and microphone
// authorizations that must both be granted before capture starts.
package permission

import (
	"context"
	"strings"
)

// Kind identifies one of the two permissions capture depends on.
type Kind int

const (
	Speech Kind = iota
	Microphone
)

func (k Kind) String() string {
	switch k {
	case Speech:
		return "speech"
	case Microphone:
		return "microphone"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// State is the platform authorization status of a single permission.
type State int

const (
	StateUndetermined State = iota
	StateGranted
	StateDenied
	StateRestricted
	// StateUnspecified covers platform values this package does not know.
	// It blocks capture exactly like StateDenied.
	StateUnspecified
)

func (s State) String() string {
	switch s {
	case StateUndetermined:
		return "undetermined"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	case StateRestricted:
		return "restricted"
	default:
		return "unspecified"
	}
}

// Blocking reports whether the state prevents capture until the user changes
// it in the system settings.
func (s State) Blocking() bool {
	switch s {
	case StateDenied, StateRestricted, StateUnspecified:
		return true
	default:
		return false
	}
}

// ParseState maps a platform status string to a State. Unknown values map to
// StateUnspecified.
func ParseState(value string) State {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "undetermined", "notdetermined", "not_determined", "":
		return StateUndetermined
	case "granted", "authorized":
		return StateGranted
	case "denied":
		return StateDenied
	case "restricted":
		return StateRestricted
	default:
		return StateUnspecified
	}
}

// Querier asks the platform for one permission. Implementations may block
// until the user answers a prompt; no deadline is imposed by callers.
type Querier interface {
	Query(ctx context.Context) (State, error)
}

// QuerierFunc adapts a function to the Querier interface.
type QuerierFunc func(ctx context.Context) (State, error)

func (f QuerierFunc) Query(ctx context.Context) (State, error) { return f(ctx) }

// Static answers every query with a fixed state.
type Static State

func (s Static) Query(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateUndetermined, err
	}
	return State(s), nil
}
