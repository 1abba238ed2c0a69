package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// SettingsAction is the redirect a denial asks the presentation layer to offer.
const SettingsAction = "open-settings"

// Outcome is the result of one authorization round.
type Outcome int

const (
	// OutcomeStarted means both permissions are granted and capture may start.
	OutcomeStarted Outcome = iota
	// OutcomeDenied means one permission blocks capture; see Decision.Denial.
	OutcomeDenied
	// OutcomePending means another round is already in flight and this call
	// was coalesced into it.
	OutcomePending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeDenied:
		return "denied"
	case OutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Denial names the permission blocking capture and the message shown to the user.
type Denial struct {
	Kind    Kind   `json:"kind"`
	State   State  `json:"-"`
	Status  string `json:"state"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Decision is returned by Coordinator.Ensure.
type Decision struct {
	Outcome Outcome
	Denial  *Denial
}

// Coordinator resolves the speech permission and then the microphone
// permission. The microphone is never queried unless speech is granted.
type Coordinator struct {
	speech     Querier
	microphone Querier
	log        *slog.Logger

	mu       sync.Mutex
	states   [2]State
	inflight bool
}

// NewCoordinator builds a Coordinator with both permissions undetermined.
func NewCoordinator(speech, microphone Querier, log *slog.Logger) *Coordinator {
	return &Coordinator{
		speech:     speech,
		microphone: microphone,
		log:        log.With(slog.String("component", "permission-coordinator")),
	}
}

// State returns the latest known state of a permission.
func (c *Coordinator) State(kind Kind) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[kind]
}

// Ensure makes sure both permissions are granted, querying the platform as
// needed. A query error leaves the permission undetermined and is returned
// wrapped; nothing is retried.
func (c *Coordinator) Ensure(ctx context.Context) (Decision, error) {
	c.mu.Lock()
	if c.inflight {
		c.mu.Unlock()
		c.log.Debug("authorization already in flight, coalescing")
		return Decision{Outcome: OutcomePending}, nil
	}
	speech, mic := c.states[Speech], c.states[Microphone]
	if speech == StateGranted && mic == StateGranted {
		c.mu.Unlock()
		return Decision{Outcome: OutcomeStarted}, nil
	}
	if speech.Blocking() {
		c.mu.Unlock()
		return c.deny(Speech, speech), nil
	}
	c.inflight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight = false
		c.mu.Unlock()
	}()

	speech, err := c.query(ctx, Speech, c.speech)
	if err != nil {
		return Decision{}, err
	}
	if speech != StateGranted {
		return c.deny(Speech, speech), nil
	}

	if mic != StateGranted {
		mic, err = c.query(ctx, Microphone, c.microphone)
		if err != nil {
			return Decision{}, err
		}
	}
	if mic != StateGranted {
		return c.deny(Microphone, mic), nil
	}
	return Decision{Outcome: OutcomeStarted}, nil
}

func (c *Coordinator) query(ctx context.Context, kind Kind, q Querier) (State, error) {
	state, err := q.Query(ctx)
	if err != nil {
		return StateUndetermined, fmt.Errorf("query %s permission: %w", kind, err)
	}
	if state == StateUnspecified {
		c.log.Warn("unrecognised permission state, treating as denied", slog.String("kind", kind.String()))
	}
	c.mu.Lock()
	c.states[kind] = state
	c.mu.Unlock()
	c.log.Info("permission resolved", slog.String("kind", kind.String()), slog.String("state", state.String()))
	return state, nil
}

func (c *Coordinator) deny(kind Kind, state State) Decision {
	d := &Denial{
		Kind:   kind,
		State:  state,
		Status: state.String(),
		Action: SettingsAction,
	}
	switch kind {
	case Speech:
		d.Title = "Permiso de reconocimiento de voz requerido"
		d.Message = "Por favor, habilita el permiso en Ajustes para usar reconocimiento de voz."
	case Microphone:
		d.Title = "Permiso de micrófono requerido"
		d.Message = "Por favor, habilita el permiso en Ajustes para usar el micrófono."
	}
	return Decision{Outcome: OutcomeDenied, Denial: d}
}
