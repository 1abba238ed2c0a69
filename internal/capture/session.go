// Package capture owns the capture toggle: it gates recognition behind the
// permission coordinator, feeds recognizer results through the transcript
// merger and turns the finished transcript into a stored note.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxilabs/voxi-core/internal/classify"
	"github.com/voxilabs/voxi-core/internal/events"
	"github.com/voxilabs/voxi-core/internal/notes"
	"github.com/voxilabs/voxi-core/internal/permission"
	"github.com/voxilabs/voxi-core/internal/recognizer"
	"github.com/voxilabs/voxi-core/internal/transcript"
)

// State is the capture toggle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingPermission
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	// ErrCaptureActive is returned by operations that need capture to be idle.
	ErrCaptureActive = errors.New("capture is active")
	// ErrSaveInProgress is returned when a save is already classifying the transcript.
	ErrSaveInProgress = errors.New("save already in progress")
)

// Options are the collaborators a Session is built from.
type Options struct {
	Coordinator *permission.Coordinator
	Recognizer  recognizer.Recognizer
	Pipeline    *classify.Pipeline
	Store       *notes.Store
	Sink        events.Sink
	Logger      *slog.Logger
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	SessionID  string `json:"session_id"`
	State      State  `json:"state"`
	Transcript string `json:"transcript"`
}

// Session is a single capture context. All asynchronous inputs (permission
// results, recognizer callbacks, user requests) are applied under one mutex,
// and events are emitted in the order the state changed.
type Session struct {
	coordinator *permission.Coordinator
	recognizer  recognizer.Recognizer
	pipeline    *classify.Pipeline
	store       *notes.Store
	sink        events.Sink
	log         *slog.Logger
	merger      *transcript.Merger
	metrics     *sessionMetrics
	clock       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	sessionID  string
	generation uint64
	runCancel  context.CancelFunc
	stopped    chan struct{} // closed once the last recognizer stop returns
	saving     bool
	closed     bool
}

// NewSession builds an idle session. The session lives until Close or until
// parent is cancelled.
func NewSession(parent context.Context, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)
	sink := opts.Sink
	if sink == nil {
		sink = events.Discard
	}
	log := opts.Logger.With(slog.String("component", "capture-session"))
	s := &Session{
		coordinator: opts.Coordinator,
		recognizer:  opts.Recognizer,
		pipeline:    opts.Pipeline,
		store:       opts.Store,
		sink:        sink,
		log:         log,
		merger:      transcript.NewMerger(),
		clock:       time.Now,
		ctx:         ctx,
		cancel:      cancel,
		sessionID:   uuid.NewString(),
	}
	s.metrics = newMetrics(s, opts.Store, log)
	return s
}

// State returns the current toggle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the accumulated transcript.
func (s *Session) Transcript() string {
	return s.merger.Text()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{SessionID: s.sessionID, State: s.state, Transcript: s.merger.Text()}
}

// Toggle starts capture when idle and stops it when running. Starting is
// asynchronous: the session moves to StateAwaitingPermission and the
// permission round completes in the background. A toggle while a round is in
// flight is ignored.
func (s *Session) Toggle() State {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return StateIdle
	}
	switch s.state {
	case StateAwaitingPermission:
		s.mu.Unlock()
		s.log.Debug("toggle ignored while awaiting permission")
		return StateAwaitingPermission
	case StateRunning:
		stopped := s.stopLocked()
		s.mu.Unlock()
		s.stopRecognizer(stopped)
		return StateIdle
	}
	s.setStateLocked(StateAwaitingPermission)
	pending := s.stopped
	s.wg.Add(1)
	s.mu.Unlock()

	go s.authorize(pending)
	return StateAwaitingPermission
}

// authorize runs the permission round. pending, when set, is the stop of the
// previous run; the recognizer is not restarted before it has returned.
func (s *Session) authorize(pending <-chan struct{}) {
	defer s.wg.Done()
	decision, err := s.coordinator.Ensure(s.ctx)
	if err == nil && decision.Outcome == permission.OutcomeStarted && pending != nil {
		select {
		case <-pending:
		case <-s.ctx.Done():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingPermission {
		return
	}
	if s.closed {
		s.setStateLocked(StateIdle)
		return
	}
	if err != nil {
		s.log.Warn("permission query failed", slogError(err))
		s.failLocked(MsgPermissionUnavailable)
		return
	}
	switch decision.Outcome {
	case permission.OutcomeStarted:
		s.startLocked()
	case permission.OutcomeDenied:
		s.metrics.denial(decision.Denial)
		s.log.Info("capture blocked by permission",
			slog.String("kind", decision.Denial.Kind.String()),
			slog.String("state", decision.Denial.State.String()))
		s.emitLocked(events.Event{Type: events.AuthorizationDenied, Denial: decision.Denial})
		s.setStateLocked(StateIdle)
	default:
		// another caller of the shared coordinator owns the prompt
		s.setStateLocked(StateIdle)
	}
}

func (s *Session) startLocked() {
	s.generation++
	gen := s.generation
	s.sessionID = uuid.NewString()
	s.merger.Reset()

	runCtx, cancel := context.WithCancel(s.ctx)
	if err := s.recognizer.Start(runCtx, s.sessionID, &runCallback{s: s, gen: gen}); err != nil {
		cancel()
		s.log.Error("failed to start recognizer", slogError(err))
		s.failLocked(MsgAudioEngineStart)
		return
	}
	s.runCancel = cancel
	s.metrics.run()
	s.setStateLocked(StateRunning)
	s.emitLocked(events.Event{Type: events.TranscriptUpdated, Transcript: ""})
	s.log.Info("capture started", slog.String("session_id", s.sessionID))
}

// stopLocked moves to idle and invalidates the current run so late results
// are dropped. The recognizer itself is stopped by the caller after
// releasing the lock, since its callbacks need the lock to drain. The
// returned channel must be handed to stopRecognizer.
func (s *Session) stopLocked() chan struct{} {
	s.generation++
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	stopped := make(chan struct{})
	s.stopped = stopped
	s.setStateLocked(StateIdle)
	s.log.Info("capture stopped", slog.String("session_id", s.sessionID))
	return stopped
}

func (s *Session) stopRecognizer(stopped chan struct{}) {
	defer close(stopped)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recognizer.Stop(ctx); err != nil {
		s.log.Warn("failed to stop recognizer", slogError(err))
		s.mu.Lock()
		s.emitLocked(events.Event{Type: events.CaptureFailed, Message: MsgAudioSessionDeactivate})
		s.mu.Unlock()
	}
}

func (s *Session) failLocked(message string) {
	s.setStateLocked(StateIdle)
	s.emitLocked(events.Event{Type: events.CaptureFailed, Message: message})
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.emitLocked(events.Event{Type: events.CaptureStateChanged, State: state.String()})
}

func (s *Session) emitLocked(evt events.Event) {
	if evt.SessionID == "" {
		evt.SessionID = s.sessionID
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.clock().UTC()
	}
	s.sink.Emit(evt)
}

func (s *Session) consume(gen uint64, text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != StateRunning {
		s.metrics.drop()
		return
	}
	accumulated, outcome := s.merger.Consume(text)
	s.metrics.partial(outcome, final)
	if outcome == transcript.OutcomeAppended || outcome == transcript.OutcomeRevised {
		s.emitLocked(events.Event{Type: events.TranscriptUpdated, Transcript: accumulated})
	}
}

func (s *Session) recognitionFailed(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.log.Warn("recognition failed", slogError(err))
	stopped := s.stopLocked()
	s.emitLocked(events.Event{Type: events.CaptureFailed, Message: fmt.Sprintf(MsgRecognitionError, err.Error())})
	s.wg.Add(1)
	s.mu.Unlock()

	// Called from the recognizer's delivery goroutine, which Stop waits on.
	go func() {
		defer s.wg.Done()
		s.stopRecognizer(stopped)
	}()
}

// Save classifies the current transcript, stores the note and clears the
// transcript. Capture must be idle.
func (s *Session) Save(ctx context.Context) (notes.Note, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return notes.Note{}, ErrCaptureActive
	}
	if s.saving {
		s.mu.Unlock()
		return notes.Note{}, ErrSaveInProgress
	}
	text := s.merger.Text()
	sessionID := s.sessionID
	s.saving = true
	s.mu.Unlock()

	ctx, span := otel.Tracer("github.com/voxilabs/voxi-core/capture").Start(ctx, "capture.save",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	note, err := s.pipeline.Classify(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		return notes.Note{}, err
	}
	span.SetAttributes(attribute.String("note.id", note.ID))
	s.store.Append(note)
	s.metrics.save(note)
	s.emitLocked(events.Event{Type: events.NoteSaved, Note: &note})
	if s.state == StateIdle && s.merger.Text() == text {
		s.merger.Reset()
		s.emitLocked(events.Event{Type: events.TranscriptUpdated, Transcript: ""})
	}
	s.log.Info("note saved", slog.String("note_id", note.ID), slog.String("category", note.Category))
	return note, nil
}

// Discard clears the current transcript. Capture must be idle.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrCaptureActive
	}
	s.merger.Reset()
	s.emitLocked(events.Event{Type: events.TranscriptUpdated, Transcript: ""})
	return nil
}

// DeleteNotes removes notes by their positions in the view for category.
func (s *Session) DeleteNotes(category string, positions []int) ([]notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.store.DeleteFromView(category, positions)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(removed))
	for _, n := range removed {
		ids = append(ids, n.ID)
	}
	s.metrics.remove(len(removed))
	s.emitLocked(events.Event{Type: events.NotesDeleted, Category: category, Positions: positions, NoteIDs: ids})
	return removed, nil
}

// AddCategory registers a user category with the classification pipeline.
func (s *Session) AddCategory(name string) (string, error) {
	added, err := s.pipeline.Categories().Add(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.emitLocked(events.Event{Type: events.CategoryAdded, Category: added})
	s.mu.Unlock()
	return added, nil
}

// Close stops capture, abandons any pending permission round and waits for
// background work to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var stopped chan struct{}
	if s.state == StateRunning {
		stopped = s.stopLocked()
	}
	s.mu.Unlock()

	s.cancel()
	if stopped != nil {
		s.stopRecognizer(stopped)
	}
	s.wg.Wait()
	s.metrics.close()
}

type runCallback struct {
	s   *Session
	gen uint64
}

func (c *runCallback) OnPartial(text string) { c.s.consume(c.gen, text, false) }
func (c *runCallback) OnFinal(text string)   { c.s.consume(c.gen, text, true) }
func (c *runCallback) OnError(err error)     { c.s.recognitionFailed(c.gen, err) }

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
