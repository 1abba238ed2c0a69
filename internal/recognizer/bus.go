package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/voxilabs/voxi-core/internal/bus"
	"github.com/voxilabs/voxi-core/internal/config"
	"github.com/voxilabs/voxi-core/internal/protocol"
)

// ErrAlreadyRunning is returned by Start when a run is active.
var ErrAlreadyRunning = errors.New("recognizer already running")

// BusRecognizer drives a recognizer process over NATS. It sends start/stop
// control messages and relays transcripts and errors tagged with the active
// session id.
type BusRecognizer struct {
	cfg    config.RecognizerConfig
	bus    *bus.Client
	logger *slog.Logger

	mu  sync.Mutex
	run *busRun
}

// busRun is one recognition run. done is closed when its relay exits.
type busRun struct {
	sessionID string
	subs      []*nats.Subscription
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewBusRecognizer(cfg config.RecognizerConfig, busClient *bus.Client, log *slog.Logger) *BusRecognizer {
	return &BusRecognizer{
		cfg:    cfg,
		bus:    busClient,
		logger: log.With(slog.String("component", "bus-recognizer")),
	}
}

func (r *BusRecognizer) Start(ctx context.Context, sessionID string, cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run != nil {
		return ErrAlreadyRunning
	}

	// A single channel keeps partials, finals and errors in arrival order.
	ch := make(chan *nats.Msg, 256)
	var subs []*nats.Subscription
	for _, subject := range []string{r.cfg.PartialSubject, r.cfg.FinalSubject, r.cfg.ErrorSubject} {
		sub, err := r.bus.Conn().ChanSubscribe(subject, ch)
		if err != nil {
			unsubscribeAll(subs)
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	control := protocol.RecognizerControl{
		SessionID: sessionID,
		Action:    protocol.ActionStart,
		Locale:    r.cfg.Locale,
		Timestamp: time.Now().UTC(),
	}
	if err := r.bus.PublishJSON(r.cfg.ControlSubject, control); err != nil {
		unsubscribeAll(subs)
		return fmt.Errorf("publish start control: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &busRun{sessionID: sessionID, subs: subs, cancel: cancel, done: make(chan struct{})}
	r.run = run

	go func() {
		defer close(run.done)
		r.relay(runCtx, sessionID, ch, cb)
	}()
	r.logger.Info("recognition started", slog.String("session_id", sessionID), slog.String("locale", r.cfg.Locale))
	return nil
}

// Stop ends the active run and waits for its relay to exit, or for ctx to be
// done. A new run may start as soon as Stop has detached the old one.
func (r *BusRecognizer) Stop(ctx context.Context) error {
	r.mu.Lock()
	run := r.run
	r.run = nil
	r.mu.Unlock()
	if run == nil {
		return nil
	}
	unsubscribeAll(run.subs)
	run.cancel()

	var waitErr error
	select {
	case <-run.done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("wait for relay: %w", ctx.Err())
	}

	control := protocol.RecognizerControl{
		SessionID: run.sessionID,
		Action:    protocol.ActionStop,
		Timestamp: time.Now().UTC(),
	}
	if err := r.bus.PublishJSON(r.cfg.ControlSubject, control); err != nil {
		return fmt.Errorf("publish stop control: %w", err)
	}
	if waitErr != nil {
		return waitErr
	}
	r.logger.Info("recognition stopped", slog.String("session_id", run.sessionID))
	return nil
}

func (r *BusRecognizer) relay(ctx context.Context, sessionID string, ch <-chan *nats.Msg, cb Callback) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			r.dispatch(sessionID, msg, cb)
		}
	}
}

func (r *BusRecognizer) dispatch(sessionID string, msg *nats.Msg, cb Callback) {
	if msg.Subject == r.cfg.ErrorSubject {
		var rerr protocol.RecognizerError
		if err := json.Unmarshal(msg.Data, &rerr); err != nil {
			r.logger.Warn("failed to decode recognizer error", slogError(err))
			return
		}
		if rerr.SessionID != "" && rerr.SessionID != sessionID {
			return
		}
		cb.OnError(errors.New(rerr.Message))
		return
	}

	var transcript protocol.Transcript
	if err := json.Unmarshal(msg.Data, &transcript); err != nil {
		r.logger.Warn("failed to decode transcript", slogError(err))
		return
	}
	if transcript.SessionID != "" && transcript.SessionID != sessionID {
		r.logger.Debug("dropping transcript for another session", slog.String("session_id", transcript.SessionID))
		return
	}
	if msg.Subject == r.cfg.FinalSubject {
		cb.OnFinal(transcript.Text)
		return
	}
	cb.OnPartial(transcript.Text)
}

func unsubscribeAll(subs []*nats.Subscription) {
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
}
