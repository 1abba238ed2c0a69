package recognizer

import (
	"context"
	"sync"
	"time"
)

// DefaultScript is played by the scripted recognizer when none is configured.
var DefaultScript = []string{
	"hola",
	"hola tengo",
	"hola tengo una",
	"hola tengo una reunion",
	"hola tengo una reunion de trabajo",
	"hola tengo una reunion de trabajo mañana",
}

// Scripted replays a fixed sequence of partial results, then reports the last
// one as final. It stands in for a real recognizer during development.
type Scripted struct {
	partials []string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScripted(partials []string, interval time.Duration) *Scripted {
	if len(partials) == 0 {
		partials = DefaultScript
	}
	if interval <= 0 {
		interval = 400 * time.Millisecond
	}
	return &Scripted{partials: append([]string(nil), partials...), interval: interval}
}

func (s *Scripted) Start(ctx context.Context, _ string, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i, text := range s.partials {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
			}
			if i == len(s.partials)-1 {
				cb.OnFinal(text)
				return
			}
			cb.OnPartial(text)
		}
	}()
	return nil
}

func (s *Scripted) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
