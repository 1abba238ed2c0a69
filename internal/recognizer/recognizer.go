// Package recognizer connects capture sessions to an external speech
// recognizer that streams partial results.
package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxilabs/voxi-core/internal/bus"
	"github.com/voxilabs/voxi-core/internal/config"
)

// Callback receives results for one recognition run.
type Callback interface {
	// OnPartial is called with the recognizer's full current best guess.
	OnPartial(text string)
	// OnFinal is called once with the last result of the run.
	OnFinal(text string)
	// OnError is called when the recognizer or the audio session fails.
	OnError(err error)
}

// Recognizer starts and stops recognition runs.
type Recognizer interface {
	Start(ctx context.Context, sessionID string, cb Callback) error
	Stop(ctx context.Context) error
}

// New builds the recognizer selected by cfg.Mode.
func New(cfg config.RecognizerConfig, busClient *bus.Client, log *slog.Logger) (Recognizer, error) {
	switch cfg.Mode {
	case "bus":
		if busClient == nil {
			return nil, fmt.Errorf("bus recognizer requires a bus connection")
		}
		return NewBusRecognizer(cfg, busClient, log), nil
	case "mock":
		return NewScripted(cfg.MockPartials, time.Duration(cfg.MockIntervalMS)*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown recognizer mode %q", cfg.Mode)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
