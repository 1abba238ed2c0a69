// Package sentiment provides the scorers that rate a transcript in [-1, 1].
// A score of exactly zero means the backend found no signal.
package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxilabs/voxi-core/internal/config"
)

// Scorer rates the sentiment of a text.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

type neutral struct{}

// Neutral never finds a signal.
func Neutral() Scorer { return neutral{} }

func (neutral) Score(context.Context, string) (float64, error) { return 0, nil }

// New builds the scorer selected by cfg.Mode.
func New(cfg config.SentimentConfig, log *slog.Logger) (Scorer, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	var scorer Scorer
	switch cfg.Mode {
	case "none":
		return Neutral(), nil
	case "lexicon":
		return NewLexicon(), nil
	case "exec":
		s, err := NewExecScorer(cfg.Command)
		if err != nil {
			return nil, err
		}
		scorer = s
	case "ollama":
		scorer = NewOllamaScorer(cfg.Endpoint, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown sentiment mode %q", cfg.Mode)
	}
	log.Info("sentiment scorer configured", slog.String("mode", cfg.Mode))
	if timeout > 0 {
		return withTimeout{next: scorer, timeout: timeout}, nil
	}
	return scorer, nil
}

// withTimeout bounds external scorers so a slow backend cannot hold up a save.
type withTimeout struct {
	next    Scorer
	timeout time.Duration
}

func (w withTimeout) Score(ctx context.Context, text string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.next.Score(ctx, text)
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
