// Package classify turns a finished transcript into a note with a sentiment
// and a single category.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voxilabs/voxi-core/internal/notes"
)

// Undetermined is reported when the scorer produced no usable signal.
const Undetermined = "undetermined"

// ErrEmptyTranscript is returned when there is nothing to classify.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Scorer rates the sentiment of a text in [-1, 1]. Zero means no signal.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Pipeline scores and categorizes transcripts.
type Pipeline struct {
	scorer     Scorer
	categories *CategorySet
	log        *slog.Logger
	clock      func() time.Time
}

func NewPipeline(scorer Scorer, categories *CategorySet, log *slog.Logger) *Pipeline {
	return &Pipeline{
		scorer:     scorer,
		categories: categories,
		log:        log.With(slog.String("component", "classifier")),
		clock:      time.Now,
	}
}

// Categories exposes the set the pipeline matches against.
func (p *Pipeline) Categories() *CategorySet {
	return p.categories
}

// Classify builds a note from text. Scorer failures degrade to an
// undetermined sentiment; they never fail the call.
func (p *Pipeline) Classify(ctx context.Context, text string) (notes.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return notes.Note{}, ErrEmptyTranscript
	}

	ctx, span := otel.Tracer("github.com/voxilabs/voxi-core/classify").Start(ctx, "classify")
	defer span.End()

	note := notes.Note{
		ID:        uuid.NewString(),
		Text:      text,
		Sentiment: p.sentiment(ctx, text),
		Category:  Categorize(text, p.categories.Names(), p.categories.Fallback()),
		CreatedAt: p.clock().UTC(),
	}
	span.SetAttributes(
		attribute.String("note.category", note.Category),
		attribute.String("note.sentiment", note.Sentiment),
	)
	return note, nil
}

func (p *Pipeline) sentiment(ctx context.Context, text string) string {
	if p.scorer == nil {
		return Undetermined
	}
	score, err := p.scorer.Score(ctx, text)
	if err != nil {
		p.log.Warn("sentiment scoring failed", slogError(err))
		return Undetermined
	}
	return FormatSentiment(score)
}

// FormatSentiment renders a score as text, mapping the neutral default and
// invalid values to Undetermined.
func FormatSentiment(score float64) string {
	if score == 0 || math.IsNaN(score) || score < -1 || score > 1 {
		return Undetermined
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Categorize returns the first name that appears in text, ignoring case, or
// fallback when none does.
func Categorize(text string, names []string, fallback string) string {
	lowered := strings.ToLower(text)
	for _, name := range names {
		if name == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(name)) {
			return name
		}
	}
	return fallback
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
