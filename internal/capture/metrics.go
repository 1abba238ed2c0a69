package capture

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxilabs/voxi-core/internal/classify"
	"github.com/voxilabs/voxi-core/internal/notes"
	"github.com/voxilabs/voxi-core/internal/permission"
	"github.com/voxilabs/voxi-core/internal/transcript"
)

type sessionMetrics struct {
	partials metric.Int64Counter
	dropped  metric.Int64Counter
	runs     metric.Int64Counter
	denials  metric.Int64Counter
	saved    metric.Int64Counter
	deleted  metric.Int64Counter

	gauges metric.Registration
	log    *slog.Logger
}

// newMetrics registers the session instruments. Instruments that fail to
// register are left nil and skipped.
func newMetrics(s *Session, store *notes.Store, log *slog.Logger) *sessionMetrics {
	meter := otel.Meter("github.com/voxilabs/voxi-core/capture")
	m := &sessionMetrics{log: log}
	var err error
	warn := func(name string, err error) {
		log.Warn("failed to initialize metric", slog.String("metric", name), slogError(err))
	}

	if m.partials, err = meter.Int64Counter("voxi.capture.partials",
		metric.WithDescription("Recognizer results merged into the transcript")); err != nil {
		warn("voxi.capture.partials", err)
	}
	if m.dropped, err = meter.Int64Counter("voxi.capture.partials.dropped",
		metric.WithDescription("Recognizer results arriving after capture stopped")); err != nil {
		warn("voxi.capture.partials.dropped", err)
	}
	if m.runs, err = meter.Int64Counter("voxi.capture.runs",
		metric.WithDescription("Capture runs started")); err != nil {
		warn("voxi.capture.runs", err)
	}
	if m.denials, err = meter.Int64Counter("voxi.permission.denials",
		metric.WithDescription("Capture attempts blocked by a permission")); err != nil {
		warn("voxi.permission.denials", err)
	}
	if m.saved, err = meter.Int64Counter("voxi.notes.saved",
		metric.WithDescription("Notes classified and stored")); err != nil {
		warn("voxi.notes.saved", err)
	}
	if m.deleted, err = meter.Int64Counter("voxi.notes.deleted",
		metric.WithDescription("Notes removed from the store")); err != nil {
		warn("voxi.notes.deleted", err)
	}

	stored, err := meter.Int64ObservableGauge("voxi.notes.stored",
		metric.WithDescription("Notes currently held in memory"))
	if err != nil {
		warn("voxi.notes.stored", err)
		return m
	}
	running, err := meter.Int64ObservableGauge("voxi.capture.running",
		metric.WithDescription("1 while capture is running"))
	if err != nil {
		warn("voxi.capture.running", err)
		return m
	}
	m.gauges, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(stored, int64(store.Len()))
		var v int64
		if s.State() == StateRunning {
			v = 1
		}
		o.ObserveInt64(running, v)
		return nil
	}, stored, running)
	if err != nil {
		warn("callback", err)
	}
	return m
}

// close unregisters the gauge callback so a closed session is no longer
// observed.
func (m *sessionMetrics) close() {
	if m.gauges == nil {
		return
	}
	if err := m.gauges.Unregister(); err != nil {
		m.log.Warn("failed to unregister metric callback", slogError(err))
	}
	m.gauges = nil
}

func (m *sessionMetrics) partial(outcome transcript.Outcome, final bool) {
	if m.partials == nil {
		return
	}
	m.partials.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("outcome", outcome.String()),
		attribute.Bool("final", final),
	))
}

func (m *sessionMetrics) drop() {
	if m.dropped != nil {
		m.dropped.Add(context.Background(), 1)
	}
}

func (m *sessionMetrics) run() {
	if m.runs != nil {
		m.runs.Add(context.Background(), 1)
	}
}

func (m *sessionMetrics) denial(d *permission.Denial) {
	if m.denials == nil || d == nil {
		return
	}
	m.denials.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", d.Kind.String()),
		attribute.String("state", d.State.String()),
	))
}

func (m *sessionMetrics) save(n notes.Note) {
	if m.saved == nil {
		return
	}
	m.saved.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("category", n.Category),
		attribute.Bool("sentiment_determined", n.Sentiment != classify.Undetermined),
	))
}

func (m *sessionMetrics) remove(count int) {
	if m.deleted != nil && count > 0 {
		m.deleted.Add(context.Background(), int64(count))
	}
}
