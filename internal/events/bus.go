package events

import (
	"log/slog"

	"github.com/voxilabs/voxi-core/internal/bus"
	"github.com/voxilabs/voxi-core/internal/protocol"
)

// BusSink publishes every event as JSON on voxi.event.<type>.
type BusSink struct {
	bus    *bus.Client
	logger *slog.Logger
}

func NewBusSink(busClient *bus.Client, log *slog.Logger) *BusSink {
	return &BusSink{bus: busClient, logger: log.With(slog.String("component", "event-publisher"))}
}

// Subject returns the subject an event type is published on.
func Subject(t Type) string {
	return protocol.SubjectEventPrefix + "." + string(t)
}

func (s *BusSink) Emit(evt Event) {
	if err := s.bus.PublishJSON(Subject(evt.Type), evt); err != nil {
		s.logger.Warn("failed to publish event", slog.String("type", string(evt.Type)), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
