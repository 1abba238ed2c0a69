package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/voxilabs/voxi-core/internal/eventstore"
)

// Journal records the capture and note lifecycle of each session in the
// event store. Transcript updates are not journaled.
type Journal struct {
	store  *eventstore.Store
	actor  string
	logger *slog.Logger
}

func NewJournal(store *eventstore.Store, actor string, log *slog.Logger) *Journal {
	return &Journal{store: store, actor: actor, logger: log.With(slog.String("component", "journal"))}
}

func (j *Journal) Emit(evt Event) {
	if j.store == nil || evt.Type == TranscriptUpdated {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := j.store.AppendSession(ctx, evt.SessionID, j.actor); err != nil {
		j.logger.Warn("failed to append journal session", slogError(err))
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		j.logger.Warn("failed to marshal journal event", slogError(err))
		return
	}
	entry := eventstore.Event{
		SessionID: evt.SessionID,
		ActorID:   j.actor,
		Type:      string(evt.Type),
		Payload:   data,
		CreatedAt: evt.Timestamp,
	}
	if err := j.store.AppendEvent(ctx, entry); err != nil {
		j.logger.Warn("failed to append journal event", slogError(err))
	}
}
