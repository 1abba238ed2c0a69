package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxilabs/voxi-core/internal/config"
)

// KafkaExporter forwards note lifecycle events (saved, deleted) to a Kafka
// topic for downstream consumers. When export is disabled it only logs.
type KafkaExporter struct {
	writer    *kafka.Writer
	topic     string
	principal string
	enabled   bool
	logger    *slog.Logger
	exported  metric.Int64Counter
}

func NewKafkaExporter(cfg config.ExportConfig, log *slog.Logger) *KafkaExporter {
	logger := log.With(slog.String("component", "kafka-exporter"))
	e := &KafkaExporter{
		topic:     cfg.Topic,
		principal: cfg.Principal,
		logger:    logger,
	}
	counter, err := otel.Meter("github.com/voxilabs/voxi-core/events").Int64Counter(
		"voxi.export.messages",
		metric.WithDescription("Note events handed to the Kafka exporter"),
	)
	if err != nil {
		logger.Warn("failed to create export counter", slogError(err))
	}
	e.exported = counter

	if !cfg.KafkaEnabled || len(cfg.Brokers) == 0 {
		logger.Info("kafka export disabled, using log-only mode")
		return e
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	e.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("kafka export failed", slog.Int("messages", len(messages)), slogError(err))
			}
		},
	}
	e.enabled = true
	logger.Info("kafka exporter initialized",
		slog.Any("brokers", cfg.Brokers),
		slog.String("topic", cfg.Topic),
		slog.String("principal", cfg.Principal))
	return e
}

// Emit exports note events and ignores everything else.
func (e *KafkaExporter) Emit(evt Event) {
	if evt.Type != NoteSaved && evt.Type != NotesDeleted {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		e.logger.Error("failed to marshal export event", slogError(err))
		return
	}
	key := evt.SessionID
	if evt.Note != nil {
		key = evt.Note.ID
	}
	e.logger.Debug("exporting event",
		slog.String("type", string(evt.Type)),
		slog.String("topic", e.topic),
		slog.String("key", key))

	result := "logged"
	if e.enabled {
		msg := kafka.Message{
			Key:   []byte(key),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "eventType", Value: []byte(evt.Type)},
				{Key: "principal", Value: []byte(e.principal)},
			},
		}
		// Async writer: errors surface in the Completion callback.
		if err := e.writer.WriteMessages(context.Background(), msg); err != nil {
			e.logger.Error("failed to queue kafka message", slogError(err))
			result = "error"
		} else {
			result = "queued"
		}
	}
	if e.exported != nil {
		e.exported.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("type", string(evt.Type)),
			attribute.String("result", result),
		))
	}
}

// Close flushes pending messages and closes the writer.
func (e *KafkaExporter) Close() error {
	if e.writer == nil {
		return nil
	}
	return e.writer.Close()
}
