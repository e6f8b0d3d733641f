package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/odyssey-erp/receiving/internal/procurement"
)

// MessageWriter is the subset of kafka.Writer used by Hooks.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for topic. It returns nil when no broker is
// configured so events are dropped instead of blocking requests.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

// Hooks forwards GRN lifecycle events to the procurement topic. Messages are
// keyed by GRN id so events of one note stay ordered.
type Hooks struct {
	writer MessageWriter
	logger *slog.Logger
}

var _ procurement.EventPublisher = (*Hooks)(nil)

// NewHooks constructs integration hooks. A nil writer disables publishing.
func NewHooks(writer MessageWriter, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{writer: writer, logger: logger}
}

// NewKafkaHooks publishes to topic on brokers, or drops events when no
// broker is configured.
func NewKafkaHooks(brokers []string, topic string, logger *slog.Logger) *Hooks {
	if w := NewKafkaWriter(brokers, topic); w != nil {
		return NewHooks(w, logger)
	}
	return NewHooks(nil, logger)
}

// PublishGRNCompleted announces a completed GRN with its accepted and
// rejected quantities.
func (h *Hooks) PublishGRNCompleted(ctx context.Context, evt procurement.GRNCompletedEvent) error {
	if evt.CompletedAt.IsZero() {
		return errors.New("integration: GRN completion time required")
	}
	return h.publish(ctx, EventGRNCompleted, evt.ID, evt.CompletedAt, evt)
}

// PublishGRNCancelled announces a cancelled GRN.
func (h *Hooks) PublishGRNCancelled(ctx context.Context, evt procurement.GRNCancelledEvent) error {
	if evt.CancelledAt.IsZero() {
		return errors.New("integration: GRN cancellation time required")
	}
	return h.publish(ctx, EventGRNCancelled, evt.ID, evt.CancelledAt, evt)
}

func (h *Hooks) publish(ctx context.Context, eventType string, grnID int64, at time.Time, payload any) error {
	if h == nil || h.writer == nil {
		return nil
	}
	msg, err := toMessage(eventType, grnID, at, payload)
	if err != nil {
		return err
	}
	if err := h.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("integration: publish %s: %w", eventType, err)
	}
	h.logger.Debug("event published", slog.String("type", eventType), slog.Int64("grn_id", grnID))
	return nil
}

// Close flushes pending messages.
func (h *Hooks) Close() error {
	if h == nil || h.writer == nil {
		return nil
	}
	return h.writer.Close()
}
