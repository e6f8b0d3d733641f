package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/receiving/internal/procurement"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishGRNCompleted(t *testing.T) {
	w := &recordingWriter{}
	hooks := NewHooks(w, nil)
	at := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	err := hooks.PublishGRNCompleted(context.Background(), procurement.GRNCompletedEvent{
		ID:             42,
		Number:         "GRN-42",
		AcceptedAmount: decimal.NewFromInt(1175),
		RejectedAmount: decimal.NewFromInt(450),
		CompletedAt:    at,
		Lines:          []procurement.GRNLineEvent{{SKUID: 3, SKUCode: "PUMP", ReceivedQty: 3, AcceptedQty: 2, RejectedQty: 1}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "42", string(msg.Key))
	require.Equal(t, EventGRNCompleted, string(msg.Headers[0].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	require.Equal(t, EventGRNCompleted, env.Type)
	require.Equal(t, eventID(EventGRNCompleted, 42), env.ID)
	require.True(t, at.Equal(env.OccurredAt))

	var payload procurement.GRNCompletedEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Equal(t, "GRN-42", payload.Number)
	require.True(t, decimal.NewFromInt(450).Equal(payload.RejectedAmount))
	require.Equal(t, int64(1), payload.Lines[0].RejectedQty)

	require.NoError(t, hooks.Close())
	require.True(t, w.closed)
}

func TestPublishErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	hooks := NewHooks(w, nil)

	err := hooks.PublishGRNCancelled(context.Background(), procurement.GRNCancelledEvent{ID: 1})
	require.Error(t, err, "cancellation time is required")

	err = hooks.PublishGRNCancelled(context.Background(), procurement.GRNCancelledEvent{ID: 1, CancelledAt: time.Now()})
	require.ErrorContains(t, err, "broker down")
}

func TestHooksWithoutWriterAreNoop(t *testing.T) {
	require.Nil(t, NewKafkaWriter(nil, "procurement.grn"))

	hooks := NewKafkaHooks(nil, "procurement.grn", nil)
	err := hooks.PublishGRNCancelled(context.Background(), procurement.GRNCancelledEvent{ID: 1, CancelledAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, hooks.Close())
}
