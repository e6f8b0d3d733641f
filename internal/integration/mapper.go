package integration

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types carried in the envelope and the event-type header.
const (
	EventGRNCompleted = "procurement.grn.completed"
	EventGRNCancelled = "procurement.grn.cancelled"
)

// Envelope wraps every published payload.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// eventID is stable per GRN and event type so consumers can deduplicate
// redeliveries.
func eventID(eventType string, grnID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("GRN:%d:%s", grnID, eventType)))
}

func toMessage(eventType string, grnID int64, at time.Time, payload any) (kafka.Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("integration: encode %s: %w", eventType, err)
	}
	body, err := json.Marshal(Envelope{
		ID:         eventID(eventType, grnID),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Payload:    raw,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(grnID, 10)),
		Value: body,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}, nil
}
