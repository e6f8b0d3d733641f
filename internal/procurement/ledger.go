package procurement

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

// BatchRecord is the stored and wire shape of a batch.
type BatchRecord struct {
	Code            string     `json:"batch_code"`
	Quantity        int64      `json:"quantity"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
}

type ledgerRecord struct {
	ReceivedBatches []BatchRecord `json:"received_batches,omitempty"`
	AcceptedBatches []BatchRecord `json:"accepted_batches,omitempty"`
	RejectedBatches []BatchRecord `json:"rejected_batches,omitempty"`
	ReceivedSerials []string      `json:"received_serials,omitempty"`
	AcceptedSerials []string      `json:"accepted_serials,omitempty"`
	RejectedSerials []string      `json:"rejected_serials,omitempty"`
}

func toBatchRecords(batches []grn.Batch) []BatchRecord {
	if batches == nil {
		return nil
	}
	out := make([]BatchRecord, len(batches))
	for i, b := range batches {
		out[i] = BatchRecord{Code: b.Code, Quantity: b.Quantity, ManufactureDate: optionalTime(b.ManufactureDate), ExpiryDate: optionalTime(b.ExpiryDate)}
	}
	return out
}

func fromBatchRecords(records []BatchRecord) []grn.Batch {
	if records == nil {
		return nil
	}
	out := make([]grn.Batch, len(records))
	for i, r := range records {
		b := grn.Batch{Code: r.Code, Quantity: r.Quantity}
		if r.ManufactureDate != nil {
			b.ManufactureDate = *r.ManufactureDate
		}
		if r.ExpiryDate != nil {
			b.ExpiryDate = *r.ExpiryDate
		}
		out[i] = b
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newLedgerRecord(t grn.Tracking) (ledgerRecord, error) {
	switch ledger := t.(type) {
	case *grn.Untracked:
		return ledgerRecord{}, nil
	case *grn.Batched:
		return ledgerRecord{
			ReceivedBatches: toBatchRecords(ledger.Received),
			AcceptedBatches: toBatchRecords(ledger.Accepted),
			RejectedBatches: toBatchRecords(ledger.Rejected),
		}, nil
	case *grn.Serialized:
		return ledgerRecord{
			ReceivedSerials: ledger.Received,
			AcceptedSerials: ledger.Accepted,
			RejectedSerials: ledger.Rejected,
		}, nil
	}
	return ledgerRecord{}, grn.ErrUnknownTracking
}

func encodeLedger(t grn.Tracking) ([]byte, error) {
	rec, err := newLedgerRecord(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

func decodeLedger(mode grn.TrackingType, data []byte) (grn.Tracking, error) {
	var rec ledgerRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("procurement: decode ledger: %w", err)
		}
	}
	switch mode {
	case grn.TrackingUntracked:
		return &grn.Untracked{}, nil
	case grn.TrackingBatch:
		return &grn.Batched{
			Received: fromBatchRecords(rec.ReceivedBatches),
			Accepted: fromBatchRecords(rec.AcceptedBatches),
			Rejected: fromBatchRecords(rec.RejectedBatches),
		}, nil
	case grn.TrackingSerial:
		return &grn.Serialized{
			Received: rec.ReceivedSerials,
			Accepted: rec.AcceptedSerials,
			Rejected: rec.RejectedSerials,
		}, nil
	}
	return nil, grn.ErrUnknownTracking
}
