package procurement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

// GRNLineEvent describes the outcome of one line item.
type GRNLineEvent struct {
	SKUID       int64  `json:"sku_id"`
	SKUCode     string `json:"sku_code"`
	ReceivedQty int64  `json:"received_qty"`
	AcceptedQty int64  `json:"accepted_qty"`
	RejectedQty int64  `json:"rejected_qty"`
	Reason      string `json:"rejection_reason,omitempty"`
}

// GRNCompletedEvent is published once a GRN reaches completed.
type GRNCompletedEvent struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	POID           int64           `json:"po_id"`
	VendorID       int64           `json:"vendor_id"`
	NodeID         int64           `json:"node_id"`
	AcceptedAmount decimal.Decimal `json:"accepted_amount"`
	RejectedAmount decimal.Decimal `json:"rejected_amount"`
	CompletedAt    time.Time       `json:"completed_at"`
	Lines          []GRNLineEvent  `json:"lines"`
}

// GRNCancelledEvent is published once a GRN reaches cancelled.
type GRNCancelledEvent struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	POID        int64     `json:"po_id"`
	From        string    `json:"from_status"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// EventPublisher receives GRN lifecycle events for downstream systems.
type EventPublisher interface {
	PublishGRNCompleted(ctx context.Context, evt GRNCompletedEvent) error
	PublishGRNCancelled(ctx context.Context, evt GRNCancelledEvent) error
}

// StockPostEnqueuer schedules stock posting of a completed GRN.
type StockPostEnqueuer interface {
	EnqueueGRNStockPost(ctx context.Context, grnID int64) error
}

func completedEvent(n *grn.Note, at time.Time) GRNCompletedEvent {
	evt := GRNCompletedEvent{
		ID:             n.ID,
		Number:         n.Number,
		POID:           n.POID,
		VendorID:       n.VendorID,
		NodeID:         n.NodeID,
		AcceptedAmount: n.Totals.AcceptedAmount,
		RejectedAmount: n.Totals.RejectedAmount,
		CompletedAt:    at,
		Lines:          make([]GRNLineEvent, 0, len(n.Lines)),
	}
	for _, li := range n.Lines {
		evt.Lines = append(evt.Lines, GRNLineEvent{
			SKUID:       li.SKUID,
			SKUCode:     li.SKUCode,
			ReceivedQty: li.ReceivedQty,
			AcceptedQty: li.Accepted(),
			RejectedQty: li.Rejected(),
			Reason:      li.Reason(),
		})
	}
	return evt
}
