package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/receiving/internal/procurement/grn"
	"github.com/odyssey-erp/receiving/internal/shared"
)

// PurchaseOrder is the header of the order goods are received against.
type PurchaseOrder struct {
	ID       int64
	Number   string
	VendorID int64
	NodeID   int64
}

// SummaryLine is one SKU of the PO receiving summary.
type SummaryLine struct {
	SKUID        int64
	SKUCode      string
	Name         string
	TrackingType grn.TrackingType
	RemainingQty int64
	OrderedQty   int64
	UnitPrice    decimal.Decimal
}

// ReceivingSummary lists per-SKU receiving context of a PO.
type ReceivingSummary struct {
	POID  int64
	GRNID int64
	Lines []SummaryLine
}

// Catalog converts the summary into the engine's SKU catalog.
func (s ReceivingSummary) Catalog() grn.Catalog {
	items := make([]grn.SKUContext, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, grn.SKUContext{
			SKUID:        l.SKUID,
			SKUCode:      l.SKUCode,
			Name:         l.Name,
			Tracking:     l.TrackingType,
			RemainingQty: l.RemainingQty,
			OrderedQty:   l.OrderedQty,
			UnitPrice:    l.UnitPrice,
		})
	}
	return grn.NewCatalog(items)
}

// CreateNoteInput describes GRN creation.
type CreateNoteInput struct {
	POID            int64
	Number          string
	InvoiceNumber   string
	InvoiceDate     time.Time
	ReceivedDate    time.Time
	InvoiceDocument string
}

// SaveLineItemsInput replaces the receiving-phase line items.
type SaveLineItemsInput struct {
	GRNID   int64
	Version int64
	Lines   []grn.LineDraft
}

// QCRow is one row of a QC submission. The accepted side is read from the
// field matching the row's tracking mode: AcceptedQty, AcceptedBatches or
// AcceptedSerials. Rejected fields, when set, must agree with the derived split.
type QCRow struct {
	ID              int64
	SKUID           int64
	AcceptedQty     *int64
	RejectedQty     *int64
	AcceptedBatches []grn.Batch
	RejectedBatches []grn.Batch
	AcceptedSerials []string
	RejectedSerials []string
	Reason          string
}

// SubmitQCInput carries the QC payload of a qc_pending GRN.
type SubmitQCInput struct {
	GRNID   int64
	Version int64
	Rows    []QCRow
}

// ReviewInput is the per-row review step recorded before submission.
type ReviewInput struct {
	GRNID int64
	Row   QCRow
}

// TransitionInput identifies a lifecycle transition request.
type TransitionInput struct {
	GRNID   int64
	Version int64
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = shared.ErrNotFound
	// ErrConflict indicates the GRN changed since the caller read it.
	ErrConflict = shared.ErrConflict
)
