package grn

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Status is the GRN lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusQCPending Status = "qc_pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Note is a Goods Receive Note with its line items.
type Note struct {
	ID              int64
	Number          string
	POID            int64
	VendorID        int64
	NodeID          int64
	InvoiceNumber   string
	InvoiceDate     time.Time
	ReceivedDate    time.Time
	InvoiceDocument string
	Status          Status
	// QCSubmitted is set once the QC payload passed the submission gate.
	QCSubmitted bool
	Version     int64
	Lines       []*LineItem
	Totals      Totals
}

// CanCreateNewGrn reports whether a PO whose GRNs are in existing may get a
// new GRN. At most one GRN per PO may be in flight.
func CanCreateNewGrn(existing []Status) bool {
	for _, s := range existing {
		if !s.Terminal() {
			return false
		}
	}
	return true
}

// CheckCreate is CanCreateNewGrn as an error.
func CheckCreate(existing []Status) error {
	if !CanCreateNewGrn(existing) {
		return newError(KindIllegalTransition, "", "purchase order already has an open goods receive note")
	}
	return nil
}

// Refresh recomputes the derived totals.
func (n *Note) Refresh() {
	n.Totals = RecomputeAggregates(n.Lines)
}

// Line returns the row with id.
func (n *Note) Line(id int64) (*LineItem, bool) {
	for _, li := range n.Lines {
		if li.ID == id {
			return li, true
		}
	}
	return nil, false
}

// LineBySKU returns the row for skuID.
func (n *Note) LineBySKU(skuID int64) (*LineItem, bool) {
	for _, li := range n.Lines {
		if li.SKUID == skuID {
			return li, true
		}
	}
	return nil, false
}

func (n *Note) requireStatus(action string, allowed ...Status) error {
	if slices.Contains(allowed, n.Status) {
		return nil
	}
	return newError(KindIllegalTransition, "", "cannot %s a goods receive note in status %s", action, n.Status)
}

// LineDraft is one row of a receiving-phase submission. Batches or Serials
// replace the row's received ledger for the matching mode.
type LineDraft struct {
	ID          int64
	SKUID       int64
	ReceivedQty float64
	Batches     []Batch
	Serials     []string
}

// ReplaceLineItems replaces the line-item set with drafts using upsert-by-SKU
// semantics. Existing rows keep their identity; new rows need an unused SKU
// and may not exceed the SKU's remaining quantity. Serials not yet on a row
// are verified through v. The note is unchanged on error.
func (n *Note) ReplaceLineItems(ctx context.Context, drafts []LineDraft, catalog Catalog, v Verifier) error {
	if err := n.requireStatus("edit line items of", StatusCreated); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(drafts))
	next := make([]*LineItem, 0, len(drafts))
	for _, d := range drafts {
		row, err := n.draftRow(ctx, d, catalog, v, seen)
		if err != nil {
			return err
		}
		next = append(next, row)
	}
	n.Lines = next
	n.Refresh()
	return nil
}

func (n *Note) draftRow(ctx context.Context, d LineDraft, catalog Catalog, v Verifier, seen map[int64]struct{}) (*LineItem, error) {
	sku, err := catalog.Resolve(d.SKUID)
	if err != nil {
		return nil, err
	}
	if _, dup := seen[d.SKUID]; dup {
		return nil, newError(KindIllegalTransition, sku.SKUCode, "SKU %s appears more than once", sku.SKUCode)
	}
	seen[d.SKUID] = struct{}{}

	qty, err := ParseReceivedQuantity(sku.SKUCode, d.ReceivedQty)
	if err != nil {
		return nil, err
	}

	var existing *LineItem
	if d.ID != 0 {
		li, ok := n.Line(d.ID)
		if !ok {
			return nil, newError(KindIllegalTransition, sku.SKUCode, "line item %d does not belong to this goods receive note", d.ID)
		}
		if li.SKUID != d.SKUID {
			return nil, newError(KindIllegalTransition, sku.SKUCode, "line item %d cannot change its SKU", d.ID)
		}
		existing = li
	} else if li, ok := n.LineBySKU(d.SKUID); ok {
		existing = li
	}

	var row *LineItem
	if existing != nil {
		row = existing.Clone()
		if row.Mode() != sku.Tracking {
			if hasReceivedData(row.Tracking) {
				return nil, newError(KindIllegalTransition, sku.SKUCode, "tracking mode of SKU %s cannot change after data was received", sku.SKUCode)
			}
			if row.Tracking, err = NewTracking(sku.Tracking); err != nil {
				return nil, err
			}
		}
	} else {
		if qty > sku.RemainingQty {
			return nil, newError(KindOverReceipt, sku.SKUCode, "received qty (%d) exceeds remaining qty (%d) for SKU %s", qty, sku.RemainingQty, sku.SKUCode)
		}
		if row, err = NewLineItem(sku); err != nil {
			return nil, err
		}
	}
	row.ReceivedQty = qty

	mode := row.Mode()
	if len(d.Batches) > 0 && mode != TrackingBatch {
		return nil, newError(KindInvalidBatch, sku.SKUCode, "SKU %s is %s tracked and cannot receive batches", sku.SKUCode, mode)
	}
	if len(d.Serials) > 0 && mode != TrackingSerial {
		return nil, newError(KindInvalidSerial, sku.SKUCode, "SKU %s is %s tracked and cannot receive serials", sku.SKUCode, mode)
	}

	switch ledger := row.Tracking.(type) {
	case *Untracked:
	case *Batched:
		ledger.Received = nil
		for _, b := range d.Batches {
			if err := AddBatch(row, b); err != nil {
				return nil, err
			}
		}
	case *Serialized:
		if int64(len(d.Serials)) > qty {
			return nil, newError(KindCountMismatch, sku.SKUCode, "Serial count (%d) exceeds received qty (%d) for SKU %s", len(d.Serials), qty, sku.SKUCode)
		}
		known := ledger.Received
		ledger.Received = nil
		for _, serial := range d.Serials {
			serial = strings.TrimSpace(serial)
			if slices.Contains(known, serial) && !slices.Contains(ledger.Received, serial) {
				ledger.Received = append(ledger.Received, serial)
				continue
			}
			if err := AddSerial(ctx, row, v, serial); err != nil {
				return nil, err
			}
		}
	default:
		return nil, ErrUnknownTracking
	}
	return row, nil
}

// InitiateQC moves a created GRN to qc_pending.
func (n *Note) InitiateQC() error {
	if err := n.requireStatus("initiate QC for", StatusCreated); err != nil {
		return err
	}
	if len(n.Lines) == 0 {
		return newError(KindIllegalTransition, "", "a goods receive note needs at least one line item before QC")
	}
	if err := CheckReceivingSubmission(n); err != nil {
		return err
	}
	n.Status = StatusQCPending
	n.Refresh()
	return nil
}

// Complete moves a qc_pending GRN whose QC results were submitted to completed.
func (n *Note) Complete() error {
	if err := n.requireStatus("complete", StatusQCPending); err != nil {
		return err
	}
	if issues := qcIssues(n); len(issues) > 0 {
		return incompleteError(issues)
	}
	if !n.QCSubmitted {
		return newError(KindIllegalTransition, "", "QC results must be submitted before completion")
	}
	n.Status = StatusCompleted
	n.Refresh()
	return nil
}

// Cancel moves a created or qc_pending GRN to cancelled.
func (n *Note) Cancel() error {
	if err := n.requireStatus("cancel", StatusCreated, StatusQCPending); err != nil {
		return err
	}
	n.Status = StatusCancelled
	n.Refresh()
	return nil
}
