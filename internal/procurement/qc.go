package procurement

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

// rowLine resolves the line item a QC row targets, by id or by SKU.
func rowLine(note *grn.Note, row QCRow) (*grn.LineItem, error) {
	if row.ID != 0 {
		li, ok := note.Line(row.ID)
		if !ok {
			return nil, &grn.Error{Kind: grn.KindIllegalTransition, Message: fmt.Sprintf("line item %d does not belong to this goods receive note", row.ID)}
		}
		if row.SKUID != 0 && row.SKUID != li.SKUID {
			return nil, &grn.Error{Kind: grn.KindIllegalTransition, SKU: li.SKUCode, Message: fmt.Sprintf("line item %d cannot change its SKU", row.ID)}
		}
		return li, nil
	}
	li, ok := note.LineBySKU(row.SKUID)
	if !ok {
		return nil, &grn.Error{Kind: grn.KindUnknownSKU, Message: fmt.Sprintf("SKU %d has no line item on this goods receive note", row.SKUID)}
	}
	return li, nil
}

// splitFor builds the QC split a row describes. Untracked rows without
// quantities keep their full acceptance. Batch and serial rows without an
// accepted ledger describe no review and yield a nil split.
func splitFor(li *grn.LineItem, row QCRow) (grn.QCSplit, error) {
	switch li.Tracking.(type) {
	case *grn.Untracked:
		switch {
		case row.AcceptedQty != nil:
			return grn.UntrackedSplit{Accepted: *row.AcceptedQty}, nil
		case row.RejectedQty != nil:
			return grn.UntrackedSplit{Accepted: li.ReceivedQty - *row.RejectedQty}, nil
		}
	case *grn.Batched:
		if row.AcceptedBatches == nil {
			return nil, nil
		}
		return grn.BatchSplitFromCodes(li, row.AcceptedBatches)
	case *grn.Serialized:
		if row.AcceptedSerials == nil {
			return nil, nil
		}
		return grn.SerialSplit{Accepted: row.AcceptedSerials}, nil
	default:
		return nil, grn.ErrUnknownTracking
	}
	return grn.DefaultSplit(li)
}

// describesReview reports whether row carries a review of li.
func describesReview(li *grn.LineItem, row QCRow) bool {
	switch li.Tracking.(type) {
	case *grn.Batched:
		return row.AcceptedBatches != nil
	case *grn.Serialized:
		return row.AcceptedSerials != nil
	}
	return true
}

// applyRow confirms the review of the row's line item and checks the
// quantities the caller stated against the derived split. With seed set, a
// row without an accepted ledger is reviewed from the default split; without
// it the line item is left unconfirmed for the submission gate to report.
func applyRow(session *grn.Session, row QCRow, seed bool) (*grn.LineItem, error) {
	li, err := rowLine(session.Note, row)
	if err != nil {
		return nil, err
	}
	split, err := splitFor(li, row)
	if err != nil {
		return nil, err
	}
	if split == nil {
		if !seed {
			return li, nil
		}
		if split, err = grn.DefaultSplit(li); err != nil {
			return nil, err
		}
	}
	if err := session.Review(li.SKUID, split, row.Reason); err != nil {
		return nil, err
	}
	if err := checkStated(li, row); err != nil {
		return nil, err
	}
	return li, nil
}

func checkStated(li *grn.LineItem, row QCRow) error {
	kind := grn.KindQuantityMismatch
	if li.Mode() == grn.TrackingSerial {
		kind = grn.KindCountMismatch
	}
	if row.AcceptedQty != nil && *row.AcceptedQty != li.Accepted() {
		return &grn.Error{Kind: kind, SKU: li.SKUCode, Message: fmt.Sprintf("accepted qty (%d) does not match the accepted units (%d) for SKU %s", *row.AcceptedQty, li.Accepted(), li.SKUCode)}
	}
	if row.RejectedQty != nil && *row.RejectedQty != li.Rejected() {
		return &grn.Error{Kind: kind, SKU: li.SKUCode, Message: fmt.Sprintf("rejected qty (%d) does not match the rejected units (%d) for SKU %s", *row.RejectedQty, li.Rejected(), li.SKUCode)}
	}
	switch ledger := li.Tracking.(type) {
	case *grn.Batched:
		if row.RejectedBatches != nil && !sameCodeTotals(row.RejectedBatches, ledger.Rejected) {
			return &grn.Error{Kind: grn.KindQuantityMismatch, SKU: li.SKUCode, Message: fmt.Sprintf("rejected batches do not match the accepted batches for SKU %s", li.SKUCode)}
		}
	case *grn.Serialized:
		if row.RejectedSerials != nil && !sameSet(row.RejectedSerials, ledger.Rejected) {
			return &grn.Error{Kind: grn.KindCountMismatch, SKU: li.SKUCode, Message: fmt.Sprintf("rejected serials do not match the accepted serials for SKU %s", li.SKUCode)}
		}
	}
	return nil
}

func sameCodeTotals(a, b []grn.Batch) bool {
	totals := make(map[string]int64, len(a))
	for _, x := range a {
		totals[strings.TrimSpace(x.Code)] += x.Quantity
	}
	for _, x := range b {
		totals[x.Code] -= x.Quantity
	}
	for _, v := range totals {
		if v != 0 {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	set := make(map[string]int, len(a))
	for _, x := range a {
		set[strings.TrimSpace(x)] = 1
	}
	for _, x := range b {
		if set[x] != 1 {
			return false
		}
		set[x] = 2
	}
	for _, v := range set {
		if v != 2 {
			return false
		}
	}
	return true
}
