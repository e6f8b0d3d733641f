package grn

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MinReasonLength is the minimum trimmed length of a rejection reason.
const MinReasonLength = 10

// ReviewState records whether a line item's QC split was explicitly reviewed
// in the current session.
type ReviewState string

const (
	ReviewNotReviewed ReviewState = "not_reviewed"
	ReviewReviewed    ReviewState = "reviewed"
)

// QCResult holds accepted/rejected quantities once QC data exists.
type QCResult struct {
	AcceptedQty int64
	RejectedQty int64
	Reason      string
}

// LineItem is one SKU's entry within a GRN.
type LineItem struct {
	// ID is zero for rows not yet persisted.
	ID          int64
	SKUID       int64
	SKUCode     string
	UnitPrice   decimal.Decimal
	ReceivedQty int64
	QC          *QCResult
	Tracking    Tracking
	Review      ReviewState

	verifying bool
}

// NewLineItem creates an empty row for sku with the ledger of its mode.
func NewLineItem(sku SKUContext) (*LineItem, error) {
	tracking, err := NewTracking(sku.Tracking)
	if err != nil {
		return nil, err
	}
	return &LineItem{
		SKUID:     sku.SKUID,
		SKUCode:   sku.SKUCode,
		UnitPrice: sku.UnitPrice,
		Tracking:  tracking,
		Review:    ReviewNotReviewed,
	}, nil
}

// Mode returns the row's tracking mode.
func (li *LineItem) Mode() TrackingType {
	if li.Tracking == nil {
		return ""
	}
	return li.Tracking.Mode()
}

// Clone returns a deep copy of li.
func (li *LineItem) Clone() *LineItem {
	cp := *li
	if li.QC != nil {
		qc := *li.QC
		cp.QC = &qc
	}
	if li.Tracking != nil {
		cp.Tracking = li.Tracking.clone()
	}
	cp.verifying = false
	return &cp
}

// restore copies src into li in place; used to commit a mutated clone.
func (li *LineItem) restore(src *LineItem) {
	verifying := li.verifying
	*li = *src
	li.verifying = verifying
}

// Accepted returns the effective accepted quantity. Untracked rows without
// QC data default to fully accepted.
func (li *LineItem) Accepted() int64 {
	if li.QC != nil {
		return li.QC.AcceptedQty
	}
	if _, ok := li.Tracking.(*Untracked); ok {
		return li.ReceivedQty
	}
	return 0
}

// Rejected returns the effective rejected quantity.
func (li *LineItem) Rejected() int64 {
	if li.QC != nil {
		return li.QC.RejectedQty
	}
	return 0
}

// Reason returns the rejection reason, if any.
func (li *LineItem) Reason() string {
	if li.QC == nil {
		return ""
	}
	return li.QC.Reason
}

// Confirmed reports whether the row's QC split has been reviewed. Untracked
// rows are always confirmed because their default is deterministic.
func (li *LineItem) Confirmed() bool {
	if _, ok := li.Tracking.(*Untracked); ok {
		return true
	}
	return li.Review == ReviewReviewed
}

// ParseReceivedQuantity converts an entered received quantity, rejecting
// fractional and non-positive values.
func ParseReceivedQuantity(sku string, v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, newError(KindInvalidQuantity, sku, "received quantity must be a whole number for SKU %s", sku)
	}
	if v <= 0 {
		return 0, newError(KindInvalidQuantity, sku, "received quantity must be greater than 0 for SKU %s", sku)
	}
	if v >= maxQuantity {
		return 0, newError(KindInvalidQuantity, sku, "received quantity is too large for SKU %s", sku)
	}
	return int64(v), nil
}

// maxQuantity is 2^63, the first float64 that does not fit in an int64.
const maxQuantity = float64(1 << 63)

// FloorQuantity floors an entered accepted quantity, clamped to the int64 range.
func FloorQuantity(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= maxQuantity:
		return math.MaxInt64
	case v < -maxQuantity:
		return math.MinInt64
	}
	return int64(math.Floor(v))
}

// validReason reports whether reason satisfies the minimum length.
func validReason(reason string) bool {
	return len([]rune(strings.TrimSpace(reason))) >= MinReasonLength
}

func checkReason(li *LineItem) error {
	if li.Rejected() == 0 {
		return nil
	}
	if !validReason(li.Reason()) {
		return newError(KindInvalidReason, li.SKUCode, "rejection reason of at least %d characters is required for SKU %s", MinReasonLength, li.SKUCode)
	}
	return nil
}
