package grn

// CheckReceiving validates the receiving side of li.
func CheckReceiving(li *LineItem) error {
	if li.ReceivedQty <= 0 {
		return newError(KindInvalidQuantity, li.SKUCode, "received quantity must be greater than 0 for SKU %s", li.SKUCode)
	}
	switch li.Tracking.(type) {
	case *Untracked:
		return nil
	case *Batched:
		return ValidateBatches(li)
	case *Serialized:
		return ValidateSerials(li)
	}
	return ErrUnknownTracking
}

// IsReceivingValid reports whether CheckReceiving passes.
func IsReceivingValid(li *LineItem) bool {
	return CheckReceiving(li) == nil
}

// CheckQC reports why li's QC data is not ready for submission, or nil.
func CheckQC(li *LineItem) error {
	switch ledger := li.Tracking.(type) {
	case *Untracked:
		if li.QC == nil {
			return nil
		}
		if err := checkConservation(li); err != nil {
			return err
		}
		return checkReason(li)
	case *Batched:
		if err := checkReviewed(li); err != nil {
			return err
		}
		if err := checkConservation(li); err != nil {
			return err
		}
		if err := checkBatchConservation(li, ledger); err != nil {
			return err
		}
		return checkReason(li)
	case *Serialized:
		if err := checkReviewed(li); err != nil {
			return err
		}
		if err := checkConservation(li); err != nil {
			return err
		}
		if err := checkSerialPartition(li, ledger); err != nil {
			return err
		}
		return checkReason(li)
	}
	return ErrUnknownTracking
}

// IsQcComplete reports whether CheckQC passes.
func IsQcComplete(li *LineItem) bool {
	return CheckQC(li) == nil
}

func checkReviewed(li *LineItem) error {
	if li.Review != ReviewReviewed || li.QC == nil {
		return newError(KindQcIncomplete, li.SKUCode, "QC for SKU %s has not been reviewed", li.SKUCode)
	}
	return nil
}

func checkConservation(li *LineItem) error {
	if li.QC.AcceptedQty < 0 || li.QC.RejectedQty < 0 {
		return newError(KindInvalidQuantity, li.SKUCode, "QC quantities must not be negative for SKU %s", li.SKUCode)
	}
	if li.QC.AcceptedQty+li.QC.RejectedQty != li.ReceivedQty {
		return newError(KindQuantityMismatch, li.SKUCode, "accepted (%d) and rejected (%d) must add up to received qty (%d) for SKU %s", li.QC.AcceptedQty, li.QC.RejectedQty, li.ReceivedQty, li.SKUCode)
	}
	return nil
}

// ApplyUntrackedQC lowers (or restores) the accepted quantity of an untracked
// row; the remainder is rejected.
func ApplyUntrackedQC(li *LineItem, accepted int64) error {
	if _, ok := li.Tracking.(*Untracked); !ok {
		return newError(KindIllegalTransition, li.SKUCode, "SKU %s is not untracked", li.SKUCode)
	}
	if accepted < 0 {
		return newError(KindInvalidQuantity, li.SKUCode, "accepted quantity must not be negative for SKU %s", li.SKUCode)
	}
	if accepted > li.ReceivedQty {
		return newError(KindOverAcceptance, li.SKUCode, "accepted quantity (%d) exceeds received quantity (%d) for SKU %s", accepted, li.ReceivedQty, li.SKUCode)
	}
	li.QC = &QCResult{AcceptedQty: accepted, RejectedQty: li.ReceivedQty - accepted, Reason: li.Reason()}
	return nil
}

// QCSplit is the accepted side of a review, one case per tracking mode.
type QCSplit interface {
	Mode() TrackingType
}

// UntrackedSplit accepts a plain quantity.
type UntrackedSplit struct{ Accepted int64 }

// BatchSplit accepts a quantity per received batch, aligned by index.
type BatchSplit struct{ Accepted []int64 }

// SerialSplit accepts a subset of the received serials.
type SerialSplit struct{ Accepted []string }

func (UntrackedSplit) Mode() TrackingType { return TrackingUntracked }
func (BatchSplit) Mode() TrackingType     { return TrackingBatch }
func (SerialSplit) Mode() TrackingType    { return TrackingSerial }

// DefaultSplit returns the split a first (or repeated) review starts from.
func DefaultSplit(li *LineItem) (QCSplit, error) {
	switch li.Tracking.(type) {
	case *Untracked:
		return UntrackedSplit{Accepted: li.Accepted()}, nil
	case *Batched:
		acc, err := DefaultBatchAcceptance(li)
		if err != nil {
			return nil, err
		}
		return BatchSplit{Accepted: acc}, nil
	case *Serialized:
		acc, err := DefaultSerialAcceptance(li)
		if err != nil {
			return nil, err
		}
		return SerialSplit{Accepted: acc}, nil
	}
	return nil, ErrUnknownTracking
}

// ApplyQC applies split to li without marking it reviewed.
func ApplyQC(li *LineItem, split QCSplit) error {
	if split == nil || split.Mode() != li.Mode() {
		return newError(KindIllegalTransition, li.SKUCode, "QC split does not match the tracking mode of SKU %s", li.SKUCode)
	}
	switch s := split.(type) {
	case UntrackedSplit:
		return ApplyUntrackedQC(li, s.Accepted)
	case BatchSplit:
		return ApplyBatchQC(li, s.Accepted)
	case SerialSplit:
		return ApplySerialQC(li, s.Accepted)
	}
	return ErrUnknownTracking
}

// ConfirmReview is the explicit review step: it applies split, records the
// rejection reason and marks the row reviewed. li is left untouched on error.
func ConfirmReview(li *LineItem, split QCSplit, reason string) error {
	draft := li.Clone()
	if err := ApplyQC(draft, split); err != nil {
		return err
	}
	draft.QC.Reason = reason
	if draft.QC.RejectedQty == 0 {
		draft.QC.Reason = ""
	}
	draft.Review = ReviewReviewed
	li.restore(draft)
	return nil
}
