package grn

import "context"

// Session is one edit session over a GRN. It is not safe for concurrent use;
// every mutation runs in response to a discrete user action and leaves the
// note untouched when it fails.
type Session struct {
	Note     *Note
	Catalog  Catalog
	Verifier Verifier
}

// NewSession starts a session seeded from note and the PO receiving summary.
func NewSession(note *Note, catalog Catalog, v Verifier) *Session {
	note.Refresh()
	return &Session{Note: note, Catalog: catalog, Verifier: v}
}

// Clone returns a deep copy of the note.
func (n *Note) Clone() *Note {
	cp := *n
	cp.Lines = make([]*LineItem, len(n.Lines))
	for i, li := range n.Lines {
		cp.Lines[i] = li.Clone()
	}
	return &cp
}

func (s *Session) line(skuID int64) (*LineItem, error) {
	li, ok := s.Note.LineBySKU(skuID)
	if !ok {
		return nil, newError(KindUnknownSKU, "", "SKU %d has no line item on this goods receive note", skuID)
	}
	return li, nil
}

// receiving applies fn to the row of skuID while the GRN is created.
func (s *Session) receiving(skuID int64, fn func(li *LineItem) error) error {
	if err := s.Note.requireStatus("edit received quantities of", StatusCreated); err != nil {
		return err
	}
	li, err := s.line(skuID)
	if err != nil {
		return err
	}
	draft := li.Clone()
	if err := fn(draft); err != nil {
		return err
	}
	li.restore(draft)
	s.Note.Refresh()
	return nil
}

// SaveLineItems replaces the line-item set and runs the receiving gate. The
// note only changes when every row passes.
func (s *Session) SaveLineItems(ctx context.Context, drafts []LineDraft) error {
	next := s.Note.Clone()
	if err := next.ReplaceLineItems(ctx, drafts, s.Catalog, s.Verifier); err != nil {
		return err
	}
	if err := CheckReceivingSubmission(next); err != nil {
		return err
	}
	*s.Note = *next
	return nil
}

// SetReceivedQty changes the received quantity of an existing row.
func (s *Session) SetReceivedQty(skuID int64, qty float64) error {
	return s.receiving(skuID, func(li *LineItem) error {
		v, err := ParseReceivedQuantity(li.SKUCode, qty)
		if err != nil {
			return err
		}
		li.ReceivedQty = v
		return nil
	})
}

// AddBatch appends a batch to the row of skuID.
func (s *Session) AddBatch(skuID int64, b Batch) error {
	return s.receiving(skuID, func(li *LineItem) error { return AddBatch(li, b) })
}

// UpdateBatch replaces batch index of the row of skuID.
func (s *Session) UpdateBatch(skuID int64, index int, b Batch) error {
	return s.receiving(skuID, func(li *LineItem) error { return UpdateBatch(li, index, b) })
}

// RemoveBatch drops batch index of the row of skuID.
func (s *Session) RemoveBatch(skuID int64, index int) error {
	return s.receiving(skuID, func(li *LineItem) error { return RemoveBatch(li, index) })
}

// AddSerial verifies and admits serial into the row of skuID.
func (s *Session) AddSerial(ctx context.Context, skuID int64, serial string) error {
	if err := s.Note.requireStatus("edit serials of", StatusCreated); err != nil {
		return err
	}
	li, err := s.line(skuID)
	if err != nil {
		return err
	}
	return AddSerial(ctx, li, s.Verifier, serial)
}

// EditSerial replaces old with next on the row of skuID.
func (s *Session) EditSerial(ctx context.Context, skuID int64, old, next string) error {
	if err := s.Note.requireStatus("edit serials of", StatusCreated); err != nil {
		return err
	}
	li, err := s.line(skuID)
	if err != nil {
		return err
	}
	return EditSerial(ctx, li, s.Verifier, old, next)
}

// RemoveSerial drops serial from the row of skuID.
func (s *Session) RemoveSerial(skuID int64, serial string) error {
	return s.receiving(skuID, func(li *LineItem) error { return RemoveSerial(li, serial) })
}

// DefaultSplit returns the split a review of skuID starts from.
func (s *Session) DefaultSplit(skuID int64) (QCSplit, error) {
	li, err := s.line(skuID)
	if err != nil {
		return nil, err
	}
	return DefaultSplit(li)
}

// Review applies and confirms the QC split of skuID.
func (s *Session) Review(skuID int64, split QCSplit, reason string) error {
	if err := s.Note.requireStatus("review QC of", StatusQCPending); err != nil {
		return err
	}
	li, err := s.line(skuID)
	if err != nil {
		return err
	}
	if err := ConfirmReview(li, split, reason); err != nil {
		return err
	}
	s.Note.Refresh()
	return nil
}

// InitiateQC moves the note to qc_pending.
func (s *Session) InitiateQC() error { return s.Note.InitiateQC() }

// SubmitQC runs the QC submission gate.
func (s *Session) SubmitQC() error { return SubmitQC(s.Note) }

// Complete moves the note to completed.
func (s *Session) Complete() error { return s.Note.Complete() }

// Cancel moves the note to cancelled.
func (s *Session) Cancel() error { return s.Note.Cancel() }
