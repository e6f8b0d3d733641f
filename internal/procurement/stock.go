package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/receiving/internal/inventory"
	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

// ErrNotCompleted indicates stock posting was requested for an open GRN.
var ErrNotCompleted = errors.New("procurement: goods receive note is not completed")

// StockPostResult counts the movements of one stock posting run.
type StockPostResult struct {
	Posted      int
	Quarantined int
	Skipped     int
}

// PostStock posts the accepted units of a completed GRN as available stock
// and its rejected units as quarantined stock. Movements already posted by a
// previous run are skipped.
func (s *Service) PostStock(ctx context.Context, grnID int64) (StockPostResult, error) {
	if s.inventory == nil {
		return StockPostResult{}, errors.New("inventory integration not configured")
	}
	note, err := s.repo.GetNote(ctx, grnID)
	if err != nil {
		return StockPostResult{}, err
	}
	if note.Status != grn.StatusCompleted {
		return StockPostResult{}, fmt.Errorf("%w: %d is %s", ErrNotCompleted, note.ID, note.Status)
	}
	var result StockPostResult
	for _, input := range stockMovements(note) {
		_, err := s.inventory.PostInbound(ctx, input)
		switch {
		case errors.Is(err, inventory.ErrAlreadyPosted):
			result.Skipped++
		case err != nil:
			return result, fmt.Errorf("procurement: post stock %s: %w", input.Code, err)
		case input.Quarantine:
			result.Quarantined++
		default:
			result.Posted++
		}
	}
	s.recordAudit(ctx, "grn.stock.post", note.ID, map[string]any{
		"posted":      result.Posted,
		"quarantined": result.Quarantined,
		"skipped":     result.Skipped,
	})
	return result, nil
}

// stockMovements expands a completed GRN into one inbound movement per
// accepted or rejected quantity, batch or serial.
func stockMovements(n *grn.Note) []inventory.InboundInput {
	var out []inventory.InboundInput
	add := func(li *grn.LineItem, qty int64, quarantine bool, batch grn.Batch, serial string) {
		if qty <= 0 {
			return
		}
		disposition := "accepted"
		if quarantine {
			disposition = "rejected"
		}
		unit := batch.Code + serial
		ref := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("GRN:%d:%d:%s:%s", n.ID, li.SKUID, disposition, unit)))
		note := fmt.Sprintf("GRN %s", n.Number)
		if quarantine {
			note = fmt.Sprintf("GRN %s rejected: %s", n.Number, li.Reason())
		}
		out = append(out, inventory.InboundInput{
			Code:       fmt.Sprintf("GRN-%s-%d-%d", n.Number, li.SKUID, len(out)+1),
			NodeID:     n.NodeID,
			SKUID:      li.SKUID,
			Qty:        qty,
			UnitCost:   li.UnitPrice,
			BatchCode:  batch.Code,
			ExpiryDate: batch.ExpiryDate,
			Serial:     serial,
			Quarantine: quarantine,
			Note:       note,
			Actor:      "system",
			RefModule:  "PROCUREMENT",
			RefID:      ref.String(),
		})
	}
	for _, li := range n.Lines {
		switch ledger := li.Tracking.(type) {
		case *grn.Untracked:
			add(li, li.Accepted(), false, grn.Batch{}, "")
			add(li, li.Rejected(), true, grn.Batch{}, "")
		case *grn.Batched:
			for _, b := range ledger.Accepted {
				add(li, b.Quantity, false, b, "")
			}
			for _, b := range ledger.Rejected {
				add(li, b.Quantity, true, b, "")
			}
		case *grn.Serialized:
			for _, serial := range ledger.Accepted {
				add(li, 1, false, grn.Batch{}, serial)
			}
			for _, serial := range ledger.Rejected {
				add(li, 1, true, grn.Batch{}, serial)
			}
		}
	}
	return out
}
