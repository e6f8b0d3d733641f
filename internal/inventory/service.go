package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/receiving/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// PostInbound posts an inbound movement (e.g. GRN). The RefID claims an
// idempotency key in the same transaction, so a retried post returns
// ErrAlreadyPosted instead of double counting.
func (s *Service) PostInbound(ctx context.Context, input InboundInput) (StockCardEntry, error) {
	if input.NodeID == 0 || input.SKUID == 0 {
		return StockCardEntry{}, errors.New("inventory: node and sku required")
	}
	if input.Qty <= 0 {
		return StockCardEntry{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return StockCardEntry{}, ErrInvalidUnitCost
	}
	if input.Serial != "" && input.Qty != 1 {
		return StockCardEntry{}, fmt.Errorf("inventory: serial %s must move exactly one unit", input.Serial)
	}
	if _, err := uuid.Parse(input.RefID); err != nil {
		return StockCardEntry{}, fmt.Errorf("inventory: invalid ref id: %w", err)
	}

	now := s.now().UTC()
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("INV-%d", now.UnixNano())
	}

	var card StockCardEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClaimKey(ctx, input.RefID, "inventory"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ErrAlreadyPosted
			}
			return err
		}
		balance, err := tx.GetBalanceForUpdate(ctx, input.NodeID, input.SKUID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{NodeID: input.NodeID, SKUID: input.SKUID}
		}
		applyInbound(&balance, input)
		balance.UpdatedAt = now

		txID, err := tx.InsertTransaction(ctx, Transaction{
			Code:      code,
			Type:      TransactionTypeIn,
			NodeID:    input.NodeID,
			RefModule: input.RefModule,
			RefID:     input.RefID,
			Note:      input.Note,
			PostedAt:  now,
			CreatedBy: input.Actor,
		})
		if err != nil {
			return err
		}
		line := TransactionLine{
			TransactionID: txID,
			SKUID:         input.SKUID,
			Qty:           input.Qty,
			UnitCost:      input.UnitCost,
			BatchCode:     input.BatchCode,
			ExpiryDate:    input.ExpiryDate,
			Serial:        input.Serial,
			Quarantine:    input.Quarantine,
		}
		if err := tx.InsertTransactionLine(ctx, line); err != nil {
			return err
		}
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}
		card = StockCardEntry{
			TxCode:        code,
			TxType:        TransactionTypeIn,
			PostedAt:      now,
			QtyIn:         input.Qty,
			BalanceQty:    balance.Qty,
			QuarantineQty: balance.QuarantineQty,
			UnitCost:      input.UnitCost,
			BalanceCost:   balance.AvgCost,
			Note:          input.Note,
		}
		return tx.InsertCardEntry(ctx, card, input.NodeID, input.SKUID, txID)
	})
	if err != nil {
		return StockCardEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    input.Actor,
			Action:   fmt.Sprintf("inventory:%s", TransactionTypeIn),
			Entity:   "inventory_tx",
			EntityID: input.RefID,
			Meta: map[string]any{
				"node_id":    input.NodeID,
				"sku_id":     input.SKUID,
				"qty":        input.Qty,
				"quarantine": input.Quarantine,
				"note":       input.Note,
			},
		})
	}
	return card, nil
}

// applyInbound adds input to balance. Quarantined stock is tracked apart and
// does not move the average cost of available stock.
func applyInbound(balance *Balance, input InboundInput) {
	if input.Quarantine {
		balance.QuarantineQty += input.Qty
		return
	}
	newQty := balance.Qty + input.Qty
	total := balance.AvgCost.Mul(decimal.NewFromInt(balance.Qty)).Add(input.UnitCost.Mul(decimal.NewFromInt(input.Qty)))
	balance.AvgCost = total.Div(decimal.NewFromInt(newQty)).Round(4)
	balance.Qty = newQty
}
