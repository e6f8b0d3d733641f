package grn

import (
	"strings"
)

func batched(li *LineItem) (*Batched, error) {
	b, ok := li.Tracking.(*Batched)
	if !ok {
		return nil, newError(KindIllegalTransition, li.SKUCode, "SKU %s is not batch tracked", li.SKUCode)
	}
	return b, nil
}

func checkBatch(sku string, b Batch) (Batch, error) {
	b.Code = strings.TrimSpace(b.Code)
	if b.Code == "" {
		return b, newError(KindInvalidBatch, sku, "batch code is required for SKU %s", sku)
	}
	if b.Quantity <= 0 {
		return b, newError(KindInvalidQuantity, sku, "batch %s quantity must be greater than 0 for SKU %s", b.Code, sku)
	}
	if !b.ManufactureDate.IsZero() && !b.ExpiryDate.IsZero() && b.ManufactureDate.After(b.ExpiryDate) {
		return b, newError(KindInvalidBatch, sku, "batch %s expires before it was manufactured for SKU %s", b.Code, sku)
	}
	return b, nil
}

// AddBatch appends a received batch. Duplicate codes are permitted.
func AddBatch(li *LineItem, b Batch) error {
	ledger, err := batched(li)
	if err != nil {
		return err
	}
	b, err = checkBatch(li.SKUCode, b)
	if err != nil {
		return err
	}
	ledger.Received = append(ledger.Received, b)
	return nil
}

// UpdateBatch replaces the received batch at index.
func UpdateBatch(li *LineItem, index int, b Batch) error {
	ledger, err := batched(li)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ledger.Received) {
		return newError(KindInvalidBatch, li.SKUCode, "batch %d does not exist for SKU %s", index, li.SKUCode)
	}
	b, err = checkBatch(li.SKUCode, b)
	if err != nil {
		return err
	}
	ledger.Received[index] = b
	return nil
}

// RemoveBatch drops the received batch at index.
func RemoveBatch(li *LineItem, index int) error {
	ledger, err := batched(li)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ledger.Received) {
		return newError(KindInvalidBatch, li.SKUCode, "batch %d does not exist for SKU %s", index, li.SKUCode)
	}
	ledger.Received = append(ledger.Received[:index], ledger.Received[index+1:]...)
	return nil
}

// ValidateBatches checks every received batch and that their total matches
// the received quantity.
func ValidateBatches(li *LineItem) error {
	ledger, err := batched(li)
	if err != nil {
		return err
	}
	var total int64
	for _, b := range ledger.Received {
		if _, err := checkBatch(li.SKUCode, b); err != nil {
			return err
		}
		total += b.Quantity
	}
	if total != li.ReceivedQty {
		return newError(KindQuantityMismatch, li.SKUCode, "Batch total (%d) must match received qty (%d) for SKU %s", total, li.ReceivedQty, li.SKUCode)
	}
	return nil
}

// DefaultBatchAcceptance returns the accepted quantity to seed per received
// batch. First review accepts everything; later reviews redistribute the
// previously accepted total of each code over its batches in order.
func DefaultBatchAcceptance(li *LineItem) ([]int64, error) {
	ledger, err := batched(li)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(ledger.Received))
	if li.QC == nil {
		for i, b := range ledger.Received {
			out[i] = b.Quantity
		}
		return out, nil
	}
	return spreadByCode(ledger.Received, batchTotalsByCode(ledger.Accepted)), nil
}

// BatchSplitFromCodes converts accepted quantities given per batch code into
// a BatchSplit over the received batches, filling same-code batches in order.
func BatchSplitFromCodes(li *LineItem, accepted []Batch) (BatchSplit, error) {
	ledger, err := batched(li)
	if err != nil {
		return BatchSplit{}, err
	}
	received := batchTotalsByCode(ledger.Received)
	totals := make(map[string]int64, len(accepted))
	for _, b := range accepted {
		code := strings.TrimSpace(b.Code)
		if b.Quantity < 0 {
			return BatchSplit{}, newError(KindInvalidQuantity, li.SKUCode, "accepted quantity for batch %s must not be negative for SKU %s", code, li.SKUCode)
		}
		if _, ok := received[code]; !ok {
			return BatchSplit{}, newError(KindOverAcceptance, li.SKUCode, "batch %s was not received for SKU %s", code, li.SKUCode)
		}
		totals[code] += b.Quantity
	}
	for code, qty := range totals {
		if qty > received[code] {
			return BatchSplit{}, newError(KindOverAcceptance, li.SKUCode, "accepted quantity (%d) exceeds received quantity (%d) of batch %s for SKU %s", qty, received[code], code, li.SKUCode)
		}
	}
	return BatchSplit{Accepted: spreadByCode(ledger.Received, totals)}, nil
}

func spreadByCode(received []Batch, totals map[string]int64) []int64 {
	out := make([]int64, len(received))
	for i, b := range received {
		take := min(b.Quantity, totals[b.Code])
		out[i] = take
		totals[b.Code] -= take
	}
	return out
}

// ApplyBatchQC splits each received batch into accepted and rejected parts.
// accepted holds one value per received batch, aligned by index.
func ApplyBatchQC(li *LineItem, accepted []int64) error {
	ledger, err := batched(li)
	if err != nil {
		return err
	}
	if len(accepted) != len(ledger.Received) {
		return newError(KindInvalidQuantity, li.SKUCode, "expected %d batch quantities, got %d for SKU %s", len(ledger.Received), len(accepted), li.SKUCode)
	}
	acc := newCodeTotals()
	rej := newCodeTotals()
	var acceptedTotal, rejectedTotal int64
	for i, b := range ledger.Received {
		qty := accepted[i]
		if qty < 0 {
			return newError(KindInvalidQuantity, li.SKUCode, "accepted quantity for batch %s must not be negative for SKU %s", b.Code, li.SKUCode)
		}
		if qty > b.Quantity {
			return newError(KindOverAcceptance, li.SKUCode, "accepted quantity (%d) exceeds received quantity (%d) of batch %s for SKU %s", qty, b.Quantity, b.Code, li.SKUCode)
		}
		acc.add(b, qty)
		rej.add(b, b.Quantity-qty)
		acceptedTotal += qty
		rejectedTotal += b.Quantity - qty
	}
	ledger.Accepted = acc.batches()
	ledger.Rejected = rej.batches()
	reason := li.Reason()
	li.QC = &QCResult{AcceptedQty: acceptedTotal, RejectedQty: rejectedTotal, Reason: reason}
	return nil
}

// codeTotals aggregates quantities by batch code in first-appearance order.
type codeTotals struct {
	order []string
	byKey map[string]*Batch
}

func newCodeTotals() *codeTotals {
	return &codeTotals{byKey: map[string]*Batch{}}
}

func (c *codeTotals) add(b Batch, qty int64) {
	if qty <= 0 {
		return
	}
	if existing, ok := c.byKey[b.Code]; ok {
		existing.Quantity += qty
		return
	}
	c.order = append(c.order, b.Code)
	c.byKey[b.Code] = &Batch{Code: b.Code, Quantity: qty, ManufactureDate: b.ManufactureDate, ExpiryDate: b.ExpiryDate}
}

func (c *codeTotals) batches() []Batch {
	out := make([]Batch, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, *c.byKey[code])
	}
	return out
}

func batchTotalsByCode(batches []Batch) map[string]int64 {
	out := make(map[string]int64, len(batches))
	for _, b := range batches {
		out[b.Code] += b.Quantity
	}
	return out
}

func checkBatchConservation(li *LineItem, ledger *Batched) error {
	received := batchTotalsByCode(ledger.Received)
	accepted := batchTotalsByCode(ledger.Accepted)
	rejected := batchTotalsByCode(ledger.Rejected)
	var accSum, rejSum int64
	for code, qty := range accepted {
		accSum += qty
		if _, ok := received[code]; !ok {
			return newError(KindOverAcceptance, li.SKUCode, "batch %s was not received for SKU %s", code, li.SKUCode)
		}
	}
	for code, qty := range rejected {
		rejSum += qty
		if _, ok := received[code]; !ok {
			return newError(KindQuantityMismatch, li.SKUCode, "batch %s was not received for SKU %s", code, li.SKUCode)
		}
	}
	for code, qty := range received {
		if accepted[code]+rejected[code] != qty {
			return newError(KindQuantityMismatch, li.SKUCode, "accepted and rejected quantities of batch %s must add up to %d for SKU %s", code, qty, li.SKUCode)
		}
	}
	if accSum != li.QC.AcceptedQty || rejSum != li.QC.RejectedQty {
		return newError(KindQuantityMismatch, li.SKUCode, "batch QC totals do not match line quantities for SKU %s", li.SKUCode)
	}
	return nil
}
