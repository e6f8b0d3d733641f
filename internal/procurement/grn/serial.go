package grn

import (
	"context"
	"slices"
	"strings"
)

// Verifier checks that a serial does not already exist elsewhere for a SKU.
// It is the only way a serial enters a Serial Ledger.
type Verifier interface {
	VerifySerial(ctx context.Context, skuID int64, serial string) error
}

// VerifierFunc adapts a function into a Verifier.
type VerifierFunc func(ctx context.Context, skuID int64, serial string) error

// VerifySerial calls f.
func (f VerifierFunc) VerifySerial(ctx context.Context, skuID int64, serial string) error {
	return f(ctx, skuID, serial)
}

func serialized(li *LineItem) (*Serialized, error) {
	s, ok := li.Tracking.(*Serialized)
	if !ok {
		return nil, newError(KindIllegalTransition, li.SKUCode, "SKU %s is not serial tracked", li.SKUCode)
	}
	return s, nil
}

func (li *LineItem) beginVerify() error {
	if li.verifying {
		return newError(KindVerificationInFlight, li.SKUCode, "a serial verification is already pending for SKU %s", li.SKUCode)
	}
	li.verifying = true
	return nil
}

func (li *LineItem) endVerify() { li.verifying = false }

func verify(ctx context.Context, li *LineItem, v Verifier, serial string) error {
	if v == nil {
		return newError(KindVerificationFailed, li.SKUCode, "serial verification is not configured")
	}
	if err := li.beginVerify(); err != nil {
		return err
	}
	defer li.endVerify()
	if err := v.VerifySerial(ctx, li.SKUID, serial); err != nil {
		if e, ok := AsError(err); ok && e.Kind == KindVerificationInFlight {
			return e
		}
		return &Error{Kind: KindVerificationFailed, SKU: li.SKUCode, Message: err.Error(), Err: err}
	}
	return nil
}

// AddSerial verifies serial remotely and admits it into the received set.
// Local checks run before the verification call.
func AddSerial(ctx context.Context, li *LineItem, v Verifier, serial string) error {
	ledger, err := serialized(li)
	if err != nil {
		return err
	}
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return newError(KindInvalidSerial, li.SKUCode, "serial number is required for SKU %s", li.SKUCode)
	}
	if slices.Contains(ledger.Received, serial) {
		return newError(KindDuplicateSerial, li.SKUCode, "serial %s is already recorded for SKU %s", serial, li.SKUCode)
	}
	if int64(len(ledger.Received)) >= li.ReceivedQty {
		return newError(KindCountMismatch, li.SKUCode, "SKU %s already has %d serials for a received qty of %d", li.SKUCode, len(ledger.Received), li.ReceivedQty)
	}
	if err := verify(ctx, li, v, serial); err != nil {
		return err
	}
	ledger.Received = append(ledger.Received, serial)
	return nil
}

// EditSerial replaces old with next after verifying next.
func EditSerial(ctx context.Context, li *LineItem, v Verifier, old, next string) error {
	ledger, err := serialized(li)
	if err != nil {
		return err
	}
	old = strings.TrimSpace(old)
	next = strings.TrimSpace(next)
	idx := slices.Index(ledger.Received, old)
	if idx < 0 {
		return newError(KindInvalidSerial, li.SKUCode, "serial %s is not recorded for SKU %s", old, li.SKUCode)
	}
	if next == "" {
		return newError(KindInvalidSerial, li.SKUCode, "serial number is required for SKU %s", li.SKUCode)
	}
	if next == old {
		return nil
	}
	if slices.Contains(ledger.Received, next) {
		return newError(KindDuplicateSerial, li.SKUCode, "serial %s is already recorded for SKU %s", next, li.SKUCode)
	}
	if err := verify(ctx, li, v, next); err != nil {
		return err
	}
	ledger.Received[idx] = next
	return nil
}

// RemoveSerial drops serial from the received set.
func RemoveSerial(li *LineItem, serial string) error {
	ledger, err := serialized(li)
	if err != nil {
		return err
	}
	serial = strings.TrimSpace(serial)
	idx := slices.Index(ledger.Received, serial)
	if idx < 0 {
		return newError(KindInvalidSerial, li.SKUCode, "serial %s is not recorded for SKU %s", serial, li.SKUCode)
	}
	ledger.Received = slices.Delete(ledger.Received, idx, idx+1)
	return nil
}

// ValidateSerials checks the serial count against the received quantity.
func ValidateSerials(li *LineItem) error {
	ledger, err := serialized(li)
	if err != nil {
		return err
	}
	if int64(len(ledger.Received)) != li.ReceivedQty {
		return newError(KindCountMismatch, li.SKUCode, "Serial count (%d) must match received qty (%d) for SKU %s", len(ledger.Received), li.ReceivedQty, li.SKUCode)
	}
	return nil
}

// DefaultSerialAcceptance returns the accepted set to seed a review with:
// every received serial on first review, the prior accepted set afterwards.
func DefaultSerialAcceptance(li *LineItem) ([]string, error) {
	ledger, err := serialized(li)
	if err != nil {
		return nil, err
	}
	if li.QC == nil {
		return append([]string(nil), ledger.Received...), nil
	}
	return append([]string(nil), ledger.Accepted...), nil
}

// ApplySerialQC partitions the received set into accepted and its complement.
func ApplySerialQC(li *LineItem, accepted []string) error {
	ledger, err := serialized(li)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(accepted))
	for _, serial := range accepted {
		serial = strings.TrimSpace(serial)
		if !slices.Contains(ledger.Received, serial) {
			return newError(KindOverAcceptance, li.SKUCode, "serial %s was not received for SKU %s", serial, li.SKUCode)
		}
		keep[serial] = struct{}{}
	}
	acc := make([]string, 0, len(keep))
	rej := make([]string, 0, len(ledger.Received)-len(keep))
	for _, serial := range ledger.Received {
		if _, ok := keep[serial]; ok {
			acc = append(acc, serial)
		} else {
			rej = append(rej, serial)
		}
	}
	ledger.Accepted = acc
	ledger.Rejected = rej
	li.QC = &QCResult{AcceptedQty: int64(len(acc)), RejectedQty: int64(len(rej)), Reason: li.Reason()}
	return nil
}

func checkSerialPartition(li *LineItem, ledger *Serialized) error {
	seen := make(map[string]int, len(ledger.Received))
	for _, s := range ledger.Accepted {
		seen[s]++
	}
	for _, s := range ledger.Rejected {
		seen[s]++
	}
	if len(seen) != len(ledger.Received) || len(ledger.Accepted)+len(ledger.Rejected) != len(ledger.Received) {
		return newError(KindQuantityMismatch, li.SKUCode, "accepted and rejected serials must partition the received serials for SKU %s", li.SKUCode)
	}
	for _, s := range ledger.Received {
		if seen[s] != 1 {
			return newError(KindQuantityMismatch, li.SKUCode, "serial %s must be either accepted or rejected for SKU %s", s, li.SKUCode)
		}
	}
	if int64(len(ledger.Accepted)) != li.QC.AcceptedQty || int64(len(ledger.Rejected)) != li.QC.RejectedQty {
		return newError(KindQuantityMismatch, li.SKUCode, "serial QC totals do not match line quantities for SKU %s", li.SKUCode)
	}
	return nil
}
