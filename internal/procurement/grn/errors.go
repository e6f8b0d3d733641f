package grn

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies reconciliation failures.
type Kind string

const (
	KindInvalidQuantity      Kind = "invalid_quantity"
	KindQuantityMismatch     Kind = "quantity_mismatch"
	KindCountMismatch        Kind = "count_mismatch"
	KindOverAcceptance       Kind = "over_acceptance"
	KindOverReceipt          Kind = "over_receipt"
	KindDuplicateSerial      Kind = "duplicate_serial"
	KindVerificationFailed   Kind = "verification_failed"
	KindVerificationInFlight Kind = "verification_in_flight"
	KindInvalidReason        Kind = "invalid_reason"
	KindInvalidBatch         Kind = "invalid_batch"
	KindInvalidSerial        Kind = "invalid_serial"
	KindUnknownSKU           Kind = "unknown_sku"
	KindQcIncomplete         Kind = "qc_incomplete"
	KindIllegalTransition    Kind = "illegal_transition"
)

// Error is returned by every engine operation. SKU names the offending row
// so the caller can highlight it.
type Error struct {
	Kind    Kind
	SKU     string
	Message string
	// SKUs and Issues are only populated for aggregated QcIncomplete errors.
	SKUs   []string
	Issues []*Error
	Err    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.SKU != "" {
		return fmt.Sprintf("grn: %s for SKU %s", e.Kind, e.SKU)
	}
	return "grn: " + string(e.Kind)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrInvalidReason)
// works regardless of SKU or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Unwrap exposes the per-row issues of an aggregated error and the remote
// cause of a verification failure.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, len(e.Issues)+1)
	for _, issue := range e.Issues {
		out = append(out, issue)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidQuantity      = &Error{Kind: KindInvalidQuantity}
	ErrQuantityMismatch     = &Error{Kind: KindQuantityMismatch}
	ErrCountMismatch        = &Error{Kind: KindCountMismatch}
	ErrOverAcceptance       = &Error{Kind: KindOverAcceptance}
	ErrOverReceipt          = &Error{Kind: KindOverReceipt}
	ErrDuplicateSerial      = &Error{Kind: KindDuplicateSerial}
	ErrVerificationFailed   = &Error{Kind: KindVerificationFailed}
	ErrVerificationInFlight = &Error{Kind: KindVerificationInFlight}
	ErrInvalidReason        = &Error{Kind: KindInvalidReason}
	ErrInvalidBatch         = &Error{Kind: KindInvalidBatch}
	ErrInvalidSerial        = &Error{Kind: KindInvalidSerial}
	ErrUnknownSKU           = &Error{Kind: KindUnknownSKU}
	ErrQcIncomplete         = &Error{Kind: KindQcIncomplete}
	ErrIllegalTransition    = &Error{Kind: KindIllegalTransition}
)

// ErrUnknownTracking indicates a Tracking value outside the three known modes.
var ErrUnknownTracking = errors.New("grn: unknown tracking mode")

func newError(kind Kind, sku string, format string, args ...any) *Error {
	return &Error{Kind: kind, SKU: sku, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts the engine error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func incompleteError(issues []*Error) *Error {
	skus := make([]string, 0, len(issues))
	for _, issue := range issues {
		skus = append(skus, issue.SKU)
	}
	return &Error{
		Kind:    KindQcIncomplete,
		Message: fmt.Sprintf("QC is incomplete for SKU %s", strings.Join(skus, ", ")),
		SKUs:    skus,
		Issues:  issues,
	}
}
