package grn

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackingType is the granularity at which a SKU's units are accounted for.
type TrackingType string

const (
	TrackingUntracked TrackingType = "untracked"
	TrackingBatch     TrackingType = "batch"
	TrackingSerial    TrackingType = "serial"
)

// Valid reports whether t is one of the supported modes.
func (t TrackingType) Valid() bool {
	switch t {
	case TrackingUntracked, TrackingBatch, TrackingSerial:
		return true
	}
	return false
}

// SKUContext is the receiving summary of one SKU on a purchase order.
type SKUContext struct {
	SKUID        int64
	SKUCode      string
	Name         string
	Tracking     TrackingType
	RemainingQty int64
	OrderedQty   int64
	UnitPrice    decimal.Decimal
}

// Catalog is the read-only SKU context of one edit session.
type Catalog map[int64]SKUContext

// NewCatalog indexes summaries by SKU id.
func NewCatalog(items []SKUContext) Catalog {
	c := make(Catalog, len(items))
	for _, item := range items {
		c[item.SKUID] = item
	}
	return c
}

// Resolve returns the context of skuID.
func (c Catalog) Resolve(skuID int64) (SKUContext, error) {
	ctx, ok := c[skuID]
	if !ok {
		return SKUContext{}, newError(KindUnknownSKU, "", "SKU %d is not on the purchase order", skuID)
	}
	return ctx, nil
}

// Batch is a named group of identical units.
type Batch struct {
	Code            string
	Quantity        int64
	ManufactureDate time.Time
	ExpiryDate      time.Time
}

// Tracking carries the ledgers valid for exactly one tracking mode.
// The three implementations below are the only cases.
type Tracking interface {
	Mode() TrackingType
	clone() Tracking
}

// Untracked line items have no ledger.
type Untracked struct{}

// Batched line items carry batch ledgers. Accepted and Rejected are
// aggregated by batch code.
type Batched struct {
	Received []Batch
	Accepted []Batch
	Rejected []Batch
}

// Serialized line items carry a set of serials and its QC partition.
type Serialized struct {
	Received []string
	Accepted []string
	Rejected []string
}

func (*Untracked) Mode() TrackingType  { return TrackingUntracked }
func (*Batched) Mode() TrackingType    { return TrackingBatch }
func (*Serialized) Mode() TrackingType { return TrackingSerial }

func (*Untracked) clone() Tracking { return &Untracked{} }

func (b *Batched) clone() Tracking {
	return &Batched{
		Received: append([]Batch(nil), b.Received...),
		Accepted: append([]Batch(nil), b.Accepted...),
		Rejected: append([]Batch(nil), b.Rejected...),
	}
}

func (s *Serialized) clone() Tracking {
	return &Serialized{
		Received: append([]string(nil), s.Received...),
		Accepted: append([]string(nil), s.Accepted...),
		Rejected: append([]string(nil), s.Rejected...),
	}
}

// NewTracking returns an empty ledger for mode.
func NewTracking(mode TrackingType) (Tracking, error) {
	switch mode {
	case TrackingUntracked:
		return &Untracked{}, nil
	case TrackingBatch:
		return &Batched{}, nil
	case TrackingSerial:
		return &Serialized{}, nil
	}
	return nil, ErrUnknownTracking
}

// hasReceivedData reports whether the ledger holds receiving-side entries.
func hasReceivedData(t Tracking) bool {
	switch v := t.(type) {
	case *Batched:
		return len(v.Received) > 0
	case *Serialized:
		return len(v.Received) > 0
	}
	return false
}
