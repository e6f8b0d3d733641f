package grn

import "github.com/shopspring/decimal"

// Totals are the derived aggregates of a GRN.
type Totals struct {
	ReceivedQty    int64
	AcceptedQty    int64
	RejectedQty    int64
	ReceivedAmount decimal.Decimal
	AcceptedAmount decimal.Decimal
	RejectedAmount decimal.Decimal
}

// RecomputeAggregates derives the GRN totals from its line items.
func RecomputeAggregates(lines []*LineItem) Totals {
	t := Totals{
		ReceivedAmount: decimal.Zero,
		AcceptedAmount: decimal.Zero,
		RejectedAmount: decimal.Zero,
	}
	for _, li := range lines {
		accepted := li.Accepted()
		rejected := li.Rejected()
		t.ReceivedQty += li.ReceivedQty
		t.AcceptedQty += accepted
		t.RejectedQty += rejected
		t.ReceivedAmount = t.ReceivedAmount.Add(li.UnitPrice.Mul(decimal.NewFromInt(li.ReceivedQty)))
		t.AcceptedAmount = t.AcceptedAmount.Add(li.UnitPrice.Mul(decimal.NewFromInt(accepted)))
		t.RejectedAmount = t.RejectedAmount.Add(li.UnitPrice.Mul(decimal.NewFromInt(rejected)))
	}
	return t
}
