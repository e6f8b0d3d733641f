package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TransactionTypeIn represents an inbound movement.
	TransactionTypeIn TransactionType = "IN"
)

// Transaction models the header of inventory transaction.
type Transaction struct {
	ID        int64
	Code      string
	Type      TransactionType
	NodeID    int64
	RefModule string
	RefID     string
	Note      string
	PostedAt  time.Time
	CreatedBy string
}

// TransactionLine models one stock movement. Batch and serial identify the
// physical units; quarantined lines hold rejected stock.
type TransactionLine struct {
	ID            int64
	TransactionID int64
	SKUID         int64
	Qty           int64
	UnitCost      decimal.Decimal
	BatchCode     string
	ExpiryDate    time.Time
	Serial        string
	Quarantine    bool
}

// Balance summarises stock at a node per SKU.
type Balance struct {
	NodeID        int64
	SKUID         int64
	Qty           int64
	QuarantineQty int64
	AvgCost       decimal.Decimal
	UpdatedAt     time.Time
}

// StockCardEntry describes inventory card entry for reports.
type StockCardEntry struct {
	TxCode        string
	TxType        TransactionType
	PostedAt      time.Time
	QtyIn         int64
	BalanceQty    int64
	QuarantineQty int64
	UnitCost      decimal.Decimal
	BalanceCost   decimal.Decimal
	Note          string
}

// InboundInput is used for GRN posting.
type InboundInput struct {
	Code       string
	NodeID     int64
	SKUID      int64
	Qty        int64
	UnitCost   decimal.Decimal
	BatchCode  string
	ExpiryDate time.Time
	Serial     string
	Quarantine bool
	Note       string
	Actor      string
	RefModule  string
	RefID      string
}

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitCost indicates invalid cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrAlreadyPosted indicates the movement with this reference was posted before.
var ErrAlreadyPosted = errors.New("inventory: movement already posted")

// ErrBalanceNotFound indicates missing balance row.
var ErrBalanceNotFound = errors.New("inventory balance not found")
