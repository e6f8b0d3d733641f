package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/receiving/internal/platform/db"
	"github.com/odyssey-erp/receiving/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ClaimKey(ctx context.Context, key, module string) error
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	InsertTransactionLine(ctx context.Context, line TransactionLine) error
	GetBalanceForUpdate(ctx context.Context, nodeID, skuID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertCardEntry(ctx context.Context, card StockCardEntry, nodeID, skuID int64, txID int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) ClaimKey(ctx context.Context, key, module string) error {
	return shared.NewIdempotencyStore(t.tx).CheckAndInsert(ctx, key, module)
}

func (t *txRepo) InsertTransaction(ctx context.Context, in Transaction) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO inventory_tx (code, tx_type, node_id, ref_module, ref_id, note, posted_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		in.Code, string(in.Type), in.NodeID, in.RefModule, in.RefID, in.Note, in.PostedAt, in.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertTransactionLine(ctx context.Context, line TransactionLine) error {
	var expiry *time.Time
	if !line.ExpiryDate.IsZero() {
		expiry = &line.ExpiryDate
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_tx_lines (tx_id, sku_id, qty, unit_cost, batch_code, expiry_date, serial_number, quarantine)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8)`,
		line.TransactionID, line.SKUID, line.Qty, line.UnitCost, line.BatchCode, expiry, line.Serial, line.Quarantine)
	return err
}

func (t *txRepo) GetBalanceForUpdate(ctx context.Context, nodeID, skuID int64) (Balance, error) {
	b := Balance{NodeID: nodeID, SKUID: skuID}
	err := t.tx.QueryRow(ctx, `SELECT qty, quarantine_qty, avg_cost, updated_at FROM inventory_balances
WHERE node_id = $1 AND sku_id = $2 FOR UPDATE`, nodeID, skuID).Scan(&b.Qty, &b.QuarantineQty, &b.AvgCost, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{NodeID: nodeID, SKUID: skuID, AvgCost: decimal.Zero}, ErrBalanceNotFound
	}
	return b, err
}

func (t *txRepo) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_balances (node_id, sku_id, qty, quarantine_qty, avg_cost, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (node_id, sku_id) DO UPDATE SET qty = EXCLUDED.qty, quarantine_qty = EXCLUDED.quarantine_qty,
	avg_cost = EXCLUDED.avg_cost, updated_at = EXCLUDED.updated_at`,
		b.NodeID, b.SKUID, b.Qty, b.QuarantineQty, b.AvgCost, b.UpdatedAt)
	return err
}

func (t *txRepo) InsertCardEntry(ctx context.Context, card StockCardEntry, nodeID, skuID int64, txID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_cards (node_id, sku_id, tx_id, tx_code, tx_type, posted_at, qty_in, balance_qty, quarantine_qty, unit_cost, balance_cost, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		nodeID, skuID, txID, card.TxCode, string(card.TxType), card.PostedAt, card.QtyIn, card.BalanceQty, card.QuarantineQty, card.UnitCost, card.BalanceCost, card.Note)
	return err
}
