package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/receiving/internal/platform/db"
	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockPurchaseOrder(ctx context.Context, poID int64) error
	ListNoteStatuses(ctx context.Context, poID int64) ([]grn.Status, error)
	CreateNote(ctx context.Context, note *grn.Note) (int64, error)
	UpdateNote(ctx context.Context, note *grn.Note, expectedVersion int64) error
	ReplaceLines(ctx context.Context, grnID int64, lines []*grn.LineItem) error
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const noteColumns = `id, number, po_id, vendor_id, node_id, invoice_number, invoice_date, received_date,
	invoice_document, status, qc_submitted, version`

const lineColumns = `id, sku_id, sku_code, unit_price, received_qty, accepted_qty, rejected_qty,
	rejection_reason, review_state, tracking_type, ledger`

// GetNote loads a GRN with its line items.
func (r *Repository) GetNote(ctx context.Context, id int64) (*grn.Note, error) {
	return getNote(ctx, r.pool, id)
}

func getNote(ctx context.Context, q queryer, id int64) (*grn.Note, error) {
	var (
		n           grn.Note
		invoiceDate *time.Time
		status      string
	)
	err := q.QueryRow(ctx, `SELECT `+noteColumns+` FROM goods_received_notes WHERE id = $1`, id).Scan(
		&n.ID, &n.Number, &n.POID, &n.VendorID, &n.NodeID, &n.InvoiceNumber, &invoiceDate, &n.ReceivedDate,
		&n.InvoiceDocument, &status, &n.QCSubmitted, &n.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	n.Status = grn.Status(status)
	if invoiceDate != nil {
		n.InvoiceDate = *invoiceDate
	}

	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM grn_line_items WHERE grn_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		li, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		n.Lines = append(n.Lines, li)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	n.Refresh()
	return &n, nil
}

func scanLine(row pgx.Row) (*grn.LineItem, error) {
	var (
		li          grn.LineItem
		accepted    *int64
		rejected    *int64
		reason      string
		review      string
		mode        string
		ledgerBytes []byte
	)
	if err := row.Scan(&li.ID, &li.SKUID, &li.SKUCode, &li.UnitPrice, &li.ReceivedQty, &accepted, &rejected,
		&reason, &review, &mode, &ledgerBytes); err != nil {
		return nil, err
	}
	tracking, err := decodeLedger(grn.TrackingType(mode), ledgerBytes)
	if err != nil {
		return nil, err
	}
	li.Tracking = tracking
	li.Review = grn.ReviewState(review)
	if li.Review == "" {
		li.Review = grn.ReviewNotReviewed
	}
	if accepted != nil && rejected != nil {
		li.QC = &grn.QCResult{AcceptedQty: *accepted, RejectedQty: *rejected, Reason: reason}
	}
	return &li, nil
}

// GetPurchaseOrder loads the PO header.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := r.pool.QueryRow(ctx, `SELECT id, number, vendor_id, node_id FROM purchase_orders WHERE id = $1`, id).
		Scan(&po.ID, &po.Number, &po.VendorID, &po.NodeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListReceivingLines returns the ordered SKUs of poID with the quantity still
// open after completed GRNs other than excludeGRN.
func (r *Repository) ListReceivingLines(ctx context.Context, poID, excludeGRN int64) ([]SummaryLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.code, s.name, s.tracking_type, pol.ordered_qty, pol.unit_price,
	GREATEST(pol.ordered_qty - COALESCE((
		SELECT SUM(li.received_qty) FROM grn_line_items li
		JOIN goods_received_notes g ON g.id = li.grn_id
		WHERE g.po_id = pol.po_id AND li.sku_id = pol.sku_id AND g.status = 'completed' AND g.id <> $2
	), 0), 0) AS remaining_qty
FROM purchase_order_lines pol
JOIN product_skus s ON s.id = pol.sku_id
WHERE pol.po_id = $1
ORDER BY pol.id`, poID, excludeGRN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []SummaryLine
	for rows.Next() {
		var (
			l    SummaryLine
			mode string
		)
		if err := rows.Scan(&l.SKUID, &l.SKUCode, &l.Name, &mode, &l.OrderedQty, &l.UnitPrice, &l.RemainingQty); err != nil {
			return nil, err
		}
		l.TrackingType = grn.TrackingType(mode)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SerialInUse reports whether serial was received for skuID on any live GRN
// other than excludeGRN.
func (r *Repository) SerialInUse(ctx context.Context, skuID int64, serial string, excludeGRN int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM grn_line_items li
	JOIN goods_received_notes g ON g.id = li.grn_id
	WHERE li.sku_id = $1 AND li.grn_id <> $3 AND g.status <> 'cancelled'
		AND li.ledger -> 'received_serials' ? $2
)`, skuID, serial, excludeGRN).Scan(&exists)
	return exists, err
}

func (t *txRepo) LockPurchaseOrder(ctx context.Context, poID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM purchase_orders WHERE id = $1 FOR UPDATE`, poID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (t *txRepo) ListNoteStatuses(ctx context.Context, poID int64) ([]grn.Status, error) {
	rows, err := t.tx.Query(ctx, `SELECT status FROM goods_received_notes WHERE po_id = $1`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []grn.Status
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, grn.Status(s))
	}
	return out, rows.Err()
}

func (t *txRepo) CreateNote(ctx context.Context, n *grn.Note) (int64, error) {
	var invoiceDate *time.Time
	if !n.InvoiceDate.IsZero() {
		invoiceDate = &n.InvoiceDate
	}
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO goods_received_notes (number, po_id, vendor_id, node_id, invoice_number, invoice_date,
	received_date, invoice_document, status, qc_submitted, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, 1) RETURNING id`,
		n.Number, n.POID, n.VendorID, n.NodeID, n.InvoiceNumber, invoiceDate, n.ReceivedDate, n.InvoiceDocument, string(n.Status)).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateNote(ctx context.Context, n *grn.Note, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE goods_received_notes
SET status = $2, qc_submitted = $3, received_qty = $4, accepted_qty = $5, rejected_qty = $6,
	received_amount = $7, accepted_amount = $8, rejected_amount = $9, version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $10`,
		n.ID, string(n.Status), n.QCSubmitted, n.Totals.ReceivedQty, n.Totals.AcceptedQty, n.Totals.RejectedQty,
		n.Totals.ReceivedAmount, n.Totals.AcceptedAmount, n.Totals.RejectedAmount, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (t *txRepo) ReplaceLines(ctx context.Context, grnID int64, lines []*grn.LineItem) error {
	keep := make([]int64, 0, len(lines))
	for _, li := range lines {
		if li.ID != 0 {
			keep = append(keep, li.ID)
		}
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM grn_line_items WHERE grn_id = $1 AND NOT (id = ANY($2))`, grnID, keep); err != nil {
		return err
	}
	for _, li := range lines {
		ledger, err := encodeLedger(li.Tracking)
		if err != nil {
			return err
		}
		var accepted, rejected *int64
		var reason string
		if li.QC != nil {
			accepted, rejected, reason = &li.QC.AcceptedQty, &li.QC.RejectedQty, li.QC.Reason
		}
		if li.ID == 0 {
			err = t.tx.QueryRow(ctx, `INSERT INTO grn_line_items (grn_id, sku_id, sku_code, unit_price, received_qty, accepted_qty,
	rejected_qty, rejection_reason, review_state, tracking_type, ledger)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
				grnID, li.SKUID, li.SKUCode, li.UnitPrice, li.ReceivedQty, accepted, rejected, reason,
				string(li.Review), string(li.Mode()), ledger).Scan(&li.ID)
			if err != nil {
				return fmt.Errorf("procurement: insert line %s: %w", li.SKUCode, err)
			}
			continue
		}
		_, err = t.tx.Exec(ctx, `UPDATE grn_line_items
SET received_qty = $3, accepted_qty = $4, rejected_qty = $5, rejection_reason = $6, review_state = $7,
	tracking_type = $8, ledger = $9, unit_price = $10
WHERE grn_id = $1 AND id = $2`,
			grnID, li.ID, li.ReceivedQty, accepted, rejected, reason, string(li.Review), string(li.Mode()), ledger, li.UnitPrice)
		if err != nil {
			return fmt.Errorf("procurement: update line %s: %w", li.SKUCode, err)
		}
	}
	return nil
}
