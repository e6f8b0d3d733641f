package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/receiving/internal/inventory"
	"github.com/odyssey-erp/receiving/internal/observability"
	"github.com/odyssey-erp/receiving/internal/procurement/grn"
	"github.com/odyssey-erp/receiving/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetNote(ctx context.Context, id int64) (*grn.Note, error)
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListReceivingLines(ctx context.Context, poID, excludeGRN int64) ([]SummaryLine, error)
	SerialInUse(ctx context.Context, skuID int64, serial string, excludeGRN int64) (bool, error)
}

// InventoryPort exposes required inventory integration.
type InventoryPort interface {
	PostInbound(ctx context.Context, input inventory.InboundInput) (inventory.StockCardEntry, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Dependencies groups the optional collaborators of Service. Nil members
// disable the matching side effect.
type Dependencies struct {
	Inventory InventoryPort
	Audit     AuditPort
	Reviews   *ReviewStore
	Locks     *SerialLock
	Events    EventPublisher
	Stock     StockPostEnqueuer
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Service orchestrates goods receiving flows on top of the grn engine.
type Service struct {
	repo      RepositoryPort
	inventory InventoryPort
	audit     AuditPort
	reviews   *ReviewStore
	locks     *SerialLock
	events    EventPublisher
	stock     StockPostEnqueuer
	metrics   *observability.Metrics
	logger    *slog.Logger
	summaries *summaryLoader
	now       func() time.Time
}

// NewService constructs the receiving service.
func NewService(repo RepositoryPort, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		inventory: deps.Inventory,
		audit:     deps.Audit,
		reviews:   deps.Reviews,
		locks:     deps.Locks,
		events:    deps.Events,
		stock:     deps.Stock,
		metrics:   deps.Metrics,
		logger:    logger,
		summaries: &summaryLoader{repo: repo},
		now:       time.Now,
	}
}

// CreateNote opens a GRN against a PO that has no other open GRN.
func (s *Service) CreateNote(ctx context.Context, input CreateNoteInput) (*grn.Note, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, input.POID)
	if err != nil {
		return nil, err
	}
	note := &grn.Note{
		Number:          defaultString(strings.TrimSpace(input.Number), generateNumber("GRN")),
		POID:            po.ID,
		VendorID:        po.VendorID,
		NodeID:          po.NodeID,
		InvoiceNumber:   input.InvoiceNumber,
		InvoiceDate:     input.InvoiceDate,
		ReceivedDate:    defaultTime(input.ReceivedDate, s.now),
		InvoiceDocument: input.InvoiceDocument,
		Status:          grn.StatusCreated,
		Version:         1,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPurchaseOrder(ctx, po.ID); err != nil {
			return err
		}
		statuses, err := tx.ListNoteStatuses(ctx, po.ID)
		if err != nil {
			return err
		}
		if err := grn.CheckCreate(statuses); err != nil {
			return err
		}
		id, err := tx.CreateNote(ctx, note)
		if err != nil {
			return err
		}
		note.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	note.Refresh()
	s.metrics.RecordTransition(string(grn.StatusCreated))
	s.recordAudit(ctx, "grn.create", note.ID, map[string]any{"number": note.Number, "po_id": note.POID})
	return note, nil
}

// GetNote returns the GRN with its line items.
func (s *Service) GetNote(ctx context.Context, id int64) (*grn.Note, error) {
	return s.repo.GetNote(ctx, id)
}

// ReceivingSummary returns the per-SKU receiving context of poID, excluding
// grnID's own receipts from the remaining quantity.
func (s *Service) ReceivingSummary(ctx context.Context, poID, grnID int64) (ReceivingSummary, error) {
	var summary ReceivingSummary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.repo.GetPurchaseOrder(ctx, poID)
		return err
	})
	g.Go(func() error {
		loaded, err := s.summaries.load(ctx, poID, grnID)
		if err != nil {
			return err
		}
		summary = loaded
		return nil
	})
	if err := g.Wait(); err != nil {
		return ReceivingSummary{}, err
	}
	return summary, nil
}

// SaveLineItems replaces the receiving-phase line items of a created GRN.
// Nothing is persisted unless every row passes the receiving gate.
func (s *Service) SaveLineItems(ctx context.Context, input SaveLineItemsInput) (*grn.Note, error) {
	session, err := s.receivingSession(ctx, input.GRNID)
	if err != nil {
		return nil, err
	}
	note := session.Note
	if err := checkVersion(note, input.Version); err != nil {
		return nil, err
	}
	expected := note.Version
	if err := session.SaveLineItems(ctx, input.Lines); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, note, expected, true); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "grn.line_items.save", note.ID, map[string]any{
		"lines":        len(note.Lines),
		"received_qty": note.Totals.ReceivedQty,
	})
	return note, nil
}

// VerifySerial checks that serial may be admitted to the SKU's ledger
// without changing the GRN.
func (s *Service) VerifySerial(ctx context.Context, grnID, skuID int64, serial string) error {
	session, err := s.receivingSession(ctx, grnID)
	if err != nil {
		return err
	}
	sku, err := session.Catalog.Resolve(skuID)
	if err != nil {
		return err
	}
	if sku.Tracking != grn.TrackingSerial {
		return &grn.Error{Kind: grn.KindInvalidSerial, SKU: sku.SKUCode, Message: fmt.Sprintf("SKU %s is not serial tracked", sku.SKUCode)}
	}
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return &grn.Error{Kind: grn.KindInvalidSerial, SKU: sku.SKUCode, Message: fmt.Sprintf("serial number is required for SKU %s", sku.SKUCode)}
	}
	if li, ok := session.Note.LineBySKU(skuID); ok {
		if ledger, ok := li.Tracking.(*grn.Serialized); ok && slices.Contains(ledger.Received, serial) {
			return &grn.Error{Kind: grn.KindDuplicateSerial, SKU: sku.SKUCode, Message: fmt.Sprintf("serial %s is already recorded for SKU %s", serial, sku.SKUCode)}
		}
	}
	if err := session.Verifier.VerifySerial(ctx, skuID, serial); err != nil {
		var ge *grn.Error
		if errors.As(err, &ge) {
			return err
		}
		return &grn.Error{Kind: grn.KindVerificationFailed, SKU: sku.SKUCode, Message: err.Error(), Err: err}
	}
	return nil
}

// ReviewLine runs the explicit review step of one row and keeps the result
// as a draft until QC is submitted.
func (s *Service) ReviewLine(ctx context.Context, input ReviewInput) (*grn.LineItem, error) {
	note, err := s.repo.GetNote(ctx, input.GRNID)
	if err != nil {
		return nil, err
	}
	session := grn.NewSession(note, nil, nil)
	li, err := applyRow(session, input.Row, true)
	if err != nil {
		return nil, err
	}
	row := input.Row
	row.SKUID = li.SKUID
	switch ledger := li.Tracking.(type) {
	case *grn.Batched:
		row.AcceptedBatches = append([]grn.Batch{}, ledger.Accepted...)
	case *grn.Serialized:
		row.AcceptedSerials = append([]string{}, ledger.Accepted...)
	}
	if err := s.reviews.Save(ctx, note.ID, row); err != nil {
		return nil, fmt.Errorf("procurement: save review: %w", err)
	}
	return li, nil
}

// SubmitQC merges saved reviews with the submitted rows, runs the QC
// submission gate and persists the results. Submitted rows win over drafts.
func (s *Service) SubmitQC(ctx context.Context, input SubmitQCInput) (*grn.Note, error) {
	var (
		note   *grn.Note
		drafts []QCRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := s.repo.GetNote(gctx, input.GRNID)
		note = loaded
		return err
	})
	g.Go(func() error {
		loaded, err := s.reviews.Load(gctx, input.GRNID)
		drafts = loaded
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := checkVersion(note, input.Version); err != nil {
		return nil, err
	}
	expected := note.Version
	session := grn.NewSession(note, nil, nil)

	submitted := make(map[int64]struct{}, len(input.Rows))
	for _, row := range input.Rows {
		li, err := rowLine(note, row)
		if err != nil {
			return nil, err
		}
		if describesReview(li, row) {
			submitted[li.SKUID] = struct{}{}
		}
	}
	for _, draft := range drafts {
		if _, ok := submitted[draft.SKUID]; ok {
			continue
		}
		if _, ok := note.LineBySKU(draft.SKUID); !ok {
			continue
		}
		if _, err := applyRow(session, draft, false); err != nil {
			return nil, err
		}
	}
	for _, row := range input.Rows {
		if _, err := applyRow(session, row, false); err != nil {
			return nil, err
		}
	}
	if err := session.SubmitQC(); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, note, expected, true); err != nil {
		return nil, err
	}
	if err := s.reviews.Clear(ctx, note.ID); err != nil {
		s.logger.Warn("clear review drafts", slog.Any("error", err), slog.Int64("grn_id", note.ID))
	}
	s.recordAudit(ctx, "grn.qc.submit", note.ID, map[string]any{
		"accepted_qty": note.Totals.AcceptedQty,
		"rejected_qty": note.Totals.RejectedQty,
	})
	return note, nil
}

// InitiateQC moves a created GRN whose line items are valid to qc_pending.
func (s *Service) InitiateQC(ctx context.Context, input TransitionInput) (*grn.Note, error) {
	return s.transition(ctx, input, "grn.qc.initiate", (*grn.Session).InitiateQC)
}

// Complete moves a qc_pending GRN with submitted QC results to completed,
// then schedules stock posting and announces the completion.
func (s *Service) Complete(ctx context.Context, input TransitionInput) (*grn.Note, error) {
	note, err := s.transition(ctx, input, "grn.complete", (*grn.Session).Complete)
	if err != nil {
		return nil, err
	}
	if s.stock != nil {
		if err := s.stock.EnqueueGRNStockPost(ctx, note.ID); err != nil {
			s.logger.Error("enqueue grn stock post", slog.Any("error", err), slog.Int64("grn_id", note.ID))
		}
	}
	if s.events != nil {
		if err := s.events.PublishGRNCompleted(ctx, completedEvent(note, s.now().UTC())); err != nil {
			s.logger.Error("publish grn completed", slog.Any("error", err), slog.Int64("grn_id", note.ID))
		}
	}
	return note, nil
}

// Cancel moves a created or qc_pending GRN to cancelled.
func (s *Service) Cancel(ctx context.Context, input TransitionInput) (*grn.Note, error) {
	var from grn.Status
	note, err := s.transition(ctx, input, "grn.cancel", func(session *grn.Session) error {
		from = session.Note.Status
		return session.Cancel()
	})
	if err != nil {
		return nil, err
	}
	if err := s.reviews.Clear(ctx, note.ID); err != nil {
		s.logger.Warn("clear review drafts", slog.Any("error", err), slog.Int64("grn_id", note.ID))
	}
	if s.events != nil {
		evt := GRNCancelledEvent{ID: note.ID, Number: note.Number, POID: note.POID, From: string(from), CancelledAt: s.now().UTC()}
		if err := s.events.PublishGRNCancelled(ctx, evt); err != nil {
			s.logger.Error("publish grn cancelled", slog.Any("error", err), slog.Int64("grn_id", note.ID))
		}
	}
	return note, nil
}

func (s *Service) transition(ctx context.Context, input TransitionInput, action string, fn func(*grn.Session) error) (*grn.Note, error) {
	note, err := s.repo.GetNote(ctx, input.GRNID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(note, input.Version); err != nil {
		return nil, err
	}
	expected := note.Version
	from := note.Status
	if err := fn(grn.NewSession(note, nil, nil)); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, note, expected, false); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(note.Status))
	s.recordAudit(ctx, action, note.ID, map[string]any{"from": string(from), "to": string(note.Status)})
	return note, nil
}

// receivingSession loads a GRN with its PO catalog and a verifier bound to it.
func (s *Service) receivingSession(ctx context.Context, grnID int64) (*grn.Session, error) {
	note, err := s.repo.GetNote(ctx, grnID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summaries.load(ctx, note.POID, note.ID)
	if err != nil {
		return nil, err
	}
	catalog := summary.Catalog()
	verifier := grn.VerifierFunc(func(ctx context.Context, skuID int64, serial string) error {
		return s.verifySerial(ctx, note.ID, catalog, skuID, serial)
	})
	return grn.NewSession(note, catalog, verifier), nil
}

func (s *Service) verifySerial(ctx context.Context, grnID int64, catalog grn.Catalog, skuID int64, serial string) error {
	code := catalog[skuID].SKUCode
	release, err := s.locks.Acquire(ctx, grnID, skuID, code, serial)
	if err != nil {
		if errors.Is(err, grn.ErrVerificationInFlight) {
			s.metrics.RecordVerification("in_flight")
		}
		return err
	}
	defer release()
	inUse, err := s.repo.SerialInUse(ctx, skuID, serial, grnID)
	if err != nil {
		s.metrics.RecordVerification("error")
		return err
	}
	if inUse {
		s.metrics.RecordVerification("rejected")
		return fmt.Errorf("Serial %s already exists for this SKU", serial)
	}
	s.metrics.RecordVerification("accepted")
	return nil
}

// persist writes the header and, when withLines is set, the line items of
// note. The version bump fails with ErrConflict if another writer won.
func (s *Service) persist(ctx context.Context, note *grn.Note, expected int64, withLines bool) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateNote(ctx, note, expected); err != nil {
			return err
		}
		if !withLines {
			return nil
		}
		return tx.ReplaceLines(ctx, note.ID, note.Lines)
	})
	if err != nil {
		return err
	}
	note.Version = expected + 1
	return nil
}

func checkVersion(note *grn.Note, version int64) error {
	if version != 0 && version != note.Version {
		return fmt.Errorf("%w: goods receive note %d is at version %d, not %d", ErrConflict, note.ID, note.Version, version)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "goods_received_note",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.Any("error", err), slog.String("action", action))
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultTime(value time.Time, now func() time.Time) time.Time {
	if value.IsZero() {
		return now()
	}
	return value
}
